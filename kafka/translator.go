package kafka

import (
	apperrors "github.com/kbukum/snapstream/errors"
)

// FromKafka converts a Kafka error to an AppError carrying the topic.
func FromKafka(err error, topic string) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}

	switch {
	case IsAuthError(err):
		return apperrors.Unauthorized("kafka rejected the credentials or ACLs").
			WithCause(err).WithDetail("topic", topic)
	case IsConnectionError(err):
		return apperrors.ServiceUnavailable("kafka").WithCause(err).WithDetail("topic", topic)
	case IsNonRetryableError(err):
		return apperrors.InvalidInput("topic", "kafka refused the request").
			WithCause(err).WithDetail("topic", topic)
	case IsRetryableError(err):
		return apperrors.ExternalServiceError("kafka", err).WithDetail("topic", topic)
	}
	return apperrors.Internal(err).WithDetail("topic", topic)
}
