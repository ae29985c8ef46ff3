package kafka

import (
	"errors"
	"strings"

	kafkago "github.com/segmentio/kafka-go"
)

// IsConnectionError checks if a Kafka error is a connection-level error.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var kerr kafkago.Error
	if errors.As(err, &kerr) {
		switch kerr {
		case kafkago.BrokerNotAvailable, kafkago.LeaderNotAvailable, kafkago.NetworkException:
			return true
		}
	}
	return containsAny(err, []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"no route to host",
		"network is unreachable",
		"broker not available",
		"leader not available",
		"connection closed",
		"dial tcp",
		"network exception",
	})
}

// IsRetryableError determines if a Kafka error should trigger a retry.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if IsConnectionError(err) {
		return true
	}
	if IsNonRetryableError(err) {
		return false
	}
	var kerr kafkago.Error
	if errors.As(err, &kerr) {
		return kerr.Temporary()
	}
	return containsAny(err, []string{
		"temporary",
		"request timed out",
		"not enough replicas",
		"offset out of range",
	})
}

// IsNonRetryableError checks if the error should not be retried.
func IsNonRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var kerr kafkago.Error
	if errors.As(err, &kerr) {
		switch kerr {
		case kafkago.MessageSizeTooLarge, kafkago.InvalidTopic, kafkago.UnknownTopicOrPartition,
			kafkago.TopicAuthorizationFailed, kafkago.GroupAuthorizationFailed:
			return true
		}
	}
	return containsAny(err, []string{
		"message too large",
		"invalid topic",
		"invalid partition",
		"unknown topic",
		"authorization failed",
	})
}

// IsAuthError reports SASL and ACL failures.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	var kerr kafkago.Error
	if errors.As(err, &kerr) {
		switch kerr {
		case kafkago.SASLAuthenticationFailed, kafkago.TopicAuthorizationFailed,
			kafkago.GroupAuthorizationFailed, kafkago.ClusterAuthorizationFailed:
			return true
		}
	}
	return containsAny(err, []string{"sasl authentication failed", "authorization failed"})
}

// IsTopicExists reports whether err says the topic is already there.
func IsTopicExists(err error) bool {
	return errors.Is(err, kafkago.TopicAlreadyExists) ||
		containsAny(err, []string{"topic with this name already exists", "topic_already_exists"})
}

func containsAny(err error, patterns []string) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}
