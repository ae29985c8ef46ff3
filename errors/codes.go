package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Connection/Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates the broker or store is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeConnectionFailed indicates a failed connection to a service.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Resource errors
const (
	// ErrCodeNotFound indicates the requested topic, key or file was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeAlreadyExists indicates the resource already exists.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeInvalidFormat indicates a field has an invalid format.
	ErrCodeInvalidFormat ErrorCode = "INVALID_FORMAT"
	// ErrCodeEncoding indicates a value could not be encoded or decoded.
	ErrCodeEncoding ErrorCode = "ENCODING_ERROR"
	// ErrCodeConfig indicates invalid or unreadable configuration.
	ErrCodeConfig ErrorCode = "CONFIG_ERROR"
)

// Authentication errors
const (
	// ErrCodeUnauthorized indicates the broker or store rejected the credentials.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
)

// Internal errors
const (
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeExternalService indicates an error reported by the broker or store.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeConnectionFailed:   true,
	ErrCodeTimeout:            true,
	ErrCodeExternalService:    true,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}

// Process exit statuses, following sysexits(3).
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 64
	ExitDataErr     = 65
	ExitNoInput     = 66
	ExitUnavailable = 69
	ExitTempFail    = 75
	ExitNoPerm      = 77
	ExitConfig      = 78
)

var exitCodes = map[ErrorCode]int{
	ErrCodeServiceUnavailable: ExitUnavailable,
	ErrCodeConnectionFailed:   ExitUnavailable,
	ErrCodeTimeout:            ExitTempFail,
	ErrCodeNotFound:           ExitNoInput,
	ErrCodeAlreadyExists:      ExitFailure,
	ErrCodeInvalidInput:       ExitUsage,
	ErrCodeMissingField:       ExitUsage,
	ErrCodeInvalidFormat:      ExitDataErr,
	ErrCodeEncoding:           ExitDataErr,
	ErrCodeConfig:             ExitConfig,
	ErrCodeUnauthorized:       ExitNoPerm,
	ErrCodeExternalService:    ExitUnavailable,
	ErrCodeInternal:           ExitFailure,
}

// ExitCodeFor returns the process exit status for code.
func ExitCodeFor(code ErrorCode) int {
	if c, ok := exitCodes[code]; ok {
		return c
	}
	return ExitFailure
}
