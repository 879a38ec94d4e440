package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 13000-13999: Execution errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Execution Errors (13000-13999) ==========

	// Payload (13000-13099)
	ExecutableTooLarge    ErrorCode = 13000
	CalldataTooLarge      ErrorCode = 13001
	MaterializationFailed ErrorCode = 13002

	// Runtime (13100-13199)
	ExecutorBusy ErrorCode = 13100
	SpawnFailed  ErrorCode = 13101
	ExecutorFail ErrorCode = 13102
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Cache
	CacheError: "Cache operation failed",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "invalid JSON request format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "field is missing from JSON request",

	// Payload
	ExecutableTooLarge:    "Executable exceeded max size",
	CalldataTooLarge:      "Calldata exceeded max size",
	MaterializationFailed: "Failed to materialize executable",

	// Runtime
	ExecutorBusy: "All executor slots are busy, please try again later",
	SpawnFailed:  "Execution fail",
	ExecutorFail: "Executor internal failure",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound:
		return 404
	case c == TooManyRequests:
		return 429
	case c == ServiceUnavailable, c == ExecutorBusy:
		return 503
	case c == Timeout:
		return 504
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == ExecutableTooLarge, c == CalldataTooLarge:
		return 400
	default:
		return 500
	}
}
