package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrNotImplemented  ErrorCode = "not_implemented"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrMissingConfig   ErrorCode = "missing_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Input errors
	ErrOpenSource        ErrorCode = "open_source_failed"
	ErrReadSource        ErrorCode = "read_source_failed"
	ErrUnsupportedFormat ErrorCode = "unsupported_format"

	// Log data errors
	ErrMalformedTimestamp ErrorCode = "malformed_timestamp"
	ErrCorruptData        ErrorCode = "corrupt_data"

	// Application errors
	ErrInitApp     ErrorCode = "init_app_failed"
	ErrProcessFile ErrorCode = "process_file_failed"

	// Operation errors
	ErrOperationFailed ErrorCode = "operation_failed"
	ErrCanceled        ErrorCode = "operation_canceled"

	// Output errors
	ErrWriteOutput ErrorCode = "write_output_failed"
	ErrCloseOutput ErrorCode = "close_output_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:           "Internal error occurred",
	ErrInvalidArgument:    "Invalid argument provided",
	ErrNotImplemented:     "Operation not implemented",
	ErrInvalidConfig:      "Invalid configuration",
	ErrMissingConfig:      "Missing configuration",
	ErrBindFlags:          "Failed to bind flags",
	ErrReadConfig:         "Failed to read config file",
	ErrInvalidInterval:    "Invalid interval value",
	ErrInvalidLogLevel:    "Invalid log level",
	ErrInitFailed:         "Initialization failed",
	ErrShutdownFailed:     "Shutdown failed",
	ErrOpenSource:         "Failed to open log source",
	ErrReadSource:         "Failed to read log source",
	ErrUnsupportedFormat:  "Unsupported log format",
	ErrMalformedTimestamp: "Malformed timestamp",
	ErrCorruptData:        "Corrupt data",
	ErrInitApp:            "Failed to initialize application",
	ErrProcessFile:        "Failed to process log file",
	ErrOperationFailed:    "Operation failed",
	ErrCanceled:           "Operation canceled",
	ErrWriteOutput:        "Failed to write output",
	ErrCloseOutput:        "Failed to close output",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
