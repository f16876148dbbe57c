package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrNotImplemented  ErrorCode = "not_implemented"
	ErrUnavailable     ErrorCode = "service_unavailable"
	ErrAlreadyRunning  ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig      ErrorCode = "invalid_configuration"
	ErrBindFlags          ErrorCode = "bind_flags_failed"
	ErrReadConfig         ErrorCode = "read_config_failed"
	ErrInvalidInterval    ErrorCode = "invalid_interval"
	ErrInvalidResolutions ErrorCode = "invalid_resolutions"
	ErrInvalidCapacity    ErrorCode = "invalid_capacity"
	ErrInvalidSpan        ErrorCode = "invalid_span"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Resource errors
	ErrResourceNotFound ErrorCode = "resource_not_found"

	// Application errors
	ErrInitApp       ErrorCode = "init_app_failed"
	ErrMainLoop      ErrorCode = "main_loop_failed"
	ErrNoSensors     ErrorCode = "no_sensors_found"
	ErrServerFailed  ErrorCode = "http_server_failed"
	ErrPollSensors   ErrorCode = "poll_sensors_failed"
	ErrRecordSamples ErrorCode = "record_samples_failed"

	// Operation errors
	ErrOperationFailed ErrorCode = "operation_failed"
	ErrTimeout         ErrorCode = "operation_timeout"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:           "Internal error occurred",
	ErrInvalidArgument:    "Invalid argument provided",
	ErrNotImplemented:     "Operation not implemented",
	ErrUnavailable:        "Service unavailable",
	ErrAlreadyRunning:     "Another instance is already running",
	ErrInvalidConfig:      "Invalid configuration",
	ErrBindFlags:          "Failed to bind flags",
	ErrReadConfig:         "Failed to read config file",
	ErrInvalidInterval:    "Invalid interval value",
	ErrInvalidResolutions: "Resolutions must be positive and strictly ascending",
	ErrInvalidCapacity:    "Invalid ring buffer capacity",
	ErrInvalidSpan:        "Invalid time span",
	ErrInitFailed:         "Initialization failed",
	ErrShutdownFailed:     "Shutdown failed",
	ErrResourceNotFound:   "Resource not found",
	ErrInitApp:            "Failed to initialize application",
	ErrMainLoop:           "Error in main loop",
	ErrNoSensors:          "No sensors found",
	ErrServerFailed:       "HTTP server failed",
	ErrPollSensors:        "Failed to poll sensors",
	ErrRecordSamples:      "Failed to record samples",
	ErrOperationFailed:    "Operation failed",
	ErrTimeout:            "Operation timed out",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
