package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Validation errors, reported before any file is written.
const (
	// ErrCodeUnsupportedType indicates the upload declared a type outside the allow-list.
	ErrCodeUnsupportedType ErrorCode = "UNSUPPORTED_TYPE"
	// ErrCodeTooLarge indicates the upload exceeded the size limit.
	ErrCodeTooLarge ErrorCode = "FILE_TOO_LARGE"
	// ErrCodeMissingFile indicates the request carried no audio part.
	ErrCodeMissingFile ErrorCode = "MISSING_FILE"
	// ErrCodeInvalidInput indicates a malformed request body.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Pipeline errors, reported as a terminal stream event.
const (
	// ErrCodeConversionFailed indicates the audio converter failed.
	ErrCodeConversionFailed ErrorCode = "CONVERSION_FAILED"
	// ErrCodeEngineFailed indicates the recognition engine failed or produced no output.
	ErrCodeEngineFailed ErrorCode = "ENGINE_FAILED"
	// ErrCodeEngineBusy indicates no engine slot became free in time.
	ErrCodeEngineBusy ErrorCode = "ENGINE_BUSY"
)

// Process and collaborator errors.
const (
	// ErrCodeStartupFailed indicates a startup precondition did not hold.
	ErrCodeStartupFailed ErrorCode = "STARTUP_FAILED"
	// ErrCodeNotifyFailed indicates the downstream notifier could not deliver.
	ErrCodeNotifyFailed ErrorCode = "NOTIFY_FAILED"
	// ErrCodeServiceUnavailable indicates a dependency is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeTimeout indicates an operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeEngineBusy:         true,
	ErrCodeServiceUnavailable: true,
	ErrCodeTimeout:            true,
	ErrCodeNotifyFailed:       true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}

// Kind groups error codes into the families the pipeline reasons about.
type Kind string

const (
	KindValidation Kind = "ValidationError"
	KindConversion Kind = "ConversionError"
	KindEngine     Kind = "EngineError"
	KindStartup    Kind = "StartupError"
	KindNotify     Kind = "NotifyError"
	KindCanceled   Kind = "Canceled"
	KindInternal   Kind = "Internal"
)

var codeKinds = map[ErrorCode]Kind{
	ErrCodeUnsupportedType:  KindValidation,
	ErrCodeTooLarge:         KindValidation,
	ErrCodeMissingFile:      KindValidation,
	ErrCodeInvalidInput:     KindValidation,
	ErrCodeConversionFailed: KindConversion,
	ErrCodeEngineFailed:     KindEngine,
	ErrCodeEngineBusy:       KindEngine,
	ErrCodeStartupFailed:    KindStartup,
	ErrCodeNotifyFailed:     KindNotify,
	ErrCodeTimeout:          KindCanceled,
}

// KindOf returns the family of the given code.
func KindOf(code ErrorCode) Kind {
	if k, ok := codeKinds[code]; ok {
		return k
	}
	return KindInternal
}
