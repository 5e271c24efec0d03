package errs

const (
	ErrCode_OK      = 0
	ErrCode_Unknown = 1

	ErrCode_TimerNotFound   = 100
	ErrCode_MissingHandler  = 101
	ErrCode_InvalidInterval = 102
	ErrCode_NoAdapter       = 103
	ErrCode_AdapterFailed   = 104
	ErrCode_EngineClosed    = 105
)

var (
	Unknown = CreateCodeError(ErrCode_Unknown, "UNKNOWN")

	TimerNotFound   = CreateCodeError(ErrCode_TimerNotFound, "TIMER_NOT_FOUND")
	MissingHandler  = CreateCodeError(ErrCode_MissingHandler, "MISSING_HANDLER")
	InvalidInterval = CreateCodeError(ErrCode_InvalidInterval, "INVALID_INTERVAL")
	NoAdapter       = CreateCodeError(ErrCode_NoAdapter, "NO_ADAPTER")
	AdapterFailed   = CreateCodeError(ErrCode_AdapterFailed, "ADAPTER_FAILED")
	EngineClosed    = CreateCodeError(ErrCode_EngineClosed, "ENGINE_CLOSED")
)
