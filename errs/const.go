package errs

const (
	ErrCode_OK            = 0
	ErrCode_Unknown       = 1
	ErrCode_LoopClosed    = 100
	ErrCode_TaskQueueFull = 101
	ErrCode_StaleHandle   = 102
	ErrCode_BadConfig     = 200
)

var (
	Unknown       = CreateCodeError(ErrCode_Unknown, "UNKNOWN")
	LoopClosed    = CreateCodeError(ErrCode_LoopClosed, "LOOP_CLOSED")
	TaskQueueFull = CreateCodeError(ErrCode_TaskQueueFull, "TASK_QUEUE_FULL")
	StaleHandle   = CreateCodeError(ErrCode_StaleHandle, "STALE_HANDLE")
	BadConfig     = CreateCodeError(ErrCode_BadConfig, "BAD_CONFIG")
)
