package types

// Row status values. The labels match the ones written by earlier versions of
// the tool so that existing reports can be resumed.
const (
	StatusPending     = "Pending"
	StatusSuccess     = "成功"
	StatusFailure     = "失败"
	StatusReadError   = "文件读取错误"
	StatusAPIError    = "API或解析错误"
	StatusUnparseable = "解析失败"
	StatusWorkerError = "线程异常"
)

// UnparseableDetail is the detail recorded when the model answer carries
// neither the result marker nor the explanation marker.
const UnparseableDetail = "无法解析LLM返回"

// IsTerminal reports whether status is a settled value. Every status other
// than Pending is terminal.
func IsTerminal(status string) bool {
	return status != StatusPending
}

// IsError reports whether status is an error-kind label: anything that is
// neither Pending, Success nor Failure. Free-text verdicts returned by the
// model fall in this class.
func IsError(status string) bool {
	switch status {
	case StatusPending, StatusSuccess, StatusFailure:
		return false
	default:
		return true
	}
}
