package _const

// Status Plan和Executor的执行状态
type Status int

const (
	StatusPending  Status = 0x00000001 // 等待执行
	StatusExecuted Status = 0x00000002 // 已执行(成功/失败/取消不做区分)
)

func StatusOf(executed bool) Status {
	if executed {
		return StatusExecuted
	}
	return StatusPending
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusExecuted:
		return "Executed"
	default:
		return "Unknown"
	}
}
