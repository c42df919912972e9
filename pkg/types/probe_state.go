package types

// ProbeState 探测序列的状态
type ProbeState int32

const (
	// ProbeStateIdle 已创建，尚未调度
	ProbeStateIdle ProbeState = iota
	// ProbeStateScheduled 已调度，等待延迟到期
	ProbeStateScheduled
	// ProbeStateRunning 正在执行一次尝试
	ProbeStateRunning
	// ProbeStateRetrying 尝试失败，已按加倍超时重新调度
	ProbeStateRetrying
	// ProbeStateSucceeded 终态：已获得映射地址
	ProbeStateSucceeded
	// ProbeStateGivingUp 终态：超时超过上限，放弃
	ProbeStateGivingUp
	// ProbeStateCancelled 终态：调用方取消
	ProbeStateCancelled
)

// String 返回状态名称
func (s ProbeState) String() string {
	switch s {
	case ProbeStateIdle:
		return "idle"
	case ProbeStateScheduled:
		return "scheduled"
	case ProbeStateRunning:
		return "running"
	case ProbeStateRetrying:
		return "retrying"
	case ProbeStateSucceeded:
		return "succeeded"
	case ProbeStateGivingUp:
		return "giving_up"
	case ProbeStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal 是否为终态
func (s ProbeState) IsTerminal() bool {
	return s == ProbeStateSucceeded || s == ProbeStateGivingUp || s == ProbeStateCancelled
}
