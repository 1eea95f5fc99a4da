package task

import "context"

// RecoveryHandler 在分析任务不可重试地失败后尝试给出降级结果，
// 例如改用离线摘要代替大模型叙述。
type RecoveryHandler interface {
	// Recover 根据失败原因产出降级结果。返回非 nil 的 ExecutionResult
	// 时任务按成功落库；返回 (nil, nil) 表示放弃补偿，走正常失败流程。
	Recover(ctx context.Context, task *Task, cause error) (*ExecutionResult, error)
}

// RecoveryFunc 允许用函数充当 RecoveryHandler。
type RecoveryFunc func(ctx context.Context, task *Task, cause error) (*ExecutionResult, error)

// Recover 实现 RecoveryHandler。
func (f RecoveryFunc) Recover(ctx context.Context, task *Task, cause error) (*ExecutionResult, error) {
	return f(ctx, task, cause)
}
