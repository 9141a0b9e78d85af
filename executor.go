package chaosmonkey

import "context"

// ExecutorFunc Job到期后的执行方法
// 返回的错误只会被记录，Job依然视为已执行
type ExecutorFunc func(ctx context.Context, job *Job) error
