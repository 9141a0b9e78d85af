package chaosmonkey

import (
	"context"
	"time"
)

// JobStore 调度引擎依赖的持久化存储
// 所有方法都需要是并发安全的，调度循环和前台请求会同时访问
type JobStore interface {
	// LookupJob 查询Job，不存在时返回ErrJobNotFound，job_state为空时返回nil
	LookupJob(ctx context.Context, id string) (*Job, error)
	// GetDueJobs 返回所有未执行且NextRunTime<=now的Job，按NextRunTime升序
	GetDueJobs(ctx context.Context, now time.Time) ([]*Job, error)
	// GetNextRunTime 返回未执行Job中最早的NextRunTime，没有时返回false
	GetNextRunTime(ctx context.Context) (time.Time, bool, error)
	// GetAllJobs 返回所有未执行的Job，按NextRunTime升序
	GetAllJobs(ctx context.Context) ([]*Job, error)
	AddJob(ctx context.Context, job *Job) error
	// UpdateJob 更新NextRunTime和job_state，不存在时返回ErrJobNotFound
	UpdateJob(ctx context.Context, job *Job) error
	// RemoveJob 从调度引擎的视角移除Job(已执行或已取消)
	RemoveJob(ctx context.Context, id string) error
	RemoveAllJobs(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
