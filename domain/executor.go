package domain

import (
	"time"

	_const "github.com/BBVA/chaos-monkey-engine/const"
)

// Executor 持久化的调度任务
type Executor struct {
	ID          string    `json:"id"`
	NextRunTime time.Time `json:"next_run_time"`
	PlanID      string    `json:"plan_id"`
	Executed    bool      `json:"executed"`
}

func (e Executor) Status() _const.Status {
	return _const.StatusOf(e.Executed)
}
