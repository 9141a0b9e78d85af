package domain

import (
	"time"

	_const "github.com/BBVA/chaos-monkey-engine/const"
)

type Plan struct {
	// ID 128位随机ID
	ID string `json:"id"`
	// Name 名称，不要求唯一
	Name string `json:"name"`
	// Created 创建时间
	Created time.Time `json:"created"`
	// Executed 所有Executor执行完毕
	Executed bool `json:"executed"`
	// ExecutorsCount 查询时统计的Executor数量
	ExecutorsCount int `json:"executors_count"`
	// NextExecution 未执行Executor中最早的执行时间
	NextExecution *time.Time `json:"next_execution,omitempty"`
}

func (p Plan) Status() _const.Status {
	return _const.StatusOf(p.Executed)
}
