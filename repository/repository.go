package repository

import (
	"context"

	"github.com/BBVA/chaos-monkey-engine/domain"
)

// PlanRepository Plan和Executor的查询与维护，由dao.Store实现
type PlanRepository interface {
	AddPlan(ctx context.Context, name string) (domain.Plan, error)
	GetPlan(ctx context.Context, id string) (domain.Plan, error)
	GetPlans(ctx context.Context, showAll bool) ([]domain.Plan, error)
	DeletePlan(ctx context.Context, id string) error
	GetExecutor(ctx context.Context, id string) (domain.Executor, error)
	GetExecutors(ctx context.Context, executed bool) ([]domain.Executor, error)
	GetExecutorsForPlan(ctx context.Context, planID string) ([]domain.Executor, error)
	// HardRemoveJob 物理删除Executor
	HardRemoveJob(ctx context.Context, id string) error
}
