package plugin

import (
	"context"
	"time"

	"github.com/BBVA/chaos-monkey-engine/domain"
)

// Attack 到期后执行的破坏性操作
type Attack interface {
	Run(ctx context.Context) error
}

// AttackFactory 使用attack配置中的args创建Attack
type AttackFactory func(args map[string]any) (Attack, error)

// PlanScheduler Planner创建Plan和Executor时使用的调度接口
type PlanScheduler interface {
	AddPlan(ctx context.Context, name string) (domain.Plan, error)
	AddExecutor(ctx context.Context, date time.Time, name string,
		attack domain.PluginConfig, planID string) (domain.Executor, error)
	// Location 解析本地时间使用的时区
	Location() *time.Location
}

// Planner 决定Executor的数量和执行时间
type Planner interface {
	Plan(ctx context.Context, planner domain.PluginConfig, attack domain.PluginConfig) error
}

type PlannerFactory func(name string, scheduler PlanScheduler) Planner

type (
	AttackType  = Type[AttackFactory]
	PlannerType = Type[PlannerFactory]
)
