package planners

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BBVA/chaos-monkey-engine/domain"
	"github.com/BBVA/chaos-monkey-engine/plugin"
)

var ErrInvalidArgs = errors.New("invalid planner args")

// 不带时区的日期按调度引擎的时区解析
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ExactPlanner 在指定的时间执行一次attack
var ExactPlanner = &plugin.PlannerType{
	Name: "ExactPlanner",
	Schema: `{
	"type": "object",
	"properties": {
		"ref": {"type": "string"},
		"args": {
			"type": "object",
			"properties": {
				"date": {"type": "string"}
			},
			"required": ["date"]
		}
	},
	"required": ["args"]
}`,
	Example: map[string]any{
		"ref": "exact_planner:ExactPlanner",
		"args": map[string]any{
			"date": "2016-06-21T15:30:00",
		},
	},
	New: func(name string, scheduler plugin.PlanScheduler) plugin.Planner {
		return &exactPlanner{name: name, scheduler: scheduler}
	},
}

type exactPlanner struct {
	name      string
	scheduler plugin.PlanScheduler
}

func (p *exactPlanner) Plan(ctx context.Context, planner, attack domain.PluginConfig) error {
	raw, _ := planner.Args["date"].(string)
	date, err := parseDate(raw, p.scheduler.Location())
	if err != nil {
		return err
	}

	plan, err := p.scheduler.AddPlan(ctx, p.name)
	if err != nil {
		return err
	}
	_, err = p.scheduler.AddExecutor(ctx, date, p.name, attack, plan.ID)
	return err
}

func parseDate(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", ErrInvalidArgs)
	}
	// 带时区的日期只保留本地时间部分
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		y, m, d := t.Date()
		return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognized date %q", ErrInvalidArgs, raw)
}
