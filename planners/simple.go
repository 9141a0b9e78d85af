package planners

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/BBVA/chaos-monkey-engine/domain"
	"github.com/BBVA/chaos-monkey-engine/plugin"
)

// SimplePlanner 在当天的[min_time, max_time]内随机执行times次attack
// 时间段被平均分成times份，每份中随机取一个时间
var SimplePlanner = &plugin.PlannerType{
	Name: "SimplePlanner",
	Schema: `{
	"type": "object",
	"properties": {
		"ref": {"type": "string"},
		"args": {
			"type": "object",
			"properties": {
				"min_time": {"type": "string", "pattern": "^[0-2][0-9]:[0-5][0-9]$"},
				"max_time": {"type": "string", "pattern": "^[0-2][0-9]:[0-5][0-9]$"},
				"times": {"type": "integer", "minimum": 1}
			},
			"required": ["min_time", "max_time", "times"]
		}
	},
	"required": ["args"]
}`,
	Example: map[string]any{
		"ref": "simple_planner:SimplePlanner",
		"args": map[string]any{
			"min_time": "10:00",
			"max_time": "15:00",
			"times":    4,
		},
	},
	New: func(name string, scheduler plugin.PlanScheduler) plugin.Planner {
		return &simplePlanner{
			name:      name,
			scheduler: scheduler,
			now:       time.Now,
			rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
		}
	},
}

type simplePlanner struct {
	name      string
	scheduler plugin.PlanScheduler
	now       func() time.Time
	rand      *rand.Rand
}

func (p *simplePlanner) Plan(ctx context.Context, planner, attack domain.PluginConfig) error {
	dates, err := p.schedule(planner.Args)
	if err != nil {
		return err
	}

	plan, err := p.scheduler.AddPlan(ctx, p.name)
	if err != nil {
		return err
	}
	for i, date := range dates {
		name := p.name + "-" + strconv.Itoa(i+1)
		if _, err = p.scheduler.AddExecutor(ctx, date, name, attack, plan.ID); err != nil {
			return err
		}
	}
	return nil
}

// schedule 计算当天的执行时间，按时间先后排列
func (p *simplePlanner) schedule(args map[string]any) ([]time.Time, error) {
	loc := p.scheduler.Location()
	today := p.now().In(loc)

	start, err := clock(today, args["min_time"])
	if err != nil {
		return nil, err
	}
	end, err := clock(today, args["max_time"])
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, fmt.Errorf("%w: max_time must be after min_time", ErrInvalidArgs)
	}
	times, err := count(args["times"])
	if err != nil {
		return nil, err
	}

	bucket := end.Sub(start) / time.Duration(times)
	dates := make([]time.Time, 0, times)
	for i := 0; i < times; i++ {
		from := start.Add(bucket * time.Duration(i))
		to := from.Add(bucket)
		if i == times-1 {
			to = end
		}
		offset := time.Duration(p.rand.Int63n(int64(to.Sub(from)) + 1))
		dates = append(dates, from.Add(offset))
	}
	return dates, nil
}

// clock 将"HH:MM"解析为day当天的时间
func clock(day time.Time, v any) (time.Time, error) {
	raw, _ := v.(string)
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad time %q", ErrInvalidArgs, raw)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

func count(v any) (int, error) {
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int64:
		n = int(x)
	case float64:
		n = int(x)
	default:
		return 0, fmt.Errorf("%w: times must be a number", ErrInvalidArgs)
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: times must be positive", ErrInvalidArgs)
	}
	return n, nil
}
