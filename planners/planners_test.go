package planners

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/BBVA/chaos-monkey-engine/domain"
	"github.com/BBVA/chaos-monkey-engine/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type executorCall struct {
	date   time.Time
	name   string
	planID string
}

type fakeScheduler struct {
	loc       *time.Location
	plans     []string
	executors []executorCall
}

func (f *fakeScheduler) AddPlan(_ context.Context, name string) (domain.Plan, error) {
	f.plans = append(f.plans, name)
	return domain.Plan{ID: "plan-" + name, Name: name}, nil
}

func (f *fakeScheduler) AddExecutor(_ context.Context, date time.Time, name string,
	_ domain.PluginConfig, planID string) (domain.Executor, error) {
	f.executors = append(f.executors, executorCall{date: date, name: name, planID: planID})
	return domain.Executor{ID: name, NextRunTime: date, PlanID: planID}, nil
}

func (f *fakeScheduler) Location() *time.Location {
	return f.loc
}

var attack = domain.PluginConfig{Ref: "api_request:ApiRequest"}

func madrid(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	return loc
}

func TestExactPlanner(t *testing.T) {
	loc := madrid(t)
	tests := []struct {
		name string
		date string
		want time.Time
	}{
		{"local", "2016-06-21T15:30:00", time.Date(2016, 6, 21, 15, 30, 0, 0, loc)},
		{"utc", "2016-06-21T15:30:00Z", time.Date(2016, 6, 21, 15, 30, 0, 0, loc)},
		{"offset", "2016-06-21T15:30:00+05:00", time.Date(2016, 6, 21, 15, 30, 0, 0, loc)},
		{"space", "2016-06-21 15:30:00", time.Date(2016, 6, 21, 15, 30, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeScheduler{loc: loc}
			planner := ExactPlanner.New("exact", s)
			err := planner.Plan(context.Background(),
				domain.PluginConfig{Ref: "exact_planner:ExactPlanner", Args: map[string]any{"date": tt.date}}, attack)
			require.NoError(t, err)

			assert.Equal(t, []string{"exact"}, s.plans)
			require.Len(t, s.executors, 1)
			assert.True(t, tt.want.Equal(s.executors[0].date))
			assert.Equal(t, "plan-exact", s.executors[0].planID)
		})
	}
}

func TestExactPlannerBadDate(t *testing.T) {
	s := &fakeScheduler{loc: time.UTC}
	err := ExactPlanner.New("exact", s).Plan(context.Background(),
		domain.PluginConfig{Args: map[string]any{"date": "tomorrow"}}, attack)
	assert.ErrorIs(t, err, ErrInvalidArgs)
	assert.Empty(t, s.plans)
}

func newSimplePlanner(s *fakeScheduler, now time.Time) *simplePlanner {
	return &simplePlanner{
		name:      "simple",
		scheduler: s,
		now:       func() time.Time { return now },
		rand:      rand.New(rand.NewSource(42)),
	}
}

func TestSimplePlanner(t *testing.T) {
	loc := madrid(t)
	s := &fakeScheduler{loc: loc}
	now := time.Date(2024, 5, 10, 8, 0, 0, 0, loc)
	planner := newSimplePlanner(s, now)

	err := planner.Plan(context.Background(), domain.PluginConfig{
		Ref:  "simple_planner:SimplePlanner",
		Args: map[string]any{"min_time": "10:00", "max_time": "14:00", "times": float64(4)},
	}, attack)
	require.NoError(t, err)

	assert.Equal(t, []string{"simple"}, s.plans)
	require.Len(t, s.executors, 4)
	start := time.Date(2024, 5, 10, 10, 0, 0, 0, loc)
	for i, call := range s.executors {
		// 每个时间段一个小时
		from := start.Add(time.Duration(i) * time.Hour)
		assert.False(t, call.date.Before(from), call.date)
		assert.False(t, call.date.After(from.Add(time.Hour)), call.date)
		assert.Equal(t, "plan-simple", call.planID)
	}
	assert.Equal(t, "simple-1", s.executors[0].name)
	assert.Equal(t, "simple-4", s.executors[3].name)
}

func TestSimplePlannerBadArgs(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
	}{
		{"inverted", map[string]any{"min_time": "15:00", "max_time": "10:00", "times": 1}},
		{"bad time", map[string]any{"min_time": "10h", "max_time": "12:00", "times": 1}},
		{"zero times", map[string]any{"min_time": "10:00", "max_time": "12:00", "times": 0}},
		{"missing times", map[string]any{"min_time": "10:00", "max_time": "12:00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeScheduler{loc: time.UTC}
			err := newSimplePlanner(s, time.Now()).Plan(context.Background(),
				domain.PluginConfig{Args: tt.args}, attack)
			assert.ErrorIs(t, err, ErrInvalidArgs)
			assert.Empty(t, s.plans)
		})
	}
}

func TestPlannerSchemas(t *testing.T) {
	doc := func(args map[string]any) any {
		d, err := domain.PluginConfig{Ref: "x:Y", Args: args}.Document()
		require.NoError(t, err)
		return d
	}

	require.NoError(t, ExactPlanner.Validate("exact_planner:ExactPlanner",
		doc(map[string]any{"date": "2016-06-21T15:30:00"})))
	assert.Error(t, ExactPlanner.Validate("exact_planner:ExactPlanner", doc(map[string]any{})))
	assert.Error(t, ExactPlanner.Validate("exact_planner:ExactPlanner", doc(nil)))

	require.NoError(t, SimplePlanner.Validate("simple_planner:SimplePlanner",
		doc(map[string]any{"min_time": "10:00", "max_time": "15:00", "times": 4})))
	assert.Error(t, SimplePlanner.Validate("simple_planner:SimplePlanner",
		doc(map[string]any{"min_time": "10:00", "max_time": "15:00", "times": 0})))
	assert.Error(t, SimplePlanner.Validate("simple_planner:SimplePlanner",
		doc(map[string]any{"min_time": "10h", "max_time": "15:00", "times": 2})))
}

// 每个类型的示例都要满足自己的schema
func TestExamplesMatchSchemas(t *testing.T) {
	for _, unit := range Units() {
		for _, member := range unit.Members {
			planner, ok := member.(*plugin.PlannerType)
			require.True(t, ok)
			ref := unit.Name + ":" + planner.Name

			t.Run(ref, func(t *testing.T) {
				assert.Equal(t, ref, planner.Example["ref"])
				args, ok := planner.Example["args"].(map[string]any)
				require.True(t, ok)
				doc, err := domain.PluginConfig{Ref: ref, Args: args}.Document()
				require.NoError(t, err)
				assert.NoError(t, planner.Validate(ref, doc))
			})
		}
	}
}

func TestUnits(t *testing.T) {
	units := Units()
	require.Len(t, units, 2)
	assert.Equal(t, "exact_planner", units[0].Name)
	assert.Equal(t, "simple_planner", units[1].Name)
}
