package chaosmonkey

import (
	"errors"
	"fmt"
	"time"

	_const "github.com/BBVA/chaos-monkey-engine/const"
	"github.com/robfig/cron/v3"
)

var ErrInvalidTrigger = errors.New("invalid trigger")

// Trigger 决定Job的触发时间
type Trigger interface {
	// Next 返回prev之后的下一次触发时间，prev为零值时返回首次触发时间
	// 没有后续触发时间时返回false
	Next(prev, now time.Time) (time.Time, bool)
	String() string
	state() triggerState
}

// triggerState 触发器的持久化表示
type triggerState struct {
	Kind     _const.TriggerKind `json:"kind"`
	RunDate  time.Time          `json:"run_date,omitempty"`
	Spec     string             `json:"spec,omitempty"`
	Location string             `json:"location,omitempty"`
}

// DateTrigger 在RunDate执行一次
type DateTrigger struct {
	RunDate time.Time
}

func NewDateTrigger(runDate time.Time) *DateTrigger {
	return &DateTrigger{RunDate: runDate}
}

func (t *DateTrigger) Next(prev, _ time.Time) (time.Time, bool) {
	if !prev.IsZero() {
		return time.Time{}, false
	}
	return t.RunDate, true
}

func (t *DateTrigger) String() string {
	return fmt.Sprintf("date[%s]", t.RunDate.Format(time.RFC3339))
}

func (t *DateTrigger) state() triggerState {
	return triggerState{Kind: _const.TriggerDate, RunDate: t.RunDate}
}

// CronTrigger 按cron表达式周期执行
type CronTrigger struct {
	Spec     string
	Location *time.Location
	schedule cron.Schedule
}

func NewCronTrigger(spec string, loc *time.Location) (*CronTrigger, error) {
	schedule, err := _const.Parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTrigger, spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}

	return &CronTrigger{
		Spec:     spec,
		Location: loc,
		schedule: schedule,
	}, nil
}

func (t *CronTrigger) Next(prev, now time.Time) (time.Time, bool) {
	base := now
	if prev.After(now) {
		base = prev
	}
	next := t.schedule.Next(base.In(t.Location))
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

func (t *CronTrigger) String() string {
	return fmt.Sprintf("cron[%s %s]", t.Spec, t.Location)
}

func (t *CronTrigger) state() triggerState {
	return triggerState{Kind: _const.TriggerCron, Spec: t.Spec, Location: t.Location.String()}
}

func (s triggerState) trigger() (Trigger, error) {
	switch s.Kind {
	case _const.TriggerDate:
		return NewDateTrigger(s.RunDate), nil
	case _const.TriggerCron:
		loc := time.UTC
		if s.Location != "" {
			l, err := time.LoadLocation(s.Location)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidTrigger, err)
			}
			loc = l
		}
		return NewCronTrigger(s.Spec, loc)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidTrigger, s.Kind)
	}
}
