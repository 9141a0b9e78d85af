package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	chaosmonkey "github.com/BBVA/chaos-monkey-engine"
	"github.com/BBVA/chaos-monkey-engine/domain"
	"github.com/spf13/cobra"
)

var (
	executed   bool
	planFilter string
	runAt      string
	cronSpec   string
)

var executorsCmd = &cobra.Command{
	Use:   "executors",
	Short: "管理Executor",
}

var executorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出Executor",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		var (
			executors []domain.Executor
			err       error
		)
		if planFilter != "" {
			executors, err = a.manager.GetExecutorsForPlan(ctx, planFilter)
		} else {
			executors, err = a.manager.GetExecutors(ctx, executed)
		}
		if err != nil {
			return err
		}

		loc := a.manager.Location()
		rows := [][]string{{"ID", "Plan", "Next Run Time", "Status"}}
		for _, e := range executors {
			next := e.NextRunTime
			rows = append(rows, []string{e.ID, e.PlanID, formatTime(&next, loc), e.Status().String()})
		}
		return render(os.Stdout, rows)
	}),
}

var executorsRescheduleCmd = &cobra.Command{
	Use:   "reschedule ID",
	Short: "修改Executor的执行时间",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		trigger, err := parseTrigger(a.manager.Location())
		if err != nil {
			return err
		}
		executor, err := a.manager.UpdateExecutorTrigger(ctx, args[0], trigger)
		if err != nil {
			return err
		}
		fmt.Printf("executor %s next run at %s\n", executor.ID,
			executor.NextRunTime.In(a.manager.Location()).Format(time.RFC3339))
		return nil
	}),
}

var executorsRemoveCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "删除Executor",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		return a.manager.RemoveExecutor(ctx, args[0])
	}),
}

// parseTrigger --at和--cron只能指定一个
func parseTrigger(loc *time.Location) (chaosmonkey.Trigger, error) {
	switch {
	case runAt != "" && cronSpec != "":
		return nil, errors.New("--at and --cron are mutually exclusive")
	case runAt != "":
		t, err := time.ParseInLocation("2006-01-02T15:04:05", runAt, loc)
		if err != nil {
			if t, err = time.Parse(time.RFC3339, runAt); err != nil {
				return nil, fmt.Errorf("--at: %w", err)
			}
		}
		return chaosmonkey.NewDateTrigger(t), nil
	case cronSpec != "":
		return chaosmonkey.NewCronTrigger(cronSpec, loc)
	default:
		return nil, errors.New("one of --at or --cron is required")
	}
}

func init() {
	executorsListCmd.Flags().BoolVar(&executed, "executed", false, "list executed executors instead of pending ones")
	executorsListCmd.Flags().StringVar(&planFilter, "plan", "", "list all executors of a plan")
	executorsRescheduleCmd.Flags().StringVar(&runAt, "at", "", "run once at this local date (2006-01-02T15:04:05) or RFC3339 time")
	executorsRescheduleCmd.Flags().StringVar(&cronSpec, "cron", "", "run on a cron schedule")
	executorsCmd.AddCommand(executorsListCmd, executorsRescheduleCmd, executorsRemoveCmd)
}
