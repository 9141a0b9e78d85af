package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/BBVA/chaos-monkey-engine/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var showAll bool

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "管理Plan",
}

var plansListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出Plan，默认只列出未执行完的Plan",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		plans, err := a.manager.GetPlans(ctx, showAll)
		if err != nil {
			return err
		}

		loc := a.manager.Location()
		rows := [][]string{{"ID", "Name", "Created", "Status", "Executors", "Next Execution"}}
		for _, p := range plans {
			created := p.Created
			rows = append(rows, []string{
				p.ID,
				p.Name,
				formatTime(&created, loc),
				p.Status().String(),
				strconv.Itoa(p.ExecutorsCount),
				formatTime(p.NextExecution, loc),
			})
		}
		return render(os.Stdout, rows)
	}),
}

// planRequest plans execute读取的文件内容，JSON或YAML
type planRequest struct {
	Name    string              `yaml:"name"`
	Planner domain.PluginConfig `yaml:"planner"`
	Attack  domain.PluginConfig `yaml:"attack"`
}

var plansExecuteCmd = &cobra.Command{
	Use:   "execute FILE",
	Short: "根据文件中的planner和attack配置创建Plan",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var req planRequest
		if err = yaml.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}
		if req.Name == "" {
			return fmt.Errorf("%s: name is required", args[0])
		}

		if err = a.manager.ExecutePlan(ctx, req.Name, req.Planner, req.Attack); err != nil {
			return err
		}
		fmt.Println("plan created")
		return nil
	}),
}

var plansDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "删除Plan以及所有的Executor",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		return a.manager.DeletePlan(ctx, args[0])
	}),
}

func init() {
	plansListCmd.Flags().BoolVar(&showAll, "all", false, "include executed plans")
	plansCmd.AddCommand(plansListCmd, plansExecuteCmd, plansDeleteCmd)
}
