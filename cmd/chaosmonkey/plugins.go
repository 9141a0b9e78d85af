package main

import (
	"context"
	"os"

	"github.com/BBVA/chaos-monkey-engine/plugin"
	"github.com/spf13/cobra"
)

var attacksCmd = &cobra.Command{
	Use:   "attacks",
	Short: "查看已加载的attack",
}

var plannersCmd = &cobra.Command{
	Use:   "planners",
	Short: "查看已加载的planner",
}

func init() {
	attacksCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "列出attack及其配置示例",
		Args:  cobra.NoArgs,
		RunE: withApp(func(_ context.Context, a *app, _ []string) error {
			return renderDescriptors(a.manager.AttackList())
		}),
	})
	plannersCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "列出planner及其配置示例",
		Args:  cobra.NoArgs,
		RunE: withApp(func(_ context.Context, a *app, _ []string) error {
			return renderDescriptors(a.manager.PlannerList())
		}),
	})
}

func renderDescriptors(descriptors []plugin.Descriptor) error {
	rows := [][]string{{"Ref", "Example"}}
	for _, d := range descriptors {
		example, err := json.Marshal(d.Example)
		if err != nil {
			return err
		}
		rows = append(rows, []string{d.Ref, string(example)})
	}
	return render(os.Stdout, rows)
}
