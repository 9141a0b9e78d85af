package planners

import "github.com/BBVA/chaos-monkey-engine/plugin"

func Units() []*plugin.Unit {
	return []*plugin.Unit{
		plugin.NewUnit("exact_planner", ExactPlanner),
		plugin.NewUnit("simple_planner", SimplePlanner),
	}
}
