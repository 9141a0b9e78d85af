package attacks

import "github.com/BBVA/chaos-monkey-engine/plugin"

func Units() []*plugin.Unit {
	return []*plugin.Unit{
		plugin.NewUnit("api_request", ApiRequest),
	}
}
