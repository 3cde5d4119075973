package tracker

import "go.uber.org/fx"

var Module = fx.Module("tracker.service",
	fx.Provide(New),
)
