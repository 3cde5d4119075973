package oauth

import "go.uber.org/fx"

var Module = fx.Module("oauth.service",
	fx.Provide(NewService),
)
