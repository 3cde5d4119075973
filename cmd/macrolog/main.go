package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/macrolog/internal/clock"
	"github.com/smallbiznis/macrolog/internal/config"
	"github.com/smallbiznis/macrolog/internal/observability"
	"github.com/smallbiznis/macrolog/internal/scheduler"
	"github.com/smallbiznis/macrolog/internal/server"
	"github.com/smallbiznis/macrolog/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
