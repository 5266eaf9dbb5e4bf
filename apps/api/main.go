package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fundtrack/internal/clock"
	"github.com/smallbiznis/fundtrack/internal/config"
	"github.com/smallbiznis/fundtrack/internal/fund"
	"github.com/smallbiznis/fundtrack/internal/ingestion"
	"github.com/smallbiznis/fundtrack/internal/migration"
	"github.com/smallbiznis/fundtrack/internal/observability"
	"github.com/smallbiznis/fundtrack/internal/ratelimit"
	"github.com/smallbiznis/fundtrack/internal/runlock"
	"github.com/smallbiznis/fundtrack/internal/server"
	"github.com/smallbiznis/fundtrack/internal/source"
	"github.com/smallbiznis/fundtrack/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		runlock.Module,
		ratelimit.Module,

		fund.Module,
		source.Module,
		ingestion.Module,

		// No scheduler: the cron trigger runs in apps/scheduler.
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
