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
	"github.com/smallbiznis/fundtrack/internal/scheduler"
	"github.com/smallbiznis/fundtrack/internal/server"
	"github.com/smallbiznis/fundtrack/internal/source"
	"github.com/smallbiznis/fundtrack/pkg/db"
	"go.uber.org/fx"
)

// fundtrack runs the HTTP API and the monthly scheduler in one process.
func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		runlock.Module,
		ratelimit.Module,

		// Functional Domains
		fund.Module,
		source.Module,
		ingestion.Module,
		scheduler.Module,
		server.Module,
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
