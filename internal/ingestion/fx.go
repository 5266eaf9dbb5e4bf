package ingestion

import (
	"github.com/smallbiznis/fundtrack/internal/source"
	"go.uber.org/fx"
)

var Module = fx.Module("ingestion",
	fx.Provide(NewOrchestrator),
	fx.Provide(func(c *source.Client) Fetcher { return c }),
	fx.Provide(NewRunner),
)
