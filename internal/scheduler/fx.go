package scheduler

import (
	"context"

	"github.com/smallbiznis/fundtrack/internal/ingestion"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(func(r *ingestion.Runner) IngestionRunner { return r }),
	fx.Provide(New),
	fx.Invoke(NewScheduler),
)

func NewScheduler(lc fx.Lifecycle, sched *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			sched.Start(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					sched.Stop()
					cancel()
					return nil
				},
			})
			return nil
		},
	})
}
