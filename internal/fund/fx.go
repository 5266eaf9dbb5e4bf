package fund

import (
	"github.com/smallbiznis/fundtrack/internal/fund/repository"
	"github.com/smallbiznis/fundtrack/internal/fund/service"
	"github.com/smallbiznis/fundtrack/internal/fund/validation"
	"go.uber.org/fx"
)

var Module = fx.Module("fund.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(validation.New),
)
