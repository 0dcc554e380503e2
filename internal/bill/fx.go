package bill

import (
	"github.com/smallbiznis/schoolride/internal/bill/repository"
	"github.com/smallbiznis/schoolride/internal/bill/service"
	"go.uber.org/fx"
)

var Module = fx.Module("bill.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
