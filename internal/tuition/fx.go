package tuition

import (
	"github.com/smallbiznis/schoolride/internal/tuition/repository"
	"github.com/smallbiznis/schoolride/internal/tuition/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tuition.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
