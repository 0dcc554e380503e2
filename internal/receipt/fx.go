package receipt

import (
	notificationdomain "github.com/smallbiznis/schoolride/internal/notification/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("receipt",
	fx.Provide(NewIssuer),
	fx.Provide(func(i *Issuer) notificationdomain.Handler { return i }),
)
