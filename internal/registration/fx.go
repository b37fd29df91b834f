package registration

import (
	"github.com/smallbiznis/flowmarket/internal/registration/gateway"
	"github.com/smallbiznis/flowmarket/internal/registration/navigator"
	"go.uber.org/fx"
)

var Module = fx.Module("registration",
	fx.Provide(gateway.New),
	fx.Provide(navigator.NewRoutes),
	fx.Provide(NewFactory),
	fx.Provide(NewStore),
	fx.Invoke(startSweeper),
)
