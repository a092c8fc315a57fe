package mediastore

import (
	"go.uber.org/fx"
)

var Module = fx.Provide(
	fx.Annotate(
		NewMinioStore,
		fx.As(new(Store)),
	),
)
