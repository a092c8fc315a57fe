package aggregatorimpl

import (
	"github.com/lumeapp/lume-stories/internal/aggregator"
	"go.uber.org/fx"
)

var Module = fx.Provide(
	fx.Annotate(
		New,
		fx.As(new(aggregator.Service)),
	),
)
