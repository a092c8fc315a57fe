package fx

import (
	"github.com/lumeapp/lume-stories/internal/repositories/socialgraph"
	"github.com/lumeapp/lume-stories/internal/repositories/story"
	"github.com/lumeapp/lume-stories/internal/repositories/user"
	"go.uber.org/fx"
)

var Module = fx.Options(
	story.Module,
	socialgraph.Module,
	user.Module,
)
