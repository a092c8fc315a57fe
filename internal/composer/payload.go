package composer

import (
	"time"

	"github.com/google/uuid"
	"github.com/lumeapp/lume-stories/internal/domain"
)

// buildStoryLocked is the single producer of the persisted overlays shape.
// Both modes funnel through here so the payload cannot diverge per path.
func (s *Session) buildStoryLocked(caption string) domain.Story {
	now := time.Now()
	st := domain.Story{
		ID:        uuid.NewString(),
		AuthorID:  s.authorID,
		Caption:   caption,
		CreatedAt: now,
		ExpiresAt: now.Add(s.f.Config.Story.TTL),
		Overlays:  s.overlaysLocked(),
	}

	if s.mode == ModeText {
		// A text story is its overlay: no media URL, no media block.
		st.StoryType = domain.StoryTypeText
		st.MediaURL = ""
	} else if s.media != nil {
		st.StoryType = s.media.Type
	}

	return st
}

func (s *Session) overlaysLocked() domain.Overlays {
	o := domain.Overlays{
		BackgroundColor:      s.background,
		BackgroundGradientID: s.gradientID,
	}

	if s.mode == ModePhoto && s.media != nil {
		o.Media = &domain.MediaOverlay{
			Type:     s.media.Type,
			Position: s.mediaTransform.Position,
			Scale:    s.mediaTransform.Scale,
			Rotation: s.mediaTransform.Rotation,
			Size:     domain.Size{Width: s.containerW, Height: s.containerH},
		}
	}

	for _, t := range s.texts {
		o.Texts = append(o.Texts, domain.TextOverlay{
			Text:            t.Value,
			Color:           t.Color,
			BackgroundColor: t.BgColor,
			FontFamily:      t.FontFamily,
			FontSize:        t.FontSize,
			Position:        domain.Position{X: t.X, Y: t.Y},
			Rotation:        t.Rotation,
			Scale:           t.Scale,
		})
	}

	return o
}
