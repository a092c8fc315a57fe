package domain

import "time"

type StoryType string

const (
	StoryTypeImage StoryType = "image"
	StoryTypeVideo StoryType = "video"
	StoryTypeText  StoryType = "text"
)

type Story struct {
	ID        string
	AuthorID  string
	MediaURL  string
	Caption   string
	StoryType StoryType
	Overlays  Overlays
	CreatedAt time.Time
	ExpiresAt time.Time

	// Viewed is filled in by the aggregator for the requesting viewer.
	Viewed bool
}

// IsExpired reports whether the story is past its expiry at the given time.
func (s Story) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
