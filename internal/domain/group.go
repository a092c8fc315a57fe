package domain

// StoryGroup is the read-side projection of one author's active stories,
// rebuilt on every fetch.
type StoryGroup struct {
	AuthorID    string
	Username    string
	DisplayName string
	AvatarURL   string
	Stories     []Story
	HasUnseen   bool
}
