package domain

import "time"

// StoryView records one viewer having opened one story. At most one row
// exists per (story, viewer) pair.
type StoryView struct {
	StoryID     string
	ViewerID    string
	ViewedAt    time.Time
	Username    string
	DisplayName string
	AvatarURL   string
}
