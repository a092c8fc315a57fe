package domain

import "time"

type User struct {
	ID          string
	Username    string
	DisplayName string
	AvatarURL   string
	CreatedAt   time.Time
}
