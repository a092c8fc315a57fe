package socialgraph

import (
	"context"
	"errors"
)

var ErrQueryFailed = errors.New("social graph query failed")

type Repository interface {
	// ListFollowing returns the ids of users the given user follows.
	ListFollowing(ctx context.Context, userID string) ([]string, error)
	// ListFollowers returns the ids of users following the given user.
	ListFollowers(ctx context.Context, userID string) ([]string, error)
}
