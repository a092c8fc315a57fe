package user

import (
	"context"
	"errors"

	"github.com/lumeapp/lume-stories/internal/domain"
)

var ErrNotFound = errors.New("user not found")

type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}
