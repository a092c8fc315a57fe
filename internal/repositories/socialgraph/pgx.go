package socialgraph

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lumeapp/lume-stories/internal/repositories"
	"github.com/lumeapp/lume-stories/pkg/logger"
)

type PgxRepository struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

func NewPgxRepository(pool *pgxpool.Pool, logger logger.Logger) *PgxRepository {
	return &PgxRepository{
		pool:   pool,
		logger: logger.WithComponent("SocialGraphRepo"),
	}
}

var _ Repository = (*PgxRepository)(nil)

func (r *PgxRepository) ListFollowing(ctx context.Context, userID string) ([]string, error) {
	return r.listIDs(ctx, "followee_id", sq.Eq{"follower_id": userID})
}

func (r *PgxRepository) ListFollowers(ctx context.Context, userID string) ([]string, error) {
	return r.listIDs(ctx, "follower_id", sq.Eq{"followee_id": userID})
}

func (r *PgxRepository) listIDs(ctx context.Context, column string, where sq.Eq) ([]string, error) {
	query, args, err := repositories.SqBuilder.
		Select(column).
		From("follows").
		Where(where).
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan follow row: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating follow rows: %w", err)
	}

	return ids, nil
}
