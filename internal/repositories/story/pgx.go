package story

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lumeapp/lume-stories/internal/domain"
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
		logger: logger.WithComponent("StoryRepo"),
	}
}

var _ Repository = (*PgxRepository)(nil)

func (r *PgxRepository) Create(ctx context.Context, story domain.Story) error {
	overlays, err := json.Marshal(story.Overlays)
	if err != nil {
		return fmt.Errorf("failed to marshal overlays: %w", err)
	}

	query, args, err := repositories.SqBuilder.
		Insert("stories").
		Columns("id", "author_id", "media_url", "caption", "story_type", "overlays", "created_at", "expires_at").
		Values(story.ID, story.AuthorID, story.MediaURL, story.Caption, story.StoryType, overlays, story.CreatedAt, story.ExpiresAt).
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	_, err = r.pool.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrCannotCreate
		}
		return errors.Join(err, ErrCannotCreate)
	}

	return nil
}

func (r *PgxRepository) GetByID(ctx context.Context, id string) (*domain.Story, error) {
	query, args, err := repositories.SqBuilder.
		Select("id", "author_id", "media_url", "caption", "story_type", "overlays", "created_at", "expires_at").
		From("stories").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	story, err := scanStory(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get story by id: %w", err)
	}

	return story, nil
}

func (r *PgxRepository) ListActiveByAuthors(ctx context.Context, authorIDs []string, now time.Time) ([]domain.Story, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}

	query, args, err := repositories.SqBuilder.
		Select("id", "author_id", "media_url", "caption", "story_type", "overlays", "created_at", "expires_at").
		From("stories").
		Where(sq.Eq{"author_id": authorIDs}).
		Where(sq.Gt{"expires_at": now}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query active stories: %w", err)
	}
	defer rows.Close()

	var stories []domain.Story
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story row: %w", err)
		}
		stories = append(stories, *story)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating story rows: %w", err)
	}

	return stories, nil
}

func (r *PgxRepository) RecordView(ctx context.Context, storyID, viewerID string) error {
	query, args, err := repositories.SqBuilder.
		Insert("story_views").
		Columns("story_id", "viewer_id", "viewed_at").
		Values(storyID, viewerID, time.Now()).
		Suffix("ON CONFLICT (story_id, viewer_id) DO NOTHING").
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record view for story %s: %w", storyID, err)
	}

	return nil
}

func (r *PgxRepository) ListViewers(ctx context.Context, storyID string) ([]domain.StoryView, error) {
	query, args, err := repositories.SqBuilder.
		Select("v.story_id", "v.viewer_id", "v.viewed_at",
			"COALESCE(u.username, '')", "COALESCE(u.display_name, '')", "COALESCE(u.avatar_url, '')").
		From("story_views v").
		LeftJoin("users u ON u.id = v.viewer_id").
		Where(sq.Eq{"v.story_id": storyID}).
		OrderBy("v.viewed_at DESC").
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query viewers: %w", err)
	}
	defer rows.Close()

	var viewers []domain.StoryView
	for rows.Next() {
		var v domain.StoryView
		if err := rows.Scan(&v.StoryID, &v.ViewerID, &v.ViewedAt, &v.Username, &v.DisplayName, &v.AvatarURL); err != nil {
			return nil, fmt.Errorf("failed to scan viewer row: %w", err)
		}
		viewers = append(viewers, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating viewer rows: %w", err)
	}

	return viewers, nil
}

func (r *PgxRepository) ListViewedStoryIDs(ctx context.Context, viewerID string) ([]string, error) {
	query, args, err := repositories.SqBuilder.
		Select("story_id").
		From("story_views").
		Where(sq.Eq{"viewer_id": viewerID}).
		ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query viewed story ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan viewed story id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating viewed story ids: %w", err)
	}

	return ids, nil
}

func (r *PgxRepository) Delete(ctx context.Context, storyID string) error {
	// View rows go first; the FK has no cascade so the order matters.
	viewQuery, viewArgs, err := repositories.SqBuilder.
		Delete("story_views").
		Where(sq.Eq{"story_id": storyID}).
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	query, args, err := repositories.SqBuilder.
		Delete("stories").
		Where(sq.Eq{"id": storyID}).
		ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin delete tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, viewQuery, viewArgs...); err != nil {
		return fmt.Errorf("failed to delete story views: %w", err)
	}

	result, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete story %s: %w", storyID, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

func (r *PgxRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	viewQuery := `
		DELETE FROM story_views
		WHERE story_id IN (SELECT id FROM stories WHERE expires_at <= $1)
	`
	if _, err := r.pool.Exec(ctx, viewQuery, now); err != nil {
		return 0, fmt.Errorf("failed to delete expired story views: %w", err)
	}

	query, args, err := repositories.SqBuilder.
		Delete("stories").
		Where(sq.LtOrEq{"expires_at": now}).
		ToSql()
	if err != nil {
		return 0, repositories.ErrBadQuery
	}

	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired stories: %w", err)
	}

	return result.RowsAffected(), nil
}

func scanStory(row pgx.Row) (*domain.Story, error) {
	var story domain.Story
	var overlays []byte
	err := row.Scan(
		&story.ID,
		&story.AuthorID,
		&story.MediaURL,
		&story.Caption,
		&story.StoryType,
		&overlays,
		&story.CreatedAt,
		&story.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	if len(overlays) > 0 {
		if err := json.Unmarshal(overlays, &story.Overlays); err != nil {
			return nil, fmt.Errorf("failed to unmarshal overlays: %w", err)
		}
	}

	return &story, nil
}
