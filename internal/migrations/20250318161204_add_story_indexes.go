package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upAddStoryIndexes, downAddStoryIndexes)
}

func upAddStoryIndexes(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE INDEX idx_stories_author_expires ON stories (author_id, expires_at);
	CREATE INDEX idx_stories_expires_at ON stories (expires_at);
	CREATE INDEX idx_story_views_viewer ON story_views (viewer_id);
	`)
	if err != nil {
		return err
	}
	return nil
}

func downAddStoryIndexes(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	DROP INDEX idx_story_views_viewer;
	DROP INDEX idx_stories_expires_at;
	DROP INDEX idx_stories_author_expires;
	`)
	if err != nil {
		return err
	}
	return nil
}
