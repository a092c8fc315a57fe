package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE users (
		id VARCHAR PRIMARY KEY,
		username VARCHAR NOT NULL DEFAULT '',
		display_name VARCHAR NOT NULL DEFAULT '',
		avatar_url VARCHAR NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);

	CREATE TABLE follows (
		follower_id VARCHAR NOT NULL REFERENCES users (id),
		followee_id VARCHAR NOT NULL REFERENCES users (id),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
		PRIMARY KEY (follower_id, followee_id)
	);

	CREATE TABLE stories (
		id VARCHAR PRIMARY KEY,
		author_id VARCHAR NOT NULL REFERENCES users (id),
		media_url VARCHAR NOT NULL DEFAULT '',
		caption VARCHAR NOT NULL DEFAULT '',
		story_type VARCHAR NOT NULL,
		overlays JSONB,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE TABLE story_views (
		story_id VARCHAR NOT NULL REFERENCES stories (id),
		viewer_id VARCHAR NOT NULL REFERENCES users (id),
		viewed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
		PRIMARY KEY (story_id, viewer_id)
	);
	`)
	if err != nil {
		return err
	}
	return nil
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	DROP TABLE story_views;
	DROP TABLE stories;
	DROP TABLE follows;
	DROP TABLE users;
	`)
	if err != nil {
		return err
	}
	return nil
}
