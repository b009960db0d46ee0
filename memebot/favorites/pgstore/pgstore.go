// Package pgstore keeps the favorites document in Postgres, one row per user.
package pgstore

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/memebot/memebot/favorites"
)

// Migrations holds the schema for the favorites table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that holds the SQL files.
const MigrationsDir = "migrations"

const (
	selectAll = `SELECT user_id, favorites FROM favorites ORDER BY user_id`
	upsertOne = `INSERT INTO favorites (user_id, favorites, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (user_id) DO UPDATE SET favorites = EXCLUDED.favorites, updated_at = now()
WHERE favorites.favorites IS DISTINCT FROM EXCLUDED.favorites`
	deleteMissing = `DELETE FROM favorites WHERE NOT (user_id = ANY($1))`
)

type row struct {
	UserID    string `db:"user_id"`
	Favorites []byte `db:"favorites"`
}

// Repository implements favorites.Repository with sqlx.
type Repository struct {
	db *sqlx.DB
}

// New returns a repository using db.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Load reads every user row into a document.
func (r *Repository) Load(ctx context.Context) (favorites.Document, error) {
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, selectAll); err != nil {
		return nil, fmt.Errorf("select favorites: %w", err)
	}
	doc := make(favorites.Document, len(rows))
	for _, rw := range rows {
		var list []favorites.Meme
		if err := json.Unmarshal(rw.Favorites, &list); err != nil {
			return nil, fmt.Errorf("decode favorites of %s: %w", rw.UserID, err)
		}
		if list == nil {
			list = []favorites.Meme{}
		}
		doc[rw.UserID] = favorites.UserFavorites{Favorites: list}
	}
	return doc, nil
}

// Save upserts every user in doc and deletes rows for users absent from it.
// All statements run in a single transaction.
func (r *Repository) Save(ctx context.Context, doc favorites.Document) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	keys := make([]string, 0, len(doc))
	for userID, entry := range doc {
		list := entry.Favorites
		if list == nil {
			list = []favorites.Meme{}
		}
		payload, mErr := json.Marshal(list)
		if mErr != nil {
			return fmt.Errorf("encode favorites of %s: %w", userID, mErr)
		}
		if _, err = tx.ExecContext(ctx, upsertOne, userID, payload); err != nil {
			return fmt.Errorf("upsert %s: %w", userID, err)
		}
		keys = append(keys, userID)
	}
	if _, err = tx.ExecContext(ctx, deleteMissing, pq.Array(keys)); err != nil {
		return fmt.Errorf("delete stale rows: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
