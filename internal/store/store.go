package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/andresmejia3/depthbrush/internal/artifact"
)

// Store archives artifacts in PostgreSQL.
type Store struct {
	conn *pgx.Conn
}

var _ artifact.Archive = (*Store)(nil)

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the archive tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS images (
			key TEXT PRIMARY KEY,
			display_name TEXT NOT NULL DEFAULT '',
			server_name TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS artifacts (
			image_key TEXT NOT NULL REFERENCES images(key) ON DELETE CASCADE,
			category TEXT NOT NULL,
			position INT NOT NULL,
			title TEXT NOT NULL,
			src TEXT NOT NULL,
			PRIMARY KEY (image_key, category, position)
		);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// RememberImage registers the image. An empty serverName keeps the stored one.
func (s *Store) RememberImage(ctx context.Context, imageKey, displayName, serverName string) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO images (key, display_name, server_name, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			server_name = COALESCE(NULLIF(EXCLUDED.server_name, ''), images.server_name),
			updated_at = NOW()
	`, imageKey, displayName, serverName)
	return err
}

// SaveCategory replaces every artifact of category in one transaction.
func (s *Store) SaveCategory(ctx context.Context, imageKey string, category artifact.Category, arts []artifact.Artifact) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// 1. Make sure the parent row exists without touching its names
	if _, err := tx.Exec(ctx, `
		INSERT INTO images (key, updated_at) VALUES ($1, NOW())
		ON CONFLICT (key) DO UPDATE SET updated_at = NOW()
	`, imageKey); err != nil {
		return err
	}

	// 2. Whole category replace, never a merge
	if _, err := tx.Exec(ctx, "DELETE FROM artifacts WHERE image_key = $1 AND category = $2", imageKey, string(category)); err != nil {
		return err
	}

	if len(arts) > 0 {
		rows := make([][]any, len(arts))
		for i, a := range arts {
			rows[i] = []any{imageKey, string(category), i, a.Title, a.Src}
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"artifacts"},
			[]string{"image_key", "category", "position", "title", "src"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("failed to insert artifacts: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// LoadCategory returns the archived artifacts in their original order.
func (s *Store) LoadCategory(ctx context.Context, imageKey string, category artifact.Category) ([]artifact.Artifact, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT title, src FROM artifacts
		WHERE image_key = $1 AND category = $2
		ORDER BY position ASC
	`, imageKey, string(category))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var arts []artifact.Artifact
	for rows.Next() {
		a := artifact.Artifact{Category: category}
		if err := rows.Scan(&a.Title, &a.Src); err != nil {
			return nil, err
		}
		arts = append(arts, a)
	}
	return arts, rows.Err()
}

// ListImages returns every archived image, most recently updated first.
func (s *Store) ListImages(ctx context.Context) ([]artifact.ImageSummary, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT i.key, i.display_name, i.server_name, i.updated_at,
			COALESCE(string_agg(DISTINCT a.category, ',' ORDER BY a.category), '')
		FROM images i
		LEFT JOIN artifacts a ON a.image_key = i.key
		GROUP BY i.key
		ORDER BY i.updated_at DESC, i.key ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []artifact.ImageSummary
	for rows.Next() {
		var (
			sum  artifact.ImageSummary
			cats string
			at   time.Time
		)
		if err := rows.Scan(&sum.Key, &sum.DisplayName, &sum.ServerName, &at, &cats); err != nil {
			return nil, err
		}
		sum.UpdatedAt = at
		sum.Categories = orderCategories(strings.Split(cats, ","))
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Reset drops all application tables and recreates them empty.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS artifacts CASCADE;
		DROP TABLE IF EXISTS images CASCADE;
	`); err != nil {
		return err
	}
	return initSchema(ctx, s.conn)
}

// orderCategories keeps the known categories of names in pipeline order.
func orderCategories(names []string) []artifact.Category {
	var out []artifact.Category
	for _, c := range artifact.Categories {
		for _, n := range names {
			if string(c) == n {
				out = append(out, c)
				break
			}
		}
	}
	return out
}
