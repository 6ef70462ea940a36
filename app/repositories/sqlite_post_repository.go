package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"blogapi/app/models"

	_ "modernc.org/sqlite"
)

var _ PostRepository = (*SQLitePostRepository)(nil)

// SQLitePostRepository implements PostRepository on a SQLite database file.
// It owns its connection pool.
type SQLitePostRepository struct {
	db *sql.DB
}

// OpenSQLitePostRepository opens the database at path, applies pragmas and
// runs pending migrations.
func OpenSQLitePostRepository(ctx context.Context, path string) (*SQLitePostRepository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Pragmas in the DSN apply to every pooled connection, not just the
	// one that runs the PRAGMA statements below.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := runSQLiteMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLitePostRepository{db: db}, nil
}

// DB returns the underlying *sql.DB instance
func (r *SQLitePostRepository) DB() *sql.DB {
	return r.db
}

// Close closes the database connection
func (r *SQLitePostRepository) Close() error {
	return r.db.Close()
}

const insertPostQuery = `
	INSERT INTO posts (title, slug, content, created_at, image)
	VALUES (?, ?, ?, ?, ?)
`

// Create inserts a post and sets its id
func (r *SQLitePostRepository) Create(ctx context.Context, post *models.Post) error {
	res, err := r.db.ExecContext(ctx, insertPostQuery,
		post.Title,
		post.Slug,
		post.Content,
		post.CreatedAt,
		nullString(post.Image),
	)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read post id: %w", err)
	}
	post.ID = id
	return nil
}

const getPostQuery = `
	SELECT id, title, slug, content, created_at, image
	FROM posts
	WHERE id = ?
`

// GetByID retrieves a single post by ID
func (r *SQLitePostRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	var row postRow
	err := r.db.QueryRowContext(ctx, getPostQuery, id).Scan(row.dest()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return row.toDomain(), nil
}

const listPostsQuery = `
	SELECT id, title, slug, content, created_at, image
	FROM posts
	ORDER BY id ASC
`

// List retrieves all posts ordered by id
func (r *SQLitePostRepository) List(ctx context.Context) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, listPostsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]*models.Post, 0)
	for rows.Next() {
		var row postRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, row.toDomain())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}
	return posts, nil
}

const updatePostQuery = `
	UPDATE posts
	SET title = ?, slug = ?, content = ?, image = ?
	WHERE id = ?
`

// Update writes the mutable fields of an existing post. created_at is
// never part of the statement.
func (r *SQLitePostRepository) Update(ctx context.Context, post *models.Post) error {
	res, err := r.db.ExecContext(ctx, updatePostQuery,
		post.Title,
		post.Slug,
		post.Content,
		nullString(post.Image),
		post.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	return expectOneRow(res)
}

const deletePostQuery = `
	DELETE FROM posts WHERE id = ?
`

// Delete removes a post by ID
func (r *SQLitePostRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, deletePostQuery, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// runSQLiteMigrations executes all pending migrations
func runSQLiteMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createSchemaMigrationsSQLite); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	currentVersion := 0
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", m.version, err)
		}

		if _, err := tx.ExecContext(ctx, m.sqlite); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d (%s): %w", m.version, m.name, err)
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			m.version,
			m.name,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}

	return nil
}

// postRow is a private struct used to scan database rows
type postRow struct {
	ID        int64
	Title     string
	Slug      string
	Content   string
	CreatedAt sql.NullTime
	Image     sql.NullString
}

func (pr *postRow) dest() []any {
	return []any{&pr.ID, &pr.Title, &pr.Slug, &pr.Content, &pr.CreatedAt, &pr.Image}
}

// toDomain converts a postRow to a models.Post, handling nullable columns
func (pr *postRow) toDomain() *models.Post {
	post := &models.Post{
		ID:      pr.ID,
		Title:   pr.Title,
		Slug:    pr.Slug,
		Content: pr.Content,
	}
	if pr.CreatedAt.Valid {
		post.CreatedAt = pr.CreatedAt.Time.UTC()
	}
	if pr.Image.Valid {
		post.Image = pr.Image.String
	}
	return post
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
