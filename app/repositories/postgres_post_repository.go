package repositories

import (
	"context"
	"errors"
	"fmt"

	"blogapi/app/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ PostRepository = (*PostgresPostRepository)(nil)

// PostgresPostRepository implements PostRepository on PostgreSQL through a
// pgx connection pool owned by the repository.
type PostgresPostRepository struct {
	pool *pgxpool.Pool
}

// OpenPostgresPostRepository connects to dsn and runs pending migrations.
func OpenPostgresPostRepository(ctx context.Context, dsn string, maxConns int32) (*PostgresPostRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := runPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresPostRepository{pool: pool}, nil
}

// Pool returns the underlying connection pool.
func (r *PostgresPostRepository) Pool() *pgxpool.Pool {
	return r.pool
}

// Close closes every pooled connection.
func (r *PostgresPostRepository) Close() error {
	r.pool.Close()
	return nil
}

// Create inserts a post and sets its id
func (r *PostgresPostRepository) Create(ctx context.Context, post *models.Post) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO posts (title, slug, content, created_at, image)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		post.Title, post.Slug, post.Content, post.CreatedAt, nullableText(post.Image),
	).Scan(&post.ID)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// GetByID retrieves a single post by ID
func (r *PostgresPostRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, slug, content, created_at, image
		FROM posts
		WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	post, err := pgx.CollectExactlyOneRow(rows, scanPgPost)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

// List retrieves all posts ordered by id
func (r *PostgresPostRepository) List(ctx context.Context) ([]*models.Post, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, slug, content, created_at, image
		FROM posts
		ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	posts, err := pgx.CollectRows(rows, scanPgPost)
	if err != nil {
		return nil, fmt.Errorf("failed to scan post rows: %w", err)
	}
	if posts == nil {
		posts = make([]*models.Post, 0)
	}
	return posts, nil
}

// Update writes the mutable fields of an existing post
func (r *PostgresPostRepository) Update(ctx context.Context, post *models.Post) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE posts
		SET title = $1, slug = $2, content = $3, image = $4
		WHERE id = $5`,
		post.Title, post.Slug, post.Content, nullableText(post.Image), post.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	return expectOneTag(tag)
}

// Delete removes a post by ID
func (r *PostgresPostRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return expectOneTag(tag)
}

func expectOneTag(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPgPost(row pgx.CollectableRow) (*models.Post, error) {
	var (
		post  models.Post
		image *string
	)
	if err := row.Scan(&post.ID, &post.Title, &post.Slug, &post.Content, &post.CreatedAt, &image); err != nil {
		return nil, err
	}
	post.CreatedAt = post.CreatedAt.UTC()
	if image != nil {
		post.Image = *image
	}
	return &post, nil
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// runPostgresMigrations executes all pending migrations, each in its own
// transaction.
func runPostgresMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, createSchemaMigrationsPostgres); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var currentVersion int
	if err := pool.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.postgres); err != nil {
				return fmt.Errorf("failed to execute migration %d (%s): %w", m.version, m.name, err)
			}
			if _, err := tx.Exec(ctx,
				"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
				m.version, m.name,
			); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", m.version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}
