package repositories

import (
	"context"
	"errors"

	"blogapi/app/models"
)

// ErrNotFound is returned when no post matches the requested id.
var ErrNotFound = errors.New("record not found")

// PostRepository defines the interface for post data access
type PostRepository interface {
	// Create assigns post.ID and persists the post.
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	// List returns every post ordered by id ascending.
	List(ctx context.Context) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id int64) error
	Close() error
}
