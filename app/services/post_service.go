package services

import (
	"context"
	"fmt"
	"io"

	"blogapi/app/models"
	"blogapi/app/repositories"

	"github.com/rs/zerolog"
)

// ImageStore is the part of the image storage the service depends on.
type ImageStore interface {
	Store(ctx context.Context, r io.Reader, suggestedName string) (string, error)
	Delete(ctx context.Context, key string) error
}

// PostService handles business logic for blog posts
type PostService struct {
	postRepo repositories.PostRepository
	images   ImageStore
}

// NewPostService creates a new PostService
func NewPostService(postRepo repositories.PostRepository, images ImageStore) *PostService {
	return &PostService{
		postRepo: postRepo,
		images:   images,
	}
}

// ListPosts retrieves every post in id order
func (s *PostService) ListPosts(ctx context.Context) ([]*models.Post, error) {
	return s.postRepo.List(ctx)
}

// GetPost retrieves a post by ID
func (s *PostService) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id)
}

// CreatePost validates the input, stores the image if one was uploaded and
// persists the post. A stored image is released again if the post cannot be
// saved.
func (s *PostService) CreatePost(ctx context.Context, in models.PostInput) (*models.Post, error) {
	post := models.NewPost(in)
	post.BeforeCreate()
	if err := post.Validate(); err != nil {
		return nil, err
	}

	if in.Image != nil {
		key, err := s.images.Store(ctx, in.Image.Body, in.Image.Filename)
		if err != nil {
			return nil, fmt.Errorf("failed to store image: %w", err)
		}
		post.Image = key
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		s.releaseImage(ctx, post.Image)
		return nil, err
	}
	return post, nil
}

// UpdatePost applies the supplied fields of patch to post id. A replaced
// image is released once the update has been saved.
func (s *PostService) UpdatePost(ctx context.Context, id int64, patch models.PostPatch) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	post.Apply(patch)
	if err := post.Validate(); err != nil {
		return nil, err
	}

	previous := post.Image
	if patch.Image != nil {
		key, err := s.images.Store(ctx, patch.Image.Body, patch.Image.Filename)
		if err != nil {
			return nil, fmt.Errorf("failed to store image: %w", err)
		}
		post.Image = key
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		if post.Image != previous {
			s.releaseImage(ctx, post.Image)
		}
		return nil, err
	}

	if post.Image != previous {
		s.releaseImage(ctx, previous)
	}
	return post, nil
}

// DeletePost deletes a post and releases its image
func (s *PostService) DeletePost(ctx context.Context, id int64) error {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.postRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.releaseImage(ctx, post.Image)
	return nil
}

// releaseImage deletes key from the image store. Failures leave an orphaned
// file behind and are only logged.
func (s *PostService) releaseImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	// The request may already be gone; cleanup should still run.
	if err := s.images.Delete(context.WithoutCancel(ctx), key); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("image", key).Msg("Failed to release image")
	}
}
