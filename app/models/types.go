package models

import (
	"io"
	"time"
)

// DefaultSlug is stored when a post is created without a slug.
const DefaultSlug = "-"

// Post represents a stored blog post.
type Post struct {
	ID        int64     `json:"id" validate:"gte=0"`
	Title     string    `json:"title" validate:"required,max=100"`
	Slug      string    `json:"slug" validate:"required,max=50,slug"`
	Content   string    `json:"content" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
	Image     string    `json:"image,omitempty"`
}

// Upload is an image file received from a client. The bytes are never
// inspected, only forwarded to the image store.
type Upload struct {
	Filename string
	Body     io.Reader
}

// PostInput carries the fields accepted when creating a post.
type PostInput struct {
	Title   string
	Slug    string
	Content string
	Image   *Upload
}

// PostPatch carries a partial update. Nil fields are left unchanged.
type PostPatch struct {
	Title   *string
	Slug    *string
	Content *string
	Image   *Upload
}

// Empty reports whether the patch would change nothing.
func (p PostPatch) Empty() bool {
	return p.Title == nil && p.Slug == nil && p.Content == nil && p.Image == nil
}
