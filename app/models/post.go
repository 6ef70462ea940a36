package models

import (
	"time"
)

// Validate checks if the post meets all validation requirements
func (p *Post) Validate() error {
	if err := validate.Struct(p); err != nil {
		return translate(err)
	}
	return nil
}

// BeforeCreate sets up any necessary fields before creation
func (p *Post) BeforeCreate() {
	if p.Slug == "" {
		p.Slug = DefaultSlug
	}
	if p.CreatedAt.IsZero() {
		// Microsecond precision is the finest every backend round-trips.
		p.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
}

// NewPost builds an unsaved post from create input. The image key is
// filled in by the caller once the upload has been stored.
func NewPost(in PostInput) *Post {
	p := &Post{
		Title:   in.Title,
		Slug:    in.Slug,
		Content: in.Content,
	}
	if p.Slug == "" {
		p.Slug = DefaultSlug
	}
	return p
}

// Apply copies the supplied patch fields onto the post. ID, CreatedAt and
// Image are never touched here.
func (p *Post) Apply(patch PostPatch) {
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Slug != nil {
		p.Slug = *patch.Slug
	}
	if patch.Content != nil {
		p.Content = *patch.Content
	}
}

// Clone returns a shallow copy of the post.
func (p *Post) Clone() *Post {
	c := *p
	return &c
}
