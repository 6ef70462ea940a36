package models

import (
	"strings"
	"time"
)

// DefaultMediaURL is the public prefix under which stored images are served.
const DefaultMediaURL = "/media/"

// PostView is the wire representation of a Post. Fields are listed
// explicitly; anything added to Post stays internal until added here.
type PostView struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Image     string    `json:"image"`
}

// NewPostView converts a stored post. A non-empty image key becomes
// mediaURL + key; an empty key is rendered as "".
func NewPostView(p *Post, mediaURL string) PostView {
	return PostView{
		ID:        p.ID,
		Title:     p.Title,
		Slug:      p.Slug,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
		Image:     ImageURL(mediaURL, p.Image),
	}
}

// NewPostViews converts a list of posts, preserving order.
func NewPostViews(posts []*Post, mediaURL string) []PostView {
	views := make([]PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, NewPostView(p, mediaURL))
	}
	return views
}

// ImageURL joins the media prefix and a storage key.
func ImageURL(mediaURL, key string) string {
	if key == "" {
		return ""
	}
	if mediaURL == "" {
		mediaURL = DefaultMediaURL
	}
	return strings.TrimRight(mediaURL, "/") + "/" + strings.TrimLeft(key, "/")
}
