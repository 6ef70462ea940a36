package controllers

import (
	"bytes"
	"mime"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"blogapi/app/models"
	"blogapi/app/services"

	"github.com/gorilla/feeds"
	"github.com/rs/zerolog/hlog"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// FeedItems is the number of posts published in the feed.
const FeedItems = 20

// Site describes the blog in the feed header.
type Site struct {
	Title       string
	Description string
	BaseURL     string
}

// FeedController renders the newest posts as RSS.
type FeedController struct {
	postService *services.PostService
	site        Site
	mediaURL    string
	markdown    goldmark.Markdown
}

func NewFeedController(postService *services.PostService, site Site, mediaURL string) *FeedController {
	return &FeedController{
		postService: postService,
		site:        site,
		mediaURL:    mediaURL,
		markdown:    goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// RSS writes an RSS 2.0 document of the newest posts.
func (fc *FeedController) RSS(w http.ResponseWriter, r *http.Request) {
	posts, err := fc.postService.ListPosts(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	if len(posts) > FeedItems {
		posts = posts[:FeedItems]
	}

	siteURL := strings.TrimRight(fc.site.BaseURL, "/")
	feed := &feeds.Feed{
		Title:       fc.site.Title,
		Link:        &feeds.Link{Href: siteURL + "/"},
		Description: fc.site.Description,
		Created:     time.Now().UTC(),
	}
	if len(posts) > 0 {
		feed.Updated = posts[0].CreatedAt
	}

	for _, post := range posts {
		link := siteURL + "/" + strconv.FormatInt(post.ID, 10) + "/"
		item := &feeds.Item{
			Id:      link,
			Title:   post.Title,
			Link:    &feeds.Link{Href: link},
			Created: post.CreatedAt,
			Content: fc.render(r, post),
		}
		if post.Image != "" {
			item.Enclosure = &feeds.Enclosure{
				Url:    absoluteURL(siteURL, models.ImageURL(fc.mediaURL, post.Image)),
				Type:   imageType(post.Image),
				Length: "0",
			}
		}
		feed.Items = append(feed.Items, item)
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	if err := feed.WriteRss(w); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to write RSS feed")
	}
}

func (fc *FeedController) render(r *http.Request, post *models.Post) string {
	var b bytes.Buffer
	if err := fc.markdown.Convert([]byte(post.Content), &b); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Int64("post", post.ID).Msg("Failed to render markdown")
		return post.Content
	}
	return b.String()
}

func absoluteURL(siteURL, u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return siteURL + u
}

func imageType(key string) string {
	if t := mime.TypeByExtension(path.Ext(key)); t != "" {
		return t
	}
	return "application/octet-stream"
}
