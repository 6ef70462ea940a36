package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"

	"blogapi/app/models"
	"blogapi/app/services"
)

// DefaultMaxUploadBytes bounds create and update request bodies.
const DefaultMaxUploadBytes = 10 << 20

// PostController handles HTTP requests for blog posts
type PostController struct {
	postService    *services.PostService
	mediaURL       string
	maxUploadBytes int64
}

// NewPostController creates a new PostController. Image keys are rendered
// below mediaURL.
func NewPostController(postService *services.PostService, mediaURL string, maxUploadBytes int64) *PostController {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &PostController{
		postService:    postService,
		mediaURL:       mediaURL,
		maxUploadBytes: maxUploadBytes,
	}
}

// Index handles listing all posts
func (pc *PostController) Index(w http.ResponseWriter, r *http.Request) {
	posts, err := pc.postService.ListPosts(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, models.NewPostViews(posts, pc.mediaURL))
}

// Show handles displaying a single post
func (pc *PostController) Show(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		sendIDError(w, err)
		return
	}

	post, err := pc.postService.GetPost(r.Context(), id)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, models.NewPostView(post, pc.mediaURL))
}

// Create handles creating a new post
func (pc *PostController) Create(w http.ResponseWriter, r *http.Request) {
	body, err := pc.readBody(w, r)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	defer body.Close()

	in := models.PostInput{Image: body.image}
	if body.Title != nil {
		in.Title = *body.Title
	}
	if body.Slug != nil {
		in.Slug = *body.Slug
	}
	if body.Content != nil {
		in.Content = *body.Content
	}

	post, err := pc.postService.CreatePost(r.Context(), in)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusCreated, models.NewPostView(post, pc.mediaURL))
}

// Update handles PUT and PATCH. Only the fields present in the body are
// changed.
func (pc *PostController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		sendIDError(w, err)
		return
	}

	body, err := pc.readBody(w, r)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	defer body.Close()

	post, err := pc.postService.UpdatePost(r.Context(), id, models.PostPatch{
		Title:   body.Title,
		Slug:    body.Slug,
		Content: body.Content,
		Image:   body.image,
	})
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, models.NewPostView(post, pc.mediaURL))
}

// Delete handles deleting a post
func (pc *PostController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		sendIDError(w, err)
		return
	}

	if err := pc.postService.DeletePost(r.Context(), id); err != nil {
		sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// postBody holds the fields a client supplied. A nil field was absent from
// the request.
type postBody struct {
	Title   *string `json:"title"`
	Slug    *string `json:"slug"`
	Content *string `json:"content"`

	image *models.Upload
	file  multipart.File
}

func (b *postBody) Close() {
	if b.file != nil {
		b.file.Close()
	}
}

// readBody decodes multipart, urlencoded or JSON bodies. Only multipart
// bodies can carry an image.
func (pc *PostController) readBody(w http.ResponseWriter, r *http.Request) (*postBody, error) {
	r.Body = http.MaxBytesReader(w, r.Body, pc.maxUploadBytes)
	body := &postBody{}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		if r.ContentLength > 0 {
			return nil, errUnsupportedMedia
		}
		return body, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedBody, err)
	}

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(pc.maxUploadBytes); err != nil {
			return nil, wrapBodyError(err)
		}
		body.fromValues(r.MultipartForm.Value)
		if err := body.readImage(r); err != nil {
			return nil, err
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, wrapBodyError(err)
		}
		body.fromValues(r.PostForm)
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(body); err != nil && !errors.Is(err, io.EOF) {
			return nil, wrapBodyError(err)
		}
	default:
		return nil, fmt.Errorf("%w %q", errUnsupportedMedia, mediaType)
	}
	return body, nil
}

func (b *postBody) fromValues(values url.Values) {
	field := func(key string) *string {
		v, ok := values[key]
		if !ok || len(v) == 0 {
			return nil
		}
		return &v[0]
	}
	b.Title = field("title")
	b.Slug = field("slug")
	b.Content = field("content")
}

func (b *postBody) readImage(r *http.Request) error {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil
	}
	if err != nil {
		return wrapBodyError(err)
	}
	// Browsers send an empty part when no file was chosen.
	if header.Filename == "" && header.Size == 0 {
		file.Close()
		return nil
	}

	b.file = file
	b.image = &models.Upload{Filename: header.Filename, Body: file}
	return nil
}

func wrapBodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return fmt.Errorf("%w: %v", errMalformedBody, err)
}
