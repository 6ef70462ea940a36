package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"blogapi/app/models"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// KeyPrefix is the directory every stored image lives under.
const KeyPrefix = "post_images/"

// MaxKeyLength matches the width of the image column.
const MaxKeyLength = 100

// maxExtLength bounds the extension kept from a client file name, dot
// included.
const maxExtLength = 10

// ErrInvalidKey is returned for keys that do not name a stored image.
var ErrInvalidKey = errors.New("invalid image key")

// ImageStore persists uploaded image bytes and hands out opaque keys.
type ImageStore struct {
	fs       afero.Fs
	mediaURL string
}

// NewImageStore stores images on fs. mediaURL is the public prefix the
// files are served under; empty means models.DefaultMediaURL.
func NewImageStore(fs afero.Fs, mediaURL string) *ImageStore {
	if mediaURL == "" {
		mediaURL = models.DefaultMediaURL
	}
	return &ImageStore{fs: fs, mediaURL: mediaURL}
}

// NewDiskImageStore stores images below root on the local disk.
func NewDiskImageStore(root, mediaURL string) (*ImageStore, error) {
	if err := os.MkdirAll(filepath.Join(root, KeyPrefix), 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return NewImageStore(afero.NewBasePathFs(afero.NewOsFs(), root), mediaURL), nil
}

// MediaURL returns the public prefix for stored images.
func (s *ImageStore) MediaURL() string {
	return s.mediaURL
}

// Store copies r into a new file named after suggestedName's extension and
// returns its key. The content is never inspected.
func (s *ImageStore) Store(ctx context.Context, r io.Reader, suggestedName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := KeyPrefix + uuid.NewString() + imageExt(suggestedName)

	if err := s.fs.MkdirAll("/"+KeyPrefix, 0755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}

	f, err := s.fs.OpenFile("/"+key, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}

	if _, err := io.Copy(f, &ctxReader{ctx: ctx, r: r}); err != nil {
		f.Close()
		s.fs.Remove("/" + key)
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := f.Close(); err != nil {
		s.fs.Remove("/" + key)
		return "", fmt.Errorf("failed to close image file: %w", err)
	}
	return key, nil
}

// Delete removes the image stored under key. Deleting a missing image is
// not an error.
func (s *ImageStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	err := s.fs.Remove("/" + key)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// Exists reports whether key names a stored image.
func (s *ImageStore) Exists(key string) (bool, error) {
	if !validKey(key) {
		return false, nil
	}
	return afero.Exists(s.fs, "/"+key)
}

// URL returns the public URL of key, or "" for an empty key.
func (s *ImageStore) URL(key string) string {
	return models.ImageURL(s.mediaURL, key)
}

// Handler serves stored images by key. The request path must already have
// the media prefix stripped. Directory listings are not served.
func (s *ImageStore) Handler() http.Handler {
	files := http.FileServer(afero.NewHttpFs(s.fs).Dir("/"))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/")
		if !validKey(key) {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

// imageExt returns the lower-cased extension of name, or "" when it is too
// long or not plain alphanumerics.
func imageExt(name string) string {
	ext := strings.ToLower(path.Ext(path.Base(filepath.ToSlash(name))))
	if len(ext) < 2 || len(ext) > maxExtLength {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}

func validKey(key string) bool {
	if !strings.HasPrefix(key, KeyPrefix) || strings.HasSuffix(key, "/") {
		return false
	}
	return path.Clean(key) == key && len(key) > len(KeyPrefix)
}

// ctxReader stops a copy once the request context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
