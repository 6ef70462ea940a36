package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"blogapi/app/auth"
	"blogapi/app/controllers"
	"blogapi/app/repositories"
	"blogapi/app/services"
	"blogapi/app/storage"

	"github.com/go-extras/go-kit/must"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testUser     = "admin"
	testPassword = "correct horse"
)

type testEnv struct {
	router *mux.Router
	repo   repositories.PostRepository
	fs     afero.Fs
	tokens *auth.Tokens
	access string
	base   string
}

type postJSON struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	Image     string `json:"image"`
}

func setupTestRouter(t *testing.T, basePath string) *testEnv {
	t.Helper()

	repo, err := repositories.OpenSQLitePostRepository(context.Background(), filepath.Join(t.TempDir(), "blog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	fs := afero.NewMemMapFs()
	images := storage.NewImageStore(fs, "/media/")
	tokens := auth.NewTokens([]byte("route-test-key"), 0, 0)
	hash := must.Must(bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost))

	router := SetupRoutes(Dependencies{
		Posts:         services.NewPostService(repo, images),
		Images:        images,
		Authenticator: tokens,
		Credentials:   auth.Credentials{Username: testUser, PasswordHash: string(hash)},
		Tokens:        tokens,
		Site:          controllers.Site{Title: "Test Blog", BaseURL: "http://blog.test"},
		BasePath:      basePath,
		Logger:        zerolog.Nop(),
	})

	pair, err := tokens.Issue(testUser)
	require.NoError(t, err)

	return &testEnv{
		router: router,
		repo:   repo,
		fs:     fs,
		tokens: tokens,
		access: pair.Access,
		base:   normalizeBasePath(basePath),
	}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) request(method, path string, body io.Reader, contentType string, authed bool) *http.Request {
	req := httptest.NewRequest(method, e.base+path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.access)
	}
	return req
}

func (e *testEnv) form(method, path string, values url.Values, authed bool) *http.Request {
	return e.request(method, path, strings.NewReader(values.Encode()), "application/x-www-form-urlencoded", authed)
}

func (e *testEnv) jsonRequest(method, path string, body any, authed bool) *http.Request {
	data, _ := json.Marshal(body)
	return e.request(method, path, bytes.NewReader(data), "application/json", authed)
}

func (e *testEnv) multipartRequest(t *testing.T, method, path string, fields map[string]string, filename, content string, authed bool) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return e.request(method, path, &buf, mw.FormDataContentType(), authed)
}

func decodePost(t *testing.T, w *httptest.ResponseRecorder) postJSON {
	t.Helper()
	var p postJSON
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p), w.Body.String())
	return p
}

func decodePosts(t *testing.T, w *httptest.ResponseRecorder) []postJSON {
	t.Helper()
	var ps []postJSON
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ps), w.Body.String())
	return ps
}

func (e *testEnv) count(t *testing.T) int {
	t.Helper()
	posts, err := e.repo.List(context.Background())
	require.NoError(t, err)
	return len(posts)
}
