package routes

import (
	"encoding/json"
	"encoding/xml"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validationResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

func TestCreateValidation(t *testing.T) {
	env := setupTestRouter(t, "")

	tests := []struct {
		name   string
		values url.Values
		fields []string
	}{
		{"missing everything", url.Values{}, []string{"title", "content"}},
		{"empty title", url.Values{"title": {""}, "content": {"c"}}, []string{"title"}},
		{"title too long", url.Values{"title": {strings.Repeat("a", 101)}, "content": {"c"}}, []string{"title"}},
		{"slug too long", url.Values{"title": {"t"}, "content": {"c"}, "slug": {strings.Repeat("s", 51)}}, []string{"slug"}},
		{"slug with spaces", url.Values{"title": {"t"}, "content": {"c"}, "slug": {"a b"}}, []string{"slug"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, env.form("POST", "/create/", tt.values, true))
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

			var res validationResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
			assert.Equal(t, "validation failed", res.Error)
			for _, f := range tt.fields {
				assert.Contains(t, res.Fields, f)
			}
		})
	}

	assert.Equal(t, 0, env.count(t))

	t.Run("boundary lengths are accepted", func(t *testing.T) {
		w := env.do(t, env.form("POST", "/create/", url.Values{
			"title":   {strings.Repeat("é", 100)},
			"slug":    {strings.Repeat("s", 50)},
			"content": {"c"},
		}, true))
		assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	})
}

func TestCreateInputFormats(t *testing.T) {
	env := setupTestRouter(t, "")

	t.Run("json", func(t *testing.T) {
		w := env.do(t, env.jsonRequest("POST", "/create/", map[string]string{
			"title": "From JSON", "slug": "from-json", "content": "body",
		}, true))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		p := decodePost(t, w)
		assert.Equal(t, "from-json", p.Slug)
		assert.Equal(t, "", p.Image)
	})

	t.Run("multipart without image", func(t *testing.T) {
		w := env.do(t, env.multipartRequest(t, "POST", "/create/",
			map[string]string{"title": "Form", "content": "body"}, "", "", true))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, "", decodePost(t, w).Image)
	})

	t.Run("malformed json", func(t *testing.T) {
		w := env.do(t, env.request("POST", "/create/", strings.NewReader(`{"title":`), "application/json", true))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("wrong json type", func(t *testing.T) {
		w := env.do(t, env.request("POST", "/create/", strings.NewReader(`{"title":5,"content":"c"}`), "application/json", true))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unsupported content type", func(t *testing.T) {
		w := env.do(t, env.request("POST", "/create/", strings.NewReader(`<post/>`), "application/xml", true))
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})

	t.Run("body too large", func(t *testing.T) {
		big := `{"title":"t","content":"` + strings.Repeat("x", 11<<20) + `"}`
		w := env.do(t, env.request("POST", "/create/", strings.NewReader(big), "application/json", true))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestUpdateEdgeCases(t *testing.T) {
	env := setupTestRouter(t, "")
	w := env.do(t, env.jsonRequest("POST", "/create/", map[string]string{"title": "T", "slug": "s", "content": "C"}, true))
	require.Equal(t, http.StatusCreated, w.Code)
	original := decodePost(t, w)

	t.Run("empty body changes nothing", func(t *testing.T) {
		w := env.do(t, env.request("PATCH", "/update/1/", nil, "", true))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, original, decodePost(t, w))
	})

	t.Run("invalid field leaves post unchanged", func(t *testing.T) {
		w := env.do(t, env.jsonRequest("PUT", "/update/1/", map[string]string{"title": ""}, true))
		require.Equal(t, http.StatusBadRequest, w.Code)

		w = env.do(t, env.request("GET", "/1/", nil, "", false))
		assert.Equal(t, original, decodePost(t, w))
	})

	t.Run("missing post", func(t *testing.T) {
		w := env.do(t, env.jsonRequest("PUT", "/update/99/", map[string]string{"title": "x"}, true))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("id out of range", func(t *testing.T) {
		const huge = "99999999999999999999"
		w := env.do(t, env.jsonRequest("PUT", "/update/"+huge+"/", map[string]string{"title": "x"}, true))
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = env.do(t, env.request("GET", "/"+huge+"/", nil, "", false))
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = env.do(t, env.request("DELETE", "/delete/"+huge+"/", nil, "", true))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"post not found"}`, w.Body.String())
	})

	t.Run("delete missing post", func(t *testing.T) {
		w := env.do(t, env.request("DELETE", "/delete/99/", nil, "", true))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestTokenEndpoints(t *testing.T) {
	env := setupTestRouter(t, "")

	t.Run("obtain and use a token", func(t *testing.T) {
		w := env.do(t, env.jsonRequest("POST", "/token/", map[string]string{"username": testUser, "password": testPassword}, false))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var pair struct {
			Access  string `json:"access"`
			Refresh string `json:"refresh"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pair))
		require.NotEmpty(t, pair.Access)
		require.NotEmpty(t, pair.Refresh)

		w = env.do(t, env.form("POST", "/token/refresh/", url.Values{"refresh": {pair.Refresh}}, false))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var refreshed struct {
			Access string `json:"access"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refreshed))

		req := env.form("POST", "/create/", url.Values{"title": {"t"}, "content": {"c"}}, false)
		req.Header.Set("Authorization", "Bearer "+refreshed.Access)
		w = env.do(t, req)
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		w := env.do(t, env.form("POST", "/token/", url.Values{"username": {testUser}, "password": {"nope"}}, false))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		w := env.do(t, env.jsonRequest("POST", "/token/", map[string]string{}, false))
		require.Equal(t, http.StatusBadRequest, w.Code)
		var res validationResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Contains(t, res.Fields, "username")
		assert.Contains(t, res.Fields, "password")
	})

	t.Run("access token cannot refresh", func(t *testing.T) {
		w := env.do(t, env.jsonRequest("POST", "/token/refresh/", map[string]string{"refresh": env.access}, false))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestFeed(t *testing.T) {
	env := setupTestRouter(t, "")

	for _, title := range []string{"First", "Second"} {
		w := env.do(t, env.jsonRequest("POST", "/create/", map[string]string{"title": title, "content": "**bold** " + title}, true))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := env.do(t, env.request("GET", "/feed/", nil, "", false))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "application/rss+xml"))

	var rss struct {
		Channel struct {
			Title string `xml:"title"`
			Items []struct {
				Title   string `xml:"title"`
				Link    string `xml:"link"`
				Content string `xml:"encoded"`
			} `xml:"item"`
		} `xml:"channel"`
	}
	require.NoError(t, xml.Unmarshal(w.Body.Bytes(), &rss))
	assert.Equal(t, "Test Blog", rss.Channel.Title)
	require.Len(t, rss.Channel.Items, 2)
	assert.Contains(t, rss.Channel.Items[0].Content, "<strong>bold</strong>")
	assert.True(t, strings.HasPrefix(rss.Channel.Items[0].Link, "http://blog.test/"))
}
