package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"blogapi/app/auth"
	"blogapi/app/models"

	"github.com/rs/zerolog/hlog"
)

// TokenController exchanges credentials for bearer tokens.
type TokenController struct {
	credentials auth.Credentials
	tokens      *auth.Tokens
}

func NewTokenController(credentials auth.Credentials, tokens *auth.Tokens) *TokenController {
	return &TokenController{credentials: credentials, tokens: tokens}
}

type credentialsBody struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	Refresh  *string `json:"refresh"`
}

// Obtain checks username and password and returns an access/refresh pair.
func (tc *TokenController) Obtain(w http.ResponseWriter, r *http.Request) {
	body, err := readCredentials(w, r)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	missing := map[string]string{}
	if body.Username == nil || *body.Username == "" {
		missing["username"] = "this field is required"
	}
	if body.Password == nil || *body.Password == "" {
		missing["password"] = "this field is required"
	}
	if len(missing) > 0 {
		sendServiceError(w, r, &models.ValidationError{Fields: missing})
		return
	}

	if err := tc.credentials.Check(*body.Username, *body.Password); err != nil {
		hlog.FromRequest(r).Info().Str("username", *body.Username).Msg("Rejected sign in")
		sendError(w, err.Error(), http.StatusUnauthorized)
		return
	}

	pair, err := tc.tokens.Issue(*body.Username)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, pair)
}

// Refresh returns a new access token for a valid refresh token.
func (tc *TokenController) Refresh(w http.ResponseWriter, r *http.Request) {
	body, err := readCredentials(w, r)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if body.Refresh == nil || *body.Refresh == "" {
		sendServiceError(w, r, models.NewValidationError("refresh", "this field is required"))
		return
	}

	access, err := tc.tokens.Refresh(*body.Refresh)
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrWrongTokenType) {
		sendError(w, auth.ErrInvalidToken.Error(), http.StatusUnauthorized)
		return
	}
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"access": access})
}

// readCredentials accepts the same body encodings as the post endpoints.
func readCredentials(w http.ResponseWriter, r *http.Request) (credentialsBody, error) {
	var body credentialsBody
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return body, fmt.Errorf("%w: %v", errMalformedBody, err)
	}

	var values url.Values
	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return body, wrapBodyError(err)
		}
		return body, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			return body, wrapBodyError(err)
		}
		values = r.MultipartForm.Value
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return body, wrapBodyError(err)
		}
		values = r.PostForm
	default:
		return body, fmt.Errorf("%w %q", errUnsupportedMedia, mediaType)
	}

	field := func(key string) *string {
		if v, ok := values[key]; ok && len(v) > 0 {
			return &v[0]
		}
		return nil
	}
	body.Username = field("username")
	body.Password = field("password")
	body.Refresh = field("refresh")
	return body, nil
}
