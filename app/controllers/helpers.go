package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"blogapi/app/models"
	"blogapi/app/repositories"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/hlog"
)

var (
	errMalformedBody    = errors.New("malformed request body")
	errUnsupportedMedia = errors.New("unsupported content type")
)

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Helper methods for consistent response handling

func sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, message string, status int) {
	sendJSON(w, status, errorResponse{Error: message})
}

// sendServiceError maps err onto a status code. Anything unclassified is
// logged and reported as a plain 500.
func sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *models.ValidationError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &verr):
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, repositories.ErrNotFound):
		sendError(w, "post not found", http.StatusNotFound)
	case errors.As(err, &tooLarge):
		sendError(w, "request body too large", http.StatusRequestEntityTooLarge)
	case errors.Is(err, errMalformedBody):
		sendError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, errUnsupportedMedia):
		sendError(w, err.Error(), http.StatusUnsupportedMediaType)
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("Request failed")
		sendError(w, "internal server error", http.StatusInternalServerError)
	}
}

// postID reads the {id} route variable. An id too large for int64 cannot
// name a stored post and is reported as repositories.ErrNotFound.
func postID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return 0, repositories.ErrNotFound
	}
	return id, err
}

func sendIDError(w http.ResponseWriter, err error) {
	if errors.Is(err, repositories.ErrNotFound) {
		sendError(w, "post not found", http.StatusNotFound)
		return
	}
	sendError(w, "Invalid post ID", http.StatusBadRequest)
}
