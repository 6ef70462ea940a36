package routes

import (
	"net/http"
	"strings"

	"blogapi/app/auth"
	"blogapi/app/controllers"
	"blogapi/app/middleware"
	"blogapi/app/services"
	"blogapi/app/storage"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Dependencies are the collaborators the router wires into controllers.
type Dependencies struct {
	Posts          *services.PostService
	Images         *storage.ImageStore
	Authenticator  auth.Authenticator
	Credentials    auth.Credentials
	Tokens         *auth.Tokens
	Site           controllers.Site
	BasePath       string
	MaxUploadBytes int64
	Logger         zerolog.Logger
}

// SetupRoutes defines the application's routes and returns a router.
func SetupRoutes(deps Dependencies) *mux.Router {
	router := mux.NewRouter()
	logged := middleware.Logger(deps.Logger)

	// Apply global middleware
	router.Use(logged)
	router.Use(middleware.Recoverer)

	router.NotFoundHandler = logged(http.HandlerFunc(notFound))
	router.MethodNotAllowedHandler = logged(http.HandlerFunc(methodNotAllowed))

	mediaURL := deps.Images.MediaURL()
	// Media behind an absolute URL is served by someone else.
	if strings.HasPrefix(mediaURL, "/") {
		prefix := "/" + strings.Trim(mediaURL, "/") + "/"
		router.PathPrefix(prefix).
			Handler(http.StripPrefix(strings.TrimSuffix(prefix, "/"), deps.Images.Handler())).
			Methods(http.MethodGet, http.MethodHead)
	}

	postController := controllers.NewPostController(deps.Posts, mediaURL, deps.MaxUploadBytes)
	tokenController := controllers.NewTokenController(deps.Credentials, deps.Tokens)
	feedController := controllers.NewFeedController(deps.Posts, deps.Site, mediaURL)
	requireAuth := middleware.RequireAuth(deps.Authenticator)

	var base *mux.Router
	if basePath := normalizeBasePath(deps.BasePath); basePath != "" {
		base = router.PathPrefix(basePath).Subrouter()
	} else {
		base = router.NewRoute().Subrouter()
	}

	base.HandleFunc("/feed/", feedController.RSS).Methods(http.MethodGet)

	// JSON API
	api := base.NewRoute().Subrouter()
	api.Use(middleware.ContentTypeJSON)

	api.HandleFunc("/", postController.Index).Methods(http.MethodGet)
	api.HandleFunc("/{id:[0-9]+}/", postController.Show).Methods(http.MethodGet)
	api.Handle("/create/", requireAuth(http.HandlerFunc(postController.Create))).Methods(http.MethodPost)
	api.Handle("/update/{id:[0-9]+}/", requireAuth(http.HandlerFunc(postController.Update))).Methods(http.MethodPut, http.MethodPatch)
	api.Handle("/delete/{id:[0-9]+}/", requireAuth(http.HandlerFunc(postController.Delete))).Methods(http.MethodDelete)

	api.HandleFunc("/token/", tokenController.Obtain).Methods(http.MethodPost)
	api.HandleFunc("/token/refresh/", tokenController.Refresh).Methods(http.MethodPost)

	return router
}

func normalizeBasePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, http.StatusNotFound, "not found")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
