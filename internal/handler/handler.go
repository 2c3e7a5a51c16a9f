package handlers

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/juju/loggo/v2"

	"instafeed/internal/config"
	"instafeed/internal/events"
	"instafeed/internal/service"
)

var logger = loggo.GetLogger("instafeed.handler")

// Subscriber is the side of the event hub the websocket stream reads from.
type Subscriber interface {
	Subscribe(userID string, handler func(events.Event)) func()
}

// HealthChecker is a backend that can be pinged.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Handlers struct {
	AuthService       service.AuthService
	ProfileService    service.ProfileService
	PostService       service.PostService
	FeedService       service.FeedService
	GraphService      service.GraphService
	EngagementService service.EngagementService
	Notifier          events.Publisher
	EventSource       Subscriber
	Checks            map[string]HealthChecker
	Cfg               *config.Config
	Validate          *validator.Validate
}

func NewHandlers(services *service.Service, hub *events.Hub, checks map[string]HealthChecker, cfg *config.Config) *Handlers {
	return &Handlers{
		AuthService:       services.Auth,
		ProfileService:    services.Profile,
		PostService:       services.Post,
		FeedService:       services.Feed,
		GraphService:      services.Graph,
		EngagementService: services.Engagement,
		Notifier:          hub,
		EventSource:       hub,
		Checks:            checks,
		Cfg:               cfg,
		Validate:          validator.New(),
	}
}

// Routes registers every API endpoint on r.
func (h *Handlers) Routes(r *mux.Router) {
	r.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/signup", h.SignUp).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.LogIn).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh-token", h.RefreshToken).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.LogOut).Methods(http.MethodPost)

	api.HandleFunc("/me", h.GetCurrentProfile).Methods(http.MethodGet)
	api.HandleFunc("/me", h.UpdateProfile).Methods(http.MethodPut)
	api.HandleFunc("/me/image", h.UploadProfileImage).Methods(http.MethodPost)

	api.HandleFunc("/users/{userID}", h.GetProfile).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}/posts", h.GetUserPosts).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}/follow", h.ToggleFollow).Methods(http.MethodPost)

	api.HandleFunc("/feed", h.GetFeed).Methods(http.MethodGet)

	api.HandleFunc("/posts", h.GetPosts).Methods(http.MethodGet)
	api.HandleFunc("/posts", h.CreatePost).Methods(http.MethodPost)
	api.HandleFunc("/posts/search", h.SearchPosts).Methods(http.MethodGet)
	api.HandleFunc("/posts/{postID}", h.GetPost).Methods(http.MethodGet)
	api.HandleFunc("/posts/{postID}/like", h.ToggleLike).Methods(http.MethodPost)
	api.HandleFunc("/posts/{postID}/comments", h.GetComments).Methods(http.MethodGet)
	api.HandleFunc("/posts/{postID}/comments", h.AddComment).Methods(http.MethodPost)

	api.HandleFunc("/events", h.StreamEvents).Methods(http.MethodGet)
}
