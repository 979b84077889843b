package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/user-api/internal/api/handlers"
	"github.com/isdelr/user-api/internal/auth"
	"github.com/isdelr/user-api/internal/services"
	"github.com/isdelr/user-api/internal/websocket"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// Dependencies bundles everything the router wires into handlers.
type Dependencies struct {
	UserService  services.UserServiceProvider
	EventService services.EventServiceProvider
	Tokens       *auth.TokenManager
	Hub          *websocket.Hub
	Health       handlers.HealthReporter
	FrontendURL  string
	SecureCookie bool
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request")
	}))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{deps.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteFailure(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteFailure(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Initialize handlers
	userHandler := handlers.NewUserHandler(deps.UserService, deps.Tokens, deps.SecureCookie)
	requireAuth := deps.Tokens.Middleware(handlers.Unauthorized)

	r.Route("/users", func(r chi.Router) {
		r.Get("/", userHandler.GetAll)
		r.Post("/", userHandler.Create)
		r.Get("/email/{email}", userHandler.GetByEmail)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", userHandler.Get)
			r.Patch("/", userHandler.Update)
			r.Delete("/", userHandler.Delete)
		})
	})
	r.Post("/login", userHandler.Login)

	if deps.Health != nil {
		r.Get("/health", handlers.NewHealthHandler(deps.Health).Get)
	}

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/me", userHandler.GetMe)
		if deps.EventService != nil {
			r.Get("/events", handlers.NewEventHandler(deps.EventService).GetRecent)
		}
		if deps.Hub != nil {
			r.Get("/ws", handlers.NewWebSocketHandler(deps.Hub, deps.FrontendURL).Serve)
		}
	})

	return r
}
