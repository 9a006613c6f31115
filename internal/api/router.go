package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/xreply/internal/api/handler"
	mw "github.com/iconidentify/xreply/internal/api/middleware"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Session  *handler.SessionHandler
	Settings *handler.SettingsHandler
	Events   *handler.EventHandler
	Health   *handler.HealthHandler
	Hub      *handler.Hub
}

// RouterConfig holds router options.
type RouterConfig struct {
	APIKey         string
	AllowedOrigins []string
	// RequestTimeout bounds non-streaming requests. Synchronous extraction
	// can take as long as the actor run.
	RequestTimeout time.Duration
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(h Handlers, cfg RouterConfig, logger *slog.Logger) *chi.Mux {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 11 * time.Minute
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.UserID)
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))
	r.Use(mw.CORS(cfg.AllowedOrigins))

	// Health endpoints (no auth)
	r.Get("/health", h.Health.Live)
	r.Get("/ready", h.Health.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(cfg.APIKey))

		// The websocket outlives any request timeout
		r.Get("/ws", h.Hub.ServeWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.RequestTimeout))

			r.Get("/stats", h.Health.Stats)

			r.Route("/session", func(r chi.Router) {
				r.Get("/", h.Session.Get)
				r.Put("/settings", h.Session.UpdateSettings)
				r.Post("/extract", h.Session.Extract)
				r.Post("/generate", h.Session.Generate)
				r.Post("/reset", h.Session.Reset)
				r.Post("/comments/{index}/toggle", h.Session.ToggleComment)
				r.Get("/comments/{index}/reply-intent", h.Session.ReplyIntent)
				r.Get("/export", h.Session.Export)
				r.Post("/import", h.Session.Import)
			})

			r.Route("/settings", func(r chi.Router) {
				r.Get("/keys", h.Settings.GetKeys)
				r.Put("/keys", h.Settings.PutKeys)
				r.Get("/prompts", h.Settings.ListPrompts)
				r.Post("/prompts", h.Settings.SavePrompt)
				r.Delete("/prompts/{id}", h.Settings.DeletePrompt)
			})

			r.Route("/prompts/public", func(r chi.Router) {
				r.Get("/", h.Settings.ListPublicPrompts)
				r.Post("/", h.Settings.CreatePublicPrompt)
				r.Get("/{id}", h.Settings.GetPublicPrompt)
				r.Put("/{id}", h.Settings.UpdatePublicPrompt)
				r.Delete("/{id}", h.Settings.DeletePublicPrompt)
			})

			r.Route("/logs", func(r chi.Router) {
				r.Get("/", h.Events.List)
				r.Delete("/", h.Events.Clear)
				r.Get("/export", h.Events.Export)
				r.Get("/stats", h.Events.Stats)
				r.Get("/categories", h.Events.Categories)
			})
		})
	})

	return r
}
