package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/postpilot-hq/postpilot/internal/api/handlers"
	"github.com/postpilot-hq/postpilot/internal/api/middleware"
	"github.com/postpilot-hq/postpilot/internal/domain/repositories"
	"github.com/postpilot-hq/postpilot/internal/domain/services"
	"github.com/postpilot-hq/postpilot/internal/governor"
	"github.com/postpilot-hq/postpilot/internal/pkg/config"
	"github.com/postpilot-hq/postpilot/internal/pkg/metrics"
	pkgredis "github.com/postpilot-hq/postpilot/internal/pkg/redis"
	"github.com/postpilot-hq/postpilot/internal/scheduler"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Server struct {
	cfg        *config.Config
	router     *chi.Mux
	httpServer *http.Server
}

// Deps carries everything the HTTP surface needs. The dispatcher is the
// same instance the background loop runs on, so manual triggers share its
// single-sweep guard.
type Deps struct {
	Schedules  *services.ScheduleService
	Settings   *services.SettingsService
	Governor   *governor.Governor
	Dispatcher *scheduler.Dispatcher
	Posts      *repositories.PostRepository
	Activity   *repositories.ActivityRepository
	DB         *gorm.DB
	Redis      *pkgredis.Client
}

func NewServer(cfg *config.Config, deps *Deps) *Server {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Logger())
	router.Use(middleware.Recoverer())
	router.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS - support multiple origins (comma-separated in config)
	allowedOrigins := strings.Split(cfg.App.FrontendURL, ",")
	for i := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	router.Use(corsHandler.Handler)

	// Initialize handlers
	scheduleHandler := handlers.NewScheduleHandler(deps.Schedules, deps.Dispatcher)
	dispatcherHandler := handlers.NewDispatcherHandler(deps.Dispatcher)
	usageHandler := handlers.NewUsageHandler(deps.Governor)
	postHandler := handlers.NewPostHandler(deps.Posts)
	settingsHandler := handlers.NewSettingsHandler(deps.Settings)
	activityHandler := handlers.NewActivityHandler(deps.Activity)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Redis)

	rateLimiter := middleware.NewRateLimiter(deps.Governor)

	// Routes
	router.Route("/api/v1", func(r chi.Router) {
		// Health (ungoverned so probes never count against a caller)
		r.Get("/health", healthHandler.Health)
		r.Get("/health/live", healthHandler.Live)
		r.Get("/health/ready", healthHandler.Ready)

		r.Group(func(r chi.Router) {
			r.Use(rateLimiter.Limit())

			// Schedules
			r.Get("/schedules", scheduleHandler.List)
			r.Post("/schedules", scheduleHandler.Create)
			r.Get("/schedules/{scheduleID}", scheduleHandler.Get)
			r.Put("/schedules/{scheduleID}", scheduleHandler.Update)
			r.Delete("/schedules/{scheduleID}", scheduleHandler.Delete)
			r.Post("/schedules/{scheduleID}/activate", scheduleHandler.Activate)
			r.Post("/schedules/{scheduleID}/deactivate", scheduleHandler.Deactivate)
			r.Post("/schedules/{scheduleID}/reset", scheduleHandler.Reset)
			r.Post("/schedules/{scheduleID}/run", scheduleHandler.Run)

			// Dispatcher
			r.Post("/dispatcher/sweep", dispatcherHandler.TriggerSweep)
			r.Get("/dispatcher/status", dispatcherHandler.Status)

			// Posts
			r.Get("/posts", postHandler.List)
			r.Get("/posts/{postID}", postHandler.Get)

			// Usage
			r.Get("/usage/summary", usageHandler.Summary)
			r.Get("/usage/statistics", usageHandler.Statistics)
			r.Post("/usage/cache/clear", usageHandler.ClearCache)

			// Settings
			r.Get("/settings", settingsHandler.List)
			r.Put("/settings/{key}", settingsHandler.Update)

			// Activity
			r.Get("/activity", activityHandler.List)
		})
	})

	// Metrics endpoint (Prometheus)
	router.Handle("/metrics", metrics.Handler())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		cfg:        cfg,
		router:     router,
		httpServer: httpServer,
	}
}

func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("Starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Router() *chi.Mux {
	return s.router
}
