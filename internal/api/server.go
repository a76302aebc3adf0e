// Package api exposes the HTTP surface: notification reads for students,
// template submission for agency admins, and the manual scheduler trigger.
// Identity arrives as the X-User-ID header set by the gateway; this service
// does not verify tokens itself.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"tutiful-scheduler/internal/common/config"
	"tutiful-scheduler/internal/common/logger"
)

// Server wraps the chi router and its http.Server.
type Server struct {
	httpServer *http.Server
	log        logger.Logger
}

func NewServer(cfg config.APIConfig, handlers *Handlers, log logger.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-User-ID"},
		MaxAge:         300,
	})
	router.Use(corsHandler.Handler)

	router.Get("/healthz", handlers.Health)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Use(requireUser)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", handlers.ListNotifications)
			r.Get("/count", handlers.CountNotifications)
			r.Patch("/read-all", handlers.MarkAllNotificationsRead)
			r.Get("/{id}", handlers.GetNotification)
			r.Patch("/{id}/read", handlers.MarkNotificationRead)
			r.Delete("/{id}", handlers.DeleteNotification)
		})

		r.Route("/lessons/{lessonId}", func(r chi.Router) {
			r.Get("/template", handlers.GetTemplate)
			r.Post("/template", handlers.SubmitTemplate)
			r.Get("/next-grade-options", handlers.NextGradeOptions)
		})
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(requireUser)
		r.Post("/scheduler/run", handlers.RunScheduler)
		r.Get("/scheduler/status", handlers.SchedulerStatus)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log,
	}
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", map[string]interface{}{
		"addr": s.httpServer.Addr,
	})
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type contextKey string

const userIDKey contextKey = "userID"

// requireUser rejects requests missing the gateway identity header.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "Missing user identity")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}
