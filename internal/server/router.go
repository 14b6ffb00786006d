package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/raharper/subiquity/internal/config"
	"github.com/raharper/subiquity/internal/model"
	"github.com/raharper/subiquity/pkg/httpx"
)

func Logger(cfg config.Config) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	logger := log.Logger.Level(cfg.LogLevel).With().Timestamp().Logger()
	return &logger
}

// api serializes all model access; the model itself is not safe for
// concurrent mutation.
type api struct {
	mu  sync.Mutex
	m   *model.Model
	log *zerolog.Logger
}

func NewRouter(cfg config.Config, m *model.Model) http.Handler {
	logger := Logger(cfg)
	a := &api{m: m, log: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(zerologMiddleware(logger))

	// Dev CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	r.Use(c.Handler)

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, map[string]any{"ok": true, "version": "0.1.0"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/v1/system", handleSystemInfo)

	r.Route("/api/v1/storage", func(sr chi.Router) {
		sr.Get("/", a.overview)
		sr.Get("/devices", a.listDevices)
		sr.Get("/devices/{id}", a.getDevice)
		sr.Get("/devices/{id}/actions", a.deviceActions)
		sr.Post("/devices/{id}/partitions", a.createPartition)
		sr.Post("/devices/{id}/filesystem", a.createFilesystem)
		sr.Post("/devices/{id}/make-boot", a.makeBoot)
		sr.Post("/devices/{id}/remove-member", a.removeMember)
		sr.Delete("/devices/{id}", a.deleteDevice)
		sr.Post("/raids", a.createRaid)
		sr.Post("/volgroups", a.createVolGroup)
		sr.Post("/volgroups/{id}/logicalvolumes", a.createLogicalVolume)
		sr.Post("/dmcrypts", a.createDMCrypt)
		sr.Post("/filesystems/{id}/mount", a.createMount)
		sr.Delete("/filesystems/{id}", a.deleteFilesystem)
		sr.Delete("/mounts/{id}", a.deleteMount)
		sr.Get("/mountpoints", a.mountPoints)
		sr.Post("/layout/plan", a.planLayout)
	})

	return r
}
