// Package app wires application components and startup helpers.
//
// It provides dependency injection and application initialization.
// The package coordinates between different layers and provides
// a clean application bootstrap process.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/makeit3d/forge-gateway/internal/adapter/httpserver"
	"github.com/makeit3d/forge-gateway/internal/config"
	"github.com/makeit3d/forge-gateway/internal/domain"
	"github.com/makeit3d/forge-gateway/internal/observability"
)

// imageOperations and modelOperations are the routing table's two kind
// groups (config/routing.yaml), each mounted under its own path prefix
// with one POST route per canonical operation.
var imageOperations = []domain.Operation{
	domain.OpTextToImage, domain.OpImageToImage, domain.OpSketchToImage,
	domain.OpRemoveBackground, domain.OpInpaint, domain.OpSearchAndRecolor,
	domain.OpUpscale, domain.OpDownscale,
}

var modelOperations = []domain.Operation{
	domain.OpTextToModel, domain.OpImageToModel, domain.OpRefineModel,
}

// ParseOrigins splits a comma-separated origin list into a slice, trimming spaces.
// If the input is empty, returns ["*"].
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{"*"}
	}
	if s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	// Security & instrumentation middleware
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TimeoutMiddleware(30 * time.Second))
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	// CORS - Updated for frontend separation
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   append(ParseOrigins(cfg.CORSAllowOrigins), "http://localhost:3001"),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true, // Enable credentials for session management
		MaxAge:           300,
	}))

	// Submission endpoints: one POST route per (kind, operation) pair,
	// tenant-authenticated and rate limited per tenant IP.
	r.Group(func(wr chi.Router) {
		wr.Use(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute))
		wr.Use(srv.TenantAuth())
		for _, op := range imageOperations {
			wr.Post("/images/"+string(op), srv.SubmitHandler(domain.KindImage, op))
		}
		for _, op := range modelOperations {
			wr.Post("/models/"+string(op), srv.SubmitHandler(domain.KindModel, op))
		}
	})

	// Status polling, no tenant auth: worker_task_id is unguessable and
	// carries no tenant-sensitive payload beyond status/asset_url.
	r.Get("/tasks/{worker_task_id}/status", srv.StatusHandler())

	// Health and readiness endpoints
	r.Get("/healthz", srv.HealthzHandler())
	r.Get("/readyz", srv.ReadyzHandler())

	// Admin API endpoints for frontend authentication
	if cfg.AdminEnabled() {
		srv.MountAdmin(r)
		admin, err := httpserver.NewAdminServer(cfg, srv)
		if err == nil {
			r.Get("/admin/prometheus", admin.AdminBearerRequired(func(w http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(w, r) }))
		}
	}

	return httpserver.SecurityHeaders(r)
}
