// Package httpserver contains HTTP handlers and middleware.
//
// It provides the REST API surface for job submission and status
// polling, translating validated requests into usecase calls and
// usecase errors into the JSON error envelope.
// The package follows clean architecture principles and provides
// a clear separation between HTTP concerns and business logic.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/makeit3d/forge-gateway/internal/adapter/repo/postgres"
	"github.com/makeit3d/forge-gateway/internal/config"
	"github.com/makeit3d/forge-gateway/internal/domain"
	"github.com/makeit3d/forge-gateway/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg     config.Config
	Submit  *usecase.SubmitService
	Status  *usecase.StatusService
	Tenants domain.TenantResolver
	Repos   usecase.JobRepoResolver
	Admin   *postgres.AdminQueries

	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
	BlobCheck  func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, submit *usecase.SubmitService, status *usecase.StatusService, tenants domain.TenantResolver, repos usecase.JobRepoResolver,
	admin *postgres.AdminQueries, dbCheck, redisCheck, blobCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Submit: submit, Status: status, Tenants: tenants, Repos: repos, Admin: admin, DBCheck: dbCheck, RedisCheck: redisCheck, BlobCheck: blobCheck}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// submitRequestBody is the JSON request shape for every POST submit route;
// fields not relevant to a given (kind, operation) are simply left zero.
// Supplemented from original_source/app/schemas/generation_schemas.py's
// per-operation request structs, flattened into one wire shape since the
// route itself (kind, operation) already disambiguates which fields apply.
type submitRequestBody struct {
	ClientTaskID   string `json:"client_task_id" validate:"required"`
	Provider       string `json:"provider" validate:"required"`
	Prompt         string `json:"prompt,omitempty"`
	StylePreset    string `json:"style_preset,omitempty"`
	SourceAssetURL string `json:"source_asset_url,omitempty" validate:"omitempty,url"`
	MaskAssetURL   string `json:"mask_asset_url,omitempty" validate:"omitempty,url"`

	N          *int   `json:"n,omitempty"`
	Background string `json:"background,omitempty"`

	SelectPrompt string `json:"select_prompt,omitempty"`

	InputImageAssetURLs []string `json:"input_image_asset_urls,omitempty" validate:"omitempty,dive,url"`
	PriorAIServiceTaskID string  `json:"prior_ai_service_task_id,omitempty"`

	AspectRatio string `json:"aspect_ratio,omitempty"`
	Seed        *int   `json:"seed,omitempty"`
	Texture     *bool  `json:"texture,omitempty"`
	PBR         *bool  `json:"pbr,omitempty"`
	FaceLimit   *int   `json:"face_limit,omitempty"`
	AutoSize    *bool  `json:"auto_size,omitempty"`
}

func (b submitRequestBody) params() map[string]any {
	p := map[string]any{}
	if b.N != nil {
		p["n"] = *b.N
	}
	if b.Background != "" {
		p["background"] = b.Background
	}
	if b.SelectPrompt != "" {
		p["select_prompt"] = b.SelectPrompt
	}
	if b.MaskAssetURL != "" {
		p["mask_asset_url"] = b.MaskAssetURL
	}
	if len(b.InputImageAssetURLs) > 0 {
		p["input_image_asset_urls"] = b.InputImageAssetURLs
	}
	if b.PriorAIServiceTaskID != "" {
		p["prior_ai_service_task_id"] = b.PriorAIServiceTaskID
	}
	if b.AspectRatio != "" {
		p["aspect_ratio"] = b.AspectRatio
	}
	if b.Seed != nil {
		p["seed"] = *b.Seed
	}
	if b.Texture != nil {
		p["texture"] = *b.Texture
	}
	if b.PBR != nil {
		p["pbr"] = *b.PBR
	}
	if b.FaceLimit != nil {
		p["face_limit"] = *b.FaceLimit
	}
	if b.AutoSize != nil {
		p["auto_size"] = *b.AutoSize
	}
	return p
}

// SubmitHandler builds the POST handler for one (kind, operation) pair.
func (s *Server) SubmitHandler(kind domain.JobKind, op domain.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB

		var body submitRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidRequest), nil)
			return
		}
		if err := getValidator().Struct(body); err != nil {
			verrs := map[string]string{}
			if ve, ok := err.(validator.ValidationErrors); ok {
				for _, fe := range ve {
					verrs[strings.ToLower(fe.Field())] = fe.Tag()
				}
			}
			writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidRequest), verrs)
			return
		}

		tenant, _ := TenantFromContext(r.Context())

		handle, err := s.Submit.SubmitJob(r.Context(), usecase.SubmitRequest{
			Kind:           kind,
			Provider:       domain.Provider(body.Provider),
			Operation:      op,
			ClientTaskID:   body.ClientTaskID,
			Tenant:         tenant,
			Prompt:         body.Prompt,
			Style:          body.StylePreset,
			SourceAssetURL: body.SourceAssetURL,
			Params:         body.params(),
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"task_id": handle.WorkerTaskID})
	}
}

// StatusHandler returns the GET /tasks/{worker_task_id}/status handler.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workerTaskID := chi.URLParam(r, "worker_task_id")
		if workerTaskID == "" {
			writeError(w, r, fmt.Errorf("%w: worker_task_id missing", domain.ErrInvalidRequest), nil)
			return
		}
		class := domain.ProviderClass(r.URL.Query().Get("service"))
		if class == "" {
			class = domain.ClassOpenAI
		}

		view, err := s.Status.GetJobStatus(r.Context(), workerTaskID, class)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		resp := map[string]any{"worker_task_id": view.WorkerTaskID, "status": string(view.Status)}
		if view.AssetURL != "" {
			resp["asset_url"] = view.AssetURL
		}
		if view.Error != "" {
			resp["error"] = view.Error
		}
		if view.Progress != nil {
			resp["progress"] = *view.Progress
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ReadyzHandler probes the durable collaborators the gateway depends on.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 3)
		run := func(name string, fn func(context.Context) error) {
			if fn == nil {
				return
			}
			if err := fn(ctx); err != nil {
				checks = append(checks, check{Name: name, OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: name, OK: true})
			}
		}
		run("db", s.DBCheck)
		run("redis", s.RedisCheck)
		run("blobstore", s.BlobCheck)

		ok := true
		for _, c := range checks {
			if !c.OK {
				ok = false
				break
			}
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}

// HealthzHandler is a liveness probe: no external collaborators consulted.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// MountAdmin mounts the read-only operator surface using the AdminServer.
func (s *Server) MountAdmin(r chi.Router) {
	adminServer, err := NewAdminServer(s.Cfg, s)
	if err != nil {
		return
	}
	r.Post("/admin/token", adminServer.AdminTokenHandler())
	r.Get("/admin/api/status", adminServer.AdminStatusHandler())
	r.Get("/admin/api/stats", adminServer.AdminStatsHandler())
	r.Get("/admin/api/jobs", adminServer.AdminJobsHandler())
	r.Get("/admin/api/jobs/{id}", adminServer.AdminJobDetailsHandler())
}
