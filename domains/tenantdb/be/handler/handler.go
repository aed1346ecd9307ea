package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JSisques/saas-boilerplate-sub000/domains/tenantdb/be/migrate"
	"github.com/JSisques/saas-boilerplate-sub000/domains/tenantdb/be/service"
	platformlogging "github.com/JSisques/saas-boilerplate-sub000/platform/go/logging"
)

const (
	problemTypeValidation   = "https://saas-boilerplate.dev/problems/validation-error"
	problemTypeNotFound     = "https://saas-boilerplate.dev/problems/not-found"
	problemTypeConflict     = "https://saas-boilerplate.dev/problems/conflict"
	problemTypePrecondition = "https://saas-boilerplate.dev/problems/precondition-failed"
	problemTypeUpstream     = "https://saas-boilerplate.dev/problems/database-operation-failed"
	problemTypeInternal     = "https://saas-boilerplate.dev/problems/internal-error"
)

// Handler exposes the tenant database control plane over HTTP.
type Handler struct {
	svc    *service.Service
	runner *migrate.Runner
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, runner *migrate.Runner, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("tenantdb service is required")
	}
	if runner == nil {
		panic("migration runner is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, runner: runner, logger: logger}
}

// Routes returns the admin router for tenant database operations.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.create)
	r.Post("/migrate-all", h.migrateAll)
	r.Route("/{tenantID}", func(r chi.Router) {
		r.Get("/status", h.status)
		r.Delete("/", h.delete)
		r.Patch("/", h.rename)
		r.Post("/migrate", h.migrate)
		r.Post("/suspend", h.suspend)
		r.Post("/resume", h.resume)
		r.Post("/retry", h.retry)
	})
	return r
}

type createRequest struct {
	TenantID     string `json:"tenantId"`
	DatabaseName string `json:"databaseName,omitempty"`
}

type renameRequest struct {
	DatabaseName string `json:"databaseName"`
}

type tenantDatabaseResponse struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenantId"`
	DatabaseName    string     `json:"databaseName"`
	Status          string     `json:"status"`
	SchemaVersion   *string    `json:"schemaVersion,omitempty"`
	LastMigrationAt *time.Time `json:"lastMigrationAt,omitempty"`
	ErrorMessage    *string    `json:"errorMessage,omitempty"`
	ConnectionURL   string     `json:"connectionUrl,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type migrationStatusResponse struct {
	TenantID        string     `json:"tenantId"`
	DatabaseName    string     `json:"databaseName"`
	Status          string     `json:"status"`
	SchemaVersion   *string    `json:"schemaVersion,omitempty"`
	LastMigrationAt *time.Time `json:"lastMigrationAt,omitempty"`
	ErrorMessage    *string    `json:"errorMessage,omitempty"`
}

type migrationResultResponse struct {
	TenantID         string `json:"tenantId"`
	Success          bool   `json:"success"`
	MigrationVersion string `json:"migrationVersion,omitempty"`
	Error            string `json:"error,omitempty"`
}

type problemDetails struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeProblem(w, http.StatusBadRequest, problemTypeValidation, "Invalid request body", err.Error())
		return
	}
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		h.writeProblem(w, http.StatusBadRequest, problemTypeValidation, "Invalid tenant id", err.Error())
		return
	}

	info, err := h.svc.CreateTenantDatabase(r.Context(), tenantID, req.DatabaseName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/admin/tenant-databases/"+tenantID.String())
	h.writeJSON(w, http.StatusCreated, toTenantDatabaseResponse(info))
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantIDParam(w, r)
	if !ok {
		return
	}
	status, err := h.svc.GetTenantMigrationStatus(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, migrationStatusResponse{
		TenantID:        status.TenantID.String(),
		DatabaseName:    status.DatabaseName,
		Status:          string(status.Status),
		SchemaVersion:   status.SchemaVersion,
		LastMigrationAt: status.LastMigrationAt,
		ErrorMessage:    status.ErrorMessage,
	})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantIDParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteTenantDatabase(r.Context(), tenantID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantIDParam(w, r)
	if !ok {
		return
	}
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeProblem(w, http.StatusBadRequest, problemTypeValidation, "Invalid request body", err.Error())
		return
	}
	if req.DatabaseName == "" {
		h.writeProblem(w, http.StatusBadRequest, problemTypeValidation, "Invalid request body", "databaseName is required")
		return
	}
	if err := h.svc.RenameTenantDatabase(r.Context(), tenantID, req.DatabaseName); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) migrate(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantIDParam(w, r)
	if !ok {
		return
	}
	result := h.runner.MigrateTenant(r.Context(), tenantID)
	if result.Err != nil {
		// Invalid requests surface as problems; attempted-and-failed
		// migrations are reported inside the result body.
		var precondition *service.PreconditionError
		if errors.Is(result.Err, service.ErrRecordNotFound) || errors.As(result.Err, &precondition) {
			h.writeError(w, r, result.Err)
			return
		}
	}
	h.writeJSON(w, http.StatusOK, toMigrationResultResponse(result))
}

func (h *Handler) migrateAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.runner.MigrateAllTenants(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]migrationResultResponse, 0, len(results))
	for _, result := range results {
		out = append(out, toMigrationResultResponse(result))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) suspend(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantIDParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.SuspendTenantDatabase(r.Context(), tenantID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantIDParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.ResumeTenantDatabase(r.Context(), tenantID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) retry(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantIDParam(w, r)
	if !ok {
		return
	}
	info, err := h.svc.RetryProvisioning(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toTenantDatabaseResponse(info))
}

func (h *Handler) tenantIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		h.writeProblem(w, http.StatusBadRequest, problemTypeValidation, "Invalid tenant id", err.Error())
		return uuid.Nil, false
	}
	return tenantID, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var precondition *service.PreconditionError
	var physical *service.PhysicalOperationError

	switch {
	case errors.Is(err, service.ErrTenantNotFound), errors.Is(err, service.ErrRecordNotFound):
		h.writeProblem(w, http.StatusNotFound, problemTypeNotFound, "Not found", err.Error())
	case errors.Is(err, service.ErrAlreadyExists):
		h.writeProblem(w, http.StatusConflict, problemTypeConflict, "Conflict", err.Error())
	case errors.As(err, &precondition):
		h.writeProblem(w, http.StatusConflict, problemTypePrecondition, "Precondition failed", err.Error())
	case errors.As(err, &physical):
		platformlogging.FromRequest(r, h.logger).Error("physical database operation failed", zap.Error(err))
		h.writeProblem(w, http.StatusBadGateway, problemTypeUpstream, "Database operation failed", err.Error())
	default:
		platformlogging.FromRequest(r, h.logger).Error("tenant database operation failed", zap.Error(err))
		h.writeProblem(w, http.StatusInternalServerError, problemTypeInternal, "Internal error", "internal error")
	}
}

func (h *Handler) writeProblem(w http.ResponseWriter, status int, problemType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problemDetails{Type: problemType, Title: title, Status: status, Detail: detail})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func toTenantDatabaseResponse(info service.TenantDatabaseInfo) tenantDatabaseResponse {
	rec := info.Record
	return tenantDatabaseResponse{
		ID:              rec.ID.String(),
		TenantID:        rec.TenantID.String(),
		DatabaseName:    rec.DatabaseName,
		Status:          string(rec.Status),
		SchemaVersion:   rec.SchemaVersion,
		LastMigrationAt: rec.LastMigrationAt,
		ErrorMessage:    rec.ErrorMessage,
		ConnectionURL:   info.ConnectionURL,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
}

func toMigrationResultResponse(result migrate.MigrationResult) migrationResultResponse {
	out := migrationResultResponse{
		TenantID:         result.TenantID.String(),
		Success:          result.Success,
		MigrationVersion: result.MigrationVersion,
	}
	if result.Err != nil {
		out.Error = result.Err.Error()
	}
	return out
}
