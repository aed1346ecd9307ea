package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JSisques/saas-boilerplate-sub000/domains/tenantdb/be/migrate"
	"github.com/JSisques/saas-boilerplate-sub000/domains/tenantdb/be/repo"
	"github.com/JSisques/saas-boilerplate-sub000/domains/tenantdb/be/service"
	"github.com/JSisques/saas-boilerplate-sub000/platform/go/tenantdb"
)

type stubDirectory struct{ exists bool }

func (s stubDirectory) TenantExists(context.Context, uuid.UUID) (bool, error) {
	return s.exists, nil
}

type stubAdmin struct{}

func (stubAdmin) CreateDatabase(context.Context, string) (bool, error) { return true, nil }
func (stubAdmin) DropDatabase(context.Context, string) error           { return nil }
func (stubAdmin) TerminateBackends(context.Context, string) error      { return nil }

type stubCache struct{}

func (stubCache) Invalidate(uuid.UUID) {}

func (stubCache) Get(context.Context, uuid.UUID) (*pgxpool.Pool, error) { return nil, nil }

type stubApplier struct {
	res migrate.ApplyResult
}

func (s stubApplier) Apply(context.Context, *pgxpool.Pool) (migrate.ApplyResult, error) {
	return s.res, nil
}

type testEnv struct {
	handler *Handler
	repo    *repo.MemoryRepository
	svc     *service.Service
}

func newTestEnv(t *testing.T, applied migrate.ApplyResult) *testEnv {
	t.Helper()

	r := repo.NewMemoryRepository()
	locks := tenantdb.NewLocks()
	logger := zap.NewNop()

	svc := service.New(service.Config{
		Repo:    r,
		Tenants: stubDirectory{exists: true},
		Admin:   stubAdmin{},
		Cache:   stubCache{},
		Conn:    tenantdb.ConnTemplate{Host: "db.internal", Port: 5432, User: "app", Password: "secret", SSLMode: "disable"},
		Locks:   locks,
		Logger:  logger,
	})

	runner := migrate.NewRunner(migrate.RunnerConfig{
		Repo:    r,
		Pools:   stubCache{},
		Applier: stubApplier{res: applied},
		Locks:   locks,
		Logger:  logger,
	})

	return &testEnv{handler: New(svc, runner, logger), repo: r, svc: svc}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	e.handler.Routes().ServeHTTP(resp, req)
	return resp
}

func (e *testEnv) mustCreate(t *testing.T, tenantID uuid.UUID) {
	t.Helper()
	_, err := e.svc.CreateTenantDatabase(context.Background(), tenantID, "")
	require.NoError(t, err)
}

func decodeBody[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCreateEndpoint(t *testing.T) {
	env := newTestEnv(t, migrate.ApplyResult{})
	tenantID := uuid.New()

	resp := env.do(t, http.MethodPost, "/", `{"tenantId":"`+tenantID.String()+`"}`)

	require.Equal(t, http.StatusCreated, resp.Code)
	require.Contains(t, resp.Header().Get("Location"), tenantID.String())

	body := decodeBody[map[string]any](t, resp)
	require.Equal(t, tenantID.String(), body["tenantId"])
	require.Equal(t, "active", body["status"])
	connectionURL, _ := body["connectionUrl"].(string)
	databaseName, _ := body["databaseName"].(string)
	require.NotEmpty(t, databaseName)
	require.Contains(t, connectionURL, databaseName)
}

func TestCreateEndpointDuplicate(t *testing.T) {
	env := newTestEnv(t, migrate.ApplyResult{})
	tenantID := uuid.New()
	env.mustCreate(t, tenantID)

	resp := env.do(t, http.MethodPost, "/", `{"tenantId":"`+tenantID.String()+`"}`)

	require.Equal(t, http.StatusConflict, resp.Code)
	require.Equal(t, "application/problem+json", resp.Header().Get("Content-Type"))

	problem := decodeBody[map[string]any](t, resp)
	require.Equal(t, float64(http.StatusConflict), problem["status"])
}

func TestCreateEndpointUnknownTenant(t *testing.T) {
	env := newTestEnv(t, migrate.ApplyResult{})
	env.handler.svc = service.New(service.Config{
		Repo:    env.repo,
		Tenants: stubDirectory{exists: false},
		Admin:   stubAdmin{},
		Cache:   stubCache{},
		Conn:    tenantdb.ConnTemplate{Host: "db.internal", Port: 5432},
		Locks:   tenantdb.NewLocks(),
		Logger:  zap.NewNop(),
	})

	resp := env.do(t, http.MethodPost, "/", `{"tenantId":"`+uuid.NewString()+`"}`)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCreateEndpointInvalidBody(t *testing.T) {
	env := newTestEnv(t, migrate.ApplyResult{})

	resp := env.do(t, http.MethodPost, "/", `{"tenantId":"not-a-uuid"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t, migrate.ApplyResult{})
	tenantID := uuid.New()
	env.mustCreate(t, tenantID)

	resp := env.do(t, http.MethodGet, "/"+tenantID.String()+"/status", "")
	require.Equal(t, http.StatusOK, resp.Code)

	body := decodeBody[map[string]any](t, resp)
	require.Equal(t, "active", body["status"])
	require.NotContains(t, body, "connectionUrl")
}

func TestStatusEndpointNotFound(t *testing.T) {
	env := newTestEnv(t, migrate.ApplyResult{})

	resp := env.do(t, http.MethodGet, "/"+uuid.NewString()+"/status", "")
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestStatusEndpointInvalidID(t *testing.T) {
	env := newTestEnv(t, migrate.ApplyResult{})

	resp := env.do(t, http.MethodGet, "/not-a-uuid/status", "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestDeleteEndpointIsIdempotent(t *testing.T) {
	env := newTestEnv(t, migrate.ApplyResult{})
	tenantID := uuid.New()
	env.mustCreate(t, tenantID)

	resp := env.do(t, http.MethodDelete, "/"+tenantID.String(), "")
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = env.do(t, http.MethodDelete, "/"+tenantID.String(), "")
	require.Equal(t, http.StatusNoContent, resp.Code)
}

func TestRenameEndpoint(t *testing.T) {
	env := newTestEnv(t, migrate.ApplyResult{})
	tenantID := uuid.New()
	env.mustCreate(t, tenantID)

	resp := env.do(t, http.MethodPatch, "/"+tenantID.String(), `{"databaseName":"tenant_renamed"}`)
	require.Equal(t, http.StatusNoContent, resp.Code)

	status, err := env.svc.GetTenantMigrationStatus(context.Background(), tenantID)
	require.NoError(t, err)
	require.Equal(t, "tenant_renamed", status.DatabaseName)
}

func TestRenameEndpointRequiresName(t *testing.T) {
	env := newTestEnv(t, migrate.ApplyResult{})
	tenantID := uuid.New()
	env.mustCreate(t, tenantID)

	resp := env.do(t, http.MethodPatch, "/"+tenantID.String(), `{}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestMigrateEndpointNoop(t *testing.T) {
	env := newTestEnv(t, migrate.ApplyResult{})
	tenantID := uuid.New()
	env.mustCreate(t, tenantID)

	resp := env.do(t, http.MethodPost, "/"+tenantID.String()+"/migrate", "")
	require.Equal(t, http.StatusOK, resp.Code)

	body := decodeBody[map[string]any](t, resp)
	require.Equal(t, true, body["success"])
	require.Equal(t, migrate.NoMigrationsVersion, body["migrationVersion"])
}

func TestMigrateEndpointPreconditionIsProblem(t *testing.T) {
	env := newTestEnv(t, migrate.ApplyResult{})
	tenantID := uuid.New()
	_, err := env.repo.Create(context.Background(), service.NewTenantDatabase(tenantID, "tenant_pending"))
	require.NoError(t, err)

	resp := env.do(t, http.MethodPost, "/"+tenantID.String()+"/migrate", "")
	require.Equal(t, http.StatusConflict, resp.Code)
}

func TestMigrateAllEndpoint(t *testing.T) {
	env := newTestEnv(t, migrate.ApplyResult{Version: "2", Applied: 1})
	first := uuid.New()
	second := uuid.New()
	env.mustCreate(t, first)
	env.mustCreate(t, second)

	resp := env.do(t, http.MethodPost, "/migrate-all", "")
	require.Equal(t, http.StatusOK, resp.Code)

	results := decodeBody[[]map[string]any](t, resp)
	require.Len(t, results, 2)
	for _, result := range results {
		require.Equal(t, true, result["success"])
		require.Equal(t, "2", result["migrationVersion"])
	}
}

func TestSuspendResumeRetryEndpoints(t *testing.T) {
	env := newTestEnv(t, migrate.ApplyResult{})
	tenantID := uuid.New()
	env.mustCreate(t, tenantID)

	resp := env.do(t, http.MethodPost, "/"+tenantID.String()+"/suspend", "")
	require.Equal(t, http.StatusNoContent, resp.Code)

	// Suspending twice is a precondition failure.
	resp = env.do(t, http.MethodPost, "/"+tenantID.String()+"/suspend", "")
	require.Equal(t, http.StatusConflict, resp.Code)

	resp = env.do(t, http.MethodPost, "/"+tenantID.String()+"/resume", "")
	require.Equal(t, http.StatusNoContent, resp.Code)

	// Retry is only legal for failed records.
	resp = env.do(t, http.MethodPost, "/"+tenantID.String()+"/retry", "")
	require.Equal(t, http.StatusConflict, resp.Code)
}
