package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JSisques/saas-boilerplate-sub000/domains/tenantdb/be/service"
)

// MemoryRepository is an in-memory lifecycle repository for tests and early
// development. It enforces the same one-live-record-per-tenant invariant as
// the partial unique index in Postgres.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]service.TenantDatabase
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[uuid.UUID]service.TenantDatabase)}
}

func (r *MemoryRepository) Create(ctx context.Context, rec service.TenantDatabase) (service.TenantDatabase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byID {
		if existing.TenantID == rec.TenantID && !existing.Deleted() {
			return service.TenantDatabase{}, service.ErrAlreadyExists
		}
	}
	r.byID[rec.ID] = rec
	return rec, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (service.TenantDatabase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byID[id]
	if !ok {
		return service.TenantDatabase{}, service.ErrRecordNotFound
	}
	return rec, nil
}

func (r *MemoryRepository) GetByTenantID(ctx context.Context, tenantID uuid.UUID) (service.TenantDatabase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.byID {
		if rec.TenantID == tenantID && !rec.Deleted() {
			return rec, nil
		}
	}
	return service.TenantDatabase{}, service.ErrRecordNotFound
}

func (r *MemoryRepository) Update(ctx context.Context, rec service.TenantDatabase) (service.TenantDatabase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[rec.ID]; !ok {
		return service.TenantDatabase{}, service.ErrRecordNotFound
	}
	r.byID[rec.ID] = rec
	return rec, nil
}

func (r *MemoryRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[id]
	if !ok || rec.Deleted() {
		return service.ErrRecordNotFound
	}
	rec.DeletedAt = &at
	rec.UpdatedAt = at
	r.byID[id] = rec
	return nil
}

func (r *MemoryRepository) ListActive(ctx context.Context) ([]service.TenantDatabase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []service.TenantDatabase
	for _, rec := range r.byID {
		if rec.Status == service.StatusActive && !rec.Deleted() {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.Before(records[j].CreatedAt) })
	return records, nil
}
