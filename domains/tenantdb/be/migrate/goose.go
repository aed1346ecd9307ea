package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// GooseApplier applies the embedded tenant schema migrations with goose. Every
// tenant database gets the same ordered batch; goose's version table inside
// the tenant database tracks what has been applied there.
type GooseApplier struct {
	fsys fs.FS
}

// NewGooseApplier builds an applier over a filesystem whose root contains the
// goose SQL migration files.
func NewGooseApplier(fsys fs.FS) *GooseApplier {
	if fsys == nil {
		panic("goose applier requires migrations filesystem")
	}
	return &GooseApplier{fsys: fsys}
}

// Apply runs all pending migrations in a single ordered batch and reports the
// version of the most recently applied one. Zero pending migrations yields
// Applied == 0 and no error.
func (a *GooseApplier) Apply(ctx context.Context, pool *pgxpool.Pool) (ApplyResult, error) {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, a.fsys)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("init migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("apply migrations: %w", err)
	}
	if len(results) == 0 {
		return ApplyResult{}, nil
	}

	last := results[len(results)-1]
	return ApplyResult{
		Version: strconv.FormatInt(last.Source.Version, 10),
		Applied: len(results),
	}, nil
}
