package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	sqlassets "github.com/JSisques/saas-boilerplate-sub000/database"
	tenantdbhandler "github.com/JSisques/saas-boilerplate-sub000/domains/tenantdb/be/handler"
	"github.com/JSisques/saas-boilerplate-sub000/domains/tenantdb/be/migrate"
	tenantdbrepo "github.com/JSisques/saas-boilerplate-sub000/domains/tenantdb/be/repo"
	tenantdbservice "github.com/JSisques/saas-boilerplate-sub000/domains/tenantdb/be/service"
	platformlogging "github.com/JSisques/saas-boilerplate-sub000/platform/go/logging"
	platformmiddleware "github.com/JSisques/saas-boilerplate-sub000/platform/go/middleware"
	"github.com/JSisques/saas-boilerplate-sub000/platform/go/persistence"
	"github.com/JSisques/saas-boilerplate-sub000/platform/go/tenantdb"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`

	// ControlDatabaseURL points at the control database holding the tenant
	// registry and lifecycle records. AdminDatabaseURL must carry CREATEDB
	// privileges; it is used only for CREATE/DROP DATABASE.
	ControlDatabaseURL string        `env:"CONTROL_DATABASE_URL,required"`
	AdminDatabaseURL   string        `env:"ADMIN_DATABASE_URL,required"`
	AdminOpTimeout     time.Duration `env:"ADMIN_OP_TIMEOUT" envDefault:"30s"`

	TenantDBHost     string `env:"TENANT_DB_HOST,required"`
	TenantDBPort     int    `env:"TENANT_DB_PORT" envDefault:"5432"`
	TenantDBUser     string `env:"TENANT_DB_USER,required"`
	TenantDBPassword string `env:"TENANT_DB_PASSWORD,required"`
	TenantDBSSLMode  string `env:"TENANT_DB_SSLMODE" envDefault:"disable"`

	TenantsTable       string `env:"TENANTS_TABLE" envDefault:"tenants"`
	MigrateConcurrency int    `env:"MIGRATE_CONCURRENCY" envDefault:"4"`
}

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "tenantdb-api",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.ControlDatabaseURL})
	if err != nil {
		logger.Fatal("init control database pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	store, err := persistence.NewTenantDatabaseStore(pool)
	if err != nil {
		logger.Fatal("init tenant database store", zap.Error(err))
	}
	repo := tenantdbrepo.NewPostgresRepository(store)

	directory, err := persistence.NewTenantDirectory(pool, cfg.TenantsTable)
	if err != nil {
		logger.Fatal("init tenant directory", zap.Error(err))
	}

	adminDB := persistence.NewAdminDB(persistence.AdminConfig{
		URL:       cfg.AdminDatabaseURL,
		OpTimeout: cfg.AdminOpTimeout,
	}, logger)

	conn := tenantdb.ConnTemplate{
		Host:     cfg.TenantDBHost,
		Port:     cfg.TenantDBPort,
		User:     cfg.TenantDBUser,
		Password: cfg.TenantDBPassword,
		SSLMode:  cfg.TenantDBSSLMode,
	}

	cache := tenantdb.NewCache(tenantdb.CacheConfig{
		Resolver: tenantdbrepo.NewNameResolver(repo),
		Conn:     conn,
		Logger:   logger,
	})
	defer cache.Close()

	locks := tenantdb.NewLocks()
	events := tenantdbservice.NewLogPublisher(logger)

	svc := tenantdbservice.New(tenantdbservice.Config{
		Repo:    repo,
		Tenants: directory,
		Admin:   adminDB,
		Cache:   cache,
		Conn:    conn,
		Locks:   locks,
		Events:  events,
		Logger:  logger,
	})

	migrations, err := fs.Sub(sqlassets.TenantMigrationsFS, sqlassets.TenantMigrationsDir)
	if err != nil {
		logger.Fatal("load embedded tenant migrations", zap.Error(err))
	}

	runner := migrate.NewRunner(migrate.RunnerConfig{
		Repo:        repo,
		Pools:       cache,
		Applier:     migrate.NewGooseApplier(migrations),
		Locks:       locks,
		Events:      events,
		Logger:      logger,
		Concurrency: cfg.MigrateConcurrency,
	})

	handler := tenantdbhandler.New(svc, runner, logger)

	contract, err := loadTenantDBContract()
	if err != nil {
		logger.Fatal("load openapi contract", zap.Error(err))
	}

	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.DefaultCORS(),
	)

	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	apiRouter := chi.NewRouter()
	apiRouter.Use(platformmiddleware.RequestTrace)
	apiRouter.Use(newContractValidator(contract))
	apiRouter.Mount("/tenant-databases", handler.Routes())

	rootRouter.Mount("/api/v1/admin", apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting tenantdb api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
