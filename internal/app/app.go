package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/atvirokodosprendimai/stripekeys/internal/adapters/httpapi"
	sqliteadapter "github.com/atvirokodosprendimai/stripekeys/internal/adapters/sqlite"
	"github.com/atvirokodosprendimai/stripekeys/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/stripekeys/internal/core/usecase"
	"github.com/atvirokodosprendimai/stripekeys/internal/metrics"
	"github.com/atvirokodosprendimai/stripekeys/migrations"
)

type Config struct {
	Addr          string `validate:"required"`
	DBPath        string `validate:"required"`
	AdminToken    string `validate:"omitempty,min=16"`
	BootstrapFile string `validate:"omitempty,file"`
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Store bundles the migrated database with the service built on top of it.
type Store struct {
	DB      *gormsqlite.DB
	APIKeys *usecase.APIKeyService
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// OpenStore opens and migrates the database at dbPath.
func OpenStore(ctx context.Context, dbPath string, recorder *metrics.PrometheusMetrics, log zerolog.Logger) (*Store, error) {
	db, err := gormsqlite.Open(dbPath, log)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	migrations.SetLogger(log)
	migrateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := migrations.Up(migrateCtx, writeSQLDB); err != nil {
		_ = db.Close()
		return nil, err
	}
	if version, err := migrations.Version(migrateCtx, writeSQLDB); err == nil {
		log.Debug().Int64("version", version).Msg("schema migrated")
	}

	rec := metrics.NewNoopMetrics()
	if recorder != nil {
		rec = recorder
	}

	repo := sqliteadapter.NewAPIKeyRepository(db)
	return &Store{
		DB:      db,
		APIKeys: usecase.NewAPIKeyService(repo, rec, log),
	}, nil
}

func NewServer(ctx context.Context, cfg Config, log zerolog.Logger) (*http.Server, io.Closer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, err := OpenStore(ctx, cfg.DBPath, metrics.NewPrometheusMetrics(reg), log)
	if err != nil {
		return nil, nil, err
	}

	if cfg.BootstrapFile != "" {
		bootstrapCtx, bootstrapCancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := ImportFile(bootstrapCtx, store.APIKeys, cfg.BootstrapFile)
		bootstrapCancel()
		if err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("bootstrap api keys: %w", err)
		}
	}
	if cfg.AdminToken == "" {
		log.Warn().Msg("admin token not set, /v1 routes are unauthenticated")
	}

	handler := httpapi.NewHandler(store.APIKeys, httpapi.Options{
		AdminToken: cfg.AdminToken,
		Gatherer:   reg,
	}, log)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server, resourceCloser{closers: []io.Closer{store}}, nil
}

type importFile struct {
	Keys []usecase.ImportEntry `yaml:"keys"`
}

// ImportFile reads a YAML document of the form
//
//	keys:
//	  - secret: sk_live_...
//	    name: billing
//
// and runs get-or-create for every entry.
func ImportFile(ctx context.Context, svc *usecase.APIKeyService, path string) ([]usecase.ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	var doc importFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode import file: %w", err)
	}
	return svc.ImportKeys(ctx, doc.Keys)
}
