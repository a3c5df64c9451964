package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joelkehle/readiness-audit/internal/blobstore"
	"github.com/joelkehle/readiness-audit/internal/config"
	"github.com/joelkehle/readiness-audit/internal/draft"
	"github.com/joelkehle/readiness-audit/internal/form"
	"github.com/joelkehle/readiness-audit/internal/httpapi"
	"github.com/joelkehle/readiness-audit/internal/ingest"
	"github.com/joelkehle/readiness-audit/internal/intake"
	"github.com/joelkehle/readiness-audit/internal/logger"
	"github.com/joelkehle/readiness-audit/internal/observability"
	"github.com/joelkehle/readiness-audit/internal/reconcile"
	"github.com/joelkehle/readiness-audit/internal/render"
	"github.com/joelkehle/readiness-audit/internal/store"
	"github.com/joelkehle/readiness-audit/internal/workflow"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config YAML (default: CONFIG_PATH or config.yaml)")
		addrFlag   = flag.String("addr", "", "listen address (overrides config)")
		dbFlag     = flag.String("db", "", "database DSN (overrides config)")
		noRender   = flag.Bool("no-render", false, "do not render PDFs for reports that arrive without one")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *addrFlag != "" {
		cfg.Addr = *addrFlag
	}
	if *dbFlag != "" {
		cfg.DBDSN = *dbFlag
	}

	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg, !*noRender); err != nil {
		lg.Error("audit-server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, lg *logger.Logger, withRenderer bool) error {
	shutdownTracing := observability.InitTracing(ctx, lg, observability.TracingConfig{
		Enabled:     cfg.OTelEnabled,
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTelEndpoint,
	})
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()
	metrics := observability.NewMetrics()

	db, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	lg.Info("database ready", "driver", cfg.DBDriver)

	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		return err
	}
	drafts, closeDrafts, err := openDrafts(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDrafts()

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}

	var renderer render.PDFRenderer
	if withRenderer {
		renderer = render.NewChromiumRenderer(cfg.ChromePath)
	}

	svc := intake.New(intake.Deps{
		DB:     db,
		Engine: engine,
		Reconciler: reconcile.New(db, lg,
			reconcile.WithWindow(cfg.ReconcileWindow),
			reconcile.WithMetrics(metrics),
		),
		Ingestor: ingest.New(db, blobs, lg, ingest.WithMetrics(metrics)),
		Blobs:    blobs,
		Renderer: renderer,
		Log:      lg,
		Metrics:  metrics,
		Timeout:  cfg.EngineTimeout,
	})

	handler := httpapi.NewServer(httpapi.Deps{
		Intake:  svc,
		Wizard:  form.NewWizard(svc),
		Drafts:  drafts,
		DB:      db,
		Log:     lg,
		Metrics: metrics,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("audit-server listening", "addr", cfg.Addr, "engine", cfg.Engine, "blobs", cfg.BlobBackend, "drafts", cfg.DraftBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		lg.Info("shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func openBlobs(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	switch cfg.BlobBackend {
	case "s3":
		return blobstore.NewS3Store(ctx, blobstore.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			Prefix:          cfg.S3Prefix,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
		})
	default:
		return blobstore.NewFSStore(cfg.UploadDir, "")
	}
}

func openDrafts(ctx context.Context, cfg *config.Config) (draft.Store, func(), error) {
	switch cfg.DraftBackend {
	case "redis":
		rs, err := draft.NewRedisStore(ctx, cfg.RedisURL, cfg.DraftTTL)
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { _ = rs.Close() }, nil
	default:
		fs, err := draft.NewFileStore(cfg.DraftDir)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	}
}

func openEngine(cfg *config.Config) (workflow.Engine, error) {
	switch cfg.Engine {
	case "http":
		return workflow.NewHTTPEngine(cfg.WebhookURL, cfg.EngineTimeout), nil
	case "anthropic":
		e, err := workflow.NewAnthropicEngineFromEnv()
		if err != nil {
			return nil, fmt.Errorf("anthropic engine: %w", err)
		}
		return e, nil
	default:
		return workflow.NewSimulator(2 * time.Second), nil
	}
}
