package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wpops-labs/wpops-go/internal/auditexport"
	"github.com/wpops-labs/wpops-go/internal/config"
	"github.com/wpops-labs/wpops-go/internal/crawler"
	"github.com/wpops-labs/wpops-go/internal/credentials"
	"github.com/wpops-labs/wpops-go/internal/executor"
	"github.com/wpops-labs/wpops-go/internal/kinsta"
	"github.com/wpops-labs/wpops-go/internal/ledger"
	"github.com/wpops-labs/wpops-go/internal/planner"
	"github.com/wpops-labs/wpops-go/internal/platform/env"
	"github.com/wpops-labs/wpops-go/internal/platform/httpserver"
	"github.com/wpops-labs/wpops-go/internal/platform/objectstore"
	"github.com/wpops-labs/wpops-go/internal/platform/postgres"
	"github.com/wpops-labs/wpops-go/internal/platform/secrets"
	repopg "github.com/wpops-labs/wpops-go/internal/repo/postgres"
	"github.com/wpops-labs/wpops-go/internal/rollback"
	"github.com/wpops-labs/wpops-go/internal/semrush"
	"github.com/wpops-labs/wpops-go/internal/sshexec"
	"github.com/wpops-labs/wpops-go/internal/tasks"
	"github.com/wpops-labs/wpops-go/internal/wpcli"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("CONSOLE_HTTP_ADDR", ":8080")
	shutdownTimeout, err := env.Duration("CONSOLE_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid service config", "error", err)
		os.Exit(2)
	}

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(2)
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	migrateCtx, cancelMigrate := context.WithTimeout(ctx, 30*time.Second)
	if err := repopg.Migrate(migrateCtx, db); err != nil {
		cancelMigrate()
		logger.Error("schema migration failed", "error", err)
		os.Exit(1)
	}
	cancelMigrate()

	storeCfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid object store config", "error", err)
		os.Exit(2)
	}
	storeClient, err := objectstore.NewMinIOClient(storeCfg)
	if err != nil {
		logger.Error("object store client init failed", "error", err)
		os.Exit(2)
	}
	if cfg.Exports.Enabled {
		startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := objectstore.EnsureBuckets(startupCtx, storeClient, storeCfg); err != nil {
			cancel()
			logger.Error("object store unavailable", "error", err)
			os.Exit(1)
		}
		cancel()
	}

	box, err := secrets.NewBoxFromEnv()
	if err != nil {
		logger.Error("invalid secrets config", "error", err)
		os.Exit(2)
	}

	kinstaCfg, err := kinsta.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid kinsta config", "error", err)
		os.Exit(2)
	}
	kinstaClient, err := kinsta.NewClient(kinstaCfg)
	if err != nil {
		logger.Error("kinsta client init failed", "error", err)
		os.Exit(2)
	}

	sshCfg, err := sshexec.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid ssh config", "error", err)
		os.Exit(2)
	}
	runner, err := sshexec.NewSSHRunner(sshCfg)
	if err != nil {
		logger.Error("ssh runner init failed", "error", err)
		os.Exit(2)
	}

	engineCfg, err := planner.EngineConfigFromEnv()
	if err != nil {
		logger.Error("invalid planner config", "error", err)
		os.Exit(2)
	}
	engine, err := planner.NewCLIEngine(engineCfg)
	if err != nil {
		logger.Error("planner engine init failed", "error", err)
		os.Exit(2)
	}

	snapshots := repopg.NewSnapshotStore(db)
	plans := repopg.NewPlanStore(db)
	changes := repopg.NewChangeStore(db)
	backups := repopg.NewBackupStore(db)
	execLog := repopg.NewExecutionLogStore(db)
	rankings := repopg.NewRankingStore(db)
	environments := repopg.NewEnvironmentStore(db)
	timeline := repopg.NewTimelineStore(db)

	resolver := credentials.NewResolver(environments, kinstaClient, box, logger)
	tracker := tasks.NewTracker()

	crawlSvc := crawler.NewService(
		snapshots,
		resolver,
		func(conn sshexec.ConnectionInfo) crawler.SiteReader {
			return wpcli.NewClient(runner, conn)
		},
		tracker,
		logger,
		crawler.WithLimits(cfg.Crawler.PostLimit, cfg.Crawler.PageLimit),
		crawler.WithMetaKeys(cfg.Crawler.MetaKeys),
	)
	planSvc := planner.NewService(snapshots, rankings, plans, engine, logger, cfg.Planner.StrictParse)
	ledgerSvc := ledger.NewService(plans, changes, logger)
	execSvc := executor.NewService(
		plans, changes, backups, execLog, resolver,
		func(conn sshexec.ConnectionInfo) executor.ContentGateway {
			return wpcli.NewClient(runner, conn)
		},
		logger,
	)
	rollbackSvc := rollback.NewService(
		plans, changes, backups, execLog, resolver,
		func(conn sshexec.ConnectionInfo) rollback.ContentRestorer {
			return wpcli.NewClient(runner, conn)
		},
		logger,
	)

	var semrushSvc *semrush.Service
	if cfg.SEMrush.Enabled {
		semrushCfg, err := semrush.ConfigFromEnv()
		if err != nil {
			logger.Error("invalid semrush config", "error", err)
			os.Exit(2)
		}
		semrushClient, err := semrush.NewClient(semrushCfg)
		if err != nil {
			logger.Error("semrush client init failed", "error", err)
			os.Exit(2)
		}
		semrushSvc = semrush.NewService(semrushClient, rankings, logger)
	}

	var exportSvc *auditexport.Service
	if cfg.Exports.Enabled {
		exportSvc = auditexport.NewService(execLog, snapshots, objectstore.NewMinIOStore(storeClient), storeCfg, logger)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("console"))
	mux.HandleFunc(
		"/readyz",
		httpserver.Readyz(
			"console",
			httpserver.ReadinessCheck{
				Name: "postgres",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return db.PingContext(checkCtx)
				},
			},
		),
	)

	api := newConsoleAPI(consoleDeps{
		logger:       logger,
		environments: environments,
		snapshots:    snapshots,
		plans:        plans,
		changes:      changes,
		timeline:     timeline,
		crawls:       crawlSvc,
		planner:      planSvc,
		ledger:       ledgerSvc,
		executor:     execSvc,
		rollback:     rollbackSvc,
		semrush:      semrushSvc,
		exports:      exportSvc,
	})
	api.register(mux)

	serverCfg := httpserver.Config{
		Service:         "console",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}
	if err := httpserver.Run(ctx, logger, serverCfg, httpserver.Wrap(logger, "console", mux)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
