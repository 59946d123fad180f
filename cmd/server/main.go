// Command server runs the clinical data capture backend. main wires the
// study snapshot, the stores and the domain services, then serves the HTTP
// API and the Prometheus endpoint until interrupted.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"edc/internal/audit"
	"edc/internal/dataset"
	"edc/internal/field"
	"edc/internal/platform/config"
	"edc/internal/platform/httpserver"
	"edc/internal/platform/logger"
	"edc/internal/platform/metrics"
	"edc/internal/platform/redis"
	"edc/internal/plugin"
	"edc/internal/record"
	"edc/internal/rules"
	"edc/internal/storage"
	"edc/internal/study"
	httptransport "edc/internal/transport/http"
	"edc/internal/validation"
	"edc/internal/workflow"
)

// lazyStatuses lets the rule binder read workflow statuses before the
// workflow service exists; the binder is a constructor argument of the
// executor the workflow service itself needs.
type lazyStatuses struct {
	svc *workflow.Service
}

func (l *lazyStatuses) StatusesFor(ctx context.Context, w record.Workflowable) ([]*record.WorkflowStatus, error) {
	return l.svc.StatusesFor(ctx, w)
}

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if cfg.StudyPath == "" {
		log.Error("EDC_STUDY_PATH is not set")
		os.Exit(1)
	}
	st, err := study.Load(cfg.StudyPath)
	if err != nil {
		log.Error("cannot load study snapshot", slog.String("path", cfg.StudyPath), slog.Any("error", err))
		os.Exit(1)
	}

	m := metrics.New()

	var (
		scopes   storage.ScopeStore
		events   storage.EventStore
		datasets storage.DatasetStore
		fields   storage.FieldStore
		forms    storage.FormStore
		statuses workflow.Store
		audits   audit.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("cannot open database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(context.Background()); err != nil {
			log.Error("database unreachable", slog.Any("error", err))
			os.Exit(1)
		}
		scopes = storage.NewPostgresScopeStore(db, st)
		events = storage.NewPostgresEventStore(db, st)
		datasets = storage.NewPostgresDatasetStore(db, st)
		fields = storage.NewPostgresFieldStore(db, st)
		forms = storage.NewPostgresFormStore(db, st)
		statuses = workflow.NewPostgresStore(db)
		audits = audit.NewPostgresStore(db)
		log.Info("using postgres storage")
	} else {
		scopes = storage.NewInMemoryScopeStore()
		events = storage.NewInMemoryEventStore()
		datasets = storage.NewInMemoryDatasetStore()
		fields = storage.NewInMemoryFieldStore()
		forms = storage.NewInMemoryFormStore()
		statuses = workflow.NewInMemoryStore()
		audits = audit.NewInMemoryStore()
		log.Warn("EDC_DATABASE_URL not set, using in-memory storage")
	}

	cache, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("cannot connect to redis", slog.Any("error", err))
		os.Exit(1)
	}
	if cache != nil {
		defer cache.Close()
	}

	pluginOpts := []plugin.Option{plugin.WithLogger(log), plugin.WithMetrics(m)}
	if cache != nil {
		pluginOpts = append(pluginOpts, plugin.WithCache(cache, time.Hour))
	}
	plugins := plugin.NewRegistry(pluginOpts...)

	lazy := &lazyStatuses{}
	binder := rules.NewBinder(events, datasets, fields, lazy)
	evaluator := rules.NewEvaluator(binder, rules.WithEvaluatorLogger(log))
	executor := rules.NewExecutor(st, evaluator,
		rules.WithExecutorLogger(log), rules.WithExecutorMetrics(m))
	workflows := workflow.NewService(st, statuses, audits, executor,
		workflow.WithLogger(log), workflow.WithMetrics(m))
	lazy.svc = workflows
	validator := validation.NewService(st, evaluator, workflows,
		validation.WithLogger(log), validation.WithMetrics(m), validation.WithScriptRunner(plugins))
	fieldSvc := field.NewService(st, fields, audits, executor, validator, workflows,
		field.WithLogger(log))
	datasetSvc := dataset.NewService(st, datasets, fields, audits, executor, fieldSvc,
		dataset.WithLogger(log), dataset.WithMetrics(m), dataset.WithValueSource(plugins))

	handler := httptransport.NewHandler(st, httptransport.Stores{
		Scopes:   scopes,
		Events:   events,
		Datasets: datasets,
		Fields:   fields,
		Forms:    forms,
		Statuses: statuses,
	}, fieldSvc, datasetSvc, workflows, audits, log)

	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))
	metricsSrv := httpserver.New(cfg.MetricsAddr, promhttp.Handler())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting api server", slog.String("addr", cfg.Addr), slog.String("study", st.ID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting metrics server", slog.String("addr", cfg.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("server stopped")
}
