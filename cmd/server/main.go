// Command server wires the loan book service: stores, services, HTTP routes,
// and lifecycle. Business logic lives in the internal feature packages; main
// only assembles them.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"loanbook/internal/audit"
	"loanbook/internal/dashboard"
	"loanbook/internal/export"
	"loanbook/internal/forecast"
	"loanbook/internal/loan"
	"loanbook/internal/payment"
	"loanbook/internal/platform/config"
	"loanbook/internal/platform/httpserver"
	"loanbook/internal/platform/kafka"
	"loanbook/internal/platform/logger"
	"loanbook/internal/platform/metrics"
	"loanbook/internal/platform/middleware"
	"loanbook/internal/platform/postgres"
	redisplatform "loanbook/internal/platform/redis"
	"loanbook/internal/transport/http/shared"
	"loanbook/pkg/platform/tx"
)

// stores groups one backend's implementations so postgres and memory modes
// assemble identically.
type stores struct {
	loans     loan.Store
	payments  payment.Store
	forecasts forecast.Store
	dashboard dashboard.Store
	audit     audit.Store
	runner    tx.Runner
}

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	var (
		db  *sql.DB
		st  stores
		err error
	)
	if cfg.Postgres.DSN != "" {
		db, err = postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			log.Error("postgres startup failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		st = postgresStores(db)
		log.Info("storage ready", "mode", "postgres")
	} else {
		st = memoryStores()
		log.Info("storage ready", "mode", "memory")
	}

	cache, err := redisplatform.New(cfg.Redis)
	if err != nil {
		log.Error("redis startup failed", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer cache.Close()
	}

	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		log.Error("kafka startup failed", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	m := metrics.New()

	auditOpts := []audit.Option{audit.WithAsyncBuffer(256)}
	if producer != nil {
		auditOpts = append(auditOpts, audit.WithKafka(producer))
	}
	publisher := audit.NewPublisher(st.audit, log, auditOpts...)
	defer publisher.Close()

	loanSvc := loan.NewService(st.loans, st.runner, publisher, m, log)
	paymentSvc := payment.NewService(st.payments, st.loans, st.runner, publisher, m, log)
	forecastSvc := forecast.NewService(st.forecasts, st.loans, st.payments, publisher, m, log)
	dashboardSvc := dashboard.NewService(st.dashboard, cache, cfg.Redis.SummaryTTL, m, log)
	exportSvc := export.NewService(st.loans, st.payments, st.forecasts, cfg.Export.Dir, publisher, log)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.Timeout(cfg.Server.RequestTimeout),
		middleware.ContentTypeJSON,
		middleware.Latency(m),
		dashboardSvc.InvalidationMiddleware,
	)

	loan.NewHandler(loanSvc, publisher, log).Register(router)
	payment.NewHandler(paymentSvc, log).Register(router)
	forecast.NewHandler(forecastSvc, log).Register(router)
	dashboard.NewHandler(dashboardSvc, log).Register(router)
	export.NewHandler(exportSvc, log).Register(router)

	router.Get("/healthz", healthHandler(db, cache))
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Server, router)
	go func() {
		log.Info("listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

func postgresStores(db *sql.DB) stores {
	return stores{
		loans:     loan.NewPostgresStore(db),
		payments:  payment.NewPostgresStore(db),
		forecasts: forecast.NewPostgresStore(db),
		dashboard: dashboard.NewPostgresStore(db),
		audit:     audit.NewPostgresStore(db),
		runner:    tx.NewRunner(db),
	}
}

// memoryStores wires the in-memory backend. The loan store drives cascade
// deletion for the child stores, mirroring the FK ON DELETE CASCADE rules.
func memoryStores() stores {
	loans := loan.NewInMemoryStore()
	payments := payment.NewInMemoryStore(loans)
	return stores{
		loans:     loans,
		payments:  payments,
		forecasts: forecast.NewInMemoryStore(loans),
		dashboard: dashboard.NewInMemoryStore(loans, payments),
		audit:     audit.NewInMemoryStore(),
		runner:    tx.NopRunner{},
	}
}

// healthHandler reports liveness plus per-dependency status. Memory mode has no
// dependencies and always reports ok.
func healthHandler(db *sql.DB, cache *redisplatform.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps := map[string]string{}
		healthy := true

		if db != nil {
			deps["postgres"] = "ok"
			if err := db.PingContext(r.Context()); err != nil {
				deps["postgres"] = err.Error()
				healthy = false
			}
		}
		if cache != nil {
			deps["redis"] = "ok"
			if err := cache.Health(r.Context()); err != nil {
				deps["redis"] = err.Error()
				healthy = false
			}
		}

		status := http.StatusOK
		state := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		shared.WriteJSON(w, status, map[string]any{
			"status":       state,
			"dependencies": deps,
		})
	}
}
