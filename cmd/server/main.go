package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	httptransport "servio/internal/http"
	identityhandler "servio/internal/identity/handler"
	"servio/internal/identity/merge"
	"servio/internal/identity/metrics"
	"servio/internal/identity/sessions"
	identitypg "servio/internal/identity/store/postgres"
	"servio/internal/platform/config"
	"servio/internal/platform/httpserver"
	"servio/internal/platform/logger"
	platformredis "servio/internal/platform/redis"
	auditpg "servio/pkg/platform/audit/store/postgres"
	"servio/pkg/platform/audit/publisher"
	auditworker "servio/pkg/platform/audit/worker"
)

// main wires dependencies and supervises the server plus background workers.
// Business logic lives behind the merge service; nothing here knows how a
// merge works.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if cfg.AdminToken == "" && cfg.JWTSigningKey == "" {
		log.Error("refusing to start: no admin credential configured (ADMIN_TOKEN or JWT_SIGNING_KEY)")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("database unreachable", "error", err)
		os.Exit(1)
	}
	if err := identitypg.EnsureSchema(ctx, db); err != nil {
		log.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	var invalidator merge.SessionInvalidator
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		invalidator = sessions.NewRedisCache(redisClient.Client)
		log.Info("session cache invalidation enabled")
	}

	auditPublisher := publisher.NewPublisher(auditpg.New(db))
	defer auditPublisher.Close()

	migrator, err := merge.NewMigrator(identitypg.NewRelationCatalog(db))
	if err != nil {
		log.Error("invalid relation catalog", "error", err)
		os.Exit(1)
	}

	service := merge.NewService(
		identitypg.NewTx(db),
		identitypg.NewIdentityStore(db),
		migrator,
		auditPublisher,
		invalidator,
		log,
		metrics.New(),
	)

	router := httptransport.New(identityhandler.New(service, log), log, httptransport.Options{
		AdminToken:    cfg.AdminToken,
		JWTSigningKey: cfg.JWTSigningKey,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting servio", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if len(cfg.Kafka.Brokers) > 0 {
		worker, err := auditworker.New(ctx, db, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Error("failed to start audit worker", "error", err)
			os.Exit(1)
		}
		g.Go(func() error {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		log.Info("audit outbox worker enabled", "topic", cfg.Kafka.Topic)
	}

	if err := g.Wait(); err != nil {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	log.Info("servio stopped")
}
