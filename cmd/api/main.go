package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/suPer8Hu/sms-archive/internal/archive"
	"github.com/suPer8Hu/sms-archive/internal/config"
	"github.com/suPer8Hu/sms-archive/internal/db"
	"github.com/suPer8Hu/sms-archive/internal/httpapi"
	"github.com/suPer8Hu/sms-archive/internal/imports"
	"github.com/suPer8Hu/sms-archive/internal/logging"
	"github.com/suPer8Hu/sms-archive/internal/store/rabbitmq"
	"github.com/suPer8Hu/sms-archive/internal/store/redisstore"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	gdb, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	if err := db.Migrate(gdb, append(archive.Models(), &imports.Job{})...); err != nil {
		return err
	}

	deps := httpapi.Deps{Log: log}

	if cfg.RedisAddr != "" {
		rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ETagCacheTTL)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rds.Ping(ctx)
		cancel()
		if err != nil {
			log.Warn("redis unavailable, etag cache disabled", zap.Error(err))
			_ = rds.Close()
		} else {
			defer rds.Close()
			deps.Redis = rds
		}
	}

	// Reads work without the queue; only POST /api/imports needs it.
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Warn("rabbitmq unavailable, imports disabled", zap.Error(err))
	} else {
		defer pub.Close()
		deps.Publisher = pub
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	deps.Registry = reg

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(gdb, cfg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("api shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
