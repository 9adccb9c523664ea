package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/sms-archive/internal/archive"
	"github.com/suPer8Hu/sms-archive/internal/config"
	"github.com/suPer8Hu/sms-archive/internal/db"
	"github.com/suPer8Hu/sms-archive/internal/imports"
	"github.com/suPer8Hu/sms-archive/internal/logging"
	"github.com/suPer8Hu/sms-archive/internal/media"
	"github.com/suPer8Hu/sms-archive/internal/metrics"
	"github.com/suPer8Hu/sms-archive/internal/store/rabbitmq"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// no logger yet
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
		log.Fatal("worker stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	opts, err := cfg.IngestOptions()
	if err != nil {
		return err
	}

	gdb, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	if err := db.Migrate(gdb, append(archive.Models(), &imports.Job{})...); err != nil {
		return err
	}

	extractor, err := media.NewExtractor(cfg.MediaDir)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewIngest(reg)

	runner := imports.NewRunner(imports.NewRepo(gdb), archive.NewRepo(gdb), extractor, opts, log, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		return err
	}

	// one import at a time: the archive store has a single writer
	if err := ch.Qos(1, 0, false); err != nil {
		return err
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	log.Info("worker started",
		zap.String("queue", cfg.RabbitQueue),
		zap.String("media_dir", extractor.Dir()),
	)

	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			return nil

		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			handleDelivery(ctx, runner, m, log, d)
		}
	}
}

func handleDelivery(ctx context.Context, runner *imports.Runner, m *metrics.Ingest, log *zap.Logger, d amqp.Delivery) {
	var msg rabbitmq.ImportMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil || msg.JobID == "" {
		log.Warn("bad message", zap.Error(err), zap.ByteString("body", d.Body))
		_ = d.Nack(false, false)
		m.DeadLettered()
		return
	}

	start := time.Now()
	if err := runner.Execute(ctx, msg.JobID); err != nil {
		log.Error("job failed",
			zap.String("job_id", msg.JobID),
			zap.Duration("cost", time.Since(start)),
			zap.Error(err),
		)
		_ = d.Nack(false, false)
		m.DeadLettered()
		return
	}

	if err := d.Ack(false); err != nil {
		log.Warn("ack failed", zap.String("job_id", msg.JobID), zap.Error(err))
	}
}
