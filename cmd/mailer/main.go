package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"auth_backend/internal/config"
	sl "auth_backend/internal/lib/logger"
	"auth_backend/internal/mailer"
	"auth_backend/internal/models"
	"auth_backend/internal/rabbitmq"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad("./config/config.yaml")
	log := setupLogger(cfg.Env)

	log.Info("Starting mailer", slog.String("env", cfg.Env))

	startConsumer(ctx, cfg, log)
}

func startConsumer(ctx context.Context, cfg *config.Config, log *slog.Logger) {
	broker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to init rabbitmq", sl.Err(err))
		return
	}
	defer broker.Close()

	m := mailer.New(cfg.SMTP)

	deliveries, err := broker.Consume(ctx)
	if err != nil {
		log.Error("failed to start consuming", sl.Err(err))
		return
	}

	log.Info("consumer successfully started")

	done := make(chan struct{})

	go func() {
		defer close(done)

		for d := range deliveries {
			var msg models.Message
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				log.Error("failed to unmarshal message", sl.Err(err))
				_ = d.Nack(false, false)
				continue
			}

			if err := m.Send(msg); err != nil {
				log.Error("failed to send email", sl.Err(err))
				// requeue once; the broker drops it on the second failure
				_ = d.Nack(false, !d.Redelivered)
				continue
			}

			_ = d.Ack(false)

			log.Info("email sent", slog.String("purpose", msg.Purpose))
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down consumer...")
	case <-done:
		log.Info("consumer finished the work")
	}

	log.Info("service gracefully stopped")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
