package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auth_backend/internal/auth"
	"auth_backend/internal/config"
	"auth_backend/internal/credentials"
	"auth_backend/internal/http_server/handlers/changepassword"
	"auth_backend/internal/http_server/handlers/login"
	"auth_backend/internal/http_server/handlers/logout"
	"auth_backend/internal/http_server/handlers/oauthlogin"
	"auth_backend/internal/http_server/handlers/refresh"
	"auth_backend/internal/http_server/handlers/register"
	"auth_backend/internal/http_server/handlers/requestreset"
	"auth_backend/internal/http_server/handlers/requestverification"
	"auth_backend/internal/http_server/handlers/resetpassword"
	sessionhandler "auth_backend/internal/http_server/handlers/session"
	"auth_backend/internal/http_server/handlers/verifyemail"
	"auth_backend/internal/middleware/authn"
	rateLimit "auth_backend/internal/middleware/ratelimit"
	"auth_backend/internal/models"
	"auth_backend/internal/rabbitmq"
	"auth_backend/internal/session"
	"auth_backend/internal/storage/postgres"
	"auth_backend/internal/storage/redis"
	"auth_backend/internal/token"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad("./config/config.yaml")

	log := setupLogger(cfg.Env)

	log.Info("starting auth backend", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutdown signal received")
		cancel()
	}()

	if err := postgres.RunMigrations(ctx, cfg); err != nil {
		log.Error("failed to run migrations", slog.String("err", err.Error()))
		os.Exit(1)
	}

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect postgres", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	denylist, err := redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Error("failed to connect redis", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer denylist.Close()

	msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to connect rabbitmq", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer msgBroker.Close()

	codec, err := token.NewCodec(cfg.Tokens.Secret, cfg.Tokens.Algorithm)
	if err != nil {
		log.Error("bad token config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	issuer := token.NewIssuer(codec, token.IssuerConfig{
		Issuer:     cfg.Tokens.Issuer,
		AccessTTL:  cfg.Tokens.AccessTokenTTL,
		RefreshTTL: cfg.Tokens.RefreshTokenTTL,
	})

	sessions := session.New(log, storage, issuer, cfg.Tokens.RotateRefreshTokens)

	verifier := credentials.New(log, storage, msgBroker, cfg.Bcrypt.Cost, cfg.OTP.TTL)

	authService := auth.New(log, storage, verifier, sessions, codec, denylist)

	validate := validator.New()

	router := setupRouter(log, validate, authService, codec, denylist)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", slog.String("err", err.Error()))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", slog.String("err", err.Error()))
	} else {
		log.Info("Server stopped gracefully")
	}

	log.Info("Auth backend stopped")
}

func setupRouter(
	log *slog.Logger,
	validate *validator.Validate,
	authService *auth.Auth,
	codec *token.Codec,
	denylist *redis.Denylist,
) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	requireAuth := authn.New(log, codec, denylist)

	r.Route("/auth", func(r chi.Router) {
		r.With(rateLimit.Register()).Post("/register",
			register.New(log, validate, authService),
		)
		r.With(rateLimit.Login()).Post("/login",
			login.New(log, validate, authService),
		)
		r.With(rateLimit.Login()).Post("/oauth/facebook",
			oauthlogin.New(log, validate, authService, models.ProviderFacebook),
		)
		r.With(rateLimit.Refresh()).Post("/refresh-tokens",
			refresh.New(log, validate, authService),
		)
		r.With(rateLimit.OTP()).Post("/request-email-verification",
			requestverification.New(log, validate, authService),
		)
		r.With(rateLimit.OTP()).Post("/verify-email",
			verifyemail.New(log, validate, authService),
		)
		r.With(rateLimit.OTP()).Post("/request-password-reset",
			requestreset.New(log, validate, authService),
		)
		r.With(rateLimit.OTP()).Post("/reset-password",
			resetpassword.New(log, validate, authService),
		)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.With(rateLimit.Logout()).Post("/logout",
				logout.New(log, validate, authService),
			)
			r.Get("/session",
				sessionhandler.New(log, authService),
			)
		})
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(requireAuth)

		r.Patch("/password",
			changepassword.New(log, validate, authService),
		)
	})

	return r
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
