// @title           Whisper API
// @version         1.0
// @description     Anonymous role-based messaging with per-window sender tokens and a moderation ledger.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Type "Bearer" followed by a space and the JWT.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"github.com/whisperchain/whisper-api/internal/api"
	"github.com/whisperchain/whisper-api/internal/core/ports"
	"github.com/whisperchain/whisper-api/internal/core/service"
	"github.com/whisperchain/whisper-api/internal/core/token"
	"github.com/whisperchain/whisper-api/internal/infrastructure/db/memory"
	"github.com/whisperchain/whisper-api/internal/infrastructure/db/mongo"
	"github.com/whisperchain/whisper-api/internal/infrastructure/db/redis"
	"github.com/whisperchain/whisper-api/internal/infrastructure/http/handlers"
	"github.com/whisperchain/whisper-api/internal/infrastructure/queue"
	"github.com/whisperchain/whisper-api/internal/pkg/config"
	"github.com/whisperchain/whisper-api/pkg/logger"
)

const (
	shutdownTimeout = 10 * time.Second
	devJWTSecret    = "whisper-dev-secret"
)

// storage is the set of ports one driver provides.
type storage struct {
	users       ports.UserRepository
	messages    ports.MessageRepository
	moderation  ports.ModerationRepository
	audit       ports.AuditRepository
	idempotency ports.IdempotencyStore
	readiness   []handlers.Pinger
	close       func(context.Context)
}

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "whisper-api",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		log.Warn().Msg("JWT_SECRET not set, using development secret")
		jwtSecret = devJWTSecret
	}
	if cfg.TokenSecret == "" {
		log.Warn().Msg("TOKEN_SECRET not set, sender tokens are unkeyed")
	}

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("failed to open storage")
	}

	// Ledger workers outlive the signal context so queued transitions drain
	// after the HTTP server stops accepting requests.
	execCtx, cancelExec := context.WithCancel(context.Background())
	exec := queue.NewDispatcher(cfg.Ledger.Workers, logger.Component("dispatcher"))
	exec.Start(execCtx)

	issuer := token.NewIssuer(cfg.TokenSecret)
	auth := service.NewAuthService(store.users, jwtSecret, cfg.JWTTTL)
	users := service.NewUserService(store.users, store.audit, logger.Component("accounts"))
	messages := service.NewMessageService(store.messages, store.audit, logger.Component("messages"))
	ledger := service.NewModerationService(store.moderation, store.messages, exec,
		service.LedgerConfig{MaxAttempts: cfg.Ledger.MaxAttempts}, logger.Component("ledger"))
	gate := service.NewSendService(users, store.users, issuer, store.moderation, store.messages,
		store.idempotency, logger.Component("sendgate"))

	if cfg.Admin.Username != "" {
		if err := auth.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
			log.Fatal().Err(err).Msg("failed to bootstrap admin account")
		}
		log.Info().Str("username", cfg.Admin.Username).Msg("admin account ready")
	}

	e := api.NewRouter(api.Deps{
		Log:        log,
		JWTSecret:  jwtSecret,
		Auth:       auth,
		Users:      users,
		Issuer:     issuer,
		Gate:       gate,
		Messages:   messages,
		Moderation: ledger,
		Audit:      service.NewAuditService(store.audit),
		Readiness:  store.readiness,
	})

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("storage", cfg.StorageDriver).
			Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	cancelExec()
	exec.Wait()
	store.close(shutdownCtx)
	log.Info().Msg("shutdown complete")
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		m := memory.NewStore()
		return &storage{
			users:       m.Users(),
			messages:    m.Messages(),
			moderation:  m.Moderation(),
			audit:       m.Audit(),
			idempotency: m.Idempotency(),
			close:       func(context.Context) {},
		}, nil
	}

	client, db, err := mongo.Connect(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		Timeout:  cfg.StorageTimeout,
	})
	if err != nil {
		return nil, err
	}
	repos := mongo.NewRepositories(db, cfg.StorageTimeout)
	if err := repos.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	rdb, err := redis.Connect(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Timeout:  cfg.StorageTimeout,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	log.Info().
		Str("database", cfg.Mongo.Database).
		Str("redis", cfg.Redis.Addr).
		Msg("storage connected")

	return &storage{
		users:       repos.Users,
		messages:    repos.Messages,
		moderation:  repos.Moderation,
		audit:       repos.Audit,
		idempotency: redis.NewIdempotencyStore(rdb),
		readiness: []handlers.Pinger{
			handlers.MongoPinger(db),
			handlers.RedisPinger(rdb),
		},
		close: func(ctx context.Context) {
			closeStorage(ctx, client, rdb, log)
		},
	}, nil
}

func closeStorage(ctx context.Context, client *mongodriver.Client, rdb *goredis.Client, log zerolog.Logger) {
	if err := rdb.Close(); err != nil {
		log.Error().Err(err).Msg("redis close")
	}
	if err := client.Disconnect(ctx); err != nil {
		log.Error().Err(err).Msg("mongo disconnect")
	}
}
