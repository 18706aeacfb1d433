package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/layer-3/nostrauth/adapters/events"
	"github.com/layer-3/nostrauth/adapters/metrics"
	"github.com/layer-3/nostrauth/adapters/store"
	"github.com/layer-3/nostrauth/adapters/tokenizer"
	"github.com/layer-3/nostrauth/internal/config"
	"github.com/layer-3/nostrauth/internal/duid"
	"github.com/layer-3/nostrauth/internal/logging"
	"github.com/layer-3/nostrauth/ports"
	"github.com/layer-3/nostrauth/service"
	httptransport "github.com/layer-3/nostrauth/transport/http"
)

func main() {
	app := fx.New(
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		fx.Provide(
			config.Load,
			newLogger,
			newDatabase,
			newRedisClient,
			newPostgresStore,
			newRedisStore,
			newDeriver,
			newTokenizer,
			newEventPublisher,
			metrics.NewPrometheusRecorder,
			newChallengeLedger,
			newRateLimiter,
			newSessionIssuer,
			newAuthService,
			newRouter,
		),
		fx.Invoke(startHTTPServer),
	)

	app.Run()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Development())
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newDatabase(lc fx.Lifecycle, cfg config.Config) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return db.Close()
		},
	})
	return db, nil
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newPostgresStore(db *sql.DB) *store.PostgresStore {
	return store.NewPostgresStore(db)
}

func newRedisStore(client redis.UniversalClient) *store.RedisStore {
	return store.NewRedisStore(client)
}

// newDeriver returns a nil deriver when the secret is missing so the service
// still boots and every sign-in fails closed.
func newDeriver(cfg config.Config, logger *zap.Logger) *duid.Deriver {
	d, err := duid.New([]byte(cfg.DUIDSecret))
	if err != nil {
		logger.Error("DUID_SERVER_SECRET is missing or too short; sign-in is disabled", zap.Error(err))
		return nil
	}
	return d
}

func newTokenizer(cfg config.Config) (ports.Tokenizer, error) {
	return tokenizer.NewJWTTokenizer(tokenizer.Config{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
}

func newEventPublisher(lc fx.Lifecycle, cfg config.Config, client redis.UniversalClient, logger *zap.Logger) (ports.EventPublisher, error) {
	if !cfg.EventsEnabled {
		return nil, nil
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: client,
		},
		logging.NewWatermillAdapter(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create redis publisher: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return publisher.Close()
		},
	})
	return events.NewWatermillPublisher(publisher, cfg.EventsTopic), nil
}

func newChallengeLedger(cfg config.Config, pg *store.PostgresStore) *service.ChallengeLedger {
	return service.NewChallengeLedger(pg, cfg.ChallengeTTL)
}

func newRateLimiter(cfg config.Config, rs *store.RedisStore) *service.RateLimiter {
	return service.NewRateLimiter(rs,
		service.RatePolicy{Limit: cfg.CallerRateLimit, Window: cfg.CallerRateWindow},
		service.RatePolicy{Limit: cfg.AccountRateLimit, Window: cfg.AccountRateWindow},
	)
}

func newSessionIssuer(cfg config.Config, tk ports.Tokenizer, rs *store.RedisStore) *service.SessionIssuer {
	return service.NewSessionIssuer(tk, rs, service.SessionConfig{
		AccessTTL:    cfg.AccessTokenTTL,
		RefreshTTL:   cfg.RefreshTokenTTL,
		SecureCookie: !cfg.Development(),
	})
}

func newAuthService(
	ledger *service.ChallengeLedger,
	limiter *service.RateLimiter,
	deriver *duid.Deriver,
	pg *store.PostgresStore,
	sessions *service.SessionIssuer,
	eventPub ports.EventPublisher,
	recorder *metrics.PrometheusRecorder,
	logger *zap.Logger,
) *service.AuthService {
	return service.NewAuthService(ledger, limiter, deriver, pg, sessions, eventPub, recorder, logger)
}

func newRouter(cfg config.Config, authService *service.AuthService, recorder *metrics.PrometheusRecorder, logger *zap.Logger) (*httptransport.Server, error) {
	router, err := httptransport.SetupRouter(authService, httptransport.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		TrustedProxies: cfg.TrustedProxies,
		Metrics:        recorder.Handler(),
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	return httptransport.NewServer(":"+cfg.HTTPPort, router), nil
}

func startHTTPServer(lc fx.Lifecycle, srv *httptransport.Server, logger *zap.Logger) {
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
