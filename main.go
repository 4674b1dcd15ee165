package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	configx "github.com/tanpawarit/money-tracker/pkg/config"
	databasex "github.com/tanpawarit/money-tracker/pkg/database"
	_ "github.com/tanpawarit/money-tracker/pkg/logger/autoload"
	cachex "github.com/tanpawarit/money-tracker/tracker/cache"
	"github.com/tanpawarit/money-tracker/tracker/conversation"
	promptx "github.com/tanpawarit/money-tracker/tracker/prompt"
	statex "github.com/tanpawarit/money-tracker/tracker/state"
	storex "github.com/tanpawarit/money-tracker/tracker/store"
)

type AppConfig struct {
	SessionID string `split_words:"true" default:"console"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Error().Err(err).Msg("money tracker stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	appCfg := configx.MustNew[AppConfig]("APP")

	dbCfg := configx.MustNew[databasex.Config]("DB")
	db, err := databasex.Open(*dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	entities, err := storex.New(db)
	if err != nil {
		return err
	}
	if err := entities.Migrate(ctx); err != nil {
		return err
	}

	cacheCfg := configx.MustNew[cachex.Config]("CACHE")
	cached, err := cachex.New(entities, *cacheCfg)
	if err != nil {
		return err
	}

	sessionCfg := configx.MustNew[statex.Config]("SESSION")
	sessions, err := newSessionStore(ctx, *sessionCfg)
	if err != nil {
		return err
	}

	engineCfg := configx.MustNew[conversation.Config]("ENGINE")
	engine, err := conversation.New(cached, sessions, promptx.MustLoadPromptSet(), *engineCfg)
	if err != nil {
		return err
	}

	log.Info().
		Str("db_driver", dbCfg.Driver).
		Str("session_backend", string(sessionCfg.Backend)).
		Msg("money tracker ready")

	return runConsole(ctx, engine, os.Stdin, os.Stdout, appCfg.SessionID)
}

func newSessionStore(ctx context.Context, cfg statex.Config) (statex.Store, error) {
	opts := []statex.StoreOption{
		statex.WithTTL(cfg.TTL),
		statex.WithKeyPrefix(cfg.KeyPrefix),
	}

	switch cfg.Backend {
	case statex.BackendMemory, "":
		return statex.NewMemoryStore(cfg.CleanupInterval, opts...)
	case statex.BackendRedis:
		client, err := statex.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return statex.NewRedisStore(client, opts...)
	case statex.BackendUpstash:
		upstashCfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH")
		return statex.NewUpstashRedisStore(*upstashCfg, opts...)
	default:
		return nil, fmt.Errorf("unsupported session backend %q", cfg.Backend)
	}
}
