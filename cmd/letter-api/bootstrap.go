package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/LetterTrack/config"
	"github.com/BearBump/LetterTrack/internal/broker/kafka"
	"github.com/BearBump/LetterTrack/internal/cache/rediscache"
	"github.com/BearBump/LetterTrack/internal/integrations/laposte"
	"github.com/BearBump/LetterTrack/internal/integrations/laposte/fake"
	"github.com/BearBump/LetterTrack/internal/services/letters"
	"github.com/BearBump/LetterTrack/internal/storage/pgletters"
)

type letterAPIApp struct {
	ctx     context.Context
	cancel  context.CancelFunc
	opts    letterAPIOpts
	svc     *letters.Service
	closeDB func()
}

func mustBootstrapLetterAPI() *letterAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.LetterTrack.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	topic := cfg.Kafka.LetterStatusUpdatedTopicName
	if topic == "" {
		topic = "letter.status_updated"
	}
	cacheTTL := time.Duration(cfg.LetterTrack.CurrentStatusTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	providerTimeout := time.Duration(cfg.LetterTrack.ProviderTimeoutSeconds) * time.Second

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)

	// По умолчанию используем реальный API La Poste, если задан base_url.
	// Иначе — fallback на локальный fake.
	var provider laposte.Fetcher
	if cfg.LetterTrack.LaPosteBaseURL != "" {
		provider = laposte.New(cfg.LetterTrack.LaPosteBaseURL, cfg.LetterTrack.LaPosteAPIKey, providerTimeout)
	} else {
		provider = fake.New()
	}

	svc := letters.New(st, provider).
		WithCache(rc, cacheTTL).
		WithProducer(producer, topic).
		WithRateLimit(rl, int64(cfg.LetterTrack.SweepRateLimitPerMinute)).
		WithSweepInterval(time.Duration(cfg.LetterTrack.SweepIntervalSeconds) * time.Second)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &letterAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: letterAPIOpts{
			httpAddr: httpAddr,
		},
		svc:     svc,
		closeDB: st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgletters.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgletters.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *letterAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *letterAPIApp) Run() error {
	return runLetterAPI(a.ctx, a.opts, a.svc)
}
