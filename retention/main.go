package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/retrofutureitalia25/retrofuture-search/internal/bootstrap"
	"github.com/retrofutureitalia25/retrofuture-search/internal/config"
	"github.com/retrofutureitalia25/retrofuture-search/internal/elasticsearch"
	"github.com/retrofutureitalia25/retrofuture-search/internal/logger"
)

type expirer interface {
	ExpireOlderThan(ctx context.Context, maxAge time.Duration, batchSize int, now time.Time) (int64, error)
}

func main() {
	log := logger.New("retention")
	cfg, err := config.LoadRetention()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}
	if err := bootstrap.WaitForElasticsearch(ctx, esClient, log, 10, 2*time.Second); err != nil {
		if ctx.Err() != nil {
			log.Info("shutdown signal received during startup")
			return
		}
		log.Error("failed to connect to elasticsearch after retries", slog.Any("err", err))
		os.Exit(1)
	}

	c, err := schedule(ctx, log, esClient, cfg)
	if err != nil {
		log.Error("schedule retention", slog.Any("err", err))
		os.Exit(1)
	}
	c.Start()

	log.Info("retention job running",
		slog.Duration("interval", cfg.Interval),
		slog.Duration("max_age", cfg.MaxAge),
	)

	// Run immediately on start, but don't fail if ES is temporarily unavailable
	runOnce(ctx, log, esClient, cfg, time.Now)

	<-ctx.Done()
	log.Info("shutdown signal received")
	<-c.Stop().Done()
}

// schedule registers the expiry job; overlapping runs are skipped.
func schedule(ctx context.Context, log *slog.Logger, es expirer, cfg *config.Retention) (*cron.Cron, error) {
	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	spec := fmt.Sprintf("@every %s", cfg.Interval)
	if _, err := c.AddFunc(spec, func() { runOnce(ctx, log, es, cfg, time.Now) }); err != nil {
		return nil, fmt.Errorf("cron.AddFunc %q: %w", spec, err)
	}
	return c, nil
}

func runOnce(ctx context.Context, log *slog.Logger, es expirer, cfg *config.Retention, now func() time.Time) int64 {
	subCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	expired, err := es.ExpireOlderThan(subCtx, cfg.MaxAge, cfg.BatchSize, now())
	if err != nil {
		log.Warn("retention run failed (will retry on next interval)", slog.Any("err", err))
		return 0
	}

	if expired > 0 {
		log.Info("retention run completed", slog.Int64("expired", expired))
	} else {
		log.Debug("retention run completed, no stale listings found")
	}
	return expired
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append([]any{slog.Any("err", err)}, keysAndValues...)...)
}
