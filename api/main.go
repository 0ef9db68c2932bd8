package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/retrofutureitalia25/retrofuture-search/internal/bootstrap"
	"github.com/retrofutureitalia25/retrofuture-search/internal/category"
	"github.com/retrofutureitalia25/retrofuture-search/internal/config"
	"github.com/retrofutureitalia25/retrofuture-search/internal/curation"
	"github.com/retrofutureitalia25/retrofuture-search/internal/elasticsearch"
	"github.com/retrofutureitalia25/retrofuture-search/internal/logger"
	"github.com/retrofutureitalia25/retrofuture-search/internal/metrics"
	"github.com/retrofutureitalia25/retrofuture-search/internal/models"
	"github.com/retrofutureitalia25/retrofuture-search/internal/search"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	m := metrics.New()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := m.Register(reg); err != nil {
		log.Error("register metrics", slog.Any("err", err))
		os.Exit(1)
	}

	pipeline, err := bootstrap.Build(ctx, cfg.Common, log, m)
	if err != nil {
		log.Error("init pipeline", slog.Any("err", err))
		os.Exit(1)
	}
	defer pipeline.Close()

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log,
		elasticsearch.WithRecencyTiers(pipeline.Policy.Search.RecencyTiers),
	)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	srv := &server{
		log:     log,
		cfg:     cfg,
		store:   esClient,
		search:  search.New(esClient, pipeline.Graph, pipeline.Policy.Search, log, search.WithObserver(m)),
		learner: pipeline.Learner,
		whitelist: search.Whitelist{
			Eras:       models.Eras,
			Categories: category.Taxonomy(),
			Sources:    cfg.Sources,
		},
		metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		now:     time.Now,
	}

	if cfg.DatabaseURL != "" {
		pool, err := curation.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("init postgres", slog.Any("err", err))
			os.Exit(1)
		}
		defer pool.Close()
		repo := curation.NewRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			log.Error("migrate curation schema", slog.Any("err", err))
			os.Exit(1)
		}
		srv.curation = repo
		log.Info("curation log enabled")
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}
