// Package bootstrap wires the vocabularies, classifier and learning stores
// shared by the api and worker binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/retrofutureitalia25/retrofuture-search/internal/classifier"
	"github.com/retrofutureitalia25/retrofuture-search/internal/config"
	"github.com/retrofutureitalia25/retrofuture-search/internal/learning"
	"github.com/retrofutureitalia25/retrofuture-search/internal/logger"
	"github.com/retrofutureitalia25/retrofuture-search/internal/synonyms"
	"github.com/retrofutureitalia25/retrofuture-search/internal/vocab"
)

// Pipeline holds the long-lived, shared components.
type Pipeline struct {
	Policy     *config.Policy
	Vocab      *vocab.Bundle
	Graph      *synonyms.Graph
	Classifier *classifier.Classifier
	Terms      learning.TermStore
	Queue      learning.CandidateQueue
	Learner    *learning.Learner

	log     *slog.Logger
	closers []io.Closer
}

// Build loads the policy and vocabularies from cfg and opens the configured
// learning backend. obs may be nil.
func Build(ctx context.Context, cfg config.Common, log *slog.Logger, obs learning.Observer) (*Pipeline, error) {
	if log == nil {
		log = logger.Discard()
	}

	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}

	bundle := vocab.Load(cfg.DataDir, log)
	p := &Pipeline{
		Policy: policy,
		Vocab:  bundle,
		Graph:  synonyms.New(bundle.Synonyms),
		log:    log,
	}

	switch cfg.LearningBackend {
	case config.BackendRedis:
		client, err := learning.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, client)
		p.Terms = learning.NewRedisTermStore(client, "")
		p.Queue = learning.NewRedisQueue(client, "")
	default:
		p.Terms = learning.NewFileTermStore(cfg.LearnedFile, log)
		p.Queue = learning.NewFileQueue(cfg.QueueFile, log)
	}

	learned, err := p.Terms.Phrases(ctx)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("load learned phrases: %w", err)
	}

	curated := vocab.Flatten(bundle.Modern)
	p.Classifier = classifier.New(policy.Classifier, classifier.Vocabulary{
		Curated:   curated,
		Learned:   learned,
		Vintage:   bundle.Vintage,
		Blacklist: bundle.Blacklist,
		Synonyms:  bundle.Synonyms,
	})

	opts := []learning.Option{learning.WithUpdateHook(p.Classifier.SetLearned)}
	if obs != nil {
		opts = append(opts, learning.WithObserver(obs))
	}
	p.Learner = learning.NewLearner(p.Terms, learning.NewExtractor(curated, bundle.Vintage), log, opts...)

	log.Info("pipeline ready",
		slog.Int("synonyms", p.Graph.Size()),
		slog.Int("curated_modern", len(curated)),
		slog.Int("learned_modern", len(learned)),
		slog.String("learning_backend", cfg.LearningBackend),
		slog.String("data_dir", filepath.Clean(cfg.DataDir)),
	)
	return p, nil
}

// RefreshLearned reloads learned phrases written by other processes.
func (p *Pipeline) RefreshLearned(ctx context.Context) (int, error) {
	learned, err := p.Terms.Phrases(ctx)
	if err != nil {
		return 0, fmt.Errorf("refresh learned phrases: %w", err)
	}
	p.Classifier.SetLearned(learned)
	return len(learned), nil
}

// Close releases backend connections.
func (p *Pipeline) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// Pinger is satisfied by the Elasticsearch client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WaitForElasticsearch pings until success, doubling delay up to 30s between
// attempts. It returns ctx.Err() when canceled.
func WaitForElasticsearch(ctx context.Context, es Pinger, log *slog.Logger, maxRetries int, delay time.Duration) error {
	const maxDelay = 30 * time.Second
	var err error
	for i := 0; i < maxRetries; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = es.Ping(pingCtx)
		cancel()
		if err == nil {
			log.Info("connected to elasticsearch")
			return nil
		}
		log.Warn("elasticsearch ping failed, retrying",
			slog.Any("err", err),
			slog.Int("attempt", i+1),
			slog.Int("max_retries", maxRetries),
			slog.Duration("retry_in", delay),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return fmt.Errorf("elasticsearch unreachable after %d attempts: %w", maxRetries, err)
}
