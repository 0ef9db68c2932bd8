package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/retrofutureitalia25/retrofuture-search/internal/bootstrap"
	"github.com/retrofutureitalia25/retrofuture-search/internal/config"
	"github.com/retrofutureitalia25/retrofuture-search/internal/dedupe"
	"github.com/retrofutureitalia25/retrofuture-search/internal/elasticsearch"
	"github.com/retrofutureitalia25/retrofuture-search/internal/learning"
	"github.com/retrofutureitalia25/retrofuture-search/internal/logger"
	"github.com/retrofutureitalia25/retrofuture-search/internal/metrics"
	"github.com/retrofutureitalia25/retrofuture-search/internal/models"
	"github.com/retrofutureitalia25/retrofuture-search/internal/processing"
)

const (
	defaultBatchID = "default"
	unknownSource  = "unknown"
)

// envelope is the message scrapers publish; a bare listing object is also accepted.
type envelope struct {
	Source  string            `json:"source"`
	BatchID string            `json:"batch_id"`
	Listing models.RawListing `json:"listing"`
}

type listingStore interface {
	UpsertListing(ctx context.Context, l models.Listing) (bool, error)
}

type ingester struct {
	log        *slog.Logger
	store      listingStore
	normalizer *processing.Normalizer
	batches    *dedupe.BatchSet
	queue      learning.CandidateQueue
	metrics    *metrics.Metrics
}

func main() {
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	m := metrics.New()
	pipeline, err := bootstrap.Build(ctx, cfg.Common, log, m)
	if err != nil {
		log.Error("init pipeline", slog.Any("err", err))
		os.Exit(1)
	}
	defer pipeline.Close()

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}
	if err := bootstrap.WaitForElasticsearch(ctx, esClient, log, 10, 2*time.Second); err != nil {
		log.Error("elasticsearch unavailable", slog.Any("err", err))
		os.Exit(1)
	}
	if err := esClient.EnsureIndex(ctx); err != nil {
		log.Error("ensure index", slog.Any("err", err))
		os.Exit(1)
	}

	ing := &ingester{
		log:   log,
		store: esClient,
		normalizer: processing.NewNormalizer(
			pipeline.Classifier,
			pipeline.Graph,
			pipeline.Vocab.Blacklist,
			processing.WithKeywords(cfg.KeywordLimit, cfg.KeywordMinLength),
		),
		batches: dedupe.NewBatchSet(cfg.DedupeCapacity, cfg.DedupeTTL),
		queue:   pipeline.Queue,
		metrics: m,
	}

	go refreshLearned(ctx, log, pipeline, cfg.LearnedRefresh)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit only
	})
	defer reader.Close()

	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaTopic + "_dlq",
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", cfg.KafkaTopic+"_dlq"),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		outcome, err := ing.processMessage(ctx, msg)
		m.IncIngest(outcome)
		if err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			if !sendToDLQ(ctx, log, dlqWriter, msg, err) {
				if ctx.Err() != nil {
					return
				}
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
				continue
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// sendToDLQ retries with exponential backoff and reports success.
func sendToDLQ(ctx context.Context, log *slog.Logger, w messageWriter, msg kafka.Message, cause error) bool {
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(append([]kafka.Header(nil), msg.Headers...),
			kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		),
	}

	for attempt := 0; attempt < 5; attempt++ {
		dlqErr := w.WriteMessages(ctx, dlqMsg)
		if dlqErr == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true
		}
		backoff := time.Duration(1<<uint(attempt)) * time.Second
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", dlqErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			log.Info("context canceled during DLQ retry")
			return false
		}
	}
	return false
}

// processMessage returns the ingest outcome. Only decode and storage
// failures are errors; rejected listings are counted and committed.
func (in *ingester) processMessage(ctx context.Context, msg kafka.Message) (string, error) {
	env, err := decodeEnvelope(msg)
	if err != nil {
		return metrics.OutcomeError, err
	}

	listing, err := in.normalizer.Normalize(env.Listing, env.Source)
	if err != nil {
		if errors.Is(err, processing.ErrRejected) {
			in.log.Debug("listing rejected",
				slog.String("source", env.Source),
				slog.String("reason", err.Error()),
			)
			return metrics.OutcomeRejected, nil
		}
		return metrics.OutcomeError, err
	}

	if in.batches.Observe(env.BatchID, listing.Hash) {
		in.log.Debug("duplicate in batch", slog.String("batch_id", env.BatchID), slog.String("hash", listing.Hash))
		return metrics.OutcomeDuplicate, nil
	}

	created, err := in.store.UpsertListing(ctx, *listing)
	if err != nil {
		// release the claim so a redelivery is not counted as a duplicate
		in.batches.Forget(env.BatchID, listing.Hash)
		return metrics.OutcomeError, err
	}

	if len(listing.Candidates) > 0 && in.queue != nil {
		n, err := in.queue.Enqueue(ctx, listing.Candidates)
		if err != nil {
			in.log.Warn("queue candidates", slog.Any("err", err), slog.String("hash", listing.Hash))
		} else if in.metrics != nil {
			in.metrics.AddCandidates(n)
		}
	}

	if !created {
		in.log.Debug("listing refreshed", slog.String("hash", listing.Hash))
		return metrics.OutcomeUpdated, nil
	}
	in.log.Info("listing indexed",
		slog.String("hash", listing.Hash),
		slog.String("title", listing.Title),
		slog.String("class", string(listing.VintageClass)),
		slog.String("era", listing.Era),
		slog.String("category", listing.Category),
	)
	return metrics.OutcomeInserted, nil
}

func decodeEnvelope(msg kafka.Message) (envelope, error) {
	var env envelope
	dec := json.NewDecoder(bytes.NewReader(msg.Value))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return envelope{}, fmt.Errorf("decode message: %w", err)
	}

	if env.Listing == nil {
		var raw models.RawListing
		dec := json.NewDecoder(bytes.NewReader(msg.Value))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return envelope{}, fmt.Errorf("decode listing: %w", err)
		}
		env.Listing = raw
		if env.BatchID == "" {
			env.BatchID = raw.First("batch_id")
		}
	}
	if len(env.Listing) == 0 {
		return envelope{}, errors.New("empty listing")
	}

	if env.Source == "" {
		env.Source = env.Listing.First("source", "fonte")
	}
	if env.Source == "" {
		env.Source = header(msg, "source")
	}
	if env.BatchID == "" {
		env.BatchID = header(msg, "batch_id")
	}

	env.Source = strings.ToLower(strings.TrimSpace(env.Source))
	if env.Source == "" {
		env.Source = unknownSource
	}
	if env.BatchID == "" {
		env.BatchID = defaultBatchID
	}
	return env, nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if strings.EqualFold(h.Key, key) {
			return strings.TrimSpace(string(h.Value))
		}
	}
	return ""
}

func refreshLearned(ctx context.Context, log *slog.Logger, p *bootstrap.Pipeline, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.RefreshLearned(ctx)
			if err != nil {
				log.Warn("refresh learned phrases", slog.Any("err", err))
				continue
			}
			log.Debug("learned phrases refreshed", slog.Int("count", n))
		}
	}
}
