package bootstrap_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/retrofutureitalia25/retrofuture-search/internal/bootstrap"
	"github.com/retrofutureitalia25/retrofuture-search/internal/config"
	"github.com/retrofutureitalia25/retrofuture-search/internal/logger"
	"github.com/retrofutureitalia25/retrofuture-search/internal/models"
)


func testConfig(t *testing.T) config.Common {
	dir := t.TempDir()
	data := filepath.Join("..", "..", "data")
	return config.Common{
		DataDir:         data,
		PolicyFile:      filepath.Join(data, "policy.yaml"),
		LearningBackend: config.BackendFile,
		LearnedFile:     filepath.Join(dir, "modern_learned.json"),
		QueueFile:       filepath.Join(dir, "queue.json"),
	}
}

func TestBuildWiresLearningIntoClassifier(t *testing.T) {
	ctx := context.Background()
	p, err := bootstrap.Build(ctx, testConfig(t), logger.Discard(), nil)
	require.NoError(t, err)
	defer p.Close()

	require.Positive(t, p.Graph.Size())

	title := "Soprammobile ceramica smaltata"
	before := p.Classifier.Classify(title, title)
	require.NotEqual(t, models.ClassNonVintage, before.Class)

	_, err = p.Learner.OnRemoval(ctx, title)
	require.NoError(t, err)

	after := p.Classifier.Classify(title, title)
	require.Equal(t, models.ClassNonVintage, after.Class)
	require.Equal(t, p.Policy.Classifier.ScoreModernLearned, after.Score)
}

func TestRefreshLearnedPicksUpOtherWriters(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	reader, err := bootstrap.Build(ctx, cfg, logger.Discard(), nil)
	require.NoError(t, err)
	writer, err := bootstrap.Build(ctx, cfg, logger.Discard(), nil)
	require.NoError(t, err)

	_, err = writer.Learner.OnRemoval(ctx, "BMW 320d Touring")
	require.NoError(t, err)

	n, err := reader.RefreshLearned(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, models.ClassNonVintage, reader.Classifier.Classify("Volante BMW 320d", "").Class)
}

func TestBuildRejectsBadPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.PolicyFile = filepath.Join("testdata", "bad_policy.yaml")
	_, err := bootstrap.Build(context.Background(), cfg, logger.Discard(), nil)
	require.Error(t, err)
}

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) Ping(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestWaitForElasticsearchRetries(t *testing.T) {
	p := &flakyPinger{failures: 2}
	err := bootstrap.WaitForElasticsearch(context.Background(), p, logger.Discard(), 5, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 3, p.calls)
}

func TestWaitForElasticsearchGivesUp(t *testing.T) {
	p := &flakyPinger{failures: 10}
	err := bootstrap.WaitForElasticsearch(context.Background(), p, logger.Discard(), 3, time.Millisecond)
	require.ErrorContains(t, err, "connection refused")
	require.Equal(t, 3, p.calls)
}

func TestWaitForElasticsearchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := bootstrap.WaitForElasticsearch(ctx, &flakyPinger{failures: 10}, logger.Discard(), 3, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}
