package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/retrofutureitalia25/retrofuture-search/internal/config"
	"github.com/retrofutureitalia25/retrofuture-search/internal/logger"
)

type stubExpirer struct {
	maxAge    time.Duration
	batchSize int
	now       time.Time
	deadline  bool
	n         int64
	err       error
}

func (s *stubExpirer) ExpireOlderThan(ctx context.Context, maxAge time.Duration, batchSize int, now time.Time) (int64, error) {
	s.maxAge, s.batchSize, s.now = maxAge, batchSize, now
	_, s.deadline = ctx.Deadline()
	return s.n, s.err
}

func testConfig() *config.Retention {
	return &config.Retention{
		Interval:  time.Hour,
		MaxAge:    720 * time.Hour,
		BatchSize: 500,
		Timeout:   time.Minute,
	}
}

func TestRunOncePassesPolicy(t *testing.T) {
	es := &stubExpirer{n: 7}
	now := time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC)
	log := logger.Discard()

	got := runOnce(context.Background(), log, es, testConfig(), func() time.Time { return now })
	require.Equal(t, int64(7), got)
	require.Equal(t, 720*time.Hour, es.maxAge)
	require.Equal(t, 500, es.batchSize)
	require.Equal(t, now, es.now)
	require.True(t, es.deadline)
}

func TestRunOnceSwallowsErrors(t *testing.T) {
	es := &stubExpirer{err: errors.New("cluster red")}
	log := logger.Discard()
	require.Zero(t, runOnce(context.Background(), log, es, testConfig(), time.Now))
}

func TestScheduleRegistersJob(t *testing.T) {
	log := logger.Discard()
	c, err := schedule(context.Background(), log, &stubExpirer{}, testConfig())
	require.NoError(t, err)
	require.Len(t, c.Entries(), 1)
}
