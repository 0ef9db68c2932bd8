//go:build integration

package learning_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/retrofutureitalia25/retrofuture-search/internal/learning"
	"github.com/retrofutureitalia25/retrofuture-search/internal/models"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate redis: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func TestRedisTermStore(t *testing.T) {
	ctx := context.Background()
	client, err := learning.NewRedisClient(ctx, startRedis(t))
	require.NoError(t, err)
	defer client.Close()

	store := learning.NewRedisTermStore(client, "test:")
	l := learning.NewLearner(store, learning.NewExtractor(curated, vintage), nil)

	added, err := l.OnRemoval(ctx, "Samsung Galaxy S21 Ultra")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"galaxy s21", "samsung galaxy"}, added)

	added, err = l.OnRemoval(ctx, "Galaxy S21")
	require.NoError(t, err)
	require.Empty(t, added)

	phrases, err := store.Phrases(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"galaxy s21", "samsung galaxy"}, phrases)

	raw, err := client.LRange(ctx, "test:learned:entries", 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, raw, 2)
	var first learning.Entry
	require.NoError(t, json.Unmarshal([]byte(raw[0]), &first))
	require.Equal(t, "Samsung Galaxy S21 Ultra", first.Title)
}

func TestRedisTermStoreConcurrentRecord(t *testing.T) {
	ctx := context.Background()
	client, err := learning.NewRedisClient(ctx, startRedis(t))
	require.NoError(t, err)
	defer client.Close()

	store := learning.NewRedisTermStore(client, "")

	const n = 10
	results := make(chan []string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added, err := store.Record(ctx, []string{"ps5"}, learning.Entry{ID: "x"})
			if err != nil {
				results <- nil
				return
			}
			results <- added
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for added := range results {
		winners += len(added)
	}
	require.Equal(t, 1, winners)
}

func TestRedisQueue(t *testing.T) {
	ctx := context.Background()
	client, err := learning.NewRedisClient(ctx, startRedis(t))
	require.NoError(t, err)
	defer client.Close()

	q := learning.NewRedisQueue(client, "")
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	n, err := q.Enqueue(ctx, []models.Candidate{{Term: "ceramica", SeenAt: t0.Add(time.Second)}, {Term: "dipinta", SeenAt: t0}})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = q.Enqueue(ctx, []models.Candidate{{Term: "ceramica", SeenAt: t0}})
	require.NoError(t, err)
	require.Zero(t, n)

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "dipinta", pending[0].Term)
}

func TestNewRedisClientBadURL(t *testing.T) {
	_, err := learning.NewRedisClient(context.Background(), "not a url")
	require.Error(t, err)
}
