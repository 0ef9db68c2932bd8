package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/retrofutureitalia25/retrofuture-search/internal/models"
	"github.com/retrofutureitalia25/retrofuture-search/internal/textnorm"
)

// DefaultKeyPrefix namespaces every key this package writes.
const DefaultKeyPrefix = "retrofuture:"

const (
	phrasesKey = "learned:phrases"
	entriesKey = "learned:entries"
	queueKey   = "learning:queue"
)

// NewRedisClient parses url, connects and pings.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", url, err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// RedisTermStore keeps phrases in a set and entries in a list.
type RedisTermStore struct {
	client *redis.Client
	prefix string
}

// NewRedisTermStore uses DefaultKeyPrefix when prefix is empty.
func NewRedisTermStore(client *redis.Client, prefix string) *RedisTermStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisTermStore{client: client, prefix: prefix}
}

func (s *RedisTermStore) Phrases(ctx context.Context) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.prefix+phrasesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers: %w", err)
	}
	return textnorm.Unique(members), nil
}

// Record relies on SADD reporting 1 only for the client that inserted a
// member, so concurrent writers agree on who added what.
func (s *RedisTermStore) Record(ctx context.Context, phrases []string, entry Entry) ([]string, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("marshal entry: %w", err)
	}

	clean := textnorm.Unique(canonical(phrases))
	cmds := make([]*redis.IntCmd, len(clean))
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, p := range clean {
			cmds[i] = pipe.SAdd(ctx, s.prefix+phrasesKey, p)
		}
		pipe.RPush(ctx, s.prefix+entriesKey, payload)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record pipeline: %w", err)
	}

	var added []string
	for i, cmd := range cmds {
		if cmd.Val() == 1 {
			added = append(added, clean[i])
		}
	}
	return added, nil
}

// RedisQueue keeps one candidate per term in a hash.
type RedisQueue struct {
	client *redis.Client
	prefix string
}

// NewRedisQueue uses DefaultKeyPrefix when prefix is empty.
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisQueue{client: client, prefix: prefix}
}

func (q *RedisQueue) Enqueue(ctx context.Context, candidates []models.Candidate) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}
	var cmds []*redis.BoolCmd
	_, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, c := range candidates {
			if c.Term == "" {
				continue
			}
			payload, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("marshal candidate: %w", err)
			}
			cmds = append(cmds, pipe.HSetNX(ctx, q.prefix+queueKey, c.Term, payload))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("enqueue pipeline: %w", err)
	}

	n := 0
	for _, cmd := range cmds {
		if cmd.Val() {
			n++
		}
	}
	return n, nil
}

func (q *RedisQueue) Pending(ctx context.Context) ([]models.Candidate, error) {
	raw, err := q.client.HGetAll(ctx, q.prefix+queueKey).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall: %w", err)
	}
	out := make([]models.Candidate, 0, len(raw))
	for _, v := range raw {
		var c models.Candidate
		if err := json.Unmarshal([]byte(v), &c); err != nil {
			continue
		}
		out = append(out, c)
	}
	sortCandidates(out)
	return out, nil
}

func canonical(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		out = append(out, textnorm.Phrase(p))
	}
	return out
}
