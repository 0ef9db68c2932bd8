package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Learned-term backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Common contains parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string

	DataDir    string
	PolicyFile string

	LearningBackend string
	LearnedFile     string
	QueueFile       string
	RedisURL        string
}

// Worker holds configuration for the Kafka -> Elasticsearch listing worker.
type Worker struct {
	Common
	KafkaBrokers     []string
	KafkaTopic       string
	KafkaConsumer    string
	KeywordLimit     int
	KeywordMinLength int
	DedupeCapacity   int
	DedupeTTL        time.Duration
	LearnedRefresh   time.Duration
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr       string
	DefaultPage    int
	RequestTimeout time.Duration
	DatabaseURL    string
	SiteURL        string
	Sources        []string
}

// Retention configures the expiry sweep.
type Retention struct {
	Common
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
	Timeout   time.Duration
}

var dotenvOnce sync.Once

// loadDotEnv reads ENV_FILE (default .env) once. Variables already set in
// the environment win; a missing file is ignored.
func loadDotEnv() error {
	var err error
	dotenvOnce.Do(func() {
		path := getEnv("ENV_FILE", ".env")
		if loadErr := godotenv.Load(path); loadErr != nil && !errors.Is(loadErr, fs.ErrNotExist) {
			err = fmt.Errorf("load %s: %w", path, loadErr)
		}
	})
	return err
}

func loadCommon() (Common, error) {
	if err := loadDotEnv(); err != nil {
		return Common{}, err
	}
	dataDir := getEnv("DATA_DIR", "data")
	c := Common{
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "listings"),
		DataDir:            dataDir,
		PolicyFile:         getEnv("POLICY_FILE", filepath.Join(dataDir, "policy.yaml")),
		LearningBackend:    strings.ToLower(getEnv("LEARNING_BACKEND", BackendFile)),
		LearnedFile:        getEnv("LEARNED_FILE", filepath.Join(dataDir, "modern_learned.json")),
		QueueFile:          getEnv("QUEUE_FILE", filepath.Join(dataDir, "learning_queue.json")),
		RedisURL:           getEnv("REDIS_URL", ""),
	}

	switch c.LearningBackend {
	case BackendFile:
	case BackendRedis:
		if c.RedisURL == "" {
			return Common{}, fmt.Errorf("REDIS_URL is required when LEARNING_BACKEND=redis")
		}
	default:
		return Common{}, fmt.Errorf("LEARNING_BACKEND must be %q or %q, got %q", BackendFile, BackendRedis, c.LearningBackend)
	}
	return c, nil
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}
	c := &Worker{
		Common:           common,
		KafkaBrokers:     splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "listings_raw"),
		KafkaConsumer:    getEnv("KAFKA_CONSUMER_GROUP", "listing-worker"),
		KeywordLimit:     getInt("WORKER_KEYWORD_LIMIT", 12),
		KeywordMinLength: getInt("WORKER_KEYWORD_MIN_LEN", 2),
		DedupeCapacity:   getInt("WORKER_DEDUPE_CAPACITY", 50000),
		DedupeTTL:        getDuration("WORKER_DEDUPE_TTL", "6h"),
		LearnedRefresh:   getDuration("WORKER_LEARNED_REFRESH", "5m"),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}
	if c.KeywordLimit <= 0 {
		return nil, fmt.Errorf("WORKER_KEYWORD_LIMIT must be positive")
	}
	if c.KeywordMinLength < 0 {
		return nil, fmt.Errorf("WORKER_KEYWORD_MIN_LEN cannot be negative")
	}
	if c.LearnedRefresh <= 0 {
		return nil, fmt.Errorf("WORKER_LEARNED_REFRESH must be positive")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}
	c := &API{
		Common:         common,
		BindAddr:       getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		DefaultPage:    getInt("API_PAGE_SIZE", 24),
		RequestTimeout: getDuration("API_REQUEST_TIMEOUT", "5s"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		SiteURL:        strings.TrimRight(getEnv("SITE_URL", "http://localhost:8080"), "/"),
		Sources:        splitAndTrim(strings.ToLower(getEnv("SEARCH_SOURCES", "subito,ebay,vinted,wallapop,facebook"))),
	}

	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.RequestTimeout <= 0 {
		return nil, fmt.Errorf("API_REQUEST_TIMEOUT must be positive")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}
	c := &Retention{
		Common:    common,
		Interval:  getDuration("RETENTION_INTERVAL", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "720h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
		Timeout:   getDuration("RETENTION_TIMEOUT", "10m"),
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}
	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_INTERVAL must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
