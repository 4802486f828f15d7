// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Index, Corpus, Analyzer, Search, Snippet, Postgres,
// Redis, Kafka, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Index    IndexConfig    `yaml:"index"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Search   SearchConfig   `yaml:"search"`
	Snippet  SnippetConfig  `yaml:"snippet"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

const (
	BackendFile  = "file"
	BackendRedis = "redis"

	SourceDirectory = "dir"
	SourcePostgres  = "postgres"
)

// IndexConfig controls where the persisted index lives and how builds are
// parallelised.
type IndexConfig struct {
	Path      string `yaml:"path"`
	Backend   string `yaml:"backend"`
	RedisKey  string `yaml:"redisKey"`
	ChunkSize int    `yaml:"chunkSize"`
	Workers   int    `yaml:"workers"`
	// SaveAfterBuild persists every successful build.
	SaveAfterBuild bool `yaml:"saveAfterBuild"`
}

// CorpusConfig selects the document provider.
type CorpusConfig struct {
	Source    string `yaml:"source"`
	Dir       string `yaml:"dir"`
	Recursive bool   `yaml:"recursive"`
}

// AnalyzerConfig configures text normalisation. An empty StopWords list
// selects the built-in English list.
type AnalyzerConfig struct {
	StopWords      []string `yaml:"stopWords"`
	Stemmer        string   `yaml:"stemmer"`
	MinTokenLength int      `yaml:"minTokenLength"`
}

// SearchConfig controls ranking, fuzzy matching, caching and result limits.
type SearchConfig struct {
	K1               float64 `yaml:"k1"`
	B                float64 `yaml:"b"`
	FuzzyMaxDistance int     `yaml:"fuzzyMaxDistance"`
	MaxSuggestions   int     `yaml:"maxSuggestions"`
	CacheCapacity    int     `yaml:"cacheCapacity"`
	DefaultLimit     int     `yaml:"defaultLimit"`
	MaxResults       int     `yaml:"maxResults"`
}

// SnippetConfig controls snippet windows and highlight markers.
type SnippetConfig struct {
	Width      int    `yaml:"width"`
	LeadLength int    `yaml:"leadLength"`
	Pre        string `yaml:"pre"`
	Post       string `yaml:"post"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	DocumentQuery   string        `yaml:"documentQuery"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// KafkaConfig holds Kafka broker and topic settings. Publishing index events
// and listening for reloads are both off unless Enabled is set.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete string `yaml:"indexComplete"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values, with "~" expanded in filesystem paths.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, fmt.Errorf("expanding config path %s: %w", path, err)
		}
		data, err := os.ReadFile(expanded)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", expanded, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", expanded, err)
		}
	}
	applyEnvOverrides(cfg)

	var err error
	if cfg.Index.Path, err = homedir.Expand(cfg.Index.Path); err != nil {
		return nil, fmt.Errorf("expanding index path: %w", err)
	}
	if cfg.Corpus.Dir, err = homedir.Expand(cfg.Corpus.Dir); err != nil {
		return nil, fmt.Errorf("expanding corpus dir: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Index: IndexConfig{
			Path:           "data/infospark.idx",
			Backend:        BackendFile,
			RedisKey:       "infospark:index",
			ChunkSize:      64,
			Workers:        0,
			SaveAfterBuild: true,
		},
		Corpus: CorpusConfig{
			Source:    SourceDirectory,
			Dir:       "documents",
			Recursive: true,
		},
		Analyzer: AnalyzerConfig{
			Stemmer:        "snowball",
			MinTokenLength: 1,
		},
		Search: SearchConfig{
			K1:               1.5,
			B:                0.75,
			FuzzyMaxDistance: 2,
			MaxSuggestions:   5,
			CacheCapacity:    1000,
			DefaultLimit:     10,
			MaxResults:       100,
		},
		Snippet: SnippetConfig{
			Width:      40,
			LeadLength: 150,
			Pre:        "**",
			Post:       "**",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "infospark",
			User:            "infospark",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "infospark",
			Topics: KafkaTopics{
				IndexComplete: "infospark.index.complete",
			},
		},
	}
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.Index.Backend != BackendFile && c.Index.Backend != BackendRedis {
		problems = append(problems, fmt.Sprintf("index.backend must be %q or %q, got %q", BackendFile, BackendRedis, c.Index.Backend))
	}
	if c.Index.Backend == BackendFile && c.Index.Path == "" {
		problems = append(problems, "index.path is required for the file backend")
	}
	if c.Index.Backend == BackendRedis && c.Index.RedisKey == "" {
		problems = append(problems, "index.redisKey is required for the redis backend")
	}
	if c.Index.ChunkSize < 1 {
		problems = append(problems, "index.chunkSize must be at least 1")
	}
	if c.Index.Workers < 0 {
		problems = append(problems, "index.workers must not be negative")
	}
	switch c.Corpus.Source {
	case SourceDirectory:
		if c.Corpus.Dir == "" {
			problems = append(problems, "corpus.dir is required for the dir source")
		}
	case SourcePostgres:
	default:
		problems = append(problems, fmt.Sprintf("corpus.source must be %q or %q, got %q", SourceDirectory, SourcePostgres, c.Corpus.Source))
	}
	if c.Search.K1 < 0 {
		problems = append(problems, "search.k1 must not be negative")
	}
	if c.Search.B < 0 || c.Search.B > 1 {
		problems = append(problems, "search.b must be within [0, 1]")
	}
	if c.Search.FuzzyMaxDistance < 0 {
		problems = append(problems, "search.fuzzyMaxDistance must not be negative")
	}
	if c.Search.CacheCapacity < 0 {
		problems = append(problems, "search.cacheCapacity must not be negative")
	}
	if c.Search.DefaultLimit < 1 || c.Search.MaxResults < c.Search.DefaultLimit {
		problems = append(problems, "search.defaultLimit must be at least 1 and not exceed search.maxResults")
	}
	if c.Snippet.Width < 1 || c.Snippet.LeadLength < 1 {
		problems = append(problems, "snippet.width and snippet.leadLength must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		problems = append(problems, "kafka.brokers is required when kafka is enabled")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// applyEnvOverrides reads INFOSPARK_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INFOSPARK_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("INFOSPARK_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("INFOSPARK_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("INFOSPARK_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
	if v := os.Getenv("INFOSPARK_INDEX_PATH"); v != "" {
		cfg.Index.Path = v
	}
	if v := os.Getenv("INFOSPARK_INDEX_BACKEND"); v != "" {
		cfg.Index.Backend = v
	}
	if v := os.Getenv("INFOSPARK_INDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.Workers = n
		}
	}
	if v := os.Getenv("INFOSPARK_CORPUS_SOURCE"); v != "" {
		cfg.Corpus.Source = v
	}
	if v := os.Getenv("INFOSPARK_CORPUS_DIR"); v != "" {
		cfg.Corpus.Dir = v
	}
	if v := os.Getenv("INFOSPARK_SEARCH_CACHE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.CacheCapacity = n
		}
	}
	if v := os.Getenv("INFOSPARK_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("INFOSPARK_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("INFOSPARK_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("INFOSPARK_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("INFOSPARK_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("INFOSPARK_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("INFOSPARK_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("INFOSPARK_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("INFOSPARK_KAFKA_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = enabled
		}
	}
	if v := os.Getenv("INFOSPARK_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
}
