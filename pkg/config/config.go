package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"SignalBT/pkg/util"
)

type Provider struct {
	Name    string        `yaml:"name"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type Config struct {
	Environment string `yaml:"environment"`
	Log         struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		Output     string `yaml:"output"`
		TimeFormat string `yaml:"time_format"`
		Collector  struct {
			Enabled  bool          `yaml:"enabled"`
			Interval time.Duration `yaml:"interval"`
			Topic    string        `yaml:"topic"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Server struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		RateLimit       struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Extraction struct {
		QuoteAsset          string              `yaml:"quote_asset"`
		QuoteSuffixes       []string            `yaml:"quote_suffixes"`
		DefaultLeverage     float64             `yaml:"default_leverage"`
		MaxLeverage         float64             `yaml:"max_leverage"`
		LineCap             int                 `yaml:"line_cap"`
		ConfidenceThreshold float64             `yaml:"confidence_threshold"`
		MergePolicy         string              `yaml:"merge_policy"`
		Keywords            map[string][]string `yaml:"keywords"`
		Blacklist           []string            `yaml:"blacklist"`
		Penalties           struct {
			MissingTargets  float64 `yaml:"missing_targets"`
			MissingStop     float64 `yaml:"missing_stop"`
			MissingLeverage float64 `yaml:"missing_leverage"`
			AmbiguousSide   float64 `yaml:"ambiguous_side"`
		} `yaml:"penalties"`
	} `yaml:"extraction"`
	Resolver struct {
		Enabled        bool          `yaml:"enabled"`
		Providers      []Provider    `yaml:"providers"`
		Attempts       int           `yaml:"attempts"`
		BackoffMin     time.Duration `yaml:"backoff_min"`
		BackoffMax     time.Duration `yaml:"backoff_max"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		MaxConcurrent  int           `yaml:"max_concurrent"`
		RPS            float64       `yaml:"rps"`
		Burst          int           `yaml:"burst"`
		AcquireTimeout time.Duration `yaml:"acquire_timeout"`
		Temperature    float64       `yaml:"temperature"`
		MaxTokens      int           `yaml:"max_tokens"`
		Breaker        struct {
			ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
			OpenTimeout         time.Duration `yaml:"open_timeout"`
		} `yaml:"breaker"`
		Cache struct {
			Enabled    bool          `yaml:"enabled"`
			Backend    string        `yaml:"backend"`
			TTL        time.Duration `yaml:"ttl"`
			MemorySize int           `yaml:"memory_size"`
		} `yaml:"cache"`
	} `yaml:"resolver"`
	Backtest struct {
		TieBreak  string        `yaml:"tie_break"`
		Horizon   time.Duration `yaml:"horizon"`
		Workers   int           `yaml:"workers"`
		Timeframe string        `yaml:"timeframe"`
		Database  string        `yaml:"price_database"`
	} `yaml:"backtest"`
	Ingest struct {
		Sink        string  `yaml:"sink"`
		AllowAI     bool    `yaml:"allow_ai"`
		ChannelRate float64 `yaml:"channel_rate"`
		BufferSize  int     `yaml:"buffer_size"`
		MaxTextLen  int     `yaml:"max_text_len"`
	} `yaml:"ingest"`
	Kafka struct {
		Brokers       []string `yaml:"brokers"`
		MessagesTopic string   `yaml:"messages_topic"`
		SignalsTopic  string   `yaml:"signals_topic"`
		ResultsTopic  string   `yaml:"results_topic"`
		RequiredAcks  int      `yaml:"required_acks"`
		Compression   string   `yaml:"compression"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Relay struct {
		Enabled        bool          `yaml:"enabled"`
		URL            string        `yaml:"url"`
		Token          string        `yaml:"token"`
		Channels       []string      `yaml:"channels"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"relay"`
}

// Default returns a configuration usable without a file, e.g. by the batch commands.
func Default() *Config {
	var c Config
	c.Environment = "development"
	c.Log.Level = "info"
	c.Log.Format = "console"
	c.Log.Output = "stderr"
	c.Log.Collector.Interval = time.Minute
	c.Log.Collector.Topic = "logs"

	c.Server.Port = 8080
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 5 * time.Minute
	c.Server.ShutdownTimeout = 15 * time.Second
	c.Metrics.Enabled = true
	c.Metrics.Path = "/metrics"

	c.Extraction.QuoteAsset = "USDT"
	c.Extraction.DefaultLeverage = 15
	c.Extraction.MaxLeverage = 125
	c.Extraction.LineCap = 2
	c.Extraction.ConfidenceThreshold = 0.7
	c.Extraction.MergePolicy = "auto"
	c.Extraction.Penalties.MissingTargets = 0.2
	c.Extraction.Penalties.MissingStop = 0.2
	c.Extraction.Penalties.MissingLeverage = 0.1
	c.Extraction.Penalties.AmbiguousSide = 0.2

	c.Resolver.Attempts = 3
	c.Resolver.BackoffMin = time.Second
	c.Resolver.BackoffMax = 2 * time.Second
	c.Resolver.RequestTimeout = 60 * time.Second
	c.Resolver.MaxConcurrent = 4
	c.Resolver.AcquireTimeout = 30 * time.Second
	c.Resolver.Temperature = 0.1
	c.Resolver.MaxTokens = 500
	c.Resolver.Breaker.ConsecutiveFailures = 3
	c.Resolver.Breaker.OpenTimeout = time.Minute
	c.Resolver.Cache.Backend = "memory"
	c.Resolver.Cache.TTL = 24 * time.Hour
	c.Resolver.Cache.MemorySize = 1000

	c.Backtest.TieBreak = "stop_first"
	c.Backtest.Horizon = 7 * 24 * time.Hour
	c.Backtest.Workers = 8
	c.Backtest.Timeframe = "1m"
	c.Backtest.Database = "market"

	c.Ingest.Sink = "both"
	c.Ingest.AllowAI = true
	c.Ingest.ChannelRate = 5
	c.Ingest.BufferSize = 1000
	c.Ingest.MaxTextLen = 8000

	c.Kafka.MessagesTopic = "messages"
	c.Kafka.SignalsTopic = "signals"
	c.Kafka.ResultsTopic = "results"
	c.Kafka.RequiredAcks = 1
	c.Kafka.Compression = "snappy"
	c.Kafka.Consumer.GroupID = "signalbt"
	c.Kafka.Consumer.Workers = 4

	c.ClickHouse.Host = "localhost"
	c.ClickHouse.Port = 9000
	c.ClickHouse.Database = "signalbt"
	c.ClickHouse.User = "default"

	c.Redis.Addr = "localhost:6379"
	c.Relay.ReconnectDelay = 5 * time.Second
	c.Relay.PingInterval = 30 * time.Second
	return &c
}

// Load reads and parses a YAML configuration file on top of Default.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads .env (if present), then the YAML file, then applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadDefaultWithEnv is LoadWithEnv without a file: defaults plus .env and
// environment overrides. The batch commands use it when no config is given.
func LoadDefaultWithEnv() (*Config, error) {
	_ = godotenv.Load()

	c := Default()
	c.ApplyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides selected fields from the environment.
// Provider API keys are read from <NAME>_API_KEY, e.g. GROQ_API_KEY.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitCSV(v)
	}
	if v := os.Getenv("INGEST_SINK"); v != "" {
		c.Ingest.Sink = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("RELAY_TOKEN"); v != "" {
		c.Relay.Token = v
	}
	if v := os.Getenv("RELAY_CHANNELS"); v != "" {
		c.Relay.Channels = util.SplitCSV(v)
	}
	if v := os.Getenv("BACKTEST_WORKERS"); v != "" {
		c.Backtest.Workers = util.ParseIntDefault(v, c.Backtest.Workers)
	}
	if v := os.Getenv("RESOLVER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Resolver.Enabled = b
		}
	}
	for i := range c.Resolver.Providers {
		p := &c.Resolver.Providers[i]
		key := strings.ToUpper(strings.ReplaceAll(p.Name, "-", "_")) + "_API_KEY"
		if v := os.Getenv(key); v != "" {
			p.APIKey = v
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Ingest.Sink {
	case "kafka", "clickhouse", "both":
	default:
		return fmt.Errorf("ingest.sink must be 'kafka', 'clickhouse' or 'both', got '%s'", c.Ingest.Sink)
	}
	switch c.Backtest.TieBreak {
	case "", "stop_first", "target_first":
	default:
		return fmt.Errorf("backtest.tie_break must be 'stop_first' or 'target_first', got '%s'", c.Backtest.TieBreak)
	}
	switch c.Backtest.Timeframe {
	case "", "1s", "1m", "5m":
	default:
		return fmt.Errorf("backtest.timeframe must be 1s, 1m or 5m, got '%s'", c.Backtest.Timeframe)
	}
	switch c.Extraction.MergePolicy {
	case "", "auto", "gap_fill", "replace":
	default:
		return fmt.Errorf("extraction.merge_policy must be auto, gap_fill or replace, got '%s'", c.Extraction.MergePolicy)
	}
	if t := c.Extraction.ConfidenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("extraction.confidence_threshold must be within [0,1], got %v", t)
	}
	if c.Extraction.MaxLeverage > 0 && c.Extraction.DefaultLeverage > c.Extraction.MaxLeverage {
		return fmt.Errorf("extraction.default_leverage exceeds max_leverage")
	}
	if c.Resolver.Enabled && len(c.Resolver.Providers) == 0 {
		return fmt.Errorf("resolver.providers cannot be empty when resolver is enabled")
	}
	for i, p := range c.Resolver.Providers {
		if p.BaseURL == "" || p.Model == "" {
			return fmt.Errorf("resolver.providers[%d]: base_url and model are required", i)
		}
	}
	if c.Resolver.Cache.Enabled {
		switch c.Resolver.Cache.Backend {
		case "memory", "redis", "layered":
		default:
			return fmt.Errorf("resolver.cache.backend must be 'memory', 'redis' or 'layered', got '%s'", c.Resolver.Cache.Backend)
		}
	}
	if c.Relay.Enabled && c.Relay.URL == "" {
		return fmt.Errorf("relay.url is required when relay is enabled")
	}
	return nil
}
