package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the server and the dashboard client.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	GRPC   GRPCConfig   `mapstructure:"grpc"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Market MarketConfig `mapstructure:"market"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Client ClientConfig `mapstructure:"client"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Port          string `mapstructure:"port"`
	Env           string `mapstructure:"env"` // "local" or "production"
	AllowedOrigin string `mapstructure:"allowed_origin"`
	StaticDir     string `mapstructure:"static_dir"`
}

type GRPCConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    string `mapstructure:"port"`
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"` // 0 issues tokens without expiry
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

type CacheConfig struct {
	QuotesTTL time.Duration `mapstructure:"quotes_ttl"`
	IndexTTL  time.Duration `mapstructure:"index_ttl"`
}

type MarketConfig struct {
	SymbolsFile string  `mapstructure:"symbols_file"`
	IndexBase   float64 `mapstructure:"index_base"`
	IndexPoints int     `mapstructure:"index_points"`
	SensexRatio float64 `mapstructure:"sensex_ratio"`
}

// RedisConfig enables the Redis snapshot sink when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
	Channel  string `mapstructure:"channel"`
}

// KafkaConfig enables the Kafka snapshot sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type ClientConfig struct {
	ServerURL      string        `mapstructure:"server_url"`
	GRPCAddr       string        `mapstructure:"grpc_addr"`
	StateFile      string        `mapstructure:"state_file"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	SearchDebounce time.Duration `mapstructure:"search_debounce"`
	ThresholdMode  string        `mapstructure:"threshold_mode"` // "strict" or "inclusive"
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from an optional .env file, an optional config
// file, environment variables and defaults, in increasing precedence from
// defaults to env.
func Load() (*Config, error) {
	v := viper.New()

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnv(v, v.AllKeys()...); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":3001")
	v.SetDefault("server.env", "local")
	v.SetDefault("server.allowed_origin", "http://localhost:3001")
	v.SetDefault("server.static_dir", "")

	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.port", ":9090")

	v.SetDefault("auth.jwt_secret", "your-secret-key")
	v.SetDefault("auth.token_ttl", time.Duration(0))
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("cache.quotes_ttl", 60*time.Second)
	v.SetDefault("cache.index_ttl", 300*time.Second)

	v.SetDefault("market.symbols_file", "")
	v.SetDefault("market.index_base", 19500.0)
	v.SetDefault("market.index_points", 50)
	v.SetDefault("market.sensex_ratio", 3.3)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", "quotes:latest")
	v.SetDefault("redis.channel", "quotes")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "market_quotes")

	v.SetDefault("client.server_url", "http://localhost:3001")
	v.SetDefault("client.grpc_addr", "127.0.0.1:9090")
	v.SetDefault("client.state_file", "")
	v.SetDefault("client.poll_interval", 60*time.Second)
	v.SetDefault("client.search_debounce", 300*time.Millisecond)
	v.SetDefault("client.threshold_mode", "strict")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// bindEnv maps flat env vars (SERVER_PORT) onto nested keys (server.port).
func bindEnv(v *viper.Viper, keys ...string) error {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env for key %s: %w", key, err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret cannot be empty")
	}
	if c.Cache.QuotesTTL <= 0 || c.Cache.IndexTTL <= 0 {
		return errors.New("cache ttls must be positive")
	}
	if c.Market.IndexPoints < 2 {
		return fmt.Errorf("market.index_points must be at least 2, got %d", c.Market.IndexPoints)
	}
	if c.Client.PollInterval <= 0 {
		return errors.New("client.poll_interval must be positive")
	}
	switch c.Client.ThresholdMode {
	case "strict", "inclusive":
	default:
		return fmt.Errorf("client.threshold_mode must be strict or inclusive, got %q", c.Client.ThresholdMode)
	}
	return nil
}
