package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPC             map[string]string
	StateView       map[string]string
	BatchSize       int
	SolanaBatchSize int
	Concurrency     int
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryMaxDelay   time.Duration
	RPCTimeout      time.Duration
	TickRange       int32
	MergeDistance   int32
	V2Range         float64
	Levels          int
	MaxLevels       int
	Cache           string
	CacheSize       int
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	DetectTTL       time.Duration
	TokenTTL        time.Duration
	DepthTTL        time.Duration
	PGDSN           string
	Out             string
	LogLevel        string
}

// LoadDotEnv loads a .env file into the process environment. A missing
// file is not an error; variables already set are kept.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DEPTH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("batch-size", 256)
	v.SetDefault("solana-batch-size", 100)
	v.SetDefault("concurrency", 4)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", time.Second)
	v.SetDefault("retry-max-delay", 10*time.Second)
	v.SetDefault("rpc-timeout", 30*time.Second)
	v.SetDefault("tick-range", 5000)
	v.SetDefault("merge-distance", 0)
	v.SetDefault("v2-range", 0.2)
	v.SetDefault("levels", 50)
	v.SetDefault("max-levels", 100)
	v.SetDefault("cache", "memory")
	v.SetDefault("cache-size", 1000)
	v.SetDefault("redis-addr", "localhost:6379")
	v.SetDefault("redis-db", 0)
	v.SetDefault("detect-ttl", 24*time.Hour)
	v.SetDefault("token-ttl", time.Hour)
	v.SetDefault("depth-ttl", 5*time.Second)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPC:             getStringMap(v, "rpc"),
		StateView:       getStringMap(v, "stateview"),
		BatchSize:       v.GetInt("batch-size"),
		SolanaBatchSize: v.GetInt("solana-batch-size"),
		Concurrency:     v.GetInt("concurrency"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		RetryMaxDelay:   v.GetDuration("retry-max-delay"),
		RPCTimeout:      v.GetDuration("rpc-timeout"),
		TickRange:       v.GetInt32("tick-range"),
		MergeDistance:   v.GetInt32("merge-distance"),
		V2Range:         v.GetFloat64("v2-range"),
		Levels:          v.GetInt("levels"),
		MaxLevels:       v.GetInt("max-levels"),
		Cache:           strings.ToLower(v.GetString("cache")),
		CacheSize:       v.GetInt("cache-size"),
		RedisAddr:       v.GetString("redis-addr"),
		RedisPassword:   v.GetString("redis-password"),
		RedisDB:         v.GetInt("redis-db"),
		DetectTTL:       v.GetDuration("detect-ttl"),
		TokenTTL:        v.GetDuration("token-ttl"),
		DepthTTL:        v.GetDuration("depth-ttl"),
		PGDSN:           v.GetString("pg-dsn"),
		Out:             v.GetString("out"),
		LogLevel:        v.GetString("log-level"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Cache {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported cache backend %q", c.Cache)
	}
	if c.BatchSize <= 0 || c.SolanaBatchSize <= 0 {
		return fmt.Errorf("batch sizes must be greater than zero")
	}
	if c.V2Range <= 0 || c.V2Range >= 1 {
		return fmt.Errorf("v2-range must be in (0, 1)")
	}
	return nil
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return lowerKeys(typed)
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[strings.ToLower(k)] = fmt.Sprintf("%v", v)
		}
		return out
	case []string:
		return parseStringMap(strings.Join(typed, ","))
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func lowerKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = v
	}
	return out
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	pairs := strings.Split(input, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
