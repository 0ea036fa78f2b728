package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultRPCURL      = "http://localhost:8545"
	defaultErrorsPath  = "./data/decode_errors.jsonl"
	defaultBatchSize   = uint64(2000)
	defaultConcurrency = 4
)

// Config holds the sync settings loaded from flags, env, or config file.
type Config struct {
	RPCURL           string
	PGDSN            string
	Address          string
	TreasuryID       string
	FromBlock        *uint64
	BatchSize        uint64
	MaxRetries       int
	RetryBackoff     time.Duration
	TimestampWorkers int
	RPCRateLimit     int
	Timeout          time.Duration
	Errors           string
	AllowRPCOverride bool
	Concurrency      int
	LogLevel         string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, setSyncDefaults)
	if err != nil {
		return Config{}, err
	}

	cfg := syncConfig(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings every sync entry point depends on.
func (c Config) Validate() error {
	if c.PGDSN == "" {
		return fmt.Errorf("pg-dsn is required")
	}
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if c.BatchSize == 0 {
		return fmt.Errorf("batch-size must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max-retries must not be negative")
	}
	if c.TimestampWorkers <= 0 {
		return fmt.Errorf("timestamp-workers must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	return nil
}

func setSyncDefaults(v *viper.Viper) {
	v.SetDefault("rpc", defaultRPCURL)
	v.SetDefault("batch-size", defaultBatchSize)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("timestamp-workers", 4)
	v.SetDefault("rpc-rate-limit", 0)
	v.SetDefault("timeout", 5*time.Minute)
	v.SetDefault("errors", defaultErrorsPath)
	v.SetDefault("allow-rpc-override", false)
	v.SetDefault("concurrency", defaultConcurrency)
	v.SetDefault("log-level", "info")
}

func syncConfig(v *viper.Viper) Config {
	cfg := Config{
		RPCURL:           strings.TrimSpace(v.GetString("rpc")),
		PGDSN:            v.GetString("pg-dsn"),
		Address:          strings.TrimSpace(v.GetString("address")),
		TreasuryID:       strings.TrimSpace(v.GetString("treasury-id")),
		BatchSize:        v.GetUint64("batch-size"),
		MaxRetries:       v.GetInt("max-retries"),
		RetryBackoff:     v.GetDuration("retry-backoff"),
		TimestampWorkers: v.GetInt("timestamp-workers"),
		RPCRateLimit:     v.GetInt("rpc-rate-limit"),
		Timeout:          v.GetDuration("timeout"),
		Errors:           v.GetString("errors"),
		AllowRPCOverride: v.GetBool("allow-rpc-override"),
		Concurrency:      v.GetInt("concurrency"),
		LogLevel:         v.GetString("log-level"),
	}

	// Only an explicit value overrides the stored cursor; 0 is a valid start block.
	if v.IsSet("from") {
		from := v.GetUint64("from")
		cfg.FromBlock = &from
	}
	return cfg
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(*viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	defaults(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
