package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ServeConfig holds configuration for the serve command.
type ServeConfig struct {
	Sync            Config
	Listen          string
	CORSOrigins     []string
	MetricsEnabled  bool
	ShutdownTimeout time.Duration
}

// LoadServe merges config file, environment variables, and flags into ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		setSyncDefaults(v)
		v.SetDefault("listen", ":8080")
		v.SetDefault("cors-origins", []string{"*"})
		v.SetDefault("metrics", true)
		v.SetDefault("shutdown-timeout", 10*time.Second)
	})
	if err != nil {
		return ServeConfig{}, err
	}

	cfg := ServeConfig{
		Sync:            syncConfig(v),
		Listen:          v.GetString("listen"),
		CORSOrigins:     getStringSlice(v, "cors-origins"),
		MetricsEnabled:  v.GetBool("metrics"),
		ShutdownTimeout: v.GetDuration("shutdown-timeout"),
	}
	// Requests name their own treasury and start block.
	cfg.Sync.FromBlock = nil

	if err := cfg.Sync.Validate(); err != nil {
		return ServeConfig{}, err
	}
	if cfg.Listen == "" {
		return ServeConfig{}, fmt.Errorf("listen address is required")
	}
	return cfg, nil
}
