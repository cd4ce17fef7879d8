// Package config loads the settings of rosa-bag from an optional YAML file and ROSA_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "ROSA"

// Config is the root of the configuration.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Topics TopicsConfig `mapstructure:"topics"`
	Export ExportConfig `mapstructure:"export"`
	Print  PrintConfig  `mapstructure:"print"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console, json
}

type TopicsConfig struct {
	// Namespace the robot topics are published under, e.g. /WS1
	Namespace string `mapstructure:"namespace"`
}

type ExportConfig struct {
	Dir         string `mapstructure:"dir"`
	Compression string `mapstructure:"compression"` // none, zstd
}

type PrintConfig struct {
	Style string `mapstructure:"style"` // yaml, pp
	Color bool   `mapstructure:"color"`
}

// Load reads the configuration. An explicit path must exist, otherwise rosa.yaml is looked up
// in the working directory and ./configs, and a missing file falls back to env and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rosa")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// ROSA_EXPORT_DIR=/tmp/out overrides export.dir
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("topics.namespace", "/WS1")
	v.SetDefault("export.dir", ".")
	v.SetDefault("export.compression", "none")
	v.SetDefault("print.style", "yaml")
	v.SetDefault("print.color", false)
}
