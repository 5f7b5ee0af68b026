// Package config resolves expensectl settings from flags, EXPENSECTL_*
// environment variables, and an optional .expensectl.yaml file, in that order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"expensectl/internal/store"
)

const (
	EnvPrefix     = "EXPENSECTL"
	EnvConfigPath = "EXPENSECTL_CONFIG_PATH"
	fileName      = ".expensectl"
)

const (
	KeyServer          = "server"
	KeyToken           = "token"
	KeyStateDir        = "state_dir"
	KeyFormat          = "format"
	KeyBulkConcurrency = "bulk_concurrency"
	KeyLogFile         = "log_file"
	KeyRequestTimeout  = "request_timeout"
)

// flagNames maps config keys to their CLI flag names.
var flagNames = map[string]string{
	KeyServer:          "server",
	KeyToken:           "token",
	KeyStateDir:        "state-dir",
	KeyFormat:          "format",
	KeyBulkConcurrency: "bulk-concurrency",
	KeyLogFile:         "log-file",
	KeyRequestTimeout:  "timeout",
}

type Config struct {
	Server          string        `mapstructure:"server" validate:"omitempty,url"`
	Token           string        `mapstructure:"token"`
	StateDir        string        `mapstructure:"state_dir"`
	Format          string        `mapstructure:"format" validate:"oneof=json edn table"`
	BulkConcurrency int           `mapstructure:"bulk_concurrency" validate:"gte=0,lte=64"`
	LogFile         string        `mapstructure:"log_file"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" validate:"gte=0"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

func defaults(v *viper.Viper) {
	v.SetDefault(KeyFormat, "json")
	v.SetDefault(KeyBulkConcurrency, 8)
	v.SetDefault(KeyRequestTimeout, 15*time.Second)
	v.SetDefault(KeyStateDir, "")
	v.SetDefault(KeyServer, "")
	v.SetDefault(KeyToken, "")
	v.SetDefault(KeyLogFile, "")
}

// Load reads configuration. flags may be nil; when given, flags that were set
// explicitly win over env and file values.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	defaults(v)
	v.SetConfigName(fileName) // .yaml is implicit
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if override := strings.TrimSpace(os.Getenv(EnvConfigPath)); override != "" {
		v.AddConfigPath(override)
	}
	if dir, err := store.ConfigDir(); err == nil {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath("./")

	if flags != nil {
		for key, name := range flagNames {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.Server = strings.TrimRight(strings.TrimSpace(cfg.Server), "/")
	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
	if cfg.StateDir != "" {
		dir, err := store.ExpandPath(cfg.StateDir)
		if err != nil {
			return nil, err
		}
		cfg.StateDir = dir
	}
	if cfg.LogFile != "" {
		p, err := store.ExpandPath(cfg.LogFile)
		if err != nil {
			return nil, err
		}
		cfg.LogFile = p
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config %s=%v (%s)", strings.ToLower(fe.Field()), fe.Value(), fe.Tag())
		}
		return err
	}
	return nil
}
