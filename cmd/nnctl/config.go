package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/psichix/opennn-go/pkg/nnsession"
)

// Config is the on-disk nnctl configuration.
type Config struct {
	Address        string        `yaml:"address"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	Logging        LoggingConfig `yaml:"logging"`
	Retry          RetryConfig   `yaml:"retry"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty *bool  `yaml:"pretty"`
}

// RetryConfig controls how often nnctl tries to open a session before giving
// up. The session itself never reconnects.
type RetryConfig struct {
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	MaxTries        uint          `yaml:"max_tries"`
}

func defaultConfig() Config {
	def := nnsession.DefaultConfig()
	return Config{
		Address:        def.Address,
		ConnectTimeout: def.ConnectTimeout,
		RequestTimeout: time.Minute,
		MaxMessageSize: def.MaxMessageSize,
		Logging:        LoggingConfig{Level: "warn"},
		Retry: RetryConfig{
			InitialInterval: 250 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			MaxTries:        5,
		},
	}
}

// loadConfig reads path over the defaults. A missing file is only an error
// when the path was given explicitly.
func loadConfig(path string, explicit bool) (Config, error) {
	cfg := defaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if _, err := nnsession.NormalizeAddress(cfg.Address); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) sessionConfig(log *zerolog.Logger) nnsession.Config {
	return nnsession.Config{
		Address:        c.Address,
		ConnectTimeout: c.ConnectTimeout,
		RequestTimeout: c.RequestTimeout,
		MaxMessageSize: c.MaxMessageSize,
		Log:            log,
	}
}
