package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Fronting  FrontingConfig  `mapstructure:"fronting" yaml:"fronting"`
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`
	Download  DownloadConfig  `mapstructure:"download" yaml:"download"`
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
}

// FrontingConfig describes the alternate resolution channel. The front host
// is the hostname presented on the wire, front_addr is where those
// connections actually go, and resolver_host is the Host header the DoH
// endpoint expects.
type FrontingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	FrontHost    string   `mapstructure:"front_host" yaml:"front_host"`
	FrontAddr    string   `mapstructure:"front_addr" yaml:"front_addr"`
	ResolverHost string   `mapstructure:"resolver_host" yaml:"resolver_host"`
	ResolverPath string   `mapstructure:"resolver_path" yaml:"resolver_path"`
	MediaDomains []string `mapstructure:"media_domains" yaml:"media_domains"`
}

type TransportConfig struct {
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
}

type DownloadConfig struct {
	OutDir string `mapstructure:"out_dir" yaml:"out_dir"`
}

type APIConfig struct {
	Port string `mapstructure:"port" yaml:"port"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type StoreConfig struct {
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

func Load(path string) (*Config, error) {
	v := viper.New()

	// Set Defaults
	v.SetDefault("fronting.enabled", true)
	v.SetDefault("fronting.front_host", "www.google.com")
	// Traditional resolver addresses (8.8.8.8 / 8.8.4.4) can be blocked,
	// this one usually survives
	v.SetDefault("fronting.front_addr", "216.239.36.36:443")
	v.SetDefault("fronting.resolver_host", "google-public-dns-a.google.com")
	v.SetDefault("fronting.resolver_path", "/resolve")
	v.SetDefault("fronting.media_domains", []string{"googlevideo.com"})
	v.SetDefault("transport.timeout", "30s")
	v.SetDefault("transport.max_retries", 2)
	v.SetDefault("download.out_dir", "./downloads")
	v.SetDefault("api.port", "8080")
	v.SetDefault("log.path", "vget.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
	v.SetDefault("store.sqlite_path", "vget.db")

	// The config file is optional: every value has a default and everything
	// can come from the environment.
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// Support Environment Variables
	v.SetEnvPrefix("VGET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Fronting.Enabled {
		if c.Fronting.FrontHost == "" {
			return errors.New("fronting.front_host is required when fronting is enabled")
		}
		if c.Fronting.FrontAddr == "" {
			return errors.New("fronting.front_addr is required when fronting is enabled")
		}
		if c.Fronting.ResolverHost == "" {
			return errors.New("fronting.resolver_host is required when fronting is enabled")
		}
	}

	if c.Transport.MaxRetries < 0 {
		return fmt.Errorf("transport.max_retries must be >= 0, got %d", c.Transport.MaxRetries)
	}

	if c.Transport.Timeout <= 0 {
		c.Transport.Timeout = 30 * time.Second
	}

	if c.Download.OutDir == "" {
		c.Download.OutDir = "./downloads"
	}

	return nil
}
