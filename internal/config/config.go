package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	defaultListenAddress = "127.0.0.1:8080"
	defaultRemoteAddress = "http://localhost:9090"
	defaultDataDir       = ".orderkeeper"
	defaultDataFile      = "orderkeeper.db"
)

type Config struct {
	Env           string
	ListenAddress string
	RemoteAddress string
	DataPath      string

	SyncInterval    time.Duration
	ProbeInterval   time.Duration
	ProbeTimeout    time.Duration
	BreakerInterval time.Duration
	BreakerCooldown time.Duration
	CallTimeout     time.Duration
}

// MustLoad reads configuration from the environment (with an optional .env
// file) and panics on an invalid result. Every knob has a default, so an
// empty environment yields a runnable local setup.
func MustLoad() *Config {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("failed to load .env file: %v\n", err)
		}
	}

	viper.AutomaticEnv()

	viper.SetDefault("APP_ENV", EnvLocal)
	viper.SetDefault("LISTEN_ADDRESS", defaultListenAddress)
	viper.SetDefault("REMOTE_ADDRESS", defaultRemoteAddress)
	viper.SetDefault("DATA_PATH", "")
	viper.SetDefault("SYNC_INTERVAL_SECONDS", 0)
	viper.SetDefault("PROBE_INTERVAL_SECONDS", 30)
	viper.SetDefault("PROBE_TIMEOUT_SECONDS", 5)
	viper.SetDefault("BREAKER_INTERVAL_SECONDS", 10)
	viper.SetDefault("BREAKER_COOLDOWN_SECONDS", 60)
	viper.SetDefault("CALL_TIMEOUT_SECONDS", 10)

	dataPath := viper.GetString("DATA_PATH")
	if dataPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = "."
		}
		dataDir := filepath.Join(homeDir, defaultDataDir)
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			fmt.Printf("failed to create data directory: %v\n", err)
		}
		dataPath = filepath.Join(dataDir, defaultDataFile)
	}

	cfg := &Config{
		Env:             viper.GetString("APP_ENV"),
		ListenAddress:   viper.GetString("LISTEN_ADDRESS"),
		RemoteAddress:   viper.GetString("REMOTE_ADDRESS"),
		DataPath:        dataPath,
		SyncInterval:    time.Duration(viper.GetInt("SYNC_INTERVAL_SECONDS")) * time.Second,
		ProbeInterval:   time.Duration(viper.GetInt("PROBE_INTERVAL_SECONDS")) * time.Second,
		ProbeTimeout:    time.Duration(viper.GetInt("PROBE_TIMEOUT_SECONDS")) * time.Second,
		BreakerInterval: time.Duration(viper.GetInt("BREAKER_INTERVAL_SECONDS")) * time.Second,
		BreakerCooldown: time.Duration(viper.GetInt("BREAKER_COOLDOWN_SECONDS")) * time.Second,
		CallTimeout:     time.Duration(viper.GetInt("CALL_TIMEOUT_SECONDS")) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("invalid configuration: %v", err))
	}
	return cfg
}

func (c *Config) validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("listen_address must not be empty")
	}
	if c.RemoteAddress == "" {
		return fmt.Errorf("remote_address must not be empty")
	}
	return nil
}

func (c *Config) IsProd() bool {
	return c.Env == EnvProd
}

func (c *Config) IsLocal() bool {
	return c.Env == EnvLocal || c.Env == ""
}
