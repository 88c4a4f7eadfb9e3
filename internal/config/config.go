// Package config loads the diamond TOML configuration file.
//
//	db = "diamond.db"
//	gas_limit = 30000000
//	log_level = "info"
//	log_format = "text"
//	listen = "127.0.0.1:8545"
//	sender = "deployer"
//	shutdown_timeout = "5s"
package config

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/ir"
)

// Config is the resolved configuration.
type Config struct {
	DBPath          string
	GasLimit        uint64
	LogLevel        slog.Level
	LogFormat       string
	Listen          string
	Sender          string
	ShutdownTimeout time.Duration
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DBPath:          "diamond.db",
		GasLimit:        engine.DefaultGasLimit,
		LogLevel:        slog.LevelInfo,
		LogFormat:       "text",
		Listen:          "127.0.0.1:8545",
		Sender:          "deployer",
		ShutdownTimeout: 5 * time.Second,
	}
}

type fileConfig struct {
	DB              string `toml:"db"`
	GasLimit        int64  `toml:"gas_limit"`
	LogLevel        string `toml:"log_level"`
	LogFormat       string `toml:"log_format"`
	Listen          string `toml:"listen"`
	Sender          string `toml:"sender"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// Load reads path over the defaults. Unknown keys are errors.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return apply(meta, raw)
}

// Parse is Load for in-memory TOML.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return apply(meta, raw)
}

func apply(meta toml.MetaData, raw fileConfig) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	cfg := Default()

	if meta.IsDefined("db") {
		cfg.DBPath = strings.TrimSpace(raw.DB)
	}

	if meta.IsDefined("gas_limit") {
		if raw.GasLimit <= 0 {
			return Config{}, fmt.Errorf("gas_limit must be positive, got %d", raw.GasLimit)
		}
		cfg.GasLimit = uint64(raw.GasLimit)
	}

	if meta.IsDefined("log_level") {
		lvl, err := ParseLevel(raw.LogLevel)
		if err != nil {
			return Config{}, err
		}
		cfg.LogLevel = lvl
	}

	if meta.IsDefined("log_format") {
		cfg.LogFormat = strings.ToLower(strings.TrimSpace(raw.LogFormat))
	}

	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}

	if meta.IsDefined("sender") {
		cfg.Sender = strings.TrimSpace(raw.Sender)
	}

	if meta.IsDefined("shutdown_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ShutdownTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse shutdown_timeout: %w", err)
		}
		cfg.ShutdownTimeout = d
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values no command can work with.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db must not be empty")
	}
	if c.GasLimit == 0 {
		return fmt.Errorf("gas_limit must be positive")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if c.Listen == "" {
		return fmt.Errorf("listen must not be empty")
	}
	if c.Sender == "" {
		return fmt.Errorf("sender must not be empty")
	}
	if _, err := ResolveAccount(c.Sender); err != nil {
		return fmt.Errorf("sender: %w", err)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must not be negative")
	}
	return nil
}

// SenderAddress is the default sender as an address.
func (c Config) SenderAddress() ir.Address {
	addr, _ := ResolveAccount(c.Sender)
	return addr
}

// ParseLevel accepts debug, info, warn and error.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// ResolveAccount turns a 0x address or an account label into an address.
// Labels map to ir.AccountAddress, so "deployer" is the same account in
// every tool.
func ResolveAccount(s string) (ir.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ir.Address{}, fmt.Errorf("empty account")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return ir.ParseAddress(s)
	}
	return ir.AccountAddress(s), nil
}
