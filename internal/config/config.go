package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/jcdorr003/marty-emulator/internal/ws"
	"github.com/spf13/viper"
)

const (
	HostDefault          = "0.0.0.0"
	PortDefault          = 8080
	HandshakeModeDefault = string(ws.ModePermissive)
	MaxFrameBytesDefault = 16 << 20
	WriteTimeoutDefault  = 10000
	ShutdownGraceDefault = 2000
	StatsIntervalDefault = 30000
)

// Config holds the emulator configuration
type Config struct {
	Host            string `json:"host" mapstructure:"host"`
	Port            int    `json:"port" mapstructure:"port"`
	HandshakeMode   string `json:"handshakeMode" mapstructure:"handshakeMode"`
	MaxFrameBytes   int64  `json:"maxFrameBytes" mapstructure:"maxFrameBytes"`
	IdleTimeoutMs   int    `json:"idleTimeoutMs" mapstructure:"idleTimeoutMs"`
	WriteTimeoutMs  int    `json:"writeTimeoutMs" mapstructure:"writeTimeoutMs"`
	ShutdownGraceMs int    `json:"shutdownGraceMs" mapstructure:"shutdownGraceMs"`
	MetricsAddr     string `json:"metricsAddr" mapstructure:"metricsAddr"`
	StatsIntervalMs int    `json:"statsIntervalMs" mapstructure:"statsIntervalMs"`
	ConfigDir       string `json:"-"`
	LogDir          string `json:"-"`
}

// Load reads configuration from file, environment variables, and defaults
func Load() (*Config, error) {
	if err := EnsureDirs(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	configFile := GetConfigFile()
	v.SetConfigFile(configFile)
	v.SetConfigType("json")

	// A missing file just means defaults
	_ = v.ReadInConfig()

	// Environment variables override (e.g., MARTY_PORT)
	v.SetEnvPrefix("MARTY")
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.ConfigDir = GetConfigDir()
	cfg.LogDir = GetLogDir()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err := writeDefaultConfig(configFile); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", HostDefault)
	v.SetDefault("port", PortDefault)
	v.SetDefault("handshakeMode", HandshakeModeDefault)
	v.SetDefault("maxFrameBytes", MaxFrameBytesDefault)
	v.SetDefault("idleTimeoutMs", 0)
	v.SetDefault("writeTimeoutMs", WriteTimeoutDefault)
	v.SetDefault("shutdownGraceMs", ShutdownGraceDefault)
	v.SetDefault("metricsAddr", "")
	v.SetDefault("statsIntervalMs", StatsIntervalDefault)
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if _, err := ws.ParseMode(c.HandshakeMode); err != nil {
		return err
	}
	if c.MaxFrameBytes < 0 || c.MaxFrameBytes > ws.MaxPayloadCeiling {
		return fmt.Errorf("invalid maxFrameBytes %d (want 0 to %d)", c.MaxFrameBytes, ws.MaxPayloadCeiling)
	}
	return nil
}

// Addr is the listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Mode returns the parsed handshake mode
func (c *Config) Mode() ws.Mode {
	m, err := ws.ParseMode(c.HandshakeMode)
	if err != nil {
		return ws.ModePermissive
	}
	return m
}

func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMs) * time.Millisecond
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMs) * time.Millisecond
}

func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceMs) * time.Millisecond
}

func (c *Config) StatsInterval() time.Duration {
	return time.Duration(c.StatsIntervalMs) * time.Millisecond
}

// Save writes the current configuration to file
func (c *Config) Save() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(GetConfigFile(), data, 0644)
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Host:            HostDefault,
		Port:            PortDefault,
		HandshakeMode:   HandshakeModeDefault,
		MaxFrameBytes:   MaxFrameBytesDefault,
		WriteTimeoutMs:  WriteTimeoutDefault,
		ShutdownGraceMs: ShutdownGraceDefault,
		StatsIntervalMs: StatsIntervalDefault,
		ConfigDir:       GetConfigDir(),
		LogDir:          GetLogDir(),
	}
}

// writeDefaultConfig creates a new config file with defaults
func writeDefaultConfig(path string) error {
	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
