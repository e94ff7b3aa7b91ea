package config

import (
	"os"
	"path/filepath"
)

const (
	AppName = "Marty Emulator"
	AppID   = "marty-emulator"
)

// GetConfigDir returns the configuration directory.
// MARTY_CONFIG_DIR overrides the default ~/.config/marty-emulator.
func GetConfigDir() string {
	if dir := os.Getenv("MARTY_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", AppID)
}

// GetLogDir returns the log directory.
// MARTY_LOG_DIR overrides the default ~/.local/state/marty-emulator/logs.
func GetLogDir() string {
	if dir := os.Getenv("MARTY_LOG_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", AppID, "logs")
}

// GetConfigFile returns the full path to the config file
func GetConfigFile() string {
	return filepath.Join(GetConfigDir(), "emulator.json")
}

// EnsureDirs creates config and log directories if they don't exist
func EnsureDirs() error {
	dirs := []string{GetConfigDir(), GetLogDir()}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
