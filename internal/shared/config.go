package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the server configuration loaded from a TOML file.
type Config struct {
	Database DatabaseConfig  `toml:"database"`
	Storage  StorageConfig   `toml:"storage"`
	Search   SearchConfig    `toml:"search"`
	Import   ImportConfig    `toml:"import"`
	Server   ServerConfig    `toml:"server"`
	Spotify  SpotifyConfig   `toml:"spotify"`
	Scrobble ScrobblerConfig `toml:"scrobble"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// StorageConfig selects the blob storage backend.
//
// Backend is one of "memory" or "filesystem"; Path is required for the
// filesystem backend.
type StorageConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// SearchConfig selects the search backend. Only "builtin" is supported.
type SearchConfig struct {
	Backend string `toml:"backend"`
}

// ImportConfig bounds the import pipeline.
type ImportConfig struct {
	MaxSize     int64 `toml:"max_size"`
	MaxParallel int   `toml:"max_parallel"`
}

// ServerConfig contains HTTP listen addresses for the two wire surfaces.
type ServerConfig struct {
	RPCAddress      string `toml:"rpc_address"`
	SubsonicAddress string `toml:"subsonic_address"`
}

// SpotifyConfig contains credentials for the optional spotify external
// service adapter. The adapter is registered only when both fields are set.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	Priority     int    `toml:"priority"`
}

// ScrobblerConfig configures scrobble forwarding.
type ScrobblerConfig struct {
	ListenBrainzToken string `toml:"listenbrainz_token"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
