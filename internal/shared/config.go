package shared

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
// Env vars recognized by the core (REDIS_URL, MAX_DOWNLOADS_PER_HOUR, ...)
// override the matching field after LoadConfig returns; see ApplyEnv.
type Config struct {
	Broker      BrokerConfig      `toml:"broker"`
	Quota       QuotaConfig       `toml:"quota"`
	Paths       PathsConfig       `toml:"paths"`
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
}

// BrokerConfig locates the Task Broker + Progress Store backend.
type BrokerConfig struct {
	RedisURL string `toml:"redis_url"`
}

// QuotaConfig mirrors spec.md §4.6/§6's configurable sliding-window limits.
type QuotaConfig struct {
	MaxDownloadsPerHour       int `toml:"max_downloads_per_hour"`
	MaxDownloadsPerDay        int `toml:"max_downloads_per_day"`
	MaxDurationMinutesPerHour int `toml:"max_duration_minutes_per_hour"`
	MaxDurationMinutesPerDay  int `toml:"max_duration_minutes_per_day"`
	MaxContentDurationMinutes int `toml:"max_content_duration_minutes"`
	MaxPlaylistItems          int `toml:"max_playlist_items"`
}

// PathsConfig locates the filesystem layout described in spec.md §6.
type PathsConfig struct {
	TempDir    string `toml:"temp_dir"`
	OutputDir  string `toml:"output_dir"`
	ZipDir     string `toml:"zip_dir"`
	LedgerPath string `toml:"ledger_path"`
}

// CredentialsConfig contains service-specific credentials. PlatformB is the
// music-license-centric catalog's metadata API; client-credentials only,
// never a user-facing OAuth flow (the worker is headless).
type CredentialsConfig struct {
	PlatformB PlatformBConfig `toml:"platform_b"`
}

// PlatformBConfig holds the client-credentials pair used by the resolver's
// cross-platform translation path. Both fields default empty: an embedded
// real secret in a shipped example config is treated as a security bug
// (spec.md §9 Open Questions).
type PlatformBConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// DatabaseConfig contains job-history ledger connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP edge listen settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Expands ~ in file paths to the user's home directory.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := unmarshalConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.Paths.TempDir = ExpandPath(config.Paths.TempDir)
	config.Paths.OutputDir = ExpandPath(config.Paths.OutputDir)
	config.Paths.ZipDir = ExpandPath(config.Paths.ZipDir)
	config.Paths.LedgerPath = ExpandPath(config.Paths.LedgerPath)
	config.Database.Path = ExpandPath(config.Database.Path)

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	config, err := unmarshalConfig(exampleConf)
	if err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes a Config struct to a TOML file at the specified path.
func SaveConfig(path string, config *Config) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer file.Close()

	return encodeConfig(file, config)
}

// ApplyEnv overlays recognized environment variables onto config, per
// spec.md §6. Env wins over TOML, which wins over embedded defaults.
func ApplyEnv(config *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup("REDIS_URL"); ok && v != "" {
		config.Broker.RedisURL = v
	}
	if v, ok := lookupInt(lookup, "MAX_DOWNLOADS_PER_HOUR"); ok {
		config.Quota.MaxDownloadsPerHour = v
	}
	if v, ok := lookupInt(lookup, "MAX_DOWNLOADS_PER_DAY"); ok {
		config.Quota.MaxDownloadsPerDay = v
	}
	if v, ok := lookupInt(lookup, "MAX_DURATION_PER_HOUR"); ok {
		config.Quota.MaxDurationMinutesPerHour = v
	}
	if v, ok := lookupInt(lookup, "MAX_DURATION_PER_DAY"); ok {
		config.Quota.MaxDurationMinutesPerDay = v
	}
	if v, ok := lookupInt(lookup, "MAX_CONTENT_DURATION"); ok {
		config.Quota.MaxContentDurationMinutes = v
	}
	if v, ok := lookupInt(lookup, "MAX_PLAYLIST_ITEMS"); ok {
		config.Quota.MaxPlaylistItems = v
	}
}

func unmarshalConfig(data []byte) (*Config, error) {
	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

func encodeConfig(w io.Writer, config *Config) error {
	encoder := toml.NewEncoder(w)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

func lookupInt(lookup func(string) (string, bool), key string) (int, bool) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return 0, false
	}
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
