// Package config manages the persistent client configuration file and its
// environment overrides.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
	"github.com/sethvargo/go-envconfig"
)

const (
	// AppDirectoryName is the per-user application data directory name.
	AppDirectoryName = "arc"
	// DefaultListeningPort is the mesh TCP port used when no override exists.
	DefaultListeningPort = 9471
	// PortModeAutomatic picks an available port at launch.
	PortModeAutomatic = "automatic"
	// PortModeFixed uses the configured listening port value.
	PortModeFixed = "fixed"
	// DefaultGatewayAddress is the local HTTP gateway bind address.
	DefaultGatewayAddress = "127.0.0.1:8790"
	// DefaultRitualID selects the access-control ritual.
	DefaultRitualID = "6"
	// DefaultAccessDomain selects the access-control network.
	DefaultAccessDomain = "testnet"
	// configFileName is the persisted configuration file.
	configFileName = "config.json"
)

// ClientConfig contains persistent local-client settings. Environment
// variables (ARC_*) override the stored values at load time without being
// written back.
type ClientConfig struct {
	DeviceID string `json:"device_id" env:"ARC_DEVICE_ID"`
	Nickname string `json:"nickname" env:"ARC_NICKNAME"`

	// ChannelDomain identifies the chat channel; both topic names derive
	// from it.
	ChannelDomain string `json:"channel_domain" env:"ARC_CHANNEL_DOMAIN"`

	// RitualID and AccessDomain parameterize the access-control codec.
	RitualID     string `json:"ritual_id" env:"ARC_RITUAL_ID"`
	AccessDomain string `json:"access_domain" env:"ARC_ACCESS_DOMAIN"`

	PortMode      string `json:"port_mode" env:"ARC_PORT_MODE"`
	ListeningPort int    `json:"listening_port" env:"ARC_LISTENING_PORT"`

	GatewayAddress string `json:"gateway_address" env:"ARC_GATEWAY_ADDRESS"`

	// FixedLatitude and FixedLongitude seed the position sampler on hosts
	// without a real location source.
	FixedLatitude  float64 `json:"fixed_latitude" env:"ARC_FIXED_LATITUDE"`
	FixedLongitude float64 `json:"fixed_longitude" env:"ARC_FIXED_LONGITUDE"`

	PrivateKeyPath string `json:"private_key_path" env:"ARC_PRIVATE_KEY_PATH"`
	PublicKeyPath  string `json:"public_key_path" env:"ARC_PUBLIC_KEY_PATH"`
}

// ResolveDataDir returns the OS-aware app data directory.
//
// If ARC_DATA_DIR is set, its value is used as an explicit override.
func ResolveDataDir() (string, error) {
	if override := os.Getenv("ARC_DATA_DIR"); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, AppDirectoryName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppDirectoryName), nil
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, AppDirectoryName), nil
	}
}

// ConfigPath returns the full path to config.json for a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// EnsureDataDirectories creates the app data directory layout if needed.
func EnsureDataDirectories(dataDir string) error {
	dirs := []string{
		dataDir,
		filepath.Join(dataDir, "keys"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	return nil
}

// Load reads and unmarshals config.json from disk.
func Load(path string) (*ClientConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg ClientConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// Save marshals and writes config.json to disk.
func Save(path string, cfg *ClientConfig) error {
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	raw = append(raw, '\n')
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// LoadOrCreate ensures directories and config exist, applies environment
// overrides, and returns the effective config plus its path. Overrides are
// never written back to disk.
func LoadOrCreate(ctx context.Context) (*ClientConfig, string, error) {
	dataDir, err := ResolveDataDir()
	if err != nil {
		return nil, "", err
	}
	if err := EnsureDataDirectories(dataDir); err != nil {
		return nil, "", err
	}

	cfgPath := ConfigPath(dataDir)
	cfg, err := Load(cfgPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", err
		}

		cfg = defaultConfig(dataDir)
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}
	} else if normalizeDefaults(cfg, dataDir) {
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}
	}

	if err := envconfig.Process(ctx, cfg); err != nil {
		return nil, "", fmt.Errorf("apply environment overrides: %w", err)
	}
	normalizeDefaults(cfg, dataDir)

	return cfg, cfgPath, nil
}

func defaultConfig(dataDir string) *ClientConfig {
	nickname := "anon"
	if host, err := os.Hostname(); err == nil && host != "" {
		nickname = host
	}

	keysDir := filepath.Join(dataDir, "keys")
	return &ClientConfig{
		DeviceID:       uuid.NewString(),
		Nickname:       nickname,
		ChannelDomain:  uuid.NewString(),
		RitualID:       DefaultRitualID,
		AccessDomain:   DefaultAccessDomain,
		PortMode:       PortModeAutomatic,
		ListeningPort:  0,
		GatewayAddress: DefaultGatewayAddress,
		PrivateKeyPath: filepath.Join(keysDir, "account_private.pem"),
		PublicKeyPath:  filepath.Join(keysDir, "account_public.pem"),
	}
}

func normalizeDefaults(cfg *ClientConfig, dataDir string) bool {
	updated := false
	keysDir := filepath.Join(dataDir, "keys")

	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.NewString()
		updated = true
	}

	if cfg.Nickname == "" {
		nickname := "anon"
		if host, err := os.Hostname(); err == nil && host != "" {
			nickname = host
		}
		cfg.Nickname = nickname
		updated = true
	}

	if cfg.ChannelDomain == "" {
		cfg.ChannelDomain = uuid.NewString()
		updated = true
	}

	if cfg.RitualID == "" {
		cfg.RitualID = DefaultRitualID
		updated = true
	}
	if cfg.AccessDomain == "" {
		cfg.AccessDomain = DefaultAccessDomain
		updated = true
	}

	mode := normalizePortMode(cfg.PortMode)
	if mode == "" {
		if cfg.ListeningPort > 0 {
			mode = PortModeFixed
		} else {
			mode = PortModeAutomatic
		}
	}
	if cfg.PortMode != mode {
		cfg.PortMode = mode
		updated = true
	}

	if cfg.PortMode == PortModeFixed && cfg.ListeningPort == 0 {
		cfg.ListeningPort = DefaultListeningPort
		updated = true
	}
	if cfg.PortMode == PortModeAutomatic && cfg.ListeningPort < 0 {
		cfg.ListeningPort = 0
		updated = true
	}

	if cfg.GatewayAddress == "" {
		cfg.GatewayAddress = DefaultGatewayAddress
		updated = true
	}

	if cfg.PrivateKeyPath == "" {
		cfg.PrivateKeyPath = filepath.Join(keysDir, "account_private.pem")
		updated = true
	}
	if cfg.PublicKeyPath == "" {
		cfg.PublicKeyPath = filepath.Join(keysDir, "account_public.pem")
		updated = true
	}

	return updated
}

func normalizePortMode(mode string) string {
	switch mode {
	case PortModeAutomatic:
		return PortModeAutomatic
	case PortModeFixed:
		return PortModeFixed
	default:
		return ""
	}
}
