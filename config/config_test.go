package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOrCreateWritesDefaults(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("ARC_DATA_DIR", dataDir)

	cfg, cfgPath, err := LoadOrCreate(context.Background())
	if err != nil {
		t.Fatalf("LoadOrCreate returned error: %v", err)
	}

	if cfgPath != ConfigPath(dataDir) {
		t.Errorf("config path = %q, want %q", cfgPath, ConfigPath(dataDir))
	}
	if cfg.DeviceID == "" {
		t.Error("device ID not generated")
	}
	if cfg.ChannelDomain == "" {
		t.Error("channel domain not generated")
	}
	if cfg.RitualID != DefaultRitualID {
		t.Errorf("ritual ID = %q, want %q", cfg.RitualID, DefaultRitualID)
	}
	if cfg.PortMode != PortModeAutomatic {
		t.Errorf("port mode = %q, want %q", cfg.PortMode, PortModeAutomatic)
	}
	if cfg.PrivateKeyPath == "" || cfg.PublicKeyPath == "" {
		t.Error("key paths not defaulted")
	}

	if _, err := os.Stat(cfgPath); err != nil {
		t.Errorf("config file not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "keys")); err != nil {
		t.Errorf("keys directory not created: %v", err)
	}
}

func TestLoadOrCreateIsStableAcrossRuns(t *testing.T) {
	t.Setenv("ARC_DATA_DIR", t.TempDir())

	first, _, err := LoadOrCreate(context.Background())
	if err != nil {
		t.Fatalf("LoadOrCreate returned error: %v", err)
	}
	second, _, err := LoadOrCreate(context.Background())
	if err != nil {
		t.Fatalf("second LoadOrCreate returned error: %v", err)
	}

	if second.DeviceID != first.DeviceID {
		t.Errorf("device ID changed across runs: %q -> %q", first.DeviceID, second.DeviceID)
	}
	if second.ChannelDomain != first.ChannelDomain {
		t.Errorf("channel domain changed across runs: %q -> %q", first.ChannelDomain, second.ChannelDomain)
	}
}

func TestEnvironmentOverridesAreNotPersisted(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("ARC_DATA_DIR", dataDir)

	if _, _, err := LoadOrCreate(context.Background()); err != nil {
		t.Fatalf("LoadOrCreate returned error: %v", err)
	}

	t.Setenv("ARC_NICKNAME", "override")
	t.Setenv("ARC_CHANNEL_DOMAIN", "shared-room")

	cfg, cfgPath, err := LoadOrCreate(context.Background())
	if err != nil {
		t.Fatalf("LoadOrCreate with overrides returned error: %v", err)
	}
	if cfg.Nickname != "override" {
		t.Errorf("nickname = %q, want env override", cfg.Nickname)
	}
	if cfg.ChannelDomain != "shared-room" {
		t.Errorf("channel domain = %q, want env override", cfg.ChannelDomain)
	}

	// The file on disk keeps the original values.
	stored, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if stored.ChannelDomain == "shared-room" {
		t.Error("env override leaked into the stored config")
	}
}

func TestFixedPositionOverrides(t *testing.T) {
	t.Setenv("ARC_DATA_DIR", t.TempDir())
	t.Setenv("ARC_FIXED_LATITUDE", "52.52")
	t.Setenv("ARC_FIXED_LONGITUDE", "13.405")

	cfg, _, err := LoadOrCreate(context.Background())
	if err != nil {
		t.Fatalf("LoadOrCreate returned error: %v", err)
	}
	if cfg.FixedLatitude != 52.52 {
		t.Errorf("fixed latitude = %v, want 52.52", cfg.FixedLatitude)
	}
	if cfg.FixedLongitude != 13.405 {
		t.Errorf("fixed longitude = %v, want 13.405", cfg.FixedLongitude)
	}
}

func TestNormalizeDefaultsPortModes(t *testing.T) {
	tests := []struct {
		name     string
		cfg      ClientConfig
		wantMode string
		wantPort int
	}{
		{
			name:     "fixed mode fills default port",
			cfg:      ClientConfig{PortMode: PortModeFixed},
			wantMode: PortModeFixed,
			wantPort: DefaultListeningPort,
		},
		{
			name:     "port implies fixed mode",
			cfg:      ClientConfig{ListeningPort: 4242},
			wantMode: PortModeFixed,
			wantPort: 4242,
		},
		{
			name:     "negative port resets in automatic mode",
			cfg:      ClientConfig{PortMode: PortModeAutomatic, ListeningPort: -1},
			wantMode: PortModeAutomatic,
			wantPort: 0,
		},
		{
			name:     "unknown mode falls back to automatic",
			cfg:      ClientConfig{PortMode: "weird"},
			wantMode: PortModeAutomatic,
			wantPort: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			normalizeDefaults(&cfg, t.TempDir())
			if cfg.PortMode != tt.wantMode {
				t.Errorf("port mode = %q, want %q", cfg.PortMode, tt.wantMode)
			}
			if cfg.ListeningPort != tt.wantPort {
				t.Errorf("port = %d, want %d", cfg.ListeningPort, tt.wantPort)
			}
		})
	}
}
