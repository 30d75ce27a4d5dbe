package server

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
	if cfg.IdleTimeoutMs != 0 {
		t.Fatalf("idle timeout must be disabled by default")
	}
}

func TestLoadConfigOverridesSomeFields(t *testing.T) {
	path := writeConfig(t, `
listen_tcp = "127.0.0.1:9000"
tick_rate = 30
world_width = 1024.0
keep_orphan_projectiles = true

[log]
level = "info"
console = true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ListenTCP != "127.0.0.1:9000" || cfg.TickRate != 30 || cfg.WorldWidth != 1024 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if !cfg.KeepOrphanProjectiles || cfg.Log.Level != "info" || !cfg.Log.Console {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	// 未出现的字段保留默认值
	if cfg.WorldHeight != 450 || cfg.ListenHTTP != ":8081" || cfg.Log.File != "app.log" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if cfg.Spawn() != (Vec2{X: 512, Y: 225}) {
		t.Fatalf("spawn = %+v", cfg.Spawn())
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := LoadConfig(writeConfig(t, "tick_rate = ")); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := LoadConfig(writeConfig(t, "tick_rate = 0")); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate(t *testing.T) {
	mutations := map[string]func(*Config){
		"tick":   func(c *Config) { c.TickRate = -1 },
		"width":  func(c *Config) { c.WorldWidth = 0 },
		"radius": func(c *Config) { c.PlayerRadius = -1 },
		"queue":  func(c *Config) { c.SendQueue = 0 },
		"line":   func(c *Config) { c.MaxLineBytes = 0 },
		"idle":   func(c *Config) { c.IdleTimeoutMs = -5 },
	}
	for name, mutate := range mutations {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestInitLoggerWritesFile(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	path := filepath.Join(t.TempDir(), "server.log")
	if err := InitLogger(LogConfig{File: path, Level: "info"}); err != nil {
		t.Fatalf("InitLogger: %v", err)
	}
	Log.Infow("hello", "id", 1)
	SyncLogger()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(b) == 0 {
		t.Fatalf("log file is empty")
	}

	if err := InitLogger(LogConfig{Level: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
