package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// LogConfig 日志输出配置
type LogConfig struct {
	File    string `toml:"file"`
	Level   string `toml:"level"`
	Console bool   `toml:"console"` // 同时输出到 stderr
}

// Config 服务端全部可调参数，可由 TOML 文件覆盖
type Config struct {
	ListenTCP  string `toml:"listen_tcp"`
	ListenHTTP string `toml:"listen_http"`

	TickRate         int     `toml:"tick_rate"`
	WorldWidth       float64 `toml:"world_width"`
	WorldHeight      float64 `toml:"world_height"`
	PlayerRadius     float64 `toml:"player_radius"`
	ProjectileRadius float64 `toml:"projectile_radius"`

	SendQueue      int `toml:"send_queue"`
	WriteTimeoutMs int `toml:"write_timeout_ms"`
	IdleTimeoutMs  int `toml:"idle_timeout_ms"` // 0 表示不启用空闲超时
	MaxLineBytes   int `toml:"max_line_bytes"`

	// 玩家离开后其子弹是否继续模拟（默认随玩家一起清除）
	KeepOrphanProjectiles bool `toml:"keep_orphan_projectiles"`

	Log LogConfig `toml:"log"`
}

// DefaultConfig 与客户端约定的默认世界参数（800x450，玩家半径 15，子弹半径 5）
func DefaultConfig() Config {
	return Config{
		ListenTCP:        ":8080",
		ListenHTTP:       ":8081",
		TickRate:         60,
		WorldWidth:       800,
		WorldHeight:      450,
		PlayerRadius:     15,
		ProjectileRadius: 5,
		SendQueue:        256,
		WriteTimeoutMs:   5000,
		IdleTimeoutMs:    0,
		MaxLineBytes:     64 * 1024,
		Log: LogConfig{
			File:  "app.log",
			Level: "debug",
		},
	}
}

// LoadConfig 读取 TOML 配置；path 为空时直接返回默认值。
// 文件中缺省的字段保留默认值。
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate 检查数值参数是否可用
func (c Config) Validate() error {
	switch {
	case c.TickRate <= 0:
		return errors.New("config: tick_rate must be positive")
	case c.WorldWidth <= 0 || c.WorldHeight <= 0:
		return errors.New("config: world bounds must be positive")
	case c.PlayerRadius < 0 || c.ProjectileRadius < 0:
		return errors.New("config: radii must not be negative")
	case c.SendQueue <= 0:
		return errors.New("config: send_queue must be positive")
	case c.MaxLineBytes <= 0:
		return errors.New("config: max_line_bytes must be positive")
	case c.WriteTimeoutMs < 0 || c.IdleTimeoutMs < 0:
		return errors.New("config: timeouts must not be negative")
	}
	return nil
}

func (c Config) writeTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMs) * time.Millisecond
}

func (c Config) idleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMs) * time.Millisecond
}

// Spawn 新玩家出生点：世界中心
func (c Config) Spawn() Vec2 {
	return Vec2{X: c.WorldWidth / 2, Y: c.WorldHeight / 2}
}
