package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvPath names the environment variable consulted when no -config flag is given.
const EnvPath = "GALAXIA_CONFIG"

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Network  NetworkConfig  `toml:"network"`
	Session  SessionConfig  `toml:"session"`
	Player   PlayerConfig   `toml:"player"`
	Laser    LaserConfig    `toml:"laser"`
	Logging  LoggingConfig  `toml:"logging"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Master   MasterConfig   `toml:"master"`
	Database DatabaseConfig `toml:"database"`
}

type ServerConfig struct {
	Name          string `toml:"name"`
	Version       string `toml:"version"`
	GameMode      string `toml:"game_mode"`
	GameModesFile string `toml:"game_modes_file"`
	AssetsDir     string `toml:"assets_dir"`
}

type NetworkConfig struct {
	Port            uint          `toml:"port"`
	TickRate        int           `toml:"tick_rate"` // ticks per second
	MaxPayloadBytes int           `toml:"max_payload_bytes"`
	RequestsPerSec  float64       `toml:"requests_per_sec"`
	RequestBurst    int           `toml:"request_burst"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	CommandQueue    int           `toml:"command_queue"`
}

type SessionConfig struct {
	MaxPlayers int `toml:"max_players"`
}

type PlayerConfig struct {
	MaxHealth       int           `toml:"max_health"`
	TimeBetweenFire time.Duration `toml:"time_between_fire"`
	BodyWidth       float64       `toml:"body_width"`
	BodyHeight      float64       `toml:"body_height"`
	MuzzleOffset    float64       `toml:"muzzle_offset"`
	DeathMessage    string        `toml:"death_message"`
	DeathMessageFor time.Duration `toml:"death_message_for"`
}

type LaserConfig struct {
	Speed      float64 `toml:"speed"` // pixels per second
	MaxBounces int     `toml:"max_bounces"`
	Damage     int     `toml:"damage"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
}

type MasterConfig struct {
	URL               string        `toml:"url"`
	Region            string        `toml:"region"`
	Address           string        `toml:"address"`
	HeartbeatInterval time.Duration `toml:"heartbeat_interval"`
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"` // empty disables match history
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	QueueSize       int           `toml:"queue_size"`
}

// Load reads the TOML file at path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the simulation cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Network.TickRate <= 0:
		return fmt.Errorf("network.tick_rate must be positive, got %d", c.Network.TickRate)
	case c.Network.MaxPayloadBytes <= 0:
		return fmt.Errorf("network.max_payload_bytes must be positive, got %d", c.Network.MaxPayloadBytes)
	case c.Session.MaxPlayers <= 0:
		return fmt.Errorf("session.max_players must be positive, got %d", c.Session.MaxPlayers)
	case c.Player.MaxHealth <= 0:
		return fmt.Errorf("player.max_health must be positive, got %d", c.Player.MaxHealth)
	case c.Laser.MaxBounces < 0:
		return fmt.Errorf("laser.max_bounces must not be negative, got %d", c.Laser.MaxBounces)
	}
	return nil
}

// TickInterval is the duration of one simulation step.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Network.TickRate)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:          "Galaxia Server",
			Version:       "0.1.0",
			GameMode:      "Galaxia",
			GameModesFile: "config/gamemodes.yaml",
			AssetsDir:     "assets",
		},
		Network: NetworkConfig{
			Port:            7373,
			TickRate:        30,
			MaxPayloadBytes: 1024,
			RequestsPerSec:  20,
			RequestBurst:    10,
			WriteTimeout:    5 * time.Second,
			CommandQueue:    256,
		},
		Session: SessionConfig{
			MaxPlayers: 2,
		},
		Player: PlayerConfig{
			MaxHealth:       100,
			TimeBetweenFire: 300 * time.Millisecond,
			BodyWidth:       16,
			BodyHeight:      16,
			MuzzleOffset:    12,
			DeathMessage:    "You died",
			DeathMessageFor: 3 * time.Second,
		},
		Laser: LaserConfig{
			Speed:      240, // 4 units per frame at 60 fps
			MaxBounces: 3,
			Damage:     100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Address: "127.0.0.1:9373",
		},
		Master: MasterConfig{
			HeartbeatInterval: 15 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			QueueSize:       256,
		},
	}
}
