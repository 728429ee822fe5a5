package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrGameModeNotFound is returned when the selected mode is not in the table.
var ErrGameModeNotFound = errors.New("game mode not found")

// GameMode describes one entry of the available game modes table.
type GameMode struct {
	Name                 string        `yaml:"name"`
	PlayersNeededToStart int           `yaml:"players_needed_to_start"`
	RespawnDelay         time.Duration `yaml:"respawn_delay"`
	GoMessage            string        `yaml:"go_message"`
	GoMessageFor         time.Duration `yaml:"go_message_for"`
	Level                string        `yaml:"level"`
}

type gameModesFile struct {
	Modes []GameMode `yaml:"game_modes"`
}

// GameModes is the table of selectable modes, in file order.
type GameModes []GameMode

// LoadGameModes parses the YAML game mode table at path.
func LoadGameModes(path string) (GameModes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read game modes %s: %w", path, err)
	}
	return ParseGameModes(data)
}

// ParseGameModes decodes a game mode table, filling unset fields with defaults.
func ParseGameModes(data []byte) (GameModes, error) {
	var f gameModesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse game modes: %w", err)
	}
	for i := range f.Modes {
		m := &f.Modes[i]
		if m.Name == "" {
			return nil, fmt.Errorf("game mode %d has no name", i)
		}
		if m.PlayersNeededToStart <= 0 {
			m.PlayersNeededToStart = 2
		}
		if m.RespawnDelay <= 0 {
			m.RespawnDelay = 2 * time.Second
		}
		if m.GoMessage == "" {
			m.GoMessage = "Go!"
		}
		if m.GoMessageFor <= 0 {
			m.GoMessageFor = 2 * time.Second
		}
		if m.Level == "" {
			m.Level = "arena"
		}
	}
	return f.Modes, nil
}

// Find returns the mode called name.
func (g GameModes) Find(name string) (GameMode, error) {
	for _, m := range g {
		if m.Name == name {
			return m, nil
		}
	}
	return GameMode{}, fmt.Errorf("%w: %q", ErrGameModeNotFound, name)
}

// DefaultGameMode is used when no table is configured.
func DefaultGameMode() GameMode {
	return GameMode{
		Name:                 "Galaxia",
		PlayersNeededToStart: 2,
		RespawnDelay:         2 * time.Second,
		GoMessage:            "Go!",
		GoMessageFor:         2 * time.Second,
		Level:                "arena",
	}
}
