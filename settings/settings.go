// Package settings persists the client's local preferences between runs.
package settings

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/automoto/galaxia-mp/shared/gamemath"
	"github.com/quasilyte/gdata"
	"go.uber.org/zap"
)

const (
	// SensitivityKey stores the look sensitivity on its own.
	SensitivityKey = "PlayerSensitivity"
	profileKey     = "settings"

	DefaultSensitivity = 1.0
	MinSensitivity     = 0.1
	MaxSensitivity     = 10.0
)

// Profile represents the connection settings stored on disk.
type Profile struct {
	PlayerName    string `json:"playerName"`
	ServerAddress string `json:"serverAddress"`
}

// DefaultProfile is used when nothing has been saved yet.
func DefaultProfile() Profile {
	return Profile{
		PlayerName:    "pilot",
		ServerAddress: "localhost:7373",
	}
}

// ItemStore is the subset of *gdata.Manager the store needs.
type ItemStore interface {
	LoadItem(key string) ([]byte, error)
	SaveItem(key string, data []byte) error
}

type Store struct {
	items ItemStore
	log   *zap.Logger

	sensitivity float64
	loaded      bool
}

// Open returns a store backed by the platform data directory of appName.
func Open(appName string, log *zap.Logger) (*Store, error) {
	m, err := gdata.Open(gdata.Config{
		AppName: appName,
	})
	if err != nil {
		return nil, fmt.Errorf("open settings storage: %w", err)
	}
	return New(m, log), nil
}

func New(items ItemStore, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{items: items, log: log}
}

// Sensitivity returns the saved sensitivity, reading storage on first use.
// Missing or unreadable values yield the default.
func (s *Store) Sensitivity() float64 {
	if s.loaded {
		return s.sensitivity
	}
	s.loaded = true
	s.sensitivity = DefaultSensitivity

	data, err := s.items.LoadItem(SensitivityKey)
	if err != nil {
		s.log.Warn("could not load sensitivity", zap.Error(err))
		return s.sensitivity
	}
	if len(data) == 0 {
		return s.sensitivity
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		s.log.Warn("could not parse saved sensitivity", zap.Error(err))
		return s.sensitivity
	}
	s.sensitivity = clampSensitivity(v)
	return s.sensitivity
}

// SetSensitivity clamps v, saves it and returns the stored value.
func (s *Store) SetSensitivity(v float64) (float64, error) {
	v = clampSensitivity(v)
	s.sensitivity = v
	s.loaded = true
	if err := s.items.SaveItem(SensitivityKey, []byte(strconv.FormatFloat(v, 'g', -1, 64))); err != nil {
		return v, fmt.Errorf("save sensitivity: %w", err)
	}
	return v, nil
}

// LoadProfile returns the saved profile over the defaults.
func (s *Store) LoadProfile() Profile {
	out := DefaultProfile()
	data, err := s.items.LoadItem(profileKey)
	if err != nil {
		s.log.Warn("could not load settings", zap.Error(err))
		return out
	}
	if len(data) == 0 {
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		s.log.Warn("could not parse saved settings", zap.Error(err))
		return DefaultProfile()
	}
	return fillProfile(out)
}

func (s *Store) SaveProfile(p Profile) error {
	data, err := json.Marshal(fillProfile(p))
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := s.items.SaveItem(profileKey, data); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func clampSensitivity(v float64) float64 {
	if v == 0 {
		return DefaultSensitivity
	}
	return gamemath.Clamp(v, MinSensitivity, MaxSensitivity)
}

func fillProfile(p Profile) Profile {
	d := DefaultProfile()
	if p.PlayerName == "" {
		p.PlayerName = d.PlayerName
	}
	if p.ServerAddress == "" {
		p.ServerAddress = d.ServerAddress
	}
	return p
}
