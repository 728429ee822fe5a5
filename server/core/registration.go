package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/automoto/galaxia-mp/config"
	"go.uber.org/zap"
)

// errNotRegistered is returned by a heartbeat the master no longer knows.
var errNotRegistered = errors.New("master lost our registration")

// PlayerCounter reports the live player count.
type PlayerCounter interface {
	PlayerCount() int
}

// Registration handles registering and heartbeating with the master server.
type Registration struct {
	cfg        config.MasterConfig
	name       string
	version    string
	maxPlayers int
	players    PlayerCounter
	client     *http.Client
	log        *zap.Logger

	serverID string
}

type regRequest struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
	Version    string `json:"version"`
	Region     string `json:"region"`
}

type regResponse struct {
	ID string `json:"id"`
}

type heartbeatRequest struct {
	ID      string `json:"id"`
	Players int    `json:"players"`
}

func NewRegistration(cfg *config.Config, players PlayerCounter, log *zap.Logger) *Registration {
	return &Registration{
		cfg:        cfg.Master,
		name:       cfg.Server.Name,
		version:    cfg.Server.Version,
		maxPlayers: cfg.Session.MaxPlayers,
		players:    players,
		client:     &http.Client{Timeout: 5 * time.Second},
		log:        log.With(zap.String("component", "registration")),
	}
}

// Run registers and then heartbeats until ctx is done.
func (r *Registration) Run(ctx context.Context) {
	if err := r.register(ctx); err != nil {
		r.log.Warn("initial registration failed", zap.Error(err))
	}

	interval := r.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.heartbeat(ctx); err != nil {
				r.log.Warn("heartbeat failed", zap.Error(err))
			}
		}
	}
}

// ServerID is the id the master assigned, empty until registered.
func (r *Registration) ServerID() string { return r.serverID }

func (r *Registration) register(ctx context.Context) error {
	var result regResponse
	status, err := r.post(ctx, "/servers/register", regRequest{
		Name:       r.name,
		Address:    r.cfg.Address,
		Players:    r.players.PlayerCount(),
		MaxPlayers: r.maxPlayers,
		Version:    r.version,
		Region:     r.cfg.Region,
	}, &result)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("unexpected status: %d", status)
	}

	r.serverID = result.ID
	r.log.Info("registered with master", zap.String("id", r.serverID))
	return nil
}

func (r *Registration) heartbeat(ctx context.Context) error {
	if r.serverID == "" {
		return r.register(ctx)
	}
	status, err := r.post(ctx, "/servers/heartbeat", heartbeatRequest{
		ID:      r.serverID,
		Players: r.players.PlayerCount(),
	}, nil)
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		r.log.Info("re-registering", zap.Error(errNotRegistered))
		r.serverID = ""
		return r.register(ctx)
	}
	return fmt.Errorf("unexpected status: %d", status)
}

func (r *Registration) post(ctx context.Context, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode: %w", err)
		}
	}
	return resp.StatusCode, nil
}
