package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type registerRequest struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
	Version    string `json:"version"`
	Region     string `json:"region"`
}

type registerResponse struct {
	ID string `json:"id"`
}

type heartbeatRequest struct {
	ID      string `json:"id"`
	Players int    `json:"players"`
}

const maxRequestBody = 1 << 16 // 64 KB

// NewRouter builds the master HTTP API. It holds no listener so tests can
// drive it with httptest.
func NewRouter(reg *Registry, log *zap.Logger) *chi.Mux {
	h := &handlers{reg: reg, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", h.health)
	r.Route("/servers", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/register", h.register)
		r.Post("/heartbeat", h.heartbeat)
	})
	return r
}

type handlers struct {
	reg *Registry
	log *zap.Logger
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	servers := h.reg.List()
	if r.URL.Query().Get("open") == "1" {
		open := servers[:0]
		for _, s := range servers {
			if !s.Full() {
				open = append(open, s)
			}
		}
		servers = open
	}
	h.writeJSON(w, http.StatusOK, servers)
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name == "" || req.Address == "" {
		h.writeError(w, http.StatusBadRequest, "name and address required")
		return
	}

	id := h.reg.Register(ServerInfo{
		Name:       req.Name,
		Address:    req.Address,
		Players:    req.Players,
		MaxPlayers: req.MaxPlayers,
		Version:    req.Version,
		Region:     req.Region,
	})

	h.log.Info("registered server",
		zap.String("name", req.Name),
		zap.String("address", req.Address),
		zap.String("id", id))

	h.writeJSON(w, http.StatusCreated, registerResponse{ID: id})
}

func (h *handlers) heartbeat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if !h.reg.Heartbeat(req.ID, req.Players) {
		h.writeError(w, http.StatusNotFound, "unknown server")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "servers": h.reg.Len()})
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("encode response", zap.Error(err))
	}
}

func (h *handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
