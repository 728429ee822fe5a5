package core

import (
	"time"

	"go.uber.org/zap"
)

type GameLoop struct {
	server   *Server
	interval time.Duration
	log      *zap.Logger
	stopChan chan struct{}
}

func NewGameLoop(server *Server, interval time.Duration, log *zap.Logger) *GameLoop {
	return &GameLoop{
		server:   server,
		interval: interval,
		log:      log,
		stopChan: make(chan struct{}),
	}
}

// Run ticks the server at a fixed step until Stop. The simulation always
// advances by the nominal interval so late ticks do not skip lasers through
// walls.
func (g *GameLoop) Run() {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	g.log.Info("game loop started", zap.Duration("interval", g.interval))

	for {
		select {
		case <-g.stopChan:
			g.log.Info("game loop stopped")
			return
		case <-ticker.C:
			g.server.tick(g.interval)
		}
	}
}

func (g *GameLoop) Stop() {
	close(g.stopChan)
}
