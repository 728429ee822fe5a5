// Command galaxia is a headless client: it joins a server, mirrors the
// session and drives the local ship with a simple strafing pattern.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/automoto/galaxia-mp/config"
	"github.com/automoto/galaxia-mp/network"
	"github.com/automoto/galaxia-mp/server/laser"
	"github.com/automoto/galaxia-mp/server/player"
	"github.com/automoto/galaxia-mp/settings"
	"github.com/automoto/galaxia-mp/shared/gamemath"
	"github.com/automoto/galaxia-mp/shared/leveldata"
	"github.com/automoto/galaxia-mp/shared/messages"
	"github.com/automoto/galaxia-mp/shared/netconfig"
	"github.com/automoto/galaxia-mp/shared/protocol"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "galaxia: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv(config.EnvPath), "Path to TOML config")
	addr := flag.String("addr", "", "Server address (host:port), defaults to the saved one")
	name := flag.String("name", "", "Player name, defaults to the saved one")
	sens := flag.Float64("sensitivity", 0, "Turn sensitivity, defaults to the saved one")
	save := flag.Bool("save", false, "Remember -addr, -name and -sensitivity for the next run")
	duration := flag.Duration("duration", 0, "Leave after this long (0 = until the session ends)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	log, err := cfg.Logging.NewLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	profile := settings.DefaultProfile()
	sensitivity := settings.DefaultSensitivity
	store, err := settings.Open("galaxia", log)
	if err != nil {
		log.Warn("settings unavailable, using defaults", zap.Error(err))
	} else {
		profile = store.LoadProfile()
		sensitivity = store.Sensitivity()
	}
	if *addr != "" {
		profile.ServerAddress = *addr
	}
	if *name != "" {
		profile.PlayerName = *name
	}
	if *sens > 0 {
		sensitivity = *sens
	}
	if *save && store != nil {
		if err := store.SaveProfile(profile); err != nil {
			log.Warn("could not save settings", zap.Error(err))
		}
		if sensitivity, err = store.SetSensitivity(sensitivity); err != nil {
			log.Warn("could not save sensitivity", zap.Error(err))
		}
	}

	if err := protocol.RegisterComponents(); err != nil {
		return fmt.Errorf("register components: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	arenas, _, err := leveldata.LoadAllArenas(os.DirFS(cfg.Server.AssetsDir), "levels")
	if err != nil {
		log.Warn("levels unavailable, local lasers will not bounce", zap.Error(err))
	}

	client := network.NewClient(log)
	defer client.Disconnect()

	ended := make(chan string, 1)
	observer := network.NewObserver(network.ObserverOptions{
		Player: player.Config{
			MaxHealth:       cfg.Player.MaxHealth,
			TimeBetweenFire: cfg.Player.TimeBetweenFire,
			MuzzleOffset:    cfg.Player.MuzzleOffset,
			DeathMessage:    cfg.Player.DeathMessage,
			DeathMessageFor: cfg.Player.DeathMessageFor,
		},
		Laser: laser.Config{
			Speed:      cfg.Laser.Speed,
			MaxBounces: cfg.Laser.MaxBounces,
			Damage:     cfg.Laser.Damage,
		},
		Arenas:     arenas,
		BodyWidth:  cfg.Player.BodyWidth,
		BodyHeight: cfg.Player.BodyHeight,
		Requester:  client,
		Presenter:  logPresenter{log: log},
		Log:        log,
		OnTeardown: func(reason string) { ended <- reason },
	})

	log.Info("connecting",
		zap.String("address", profile.ServerAddress),
		zap.String("name", profile.PlayerName))
	client.Connect(profile.ServerAddress, messages.JoinPayload{
		Name:    profile.PlayerName,
		Version: cfg.Server.Version,
	})

	pilot := newPilot(sensitivity)
	interval := cfg.TickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("leaving")
			return nil
		case reason := <-ended:
			log.Info("session ended", zap.String("reason", reason))
			return nil
		case <-ticker.C:
		}

		if st := client.State(); st == network.StateError && !observer.Ended() {
			return client.LastError()
		}
		for _, msg := range client.Drain() {
			observer.Handle(msg)
		}
		if snap := client.LatestSnapshot(); snap != nil {
			network.ApplySnapshot(observer, *snap)
		}
		observer.Update(interval)

		self, ok := observer.LocalPlayer()
		if !ok || !self.IsAlive() {
			continue
		}
		if err := observer.Move(pilot.next(self.Pose(), interval)); err != nil {
			log.Debug("move failed", zap.Error(err))
		}
		if _, err := observer.Fire(); err != nil {
			log.Debug("fire failed", zap.Error(err))
		}
	}
}

// pilot turns the ship at a constant rate and drifts forward.
type pilot struct {
	turnRate float64 // radians per second
	speed    float64 // pixels per second
}

func newPilot(sensitivity float64) *pilot {
	return &pilot{turnRate: 0.8 * sensitivity, speed: 40}
}

func (p *pilot) next(cur gamemath.Pose, dt time.Duration) gamemath.Pose {
	secs := dt.Seconds()
	angle := math.Atan2(cur.Facing.Y, cur.Facing.X) + p.turnRate*secs
	facing := gamemath.V(math.Cos(angle), math.Sin(angle))
	return gamemath.Pose{
		Position: cur.Position.Add(facing.Scale(p.speed * secs)),
		Facing:   facing,
	}
}

type logPresenter struct {
	log *zap.Logger
}

func (p logPresenter) SetVisible(id netconfig.Identity, visible bool) {
	p.log.Debug("visibility", zap.Stringer("identity", id), zap.Bool("visible", visible))
}

func (p logPresenter) ShowMessage(text string, d time.Duration) {
	p.log.Info(text, zap.Duration("for", d))
}
