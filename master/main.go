// Command master keeps the list of running game servers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/automoto/galaxia-mp/config"
	"go.uber.org/zap"
)

func main() {
	port := flag.Int("port", 8080, "HTTP listen port")
	ttl := flag.Duration("ttl", 90*time.Second, "Server TTL before expiry")
	level := flag.String("log-level", "info", "Log level")
	format := flag.String("log-format", "console", "Log format: console or json")
	flag.Parse()

	log, err := config.LoggingConfig{Level: *level, Format: *format}.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "master: init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := NewRegistry(*ttl, log)
	go reg.RunCleanup(30*time.Second, ctx.Done())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           NewRouter(reg, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("starting master", zap.String("addr", srv.Addr), zap.Duration("ttl", *ttl))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("master stopped", zap.Error(err))
	}
}
