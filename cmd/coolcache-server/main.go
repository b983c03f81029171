package main

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/coolcache/coolcache/internal/config"
	"github.com/coolcache/coolcache/internal/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "coolcache-server:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	srv := server.New(cfg, log)
	if err := srv.Bootstrap(); err != nil {
		return err
	}

	if cfg.ReplicaOf != "" {
		if err := srv.StartFollower(cfg.ReplicaOf); err != nil {
			return err
		}
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", srv.Metrics.Handler())
		go func() {
			log.Info("metrics listener starting", "addr", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Error("metrics listener failed", "err", err)
			}
		}()
	}

	ln, err := net.Listen("tcp", cfg.Address())
	if err != nil {
		return fmt.Errorf("bind %s: %w", cfg.Address(), err)
	}
	role := "leader"
	if cfg.ReplicaOf != "" {
		role = "follower"
	}
	log.Info("coolcache listening", "addr", cfg.Address(), "role", role)

	return srv.Serve(ln)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
