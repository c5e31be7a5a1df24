package cmd

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomasbasham/rpcfixture"
)

// ConfigEnv names the environment variable holding an optional YAML config
// path. Without it the fixture listens on :8080 with the default timers.
const ConfigEnv = "RPCFIXTURE_CONFIG"

// Serve runs the fixture until it stops itself or the process is signalled.
func Serve(ctx context.Context) error {
	cfg := rpcfixture.DefaultConfig()
	if path := os.Getenv(ConfigEnv); path != "" {
		var err error
		if cfg, err = rpcfixture.LoadConfig(path); err != nil {
			return err
		}
	}

	logger := cfg.NewLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	defer l.Close()

	f := rpcfixture.New(cfg, logger)
	if err := f.Run(ctx, l); err != nil {
		return err
	}

	logger.Info("fixture stopped", "cause", f.Cause())
	return nil
}
