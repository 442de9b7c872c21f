package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/lovelyswap/golovelyd/internal/config"
	"github.com/lovelyswap/golovelyd/internal/node"
	"github.com/lovelyswap/golovelyd/internal/rpc"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the exchange node",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	log, err := buildLogger(&cfg.Logging)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	n, err := node.New(cfg, log)
	if err != nil {
		return err
	}
	defer n.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := rpc.NewServer(n, &cfg.Server, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return api.Serve(ctx) })
	g.Go(func() error { return n.Run(ctx) })

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("node stopped", zap.Error(err))
		return err
	}
	log.Info("node stopped")
	return nil
}

func buildLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); err != nil {
		return nil, err
	}

	// Flags override the configured level.
	switch {
	case debug:
		level = zapcore.DebugLevel
	case verbose:
		level = zapcore.InfoLevel
	case quiet:
		level = zapcore.ErrorLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
