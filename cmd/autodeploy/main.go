package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arfa79/tailscale/pkg/api"
	"github.com/arfa79/tailscale/pkg/cloud"
	"github.com/arfa79/tailscale/pkg/cloudinit"
	"github.com/arfa79/tailscale/pkg/config"
	"github.com/arfa79/tailscale/pkg/manager"
	"github.com/arfa79/tailscale/pkg/model"
	"github.com/arfa79/tailscale/pkg/probe"
	"github.com/arfa79/tailscale/pkg/store"
	"github.com/arfa79/tailscale/pkg/version"
)

const logFile = "auto-deploy.log"

var (
	showVersion bool

	rootCmd = &cobra.Command{
		Use:   "autodeploy",
		Short: "Tailscale exit node auto-deployment for DigitalOcean",
		Long: `Keeps a target number of healthy Tailscale exit nodes running on
DigitalOcean droplets, provisioning shortfall via cloud-init and retiring
nodes that fail their health checks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
)

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")
}

func run(cmd *cobra.Command, _ []string) error {
	if showVersion {
		fmt.Println(version.Build)
		return nil
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Sugar()
	log.Infof("application starting, version %s", version.Build)

	generator, err := cloudinit.NewGenerator(cfg.ShellsDir)
	if err != nil {
		return model.NewConfigError("cloud-init templates unavailable", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		return model.NewConfigError("opening state store failed", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider := cloud.NewClient(cfg.DOToken)
	placement, err := cloud.ResolvePlacement(ctx, provider, cfg.Region, cfg.ImageName, log)
	if err != nil {
		return err
	}

	metrics := manager.NewMetrics()
	mgr := manager.New(cfg, log, provider, placement, probe.NewHTTPProber(), generator, st, metrics)
	mgr.LoadState()

	if cfg.StatusAddr != "" {
		go api.Serve(ctx, cfg.StatusAddr, api.Handler(mgr.Tracker(), metrics.Registry()), log)
	}

	mgr.Run(ctx)
	log.Info("application finished")
	return nil
}

// buildLogger mirrors the daemon's two log sinks: human-readable console
// output plus a JSON file for later inspection.
func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stdout), lvl),
	}
	if f, ferr := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); ferr == nil {
		fileCfg := zap.NewProductionEncoderConfig()
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(f), lvl))
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var cfgErr *model.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(os.Stderr, "CRITICAL %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}
