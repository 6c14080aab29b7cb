package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/omochice/hubify/internal/bridge"
	"github.com/omochice/hubify/internal/config"
	"github.com/omochice/hubify/internal/logging"
	"github.com/omochice/hubify/internal/metrics"
	"github.com/omochice/hubify/internal/session"
	wstransport "github.com/omochice/hubify/internal/transport/ws"
)

type flags struct {
	config        string
	addr          string
	ui            string
	uiListen      string
	metricsListen string
	logLevel      string
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "hubify-client",
		Short: "Chat over a length-prefixed TCP session",
		Long: `hubify-client opens one TCP session to a hubify relay and bridges it to a UI.

The terminal UI reads lines from stdin. The ws UI serves a WebSocket
endpoint at /ws for a browser front-end.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&f.config, "config", "c", "", "path to a TOML config file")
	cmd.Flags().StringVar(&f.addr, "addr", session.DefaultAddr, "relay address")
	cmd.Flags().StringVar(&f.ui, "ui", config.UITerminal, `front-end: "terminal" or "ws"`)
	cmd.Flags().StringVar(&f.uiListen, "ui-listen", config.DefaultUIListen, "listen address for the ws front-end")
	cmd.Flags().StringVar(&f.metricsListen, "metrics-listen", "", `listen address for /metrics ("" disables)`)
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level (overrides the config file)")
	return cmd
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command, f flags) (config.Config, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Client.Addr = f.addr
	}
	if cmd.Flags().Changed("ui") {
		cfg.Client.UI = f.ui
	}
	if cmd.Flags().Changed("ui-listen") {
		cfg.Client.UIListen = f.uiListen
	}
	if cmd.Flags().Changed("metrics-listen") {
		cfg.Client.MetricsListen = f.metricsListen
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	return cfg, cfg.Validate()
}

// service is a listener-backed front-end started alongside the session.
type service interface {
	Start() error
	Stop()
}

func run(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.New(cfg.Log)
	component := func(name string) zerolog.Logger {
		return logger.With().Str(logging.PACKAGE, name).Logger()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	b := bridge.New(bridge.WithLogger(component("bridge")))
	defer b.Close()

	var services []service
	stopAll := func() {
		for _, svc := range services {
			svc.Stop()
		}
	}

	if cfg.Client.MetricsListen != "" {
		ms := metrics.NewServer(cfg.Client.MetricsListen, reg, metrics.WithLogger(component("metrics")))
		if err := ms.Listen(); err != nil {
			return err
		}
		services = append(services, ms)
	}
	if cfg.Client.UI == config.UIWS {
		ui := wstransport.New(cfg.Client.UIListen, b, wstransport.WithLogger(component("ws")))
		if err := ui.Listen(); err != nil {
			stopAll()
			return err
		}
		services = append(services, ui)
	}

	s, err := session.Dial(ctx, cfg.Client.Session(), b,
		session.WithLogger(component("session")),
		session.WithMetrics(metrics.NewSession(reg)),
	)
	if err != nil {
		stopAll()
		return err
	}
	b.Attach(s)

	var quitting atomic.Bool
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runSession(gctx, s, b, &quitting, logger)
	})

	for _, svc := range services {
		g.Go(svc.Start)
	}
	if len(services) > 0 {
		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-b.Done():
			}
			stopAll()
			return nil
		})
	}

	if cfg.Client.UI != config.UIWS {
		g.Go(func() error {
			defer func() {
				quitting.Store(true)
				s.Close()
			}()
			return bridge.RunTerminal(gctx, b, os.Stdin, os.Stdout)
		})
	}

	return g.Wait()
}

type runner interface {
	Run(ctx context.Context) error
}

// runSession runs s until it ends, then closes b so every front-end exits.
// The last log line says why the client is going away.
func runSession(ctx context.Context, s runner, b *bridge.Bridge, quitting *atomic.Bool, logger zerolog.Logger) error {
	defer b.Close()

	err := s.Run(ctx)
	switch {
	case err != nil:
		logger.Error().Err(err).Msg("connection to relay failed, exiting")
	case ctx.Err() != nil || quitting.Load():
		logger.Info().Msg("shutting down")
	default:
		logger.Warn().Msg("relay closed the connection, exiting")
	}
	return err
}
