package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/omochice/hubify/internal/config"
	"github.com/omochice/hubify/internal/logging"
	"github.com/omochice/hubify/internal/server"
)

type flags struct {
	config      string
	listen      string
	adminListen string
	logLevel    string
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
		Use:           "hubify-server",
		Short:         "Relay length-prefixed chat frames between TCP sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.config)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Server.Listen = f.listen
			}
			if cmd.Flags().Changed("admin-listen") {
				cfg.Server.AdminListen = f.adminListen
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = f.logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := logging.New(cfg.Log)
			return server.New(cfg.Server, server.WithLogger(logger)).Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&f.config, "config", "c", "", "path to a TOML config file")
	cmd.Flags().StringVar(&f.listen, "listen", config.DefaultListen, "relay listen address")
	cmd.Flags().StringVar(&f.adminListen, "admin-listen", config.DefaultAdminListen, `admin listen address for /healthz and /metrics ("" disables)`)
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level (overrides the config file)")
	return cmd
}
