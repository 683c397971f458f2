package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/eventcompass/eventcompass/internal/config"
	"github.com/eventcompass/eventcompass/internal/connectivity"
	"github.com/eventcompass/eventcompass/internal/dashboard"
	"github.com/eventcompass/eventcompass/internal/remote"
	"github.com/eventcompass/eventcompass/internal/service"
	"github.com/eventcompass/eventcompass/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync agent with a connectivity monitor and WebSocket dashboard",
	Long: `Run the long-lived sync agent. A connectivity monitor probes the
backend's health endpoint on an interval and triggers a reconciliation
pass on every offline-to-online transition; there is no periodic resync.
A WebSocket dashboard broadcasts entity changes, sync state transitions,
and completion stats to connected clients.

When log_file is configured, logs rotate through it instead of stderr.
The config file is watched: changing api_base_url repoints the backend
without a restart.

Example usage:
  eventcompass serve
  eventcompass serve --port 9000`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		if port == 0 {
			port = cfg.DashboardPort
		}

		var logOut io.Writer = os.Stderr
		if cfg.LogFile != "" {
			logOut = &lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    10, // megabytes
				MaxBackups: 5,
				MaxAge:     30, // days
			}
		}
		logger := log.New(logOut, "[serve] ", log.LstdFlags)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := store.Open(cfg.DatabasePath)
		if err != nil {
			errExit("failed to open database %s: %v", cfg.DatabasePath, err)
		}
		defer st.Close()

		client := remote.New(cfg.APIBaseURL, nil)

		var monitor *connectivity.Monitor
		svc := service.New(service.Config{
			Store:  st,
			Client: client,
			Signal: connectivity.SignalFunc(func() bool { return monitor.Online() }),
			Logger: logger,
		})
		if err := svc.Reload(ctx); err != nil {
			errExit("%v", err)
		}

		monitor = connectivity.NewMonitor(client, connectivity.MonitorOptions{
			Interval: cfg.ProbeInterval,
			Logger:   logger,
			OnOnline: func() {
				svc.SyncNow(ctx)
			},
		})

		server := dashboard.NewServer(&dashboard.Config{
			Port:   port,
			Logger: logger,
		})
		if err := server.Start(); err != nil {
			errExit("failed to start dashboard: %v", err)
		}

		handler := dashboard.NewHandler(server, svc, logger)
		handler.Start()

		if err := monitor.Start(ctx); err != nil {
			errExit("failed to start connectivity monitor: %v", err)
		}

		loader.Watch(func(next config.Config) {
			if next.APIBaseURL != "" && next.APIBaseURL != client.BaseURL() {
				logger.Printf("Backend repointed to %s", next.APIBaseURL)
				client.SetBaseURL(next.APIBaseURL)
			}
		})

		fmt.Printf("Sync agent running, dashboard on http://localhost:%d (ws://localhost:%d/ws)\n", port, port)
		fmt.Println("Press Ctrl+C to stop...")

		<-ctx.Done()

		fmt.Println("\nShutting down...")
		monitor.Stop()
		handler.Stop()
		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "Dashboard port (defaults to dashboard_port from config)")
	rootCmd.AddCommand(serveCmd)
}
