package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/eventcompass/eventcompass/internal/config"
	"github.com/eventcompass/eventcompass/internal/connectivity"
	"github.com/eventcompass/eventcompass/internal/remote"
	"github.com/eventcompass/eventcompass/internal/service"
	"github.com/eventcompass/eventcompass/internal/store"
)

var (
	cfgFile string
	loader  *config.Loader
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "eventcompass",
	Short: "Offline-first sync core for the EventCompass event roster",
	Long: `EventCompass keeps a local SQLite mirror of the event roster backend
(members, materials, schedules, tasks, to-dos) and an operation log of
edits made while disconnected. The sync command replays queued edits
against the backend in order, resolving locally minted ids to their
server-assigned replacements, then rebuilds the mirror from the
backend's canonical collections.

Configuration comes from defaults, an optional YAML file (--config),
and EVENTCOMPASS_* environment variables, with command flags taking
final precedence.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		loader, err = config.NewLoader(cfgFile)
		if err != nil {
			return err
		}
		cfg, err = loader.Load()
		if err != nil {
			return err
		}
		if api, _ := cmd.Flags().GetString("api"); api != "" {
			cfg.APIBaseURL = api
		}
		if db, _ := cmd.Flags().GetString("db"); db != "" {
			cfg.DatabasePath = db
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().String("api", "", "Backend base URL (overrides config)")
	rootCmd.PersistentFlags().String("db", "", "Local database path (overrides config)")
}

// openService assembles the store, client, connectivity flag, and service
// for one-shot commands. The flag is set from a single health probe so
// the façade picks the right path without a background monitor.
func openService(ctx context.Context, logger *log.Logger) (*service.Service, *store.Store, *connectivity.Flag, error) {
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database %s: %w", cfg.DatabasePath, err)
	}

	client := remote.New(cfg.APIBaseURL, nil)
	flag := connectivity.NewFlag(client.Health(ctx) == nil)

	svc := service.New(service.Config{
		Store:  st,
		Client: client,
		Signal: flag,
		Logger: logger,
	})
	if err := svc.Reload(ctx); err != nil {
		st.Close()
		return nil, nil, nil, err
	}
	return svc, st, flag, nil
}

func errExit(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
