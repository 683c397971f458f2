package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/eventcompass/eventcompass/internal/engine"
	"github.com/eventcompass/eventcompass/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay queued edits against the backend and refresh the local mirror",
	Long: `Run one reconciliation pass: drain the operation log in enqueue order,
resolving locally minted ids to server-assigned ones, then rebuild the
local mirror from the backend's canonical collections.

A pass that cannot reach the backend leaves every queued edit intact;
rerun sync once connectivity returns.

Example usage:
  eventcompass sync
  eventcompass sync --api http://localhost:8000`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		logger := log.New(os.Stderr, "[sync] ", log.LstdFlags)

		svc, st, flag, err := openService(ctx, logger)
		if err != nil {
			errExit("%v", err)
		}
		defer st.Close()

		pending, err := svc.PendingOperations(ctx)
		if err != nil {
			errExit("%v", err)
		}

		if !flag.Online() {
			fmt.Println(ui.RenderFail("Backend unreachable") + ui.RenderMuted(fmt.Sprintf(" (%d queued edits kept)", pending)))
			os.Exit(1)
		}

		fmt.Printf("Replaying %s queued edits against %s\n", ui.RenderAccent(fmt.Sprintf("%d", pending)), cfg.APIBaseURL)
		svc.SyncNow(ctx)

		if svc.SyncState() != engine.StateIdle {
			remaining, _ := svc.PendingOperations(ctx)
			fmt.Println(ui.RenderFail("Sync failed") + ui.RenderMuted(fmt.Sprintf(" (%d queued edits kept)", remaining)))
			os.Exit(1)
		}
		fmt.Println(ui.RenderPass("Sync complete"))
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
