package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/eventcompass/eventcompass/internal/ui"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe all backend and local data",
	Long: `Clear every backend collection, then the local mirror and the queued
edit log. The backend is wiped first: if that call fails, nothing local
is destroyed.

This is irreversible and requires --force.`,
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			fmt.Fprintln(os.Stderr, "Error: reset destroys all backend and local data; rerun with --force")
			os.Exit(1)
		}

		ctx := context.Background()
		logger := log.New(os.Stderr, "[reset] ", log.LstdFlags)

		svc, st, _, err := openService(ctx, logger)
		if err != nil {
			errExit("%v", err)
		}
		defer st.Close()

		if err := svc.Reset(ctx); err != nil {
			fmt.Println(ui.RenderFail("Reset failed, local data untouched") + ui.RenderMuted(fmt.Sprintf(" (%v)", err)))
			os.Exit(1)
		}
		fmt.Println(ui.RenderPass("Reset complete"))
	},
}

func init() {
	resetCmd.Flags().Bool("force", false, "Confirm the destructive reset")
	rootCmd.AddCommand(resetCmd)
}
