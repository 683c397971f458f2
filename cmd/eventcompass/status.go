package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/eventcompass/eventcompass/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local mirror contents and the queued edit backlog",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		logger := log.New(os.Stderr, "[status] ", log.LstdFlags)

		svc, st, flag, err := openService(ctx, logger)
		if err != nil {
			errExit("%v", err)
		}
		defer st.Close()

		pending, err := svc.PendingOperations(ctx)
		if err != nil {
			errExit("%v", err)
		}

		online := ui.RenderPass("online")
		if !flag.Online() {
			online = ui.RenderFail("offline")
		}

		fmt.Printf("Backend:   %s (%s)\n", cfg.APIBaseURL, online)
		fmt.Printf("Database:  %s\n", st.Path())
		fmt.Println()
		fmt.Printf("Members:   %d\n", len(svc.Members()))
		fmt.Printf("Materials: %d\n", len(svc.Materials()))
		fmt.Printf("Schedules: %d\n", len(svc.Schedules()))
		fmt.Printf("Tasks:     %d\n", len(svc.Tasks()))
		fmt.Printf("Todos:     %d\n", len(svc.Todos()))
		fmt.Println()
		if pending == 0 {
			fmt.Println(ui.RenderPass("No queued edits"))
		} else {
			fmt.Println(ui.RenderAccent(fmt.Sprintf("%d queued edits", pending)) + ui.RenderMuted(" (run 'eventcompass sync' to replay)"))
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
