package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmunix/reelq/internal/item"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Daemon status and queue summary",
	Args:  cobra.NoArgs,
	RunE:  runStatusCmd,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatusCmd(_ *cobra.Command, _ []string) error {
	client := NewClient(serverURL)
	status, err := client.Status()
	if err != nil {
		return fmt.Errorf("status check failed: %w", err)
	}

	if jsonOutput {
		printJSON(status)
		return nil
	}
	printStatus(serverURL, status, time.Now())
	return nil
}

func printStatus(server string, s *StatusResponse, now time.Time) {
	fmt.Printf("Server:     %s (%s)\n", server, s.Status)
	fmt.Printf("Version:    %s\n", s.Version)
	if s.Paused && s.Pause != nil {
		fmt.Printf("Processing: paused since %s: %s", formatAgo(s.Pause.Since, now), s.Pause.Reason)
		if s.Pause.ErrorType != "" {
			fmt.Printf(" (%s)", s.Pause.ErrorType)
		}
		fmt.Println()
	} else {
		fmt.Println("Processing: running")
	}

	if len(s.States) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Items:")
	for _, st := range item.States {
		if n, ok := s.States[string(st)]; ok {
			fmt.Printf("  %-18s %d\n", st, n)
		}
	}
}
