package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var notWantedCmd = &cobra.Command{
	Use:   "notwanted [value]",
	Short: "List, remove or purge not-wanted hashes and URLs",
	Long: `List the not-wanted registry.

With a value, removes that hash or URL. With --purge, clears both sets.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNotWantedCmd,
}

func init() {
	rootCmd.AddCommand(notWantedCmd)
	notWantedCmd.Flags().Bool("purge", false, "Remove every entry")
}

func runNotWantedCmd(cmd *cobra.Command, args []string) error {
	client := NewClient(serverURL)
	purge, _ := cmd.Flags().GetBool("purge")

	switch {
	case purge:
		if err := client.PurgeNotWanted(); err != nil {
			return fmt.Errorf("purge failed: %w", err)
		}
		fmt.Println("Not-wanted registry purged")
		return nil
	case len(args) == 1:
		if err := client.RemoveNotWanted(args[0]); err != nil {
			return fmt.Errorf("remove failed: %w", err)
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	}

	resp, err := client.NotWanted()
	if err != nil {
		return fmt.Errorf("list not-wanted failed: %w", err)
	}
	if jsonOutput {
		printJSON(resp)
		return nil
	}
	fmt.Printf("Hashes (%d):\n", len(resp.Hashes))
	for _, h := range resp.Hashes {
		fmt.Printf("  %s\n", h)
	}
	fmt.Printf("URLs (%d):\n", len(resp.URLs))
	for _, u := range resp.URLs {
		fmt.Printf("  %s\n", u)
	}
	return nil
}
