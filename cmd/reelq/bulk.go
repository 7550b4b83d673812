package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var bulkCmd = &cobra.Command{
	Use:   "bulk <action> [ids...]",
	Short: "Apply an admin action to many items",
	Long: `Apply an admin action to many items in one transaction.

Actions: delete, move, rescrape, change_version, early_release,
force_priority, resync. Processing is paused while the action runs.

Examples:
  reelq bulk move 12 13 --state wanted
  reelq bulk change_version 40 --version 2160p
  reelq bulk resync`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBulkCmd,
}

func init() {
	rootCmd.AddCommand(bulkCmd)
	bulkCmd.Flags().String("state", "", "Target state for move")
	bulkCmd.Flags().String("version", "", "New version for change_version")
}

func runBulkCmd(cmd *cobra.Command, args []string) error {
	req := BulkRequest{Action: args[0]}
	req.State, _ = cmd.Flags().GetString("state")
	req.Version, _ = cmd.Flags().GetString("version")
	for _, a := range args[1:] {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid item ID: %s", a)
		}
		req.IDs = append(req.IDs, id)
	}

	client := NewClient(serverURL)
	resp, err := client.Bulk(req)
	if err != nil {
		return fmt.Errorf("bulk %s failed: %w", req.Action, err)
	}
	if jsonOutput {
		printJSON(resp)
		return nil
	}
	fmt.Printf("%s applied to %d items\n", resp.Action, resp.Affected)
	return nil
}
