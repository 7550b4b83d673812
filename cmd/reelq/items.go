package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vmunix/reelq/internal/item"
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List media items",
	Long: `List media items, optionally filtered by state and type.

Examples:
  reelq items                          # First page of every item
  reelq items --state sleeping,wanted  # Items waiting for a release
  reelq items --type episode --limit 200`,
	Args: cobra.NoArgs,
	RunE: runItemsCmd,
}

var itemCmd = &cobra.Command{
	Use:   "item <id>",
	Short: "Show one media item",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemCmd,
}

func init() {
	rootCmd.AddCommand(itemsCmd)
	rootCmd.AddCommand(itemCmd)
	itemsCmd.Flags().StringP("state", "s", "", "Filter by state (comma separated)")
	itemsCmd.Flags().StringP("type", "t", "", "Filter by type (movie, episode)")
	itemsCmd.Flags().Int("limit", 50, "Maximum items to show")
	itemsCmd.Flags().Int("offset", 0, "Items to skip")
}

func runItemsCmd(cmd *cobra.Command, _ []string) error {
	var f ItemFilter
	f.State, _ = cmd.Flags().GetString("state")
	f.Type, _ = cmd.Flags().GetString("type")
	f.Limit, _ = cmd.Flags().GetInt("limit")
	f.Offset, _ = cmd.Flags().GetInt("offset")

	client := NewClient(serverURL)
	resp, err := client.Items(f)
	if err != nil {
		return fmt.Errorf("list items failed: %w", err)
	}
	if jsonOutput {
		printJSON(resp)
		return nil
	}
	printItems(resp)
	return nil
}

func printItems(resp *ListItemsResponse) {
	if len(resp.Items) == 0 {
		fmt.Println("No items")
		return
	}
	fmt.Printf("Items (%d of %d):\n\n", len(resp.Items), resp.Total)
	fmt.Printf(" %6s │ %-50s │ %-16s │ %s\n", "ID", "TITLE", "STATE", "WAKES")
	fmt.Println("────────┼────────────────────────────────────────────────────┼──────────────────┼──────")
	for _, it := range resp.Items {
		fmt.Printf(" %6d │ %-50s │ %-16s │ %d\n", it.ID, truncate(itemLabel(it), 50), it.State, it.WakeCount)
	}
}

func runItemCmd(_ *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid item ID: %s", args[0])
	}
	client := NewClient(serverURL)
	it, err := client.Item(id)
	if err != nil {
		return fmt.Errorf("get item failed: %w", err)
	}
	if jsonOutput {
		printJSON(it)
		return nil
	}
	printItem(it)
	return nil
}

func printItem(it *item.MediaItem) {
	fmt.Printf("ID:         %d\n", it.ID)
	fmt.Printf("Title:      %s\n", it.DisplayName())
	fmt.Printf("Type:       %s\n", it.Type)
	if it.IMDBID != nil {
		fmt.Printf("IMDb:       %s\n", *it.IMDBID)
	}
	fmt.Printf("Version:    %s\n", it.Version)
	fmt.Printf("State:      %s\n", it.State)
	if it.ReleaseDate != nil {
		fmt.Printf("Released:   %s\n", it.ReleaseDate.Format("2006-01-02"))
	}
	if it.FilledByTitle != nil {
		fmt.Printf("Release:    %s\n", *it.FilledByTitle)
	}
	if it.LocationOnDisk != nil {
		fmt.Printf("Location:   %s\n", *it.LocationOnDisk)
	}
	if it.UpgradingFrom != nil {
		fmt.Printf("Upgrading:  from %s\n", *it.UpgradingFrom)
	}
	fmt.Printf("Wakes:      %d\n", it.WakeCount)
	if it.ContentSource != "" {
		fmt.Printf("Source:     %s\n", it.ContentSource)
	}
}
