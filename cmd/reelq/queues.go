package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var queuesCmd = &cobra.Command{
	Use:   "queues [name]",
	Short: "Show queue sizes, or the items of one queue",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runQueuesCmd,
}

var pauseCmd = &cobra.Command{
	Use:   "pause [reason]",
	Short: "Pause queue processing",
	RunE:  runPauseCmd,
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume queue processing",
	Args:  cobra.NoArgs,
	RunE:  runResumeCmd,
}

func init() {
	rootCmd.AddCommand(queuesCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
}

func runQueuesCmd(_ *cobra.Command, args []string) error {
	client := NewClient(serverURL)
	if len(args) == 1 {
		q, err := client.Queue(args[0])
		if err != nil {
			return fmt.Errorf("queue fetch failed: %w", err)
		}
		if jsonOutput {
			printJSON(q)
			return nil
		}
		printQueue(q)
		return nil
	}

	resp, err := client.Queues()
	if err != nil {
		return fmt.Errorf("queue fetch failed: %w", err)
	}
	if jsonOutput {
		printJSON(resp)
		return nil
	}
	printQueues(resp)
	return nil
}

func printQueues(resp *ListQueuesResponse) {
	if resp.Paused {
		fmt.Println("Processing is paused")
		fmt.Println()
	}
	for _, q := range resp.Queues {
		fmt.Printf("  %-18s %d\n", q.Name, q.Size)
	}
}

func printQueue(q *QueueResponse) {
	fmt.Printf("%s (%d):\n", q.Name, q.Size)
	for _, it := range q.Items {
		fmt.Printf("  %6d  %s\n", it.ID, itemLabel(it))
	}
}

func runPauseCmd(_ *cobra.Command, args []string) error {
	client := NewClient(serverURL)
	resp, err := client.Pause(strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("pause failed: %w", err)
	}
	if jsonOutput {
		printJSON(resp)
		return nil
	}
	reason := ""
	if resp.Pause != nil {
		reason = resp.Pause.Reason
	}
	fmt.Printf("Processing paused: %s\n", reason)
	return nil
}

func runResumeCmd(_ *cobra.Command, _ []string) error {
	client := NewClient(serverURL)
	resp, err := client.Resume()
	if err != nil {
		return fmt.Errorf("resume failed: %w", err)
	}
	if jsonOutput {
		printJSON(resp)
		return nil
	}
	fmt.Println("Processing resumed")
	return nil
}
