package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List scheduler tasks",
	Args:  cobra.NoArgs,
	RunE:  runTasksCmd,
}

var triggerCmd = &cobra.Command{
	Use:   "trigger <task>",
	Short: "Queue a one-shot run of a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTriggerCmd,
}

var jobCmd = &cobra.Command{
	Use:   "job [id]",
	Short: "Show a triggered job, or every recent job",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJobCmd,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(jobCmd)
}

func runTasksCmd(_ *cobra.Command, _ []string) error {
	client := NewClient(serverURL)
	tasks, err := client.Tasks()
	if err != nil {
		return fmt.Errorf("list tasks failed: %w", err)
	}
	if jsonOutput {
		printJSON(tasks)
		return nil
	}

	now := time.Now()
	fmt.Printf(" %-20s │ %-14s │ %-10s │ %-10s │ %s\n", "TASK", "SCHEDULE", "NEXT", "LAST", "ERROR")
	fmt.Println("──────────────────────┼────────────────┼────────────┼────────────┼──────")
	for _, t := range tasks {
		name := t.Name
		if !t.Enabled {
			name += " (off)"
		}
		last := "-"
		if t.LastRun != nil {
			last = formatAgo(*t.LastRun, now)
		}
		fmt.Printf(" %-20s │ %-14s │ %-10s │ %-10s │ %s\n",
			name, t.Schedule, formatAgo(t.NextRun, now), last, truncate(t.LastError, 40))
	}
	return nil
}

func runTriggerCmd(_ *cobra.Command, args []string) error {
	client := NewClient(serverURL)
	resp, err := client.Trigger(args[0])
	if err != nil {
		return fmt.Errorf("trigger %s failed: %w", args[0], err)
	}
	if jsonOutput {
		printJSON(resp)
		return nil
	}
	fmt.Printf("Triggered %s (job %s)\n", resp.Task, resp.JobID)
	return nil
}

func runJobCmd(_ *cobra.Command, args []string) error {
	client := NewClient(serverURL)
	if len(args) == 0 {
		jobs, err := client.Jobs()
		if err != nil {
			return fmt.Errorf("list jobs failed: %w", err)
		}
		if jsonOutput {
			printJSON(jobs)
			return nil
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs")
		}
		for _, j := range jobs {
			printJob(&j)
		}
		return nil
	}

	job, err := client.Job(args[0])
	if err != nil {
		return fmt.Errorf("get job failed: %w", err)
	}
	if jsonOutput {
		printJSON(job)
		return nil
	}
	printJob(job)
	return nil
}

func printJob(j *JobResponse) {
	fmt.Printf("%s  %-20s %-10s", j.ID, j.Task, j.Status)
	if j.StartedAt != nil && j.FinishedAt != nil {
		fmt.Printf(" %s", j.FinishedAt.Sub(*j.StartedAt).Round(time.Millisecond))
	}
	if j.Error != "" {
		fmt.Printf(" error: %s", j.Error)
	}
	fmt.Println()
}
