package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmunix/reelq/internal/config"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "reelqd",
	Short: "reelq media acquisition daemon",
	Long: `reelqd runs the item lifecycle engine and its scheduler.

The admin API listens on server.host:server.port. Without --config the
file is discovered through REELQ_CONFIG, ./config.toml, the XDG config
dir and /etc/reelq.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(_ *cobra.Command, _ []string) error {
		return runServer(configPath)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the config file and exit",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		path, err := resolveConfig(configPath)
		if err != nil {
			return err
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		for _, w := range cfg.Warnings() {
			fmt.Printf("warning: %s\n", w)
		}
		fmt.Printf("%s: ok (%d versions, %d indexers, %d content sources)\n",
			path, len(cfg.Versions), len(cfg.Scraping.Indexers), len(cfg.SourceNames()))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: discovered)")
	rootCmd.AddCommand(checkCmd)
	rootCmd.Version = version
	rootCmd.SetVersionTemplate("reelqd {{.Version}}\n")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
