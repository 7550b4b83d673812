package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vmunix/reelq/internal/config"
	"github.com/vmunix/reelq/pkg/release"
	"github.com/vmunix/reelq/pkg/release/scoring"
)

// ParseResult is the JSON form of a parsed release name.
type ParseResult struct {
	Name       string `json:"name"`
	Title      string `json:"title"`
	Year       int    `json:"year,omitempty"`
	Seasons    []int  `json:"seasons,omitempty"`
	Episodes   []int  `json:"episodes,omitempty"`
	Resolution string `json:"resolution"`
	Source     string `json:"source"`
	Codec      string `json:"codec"`
	HDR        string `json:"hdr,omitempty"`
	Audio      string `json:"audio,omitempty"`
	Remux      bool   `json:"remux,omitempty"`
	Group      string `json:"group,omitempty"`
	CleanTitle string `json:"clean_title"`
	Version    string `json:"version,omitempty"`
	Score      int    `json:"score,omitempty"`
	Accepted   *bool  `json:"accepted,omitempty"`
}

var parseCmd = &cobra.Command{
	Use:   "parse <release-name>...",
	Short: "Parse release names (local, no server needed)",
	Long: `Parse release names and optionally score them against a version.

Examples:
  reelq parse "The.Matrix.1999.2160p.UHD.BluRay.x265-GROUP"
  reelq parse --version 1080p --config config.toml "Movie.2024.1080p.WEB-DL.x264-GROUP"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParseCmd,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().String("version", "", "Score against this version")
	parseCmd.Flags().String("config", "", "Path to config file (default: discovered)")
	parseCmd.Flags().Int64("size", 0, "Release size in MB for size limits")
}

func runParseCmd(cmd *cobra.Command, args []string) error {
	versionName, _ := cmd.Flags().GetString("version")
	configPath, _ := cmd.Flags().GetString("config")
	sizeMB, _ := cmd.Flags().GetInt64("size")

	var profile *scoring.Profile
	if versionName != "" {
		p, err := loadProfile(configPath, versionName)
		if err != nil {
			return err
		}
		profile = &p
	}

	results := make([]ParseResult, 0, len(args))
	for _, name := range args {
		r := parseRelease(name)
		if profile != nil {
			score, ok := scoring.Evaluate(release.Parse(name), sizeMB<<20, *profile)
			r.Version, r.Score, r.Accepted = versionName, score, &ok
		}
		results = append(results, r)
	}

	if jsonOutput {
		printJSON(results)
		return nil
	}
	for i, r := range results {
		if i > 0 {
			fmt.Println()
		}
		printParseResult(r)
	}
	return nil
}

func loadProfile(path, name string) (scoring.Profile, error) {
	if path == "" {
		discovered, err := config.Discover()
		if err != nil {
			return scoring.Profile{}, err
		}
		path = discovered
	}
	cfg, err := config.LoadWithoutValidation(path)
	if err != nil {
		return scoring.Profile{}, fmt.Errorf("loading config: %w", err)
	}
	profiles := cfg.ScoringProfiles()
	p, ok := profiles[name]
	if !ok {
		names := make([]string, 0, len(profiles))
		for n := range profiles {
			names = append(names, n)
		}
		slices.Sort(names)
		return scoring.Profile{}, fmt.Errorf("version %q not found. Available: %s", name, strings.Join(names, ", "))
	}
	return p, nil
}

func parseRelease(name string) ParseResult {
	info := release.Parse(name)
	r := ParseResult{
		Name:       name,
		Title:      info.Title,
		Year:       info.Year,
		Seasons:    info.Seasons,
		Episodes:   info.Episodes,
		Resolution: info.Resolution.String(),
		Source:     info.Source.String(),
		Codec:      info.Codec.String(),
		Remux:      info.IsRemux,
		Group:      info.Group,
		CleanTitle: info.CleanTitle,
	}
	if info.HDR != release.HDRNone {
		r.HDR = info.HDR.String()
	}
	if info.Audio != release.AudioUnknown {
		r.Audio = info.Audio.String()
	}
	return r
}

func printParseResult(r ParseResult) {
	fmt.Printf("%s\n", r.Name)
	fmt.Printf("  Title:      %s\n", r.Title)
	if r.Year > 0 {
		fmt.Printf("  Year:       %d\n", r.Year)
	}
	if len(r.Seasons) > 0 {
		fmt.Printf("  Seasons:    %v\n", r.Seasons)
	}
	if len(r.Episodes) > 0 {
		fmt.Printf("  Episodes:   %v\n", r.Episodes)
	}
	fmt.Printf("  Resolution: %s\n", r.Resolution)
	fmt.Printf("  Source:     %s\n", r.Source)
	fmt.Printf("  Codec:      %s\n", r.Codec)
	if r.HDR != "" {
		fmt.Printf("  HDR:        %s\n", r.HDR)
	}
	if r.Audio != "" {
		fmt.Printf("  Audio:      %s\n", r.Audio)
	}
	if r.Group != "" {
		fmt.Printf("  Group:      %s\n", r.Group)
	}
	if r.Accepted != nil {
		if *r.Accepted {
			fmt.Printf("  Score:      %d (%s)\n", r.Score, r.Version)
		} else {
			fmt.Printf("  Score:      rejected by %s\n", r.Version)
		}
	}
}
