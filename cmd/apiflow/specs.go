package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/apiflow/internal/config"
	"github.com/ShayCichocki/apiflow/internal/spec"
	"github.com/ShayCichocki/apiflow/pkg/models"
)

var specsCmd = &cobra.Command{
	Use:   "specs [source...]",
	Short: "List the API specifications apiflow can use",
	Long: `List the specifications loaded from the given sources.

With no arguments, the configured specs.source directory is used.
Arguments may be a single directory or individual YAML/JSON files.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		source := args
		if len(source) == 0 {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			source = []string{cfg.Specs.Source}
		}

		specs, warnings, err := spec.LoadAll(source)
		if err != nil {
			return err
		}

		for _, warning := range warnings {
			color.Yellow("Warning: %s", warning)
		}
		if len(warnings) > 0 {
			fmt.Println()
		}

		fmt.Printf("%d specifications loaded:\n\n", len(specs))
		for _, entry := range sortedSpecs(specs) {
			color.New(color.Bold).Fprintf(os.Stdout, "%s\n", entry.ID)
			fmt.Printf("  %s\n", entry.Summary)
		}
		return nil
	},
}

// sortedSpecs returns spec entries ordered by id.
func sortedSpecs(specs map[string]*models.SpecEntry) []*models.SpecEntry {
	entries := make([]*models.SpecEntry, 0, len(specs))
	for _, entry := range specs {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}
