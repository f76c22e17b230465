// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meshintel/deepresearch/internal/jobs"
)

var exportCmd = &cobra.Command{
	Use:   "export [job-id]",
	Short: "Export a job's findings and report to YAML or JSON",
	Long: `Export writes one job's record, its deduplicated findings, and its
report (when present) to a file in the store directory.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("provide exactly one job ID")
	}
	jobID := args[0]
	format, _ := cmd.Flags().GetString("format")

	cfg := engineConfig()
	store, err := jobs.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	var path string
	switch format {
	case "yaml", "":
		path, err = store.ExportYAML(ctx, jobID)
	case "json":
		path, err = store.ExportJSON(ctx, jobID)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}

	fmt.Println("Exported to", path)
	return nil
}
