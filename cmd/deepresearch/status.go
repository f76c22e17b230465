// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meshintel/deepresearch/internal/jobs"
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show the stored state of a research job",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().Bool("json", false, "output status as JSON")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("provide exactly one job ID")
	}
	jobID := args[0]

	cfg := engineConfig()
	store, err := jobs.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	rec, err := store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	findings, err := store.Findings(ctx, jobID)
	if err != nil {
		return err
	}

	st := jobs.JobStatus{
		JobID:         rec.ID,
		Stage:         rec.Stage,
		Iteration:     rec.Iteration,
		SourcesSoFar:  len(findings),
		Degraded:      rec.Degraded,
		FailureReason: rec.FailureReason,
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	fmt.Printf("job:       %s\n", st.JobID)
	fmt.Printf("question:  %s\n", rec.Question)
	fmt.Printf("stage:     %s\n", st.Stage)
	fmt.Printf("iteration: %d\n", st.Iteration)
	fmt.Printf("sources:   %d\n", st.SourcesSoFar)
	if st.Degraded {
		fmt.Println("degraded:  yes")
	}
	if st.FailureReason != "" {
		fmt.Printf("failure:   %s\n", st.FailureReason)
	}
	return nil
}
