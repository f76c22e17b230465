// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meshintel/deepresearch/internal/orchestrate"
	"github.com/meshintel/deepresearch/pkg/types"
)

var researchCmd = &cobra.Command{
	Use:   "research [question]",
	Short: "Run a research job end to end",
	Long: `Research plans the question into sub-topics, gathers evidence from the
configured search providers, loops on coverage gaps, and writes a cited
Markdown report to stdout. Progress goes to stderr.

The job and its findings persist under the store directory; use status
and export with the printed job ID afterwards.`,
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().String("requester", "", "requester identifier recorded with the job")
	researchCmd.Flags().Bool("verbose", false, "enable structured debug logging on stderr")

	rootCmd.AddCommand(researchCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide a research question")
	}
	questionText := strings.TrimSpace(strings.Join(args, " "))
	if questionText == "" {
		return fmt.Errorf("provide a non-empty research question")
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	requester, _ := cmd.Flags().GetString("requester")

	log, err := newLogger(verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	m, closeStore, err := newManager(engineConfig(), log)
	if err != nil {
		return err
	}
	defer closeStore()

	progress := orchestrate.NewChannelEmitter(64)
	m.Emitter = progress

	question := types.ResearchQuestion{
		Text:        questionText,
		RequesterID: requester,
		AskedAt:     time.Now().UTC(),
	}

	jobID, err := m.Start(context.Background(), question)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "job %s started\n", jobID)

	// Ctrl-C cancels the job; the engine stops at the next stage boundary.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			fmt.Fprintln(os.Stderr, "cancelling...")
			m.Cancel(jobID)
		}
	}()

	done := make(chan struct{})
	go func() {
		m.Wait(jobID)
		close(done)
	}()

drain:
	for {
		select {
		case ev := <-progress.Events():
			fmt.Fprintf(os.Stderr, "[iter %d] %-12s %s (%d sources)\n",
				ev.Iteration, ev.Stage, ev.Message, ev.SourcesSoFar)
		case <-done:
			break drain
		}
	}

	st, err := m.Status(context.Background(), jobID)
	if err != nil {
		return err
	}

	if st.Stage == string(orchestrate.StageFailed) {
		return fmt.Errorf("job %s failed: %s", jobID, st.FailureReason)
	}

	rep, err := m.Store.Report(context.Background(), jobID)
	if err != nil {
		return err
	}

	fmt.Println(rep.MarkdownBody)
	if len(rep.Citations) > 0 {
		fmt.Println("\n## Sources")
		for _, c := range rep.Citations {
			fmt.Printf("%d. [%s](%s)\n", c.Index, c.Title, c.URL)
		}
	}
	if rep.Fallback {
		fmt.Fprintln(os.Stderr, "note: report synthesis was degraded; output lists raw evidence")
	}
	if st.Degraded {
		fmt.Fprintln(os.Stderr, "note: one or more review rounds were degraded")
	}

	fmt.Fprintf(os.Stderr, "job %s done: %d sources, %d iterations\n",
		jobID, st.SourcesSoFar, st.Iteration)
	return nil
}
