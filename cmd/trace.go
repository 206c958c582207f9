package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/cwbudde/spsaopt/internal/store"
	"github.com/spf13/cobra"
)

var (
	traceDataDir string
	traceTail    int
	traceJSON    bool
)

var traceCmd = &cobra.Command{
	Use:   "trace <job-id>",
	Short: "Print the progress trace of a job",
	Long: `Print the progress trace that run --trace-every (or a server job) wrote for a job.
By default the entries are shown as a table followed by a summary line.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrace,
}

func init() {
	rootCmd.AddCommand(traceCmd)

	traceCmd.Flags().StringVar(&traceDataDir, "data-dir", "./data", "Base directory for checkpoint storage")
	traceCmd.Flags().IntVar(&traceTail, "tail", 0, "Show only the last N entries (0 = all)")
	traceCmd.Flags().BoolVar(&traceJSON, "json", false, "Print the raw JSONL lines")
}

func runTrace(cmd *cobra.Command, args []string) error {
	if traceTail < 0 {
		return fmt.Errorf("--tail must be non-negative, got %d", traceTail)
	}

	tr, err := store.OpenTrace(traceDataDir, args[0])
	if err != nil {
		return fmt.Errorf("failed to open trace: %w", err)
	}
	defer tr.Close()

	return printTrace(os.Stdout, tr, traceTail, traceJSON)
}

// traceSummary tracks the extremes of a trace while it streams past.
type traceSummary struct {
	count       int
	first, last store.TraceEntry
	best        store.TraceEntry
}

func (s *traceSummary) add(e store.TraceEntry) {
	if s.count == 0 {
		s.first, s.best = e, e
	}
	if e.Value > s.best.Value {
		s.best = e
	}
	s.last = e
	s.count++
}

// printTrace streams tr to w. With tail > 0 only the last tail entries are
// printed, but the summary still covers the whole trace.
func printTrace(w io.Writer, tr *store.TraceReader, tail int, raw bool) error {
	var sum traceSummary
	var shown []store.TraceEntry

	for tr.Next() {
		e := tr.Entry()
		sum.add(e)

		if tail > 0 && len(shown) == tail {
			shown = append(shown[:0], shown[1:]...)
		}
		shown = append(shown, e)
	}
	if err := tr.Err(); err != nil {
		return err
	}

	if raw {
		enc := json.NewEncoder(w)
		for _, e := range shown {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}

	if sum.count == 0 {
		fmt.Fprintln(w, "Trace is empty.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ITERATION\tVALUE\tLEARNING RATE\tTIMESTAMP")
	for _, e := range shown {
		lr := "-"
		if e.LearningRate != 0 {
			lr = fmt.Sprintf("%.4g", e.LearningRate)
		}
		ts := "-"
		if !e.Timestamp.IsZero() {
			ts = e.Timestamp.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(tw, "%d\t%.6g\t%s\t%s\n", e.Iteration, e.Value, lr, ts)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d entries, iterations %d..%d, value %.6g -> %.6g (best %.6g at iteration %d)\n",
		sum.count, sum.first.Iteration, sum.last.Iteration,
		sum.first.Value, sum.last.Value, sum.best.Value, sum.best.Iteration)
	return nil
}
