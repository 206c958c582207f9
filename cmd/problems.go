package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/cwbudde/spsaopt/internal/problem"
	"github.com/spf13/cobra"
)

var problemsCmd = &cobra.Command{
	Use:   "problems",
	Short: "List the built-in test problems",
	RunE:  runProblems,
}

func init() {
	rootCmd.AddCommand(problemsCmd)
}

func runProblems(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDIM\tDESCRIPTION")

	for _, name := range problem.Names() {
		desc, err := problem.Describe(name)
		if err != nil {
			return err
		}
		d, err := problem.DefaultDim(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", name, d, desc)
	}

	return w.Flush()
}
