package main

import (
	"fmt"

	"github.com/cwbudde/spsaopt/internal/vec"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("spsaopt version %s (dot kernel: %s)\n", version, vec.ActiveBackend)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
