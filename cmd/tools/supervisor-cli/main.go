// Command supervisor-cli runs the deal-room supervisor locally, without Zeebe.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "supervisor-cli",
	Short: "Ask the deal-room supervisor from the command line",
	Long: `supervisor-cli loads the worker configuration and runs the classification,
routing, specialist and synthesis pipeline in-process. Use it to try
questions against a deal without deploying a BPMN process.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (defaults to configs/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
