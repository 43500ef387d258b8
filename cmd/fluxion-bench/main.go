package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fluxion-bench",
		Short: "Benchmark and inspect fluxion reactive graphs",
		Long: `fluxion-bench drives synthetic reactive workloads against a fluxion
Runtime and reports propagation latency, reaction throughput, and GC
behavior. It can also serve the devtools inspector against a live
workload for interactive exploration.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		runCmd(),
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fluxion-bench %s (%s)\n", version, commit)
		},
	}
}
