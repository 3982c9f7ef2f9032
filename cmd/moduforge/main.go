// Package main provides the moduforge demo CLI: thin wrappers around
// the library packages that load a file, run one operation, and print
// the JSON result. It is not a server — there's no daemon or socket
// here, just direct calls into pkg/schema, pkg/transform, pkg/tree,
// pkg/exprlang, pkg/vm and pkg/graph.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "moduforge",
		Short: "moduforge - document transform, expression and decision-graph engine",
		Long: `moduforge is a library for schema-validated document trees,
invertible transactions, a side-effect-free expression VM and a
decision-graph evaluator built on top of it.

This binary is a demo harness, not a server: each subcommand loads its
inputs from disk, runs one operation, and prints the JSON result.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("moduforge v%s\n", version)
		},
	})

	rootCmd.AddCommand(newSchemaCmd())
	rootCmd.AddCommand(newTxCmd())
	rootCmd.AddCommand(newExprCmd())
	rootCmd.AddCommand(newGraphCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
