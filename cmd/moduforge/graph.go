package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	graphpkg "github.com/Cassielxd/moduforge-rs-sub000/pkg/graph"
	"github.com/Cassielxd/moduforge-rs-sub000/pkg/vm"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Decision-graph commands",
	}
	evalCmd := &cobra.Command{
		Use:   "eval <graph.json> <input.json>",
		Short: "Evaluate a decision graph against an input document",
		Args:  cobra.ExactArgs(2),
		RunE:  runGraphEval,
	}
	evalCmd.Flags().Bool("trace", false, "include per-node trace in the output")
	cmd.AddCommand(evalCmd)
	return cmd
}

func runGraphEval(cmd *cobra.Command, args []string) error {
	graphPath, inputPath := args[0], args[1]
	trace, _ := cmd.Flags().GetBool("trace")

	graphRaw, err := os.ReadFile(graphPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", graphPath, err)
	}
	content, err := graphpkg.DecodeContent(graphRaw)
	if err != nil {
		return err
	}

	g, err := graphpkg.New(content, graphpkg.Config{Trace: trace})
	if err != nil {
		return err
	}

	inputRaw, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inputPath, err)
	}
	var input vm.Variable
	if err := json.Unmarshal(inputRaw, &input); err != nil {
		return fmt.Errorf("parsing %s: %w", inputPath, err)
	}

	resp, err := g.Evaluate(input)
	if err != nil {
		return err
	}

	payload := map[string]any{"result": resp.Result}
	if trace {
		payload["trace"] = resp.Trace
	}
	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
