package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/exprlang"
	"github.com/Cassielxd/moduforge-rs-sub000/pkg/vm"
)

func newExprCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expr",
		Short: "Expression compiler/VM commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "eval <source> <env.json>",
		Short: "Compile and run an expression against an environment document",
		Args:  cobra.ExactArgs(2),
		RunE:  runExprEval,
	})
	return cmd
}

func runExprEval(cmd *cobra.Command, args []string) error {
	source, envPath := args[0], args[1]

	bytecode, err := exprlang.Compile(source)
	if err != nil {
		return err
	}

	envRaw, err := os.ReadFile(envPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", envPath, err)
	}
	var env vm.Variable
	if err := json.Unmarshal(envRaw, &env); err != nil {
		return fmt.Errorf("parsing %s: %w", envPath, err)
	}

	result, err := vm.New().Run(bytecode, env)
	if err != nil {
		return err
	}

	out, err := json.Marshal(result)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
