package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/transform"
	"github.com/Cassielxd/moduforge-rs-sub000/pkg/tree"
)

func newTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Transaction commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "apply <doc.json> <tx.json>",
		Short: "Apply a transaction of steps to a document and print the result",
		Args:  cobra.ExactArgs(2),
		RunE:  runTxApply,
	})
	return cmd
}

func runTxApply(cmd *cobra.Command, args []string) error {
	docPath, txPath := args[0], args[1]

	docRaw, err := os.ReadFile(docPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", docPath, err)
	}
	doc, err := tree.DecodeDocument(docRaw)
	if err != nil {
		return err
	}

	txRaw, err := os.ReadFile(txPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", txPath, err)
	}
	tx, err := transform.DecodeTransaction(txRaw)
	if err != nil {
		return err
	}

	result, _, err := tx.Apply(doc)
	if err != nil {
		return err
	}

	out, err := tree.EncodeDocument(result, result.RootID())
	if err != nil {
		return err
	}

	var pretty map[string]any
	if err := json.Unmarshal(out, &pretty); err != nil {
		return err
	}
	indented, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(indented))
	return nil
}
