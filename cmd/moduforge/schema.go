package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Cassielxd/moduforge-rs-sub000/pkg/engineconfig"
	"github.com/Cassielxd/moduforge-rs-sub000/pkg/schema"
)

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Schema compilation commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Compile a schema spec (YAML or JSON) and report errors",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchemaValidate,
	})
	return cmd
}

func runSchemaValidate(cmd *cobra.Command, args []string) error {
	path := args[0]

	var spec schema.SchemaSpec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		s, err := engineconfig.LoadSchemaSpec(path)
		if err != nil {
			return err
		}
		spec = s
	default:
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if err := json.Unmarshal(raw, &spec); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	compiled, err := schema.Compile(spec)
	if err != nil {
		return err
	}

	nodeNames := make([]string, 0, len(compiled.Nodes))
	for name := range compiled.Nodes {
		nodeNames = append(nodeNames, name)
	}
	markNames := make([]string, 0, len(compiled.Marks))
	for name := range compiled.Marks {
		markNames = append(markNames, name)
	}

	out, err := json.MarshalIndent(map[string]any{
		"topNode": compiled.TopNodeType,
		"nodes":   nodeNames,
		"marks":   markNames,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
