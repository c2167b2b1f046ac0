package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sigtrace/sigtrace/internal/config"
)

func runIngest(cmd *cobra.Command, args []string) error {
	root := resolveRoot(args)

	a, closer, err := buildApp(root, config.Global)
	if err != nil {
		return err
	}
	defer closer()

	summary, err := a.ingest.Ingest(cmd.Context(), root, false)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	a.graph.Invalidate()

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(summary)
}

// resolveRoot returns the positional path argument if given, else the
// --root flag's value.
func resolveRoot(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return rootPath
}
