package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sigtrace/sigtrace/internal/config"
	"github.com/sigtrace/sigtrace/internal/query"
)

func runQuerySearch(cmd *cobra.Command, args []string) error {
	root := resolveRoot(nil)

	a, closer, err := buildApp(root, config.Global)
	if err != nil {
		return err
	}
	defer closer()

	result, err := a.query.SearchSubstring(cmd.Context(), args[0], searchGlob, searchCaseSensitive, searchLimit)
	if err != nil {
		return fmt.Errorf("search_substring: %w", err)
	}
	return encodeJSON(result)
}

func runQueryVerify(cmd *cobra.Command, args []string) error {
	root := resolveRoot(nil)

	a, closer, err := buildApp(root, config.Global)
	if err != nil {
		return err
	}
	defer closer()

	snippet, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read snippet: %w", err)
	}

	result, err := query.VerifySnippet(cmd.Context(), a.store, snippet, verifyCoverage, verifyScope,
		a.cfg.Manifold(), a.cfg.Chaos())
	if err != nil {
		return fmt.Errorf("verify_snippet: %w", err)
	}
	return encodeJSON(result)
}

func runQueryCluster(cmd *cobra.Command, args []string) error {
	root := resolveRoot(nil)

	a, closer, err := buildApp(root, config.Global)
	if err != nil {
		return err
	}
	defer closer()

	clusters, err := a.query.Cluster(cmd.Context(), clusterScope, clusterK)
	if err != nil {
		return fmt.Errorf("cluster: %w", err)
	}
	return encodeJSON(clusters)
}

func encodeJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
