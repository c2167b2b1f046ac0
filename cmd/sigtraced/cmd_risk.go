package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sigtrace/sigtrace/internal/config"
	"github.com/sigtrace/sigtrace/internal/risk"
)

func runRiskScan(cmd *cobra.Command, args []string) error {
	root := resolveRoot(args)

	a, closer, err := buildApp(root, config.Global)
	if err != nil {
		return err
	}
	defer closer()

	scores, err := a.risk.ScanCritical(cmd.Context(), riskScope, riskMin, riskLimit)
	if err != nil {
		return fmt.Errorf("scan_critical: %w", err)
	}

	if riskJSON {
		return outputRiskJSON(scores)
	}
	return outputRiskText(scores)
}

func outputRiskJSON(scores []risk.Score) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(scores)
}

func outputRiskText(scores []risk.Score) error {
	if len(scores) == 0 {
		fmt.Println("no files at or above the requested risk threshold")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BAND\tCOMBINED\tCHAOS\tBLAST\tCHURN\tPATH")
	for _, s := range scores {
		fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%d\t%.3f\t%s\n",
			s.Band, s.Combined, s.ChaosScore, s.BlastRadius, s.Churn, s.Path)
	}
	return w.Flush()
}
