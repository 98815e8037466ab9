// =============================================================================
// Ledger Normalizer - Transpose Command
// =============================================================================
//
// This file defines the 'transpose' command. It converts one wide P&L ledger
// into "<Client> Raw Data.xlsx" (and a CSV twin) so that the next normalize
// run picks it up like any other client export.
//
// COMMAND USAGE:
//   normalizer transpose --file <ledger.xlsx> --client <name> [flags]
//
// FLAGS:
//   --file   : The ledger workbook (required)
//   --client : Client name stamped on the records (required)
//   --sheet  : Worksheet holding the ledger (default: ledger.sheet)
//   --out    : Directory for the transposed files (default: input_dir)
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/ledger-normalizer/internal/config"
	"github.com/ginjaninja78/ledger-normalizer/internal/pipeline"
)

var (
	ledgerFile   string
	ledgerClient string
	ledgerSheet  string
	ledgerOutDir string
)

var transposeCmd = &cobra.Command{
	Use:   "transpose",
	Short: "Transpose a wide P&L ledger into a raw-data workbook",
	Long: `The transpose command reads a ledger with categories down column A and
monthly dates across the header row, and emits one record per date and
location. Location revenue lines stay on their own location; every other line
goes to the General row.

The per-date totals check compares the location revenues with the ledger's
own location total. A mismatch is reported but does not fail the command.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runTranspose()
	},
}

func init() {
	rootCmd.AddCommand(transposeCmd)

	transposeCmd.Flags().StringVar(&ledgerFile, "file", "", "Ledger workbook to transpose")
	transposeCmd.Flags().StringVar(&ledgerClient, "client", "", "Client name for the transposed records")
	transposeCmd.Flags().StringVar(&ledgerSheet, "sheet", "", "Worksheet holding the ledger (default: ledger.sheet)")
	transposeCmd.Flags().StringVar(&ledgerOutDir, "out", "", "Output directory (default: input_dir)")
	transposeCmd.MarkFlagRequired("file")
	transposeCmd.MarkFlagRequired("client")
}

func runTranspose() error {
	out := ledgerOutDir
	if out == "" {
		out = appConfig.InputDir
	}

	p, err := pipeline.New(appConfig, appSchema, appLogger.Logger)
	if err != nil {
		return err
	}

	fmt.Println("=== Ledger Transposition ===")

	run, err := p.TransposeLedger(config.LedgerSource{File: ledgerFile, Client: ledgerClient, Sheet: ledgerSheet})
	if err != nil {
		return err
	}

	result := run.Result
	fmt.Printf("Sheet:       %s\n", run.Sheet)
	fmt.Printf("Dates:       %d (%s to %s)\n", len(result.Headers),
		result.Headers[0].ISODate, result.Headers[len(result.Headers)-1].ISODate)
	fmt.Printf("Categories:  %d\n", len(result.Categories))
	fmt.Printf("Records:     %d\n", result.Table.Len())
	if result.Coerced > 0 {
		fmt.Printf("Coerced:     %d non-numeric cells became 0\n", result.Coerced)
	}
	for _, label := range result.Duplicates {
		fmt.Printf("Duplicate:   %s (last row wins)\n", label)
	}

	if len(run.Checks) == 0 {
		fmt.Printf("\nTotals check skipped: no '%s' row\n", appConfig.Ledger.TotalLabel)
	} else {
		mismatches := 0
		for _, check := range run.Checks {
			if !check.Matches() {
				mismatches++
				fmt.Printf("  ✗ %s: locations %s vs total %s\n",
					check.Date, check.Components.StringFixed(2), check.Reported.StringFixed(2))
			}
		}
		fmt.Printf("\nTotals check: %d of %d dates match\n", len(run.Checks)-mismatches, len(run.Checks))
	}

	paths, err := p.WriteLedger(run, out)
	if err != nil {
		return err
	}
	for _, path := range paths {
		fmt.Printf("Wrote %s\n", path)
	}

	return nil
}
