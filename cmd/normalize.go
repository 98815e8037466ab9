// =============================================================================
// Ledger Normalizer - Normalize Command
// =============================================================================
//
// This file defines the 'normalize' command, the main command of the tool. It
// runs the whole pipeline and prints a summary for the operator.
//
// COMMAND USAGE:
//   normalizer normalize [flags]
//
// FLAGS:
//   --dry-run   : Run everything but write nothing
//   --input     : Input directory (overrides input_dir)
//   --output    : Output directory (overrides output_dir)
//   --reference : Reference mapping table (overrides reference_table)
//   --format    : Output formats (overrides output_formats)
//
// PROCESSING PIPELINE:
//   See internal/pipeline. A file that cannot be loaded is reported and
//   skipped; the run only fails when nothing at all could be loaded.
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/ledger-normalizer/internal/pipeline"
	"github.com/ginjaninja78/ledger-normalizer/internal/validation"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	dryRun        bool
	inputDir      string
	outputDir     string
	referencePath string
	formats       []string
)

// =============================================================================
// NORMALIZE COMMAND DEFINITION
// =============================================================================

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Normalize all client files into one canonical table",
	Long: `The normalize command scans the input directory for client workbooks and
CSV exports, transposes the configured wide ledgers, maps every client's
columns onto the canonical schema, and writes one normalized table.

On completion:
  - The normalized table is written in every configured format
  - A processing summary is written to the output directory
  - Validation findings are written to validation_errors.log

Files that cannot be loaded are listed and skipped. Record IDs follow the
discovery order, so rerunning on the same input gives the same output.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runNormalize()
	},
}

func init() {
	rootCmd.AddCommand(normalizeCmd)

	normalizeCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run everything but write no output files")
	normalizeCmd.Flags().StringVar(&inputDir, "input", "", "Input directory (overrides input_dir)")
	normalizeCmd.Flags().StringVar(&outputDir, "output", "", "Output directory (overrides output_dir)")
	normalizeCmd.Flags().StringVar(&referencePath, "reference", "", "Reference mapping table (overrides reference_table)")
	normalizeCmd.Flags().StringSliceVar(&formats, "format", nil, "Output formats: csv, xlsx, sqlite (overrides output_formats)")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runNormalize() error {
	cfg := appConfig
	if inputDir != "" {
		cfg.InputDir = inputDir
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if referencePath != "" {
		cfg.ReferenceTable = referencePath
	}
	if len(formats) > 0 {
		cfg.OutputFormats = formats
	}

	fmt.Println("=== Ledger Normalizer ===")
	fmt.Printf("Input:     %s\n", cfg.InputDir)
	fmt.Printf("Output:    %s\n", cfg.OutputDir)
	fmt.Printf("Reference: %s\n", cfg.ReferenceTable)
	if dryRun {
		fmt.Println("Dry run: no files will be written")
	}

	if !dryRun {
		if err := cfg.EnsureDirectories(); err != nil {
			return err
		}
	}

	p, err := pipeline.New(cfg, appSchema, appLogger.Logger)
	if err != nil {
		return err
	}

	result, err := p.Run(dryRun)
	if result != nil {
		printRunSummary(result)
	}
	if err != nil {
		return err
	}

	if !dryRun && len(result.Validation.Errors) > 0 {
		logPath := filepath.Join(cfg.OutputDir, "validation_errors.log")
		if err := validation.WriteErrorLog(result.Validation.Errors, logPath); err != nil {
			return err
		}
		fmt.Printf("\nValidation findings have been logged to %s\n", logPath)
	}

	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// printRunSummary prints the operator summary of a run.
func printRunSummary(result *pipeline.Result) {
	if !result.ReferenceFound {
		fmt.Println("\nReference table not found: only manual overrides were applied")
	} else {
		fmt.Printf("\nReference rules: %d\n", result.Rules)
	}

	fmt.Println("\nFiles:")
	for _, f := range result.Files {
		sheet := ""
		if f.Sheet != "" {
			sheet = fmt.Sprintf(" [%s]", f.Sheet)
		}
		fmt.Printf("  ✓ %s%s -> %s (%d rows)\n", filepath.Base(f.Path), sheet, f.Client, f.Rows)
	}
	for _, l := range result.Ledgers {
		fmt.Printf("  ✓ %s [%s] -> %s (%d records, transposed)\n",
			filepath.Base(l.Source.File), l.Sheet, l.Source.Client, l.Result.Table.Len())
	}
	for _, s := range result.Skipped {
		fmt.Printf("  ✗ %s: %v\n", filepath.Base(s.Path), s.Err)
	}

	if result.Table == nil {
		return
	}

	if result.Validation != nil {
		if len(result.Validation.SumChecks) > 0 {
			fmt.Println("\nSum checks:")
			for _, check := range result.Validation.SumChecks {
				status := "MATCH"
				if !check.Matches {
					status = "MISMATCH"
				}
				fmt.Printf("  %s '%s' -> '%s': %s vs %s %s\n",
					check.Client, check.Original, check.Canonical,
					check.SourceSum.StringFixed(2), check.NormalizedSum.StringFixed(2), status)
			}
		}

		if len(result.Validation.Clients) > 0 {
			fmt.Println("\nClients:")
			for _, c := range result.Validation.Clients {
				fmt.Printf("  %-40s %6d records  Total Revenue %s", c.Client, c.Records, c.Total.StringFixed(2))
				if c.Ignored > 0 {
					fmt.Printf("  (%d non-numeric ignored)", c.Ignored)
				}
				fmt.Println()
			}
		}
	}

	fmt.Println("\n=== Normalization Complete ===")
	fmt.Printf("Records:           %d\n", result.Table.Len())
	fmt.Printf("Cleaned values:    %d\n", result.Report.TotalCleaned())
	fmt.Printf("Skipped files:     %d\n", len(result.Skipped))
	if result.Validation != nil {
		fmt.Printf("Validation errors: %d\n", result.Validation.ErrorCount)
		fmt.Printf("Warnings:          %d\n", result.Validation.WarningCount)
	}
	fmt.Printf("Time elapsed:      %s\n", result.EndTime.Sub(result.StartTime))

	for _, out := range result.OutputFiles {
		fmt.Printf("Wrote %s\n", out)
	}
	if result.SummaryFile != "" {
		fmt.Printf("Summary: %s\n", result.SummaryFile)
	}
}
