// =============================================================================
// Ledger Normalizer - Validate Command
// =============================================================================
//
// This file defines the 'validate' command. It checks that the configuration,
// the schema data and the reference table load, without processing any file.
//
// COMMAND USAGE:
//   normalizer validate
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/ledger-normalizer/internal/mapping"
	"github.com/ginjaninja78/ledger-normalizer/internal/schema"
	"github.com/ginjaninja78/ledger-normalizer/internal/transposer"
	"github.com/ginjaninja78/ledger-normalizer/pkg/utils"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check configuration, schema data and reference table",
	Long: `The validate command loads config.yaml, the schema data and the reference
mapping table and reports what was found. Reference rules whose target is not
a canonical column are listed; they would be ignored during normalization.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate()
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate() error {
	cfg := appConfig

	fmt.Println("=== Configuration Check ===")
	if utils.FileExists(cfgFile) {
		fmt.Printf("Config:            %s\n", cfgFile)
	} else {
		fmt.Println("Config:            built-in defaults")
	}

	schemaSource := "embedded"
	if cfg.SchemaFile != "" {
		schemaSource = cfg.SchemaFile
	}
	registry := schema.New(appSchema)
	fmt.Printf("Schema data:       %s\n", schemaSource)
	fmt.Printf("  Canonical:       %d columns\n", len(registry.Columns()))
	fmt.Printf("  Financial:       %d columns\n", len(registry.FinancialColumns()))
	fmt.Printf("  Overrides:       %d\n", len(appSchema.ManualOverrides))

	if _, err := mapping.NewMatcher(cfg.Matcher); err != nil {
		return err
	}
	fmt.Printf("Matcher:           %s\n", cfg.Matcher.Strategy)

	if _, err := transposer.New(cfg.Ledger, appLogger.Logger); err != nil {
		return err
	}
	fmt.Printf("Ledger sheet:      %s (%d configured ledgers)\n", cfg.Ledger.Sheet, len(cfg.Ledgers))
	for _, l := range cfg.Ledgers {
		if _, err := os.Stat(l.File); err != nil {
			fmt.Printf("  ✗ %s: %v\n", l.File, err)
		}
	}

	rules, found, err := mapping.LoadRules(cfg.ReferenceTable, cfg.CSVSettings)
	if err != nil {
		return err
	}
	if !found {
		fmt.Printf("Reference table:   %s (not found, only manual overrides apply)\n", cfg.ReferenceTable)
	} else {
		fmt.Printf("Reference table:   %s (%d rules)\n", cfg.ReferenceTable, len(rules))
		unknown := 0
		for _, rule := range rules {
			if !registry.IsCanonical(rule.Canonical) {
				unknown++
				fmt.Printf("  ✗ %s: '%s' -> '%s' is not a canonical column\n", rule.Client, rule.Original, rule.Canonical)
			}
		}
		if unknown > 0 {
			fmt.Printf("%d rule(s) target unknown columns and will be ignored\n", unknown)
		}
	}

	fmt.Printf("Input directory:   %s\n", cfg.InputDir)
	fmt.Printf("Output directory:  %s\n", cfg.OutputDir)
	fmt.Printf("Output formats:    %v\n", cfg.OutputFormats)

	fmt.Println("\nConfiguration is valid.")
	return nil
}
