// =============================================================================
// Ledger Normalizer - Main Entry Point
// =============================================================================
//
// USAGE:
//   normalizer normalize   - Normalize every client file in the input directory
//   normalizer transpose   - Transpose a wide P&L ledger into a raw-data workbook
//   normalizer validate    - Check configuration without processing
//   normalizer version     - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Core logic (schema, mapping, normalizer, transposer, ...)
//   - pkg/       : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/ledger-normalizer/cmd"
)

func main() {
	cmd.Execute()
}
