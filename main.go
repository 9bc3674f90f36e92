// =============================================================================
// MO Tree to CSV Converter - Main Entry Point
// =============================================================================
//
// USAGE:
//   motree process -i <file|dir> -o <dir>   - Convert MO tree dumps to tables
//   motree process -i <file|dir> -p         - Print the parameter listing
//   motree version                          - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Tree walker, schema registry, row emitter, output sinks
//   - pkg/           : Shared file and report utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/motree-to-csv/cmd"
)

func main() {
	cmd.Execute()
}
