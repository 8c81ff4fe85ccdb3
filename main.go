// =============================================================================
// MDF-e Converter - Main Entry Point
// =============================================================================
//
// USAGE:
//   converter convert         - Convert every manifest file in the input directory
//   converter validate        - Check configuration and layouts without converting
//   converter status-request  - Print a service status request for a state
//   converter version         - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : parsing, document model, serialization, tax authority messages
//   - pkg/       : shared file utilities
//
// =============================================================================

package main

import "github.com/ginjaninja78/mdfe-converter/cmd"

func main() {
	cmd.Execute()
}
