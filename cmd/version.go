// =============================================================================
// MDF-e Converter - Version Command
// =============================================================================
//
// COMMAND USAGE:
//   converter version          - build, layout and webservice versions
//   converter version --short  - the application version alone
//
// OUTPUT:
//   MDF-e Converter
//   Version:      1.0.0
//   Layout:       3.00 (model 58)
//   Webservices:  3.00
//   Build Date:   2024-05-15
//   Go Version:   go1.24.0
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/mdfe-converter/internal/layout"
	"github.com/ginjaninja78/mdfe-converter/internal/mdfe"
	"github.com/ginjaninja78/mdfe-converter/internal/sefaz"
)

// Set at build time:
//   go build -ldflags "-X 'github.com/ginjaninja78/mdfe-converter/cmd.Version=1.1.0' \
//     -X 'github.com/ginjaninja78/mdfe-converter/cmd.BuildDate=2024-05-15'"
var (
	Version   = "1.0.0"
	BuildDate = "unknown"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	Long: `Display the application version together with the versions of the
embedded manifest layout and webservice table.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionShort {
			fmt.Println(Version)
			return nil
		}

		ws, err := sefaz.DefaultWebservices()
		if err != nil {
			return err
		}

		fmt.Println("MDF-e Converter")
		fmt.Printf("Version:      %s\n", Version)
		fmt.Printf("Layout:       %s (model %s)\n", layout.DefaultVersion, mdfe.DefaultModel)
		fmt.Printf("Webservices:  %s\n", ws.Version)
		fmt.Printf("Build Date:   %s\n", BuildDate)
		fmt.Printf("Go Version:   %s\n", runtime.Version())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")
}
