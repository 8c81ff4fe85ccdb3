// =============================================================================
// MDF-e Converter - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, which checks the configuration
// and the layouts without converting anything.
//
// CHECKS:
//   - config.yaml loads and every value is valid
//   - every layout declares exactly the labels the builder handles
//   - the webservice table resolves the status service for the configured UF
//   - the XSD files are present (reported, fatal only under strict policy)
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/mdfe-converter/internal/config"
	"github.com/ginjaninja78/mdfe-converter/internal/layout"
	"github.com/ginjaninja78/mdfe-converter/internal/mdfe"
	"github.com/ginjaninja78/mdfe-converter/internal/sefaz"
	"github.com/ginjaninja78/mdfe-converter/internal/validation"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check configuration and layouts without converting",
	Long: `The validate command loads config.yaml, the embedded layout and the
configured layout file, and checks that every layout agrees with the labels
the document builder knows. It also resolves the webservice table and looks
for the XSD files used before submission.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate()
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate() error {
	mainConfig, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()
	fmt.Printf("  ✓ configuration %s\n", cfgFile)

	layouts, err := loadLayouts(mainConfig)
	if err != nil {
		return err
	}
	if err := layouts.CheckAgainst(mdfe.Labels()); err != nil {
		return err
	}
	for _, v := range layouts.Versions() {
		l, _ := layouts.Get(v)
		fmt.Printf("  ✓ layout %s (%s): %d labels\n", v, l.Source, len(l.Labels))
	}

	ws, err := loadWebservices(mainConfig)
	if err != nil {
		return err
	}
	ep, err := ws.Resolve(sefaz.ServiceStatusServico, mainConfig.SiglaUF, mainConfig.Environment(), mdfe.DefaultModel)
	if err != nil {
		return err
	}
	fmt.Printf("  ✓ webservices: %s -> %s\n", mainConfig.SiglaUF, ep.URL)

	schemas := validation.NewXSDValidator(mainConfig.SchemasDir, layout.DefaultVersion,
		mainConfig.ValidationPolicy == config.PolicyStrict)
	missing := 0
	for _, name := range []string{sefaz.SchemaMDFe, sefaz.SchemaRoadModal} {
		path := schemas.SchemaPath(name)
		if _, err := os.Stat(path); err != nil {
			missing++
			fmt.Printf("  ✗ schema %s not found\n", path)
			continue
		}
		fmt.Printf("  ✓ schema %s\n", path)
	}
	if missing > 0 && schemas.Strict {
		return fmt.Errorf("%d schema file(s) missing under %s policy", missing, config.PolicyStrict)
	}

	fmt.Println("\nConfiguration is valid.")
	return nil
}

// loadWebservices returns the configured table, or the embedded one.
func loadWebservices(mainConfig *config.MainConfig) (*sefaz.Webservices, error) {
	if mainConfig.WebservicesFile != "" {
		return sefaz.LoadWebservices(mainConfig.WebservicesFile)
	}
	return sefaz.DefaultWebservices()
}
