// =============================================================================
// MDF-e Converter - Status Request Command
// =============================================================================
//
// This file defines the 'status-request' command, which prints the service
// status request (consStatServMDFe) for a state, with the endpoint it would
// be sent to. Operators paste it into their SOAP client of choice.
//
// COMMAND USAGE:
//   converter status-request [--uf MG] [--tp-amb 1]
//
// =============================================================================

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/mdfe-converter/internal/sefaz"
)

var (
	statusUF    string
	statusTpAmb int
)

var statusCmd = &cobra.Command{
	Use:   "status-request",
	Short: "Print the service status request for a state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatusRequest()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusUF, "uf", "", "State acronym (default: sigla_uf from config)")
	statusCmd.Flags().IntVar(&statusTpAmb, "tp-amb", 0, "Environment, 1 production or 2 homologation (default: tp_amb from config)")
}

func runStatusRequest() error {
	mainConfig, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ws, err := loadWebservices(mainConfig)
	if err != nil {
		return err
	}

	env := mainConfig.Environment()
	if statusTpAmb != 0 {
		env = strconv.Itoa(statusTpAmb)
	}

	client := sefaz.NewClient(ws, sefaz.ClientOptions{
		UF:          mainConfig.SiglaUF,
		Environment: env,
	})
	req, err := client.StatusRequest(statusUF)
	if err != nil {
		return err
	}
	logger.Debug("Resolved %s to %s", req.Endpoint.Service, req.Endpoint.URL)

	fmt.Printf("URL:    %s\n", req.Endpoint.URL)
	fmt.Printf("Action: %s\n", req.Endpoint.Action())
	fmt.Printf("Header: %s\n", req.Header())
	fmt.Printf("Body:   %s\n", req.Message())
	return nil
}
