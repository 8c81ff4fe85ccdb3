// =============================================================================
// MDF-e Converter - Webservice Table
// =============================================================================
//
// The table maps (authorizer, environment, service) to an endpoint. A state
// is first resolved to its authorizer; MDF-e uses SVRS for every state, so
// the shipped table only has a default entry. Operators can override it with
// their own YAML file (webservices_file in config.yaml).
//
// =============================================================================

package sefaz

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/mdfe-converter/internal/mdfe"
)

//go:embed webservices_300.yaml
var defaultWebservices []byte

// Services.
const (
	ServiceRecepcao       = "MDFeRecepcao"
	ServiceRetRecepcao    = "MDFeRetRecepcao"
	ServiceConsulta       = "MDFeConsulta"
	ServiceStatusServico  = "MDFeStatusServico"
	ServiceConsNaoEnc     = "MDFeConsNaoEnc"
	ServiceRecepcaoEvento = "MDFeRecepcaoEvento"
)

// Environment names used by the table.
const (
	EnvNameProduction   = "producao"
	EnvNameHomologation = "homologacao"
)

// ErrServiceNotFound is returned when the table has no entry for a lookup.
var ErrServiceNotFound = errors.New("webservice not found")

// Endpoint is one resolved service.
type Endpoint struct {
	Service   string `yaml:"-"`
	URL       string `yaml:"url"`
	Method    string `yaml:"method"`
	Operation string `yaml:"operation"`
	Version   string `yaml:"version"`
}

// Namespace is the namespace of the service's WSDL messages.
func (e Endpoint) Namespace() string {
	return mdfe.Namespace + "/wsdl/" + e.Operation
}

// Action is the SOAP action of the service.
func (e Endpoint) Action() string {
	return e.Namespace() + "/" + e.Method
}

// Webservices is a loaded table.
type Webservices struct {
	Version     string                                    `yaml:"version"`
	Model       string                                    `yaml:"model"`
	Authorizers map[string]string                         `yaml:"authorizers"`
	Services    map[string]map[string]map[string]Endpoint `yaml:"services"`
}

// DefaultWebservices returns the embedded 3.00 table.
func DefaultWebservices() (*Webservices, error) {
	return ParseWebservices(defaultWebservices)
}

// LoadWebservices reads a table from path.
func LoadWebservices(path string) (*Webservices, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read webservices file: %w", err)
	}
	ws, err := ParseWebservices(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ws, nil
}

// ParseWebservices reads a YAML table.
func ParseWebservices(data []byte) (*Webservices, error) {
	var ws Webservices
	if err := yaml.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("failed to parse webservices: %w", err)
	}
	if len(ws.Services) == 0 {
		return nil, errors.New("webservices table has no services")
	}
	if ws.Model == "" {
		ws.Model = mdfe.DefaultModel
	}
	return &ws, nil
}

// EnvironmentName maps "1"/"2" (or the names themselves) to the table's
// environment names.
func EnvironmentName(env string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case mdfe.EnvProduction, EnvNameProduction:
		return EnvNameProduction, nil
	case mdfe.EnvHomologation, EnvNameHomologation:
		return EnvNameHomologation, nil
	default:
		return "", fmt.Errorf("invalid environment %q", env)
	}
}

// Resolve finds the endpoint of service for uf in env. A missing entry is an
// error, never an empty endpoint.
func (w *Webservices) Resolve(service, uf, env, model string) (Endpoint, error) {
	if model == "" {
		model = mdfe.DefaultModel
	}
	if model != w.Model {
		return Endpoint{}, fmt.Errorf("%w: table serves model %s, not %s", ErrServiceNotFound, w.Model, model)
	}

	envName, err := EnvironmentName(env)
	if err != nil {
		return Endpoint{}, err
	}

	uf = strings.ToUpper(strings.TrimSpace(uf))
	authorizer := lo.ValueOr(w.Authorizers, uf, w.Authorizers["default"])
	if authorizer == "" {
		authorizer = uf
	}

	ep, ok := w.Services[authorizer][envName][service]
	if !ok || ep.URL == "" {
		return Endpoint{}, fmt.Errorf("%w: %s for %s (%s) in %s", ErrServiceNotFound, service, uf, authorizer, envName)
	}
	ep.Service = service
	if ep.Operation == "" {
		ep.Operation = service
	}
	return ep, nil
}
