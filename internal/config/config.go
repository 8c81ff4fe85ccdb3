// =============================================================================
// MDF-e Converter - Configuration Module
// =============================================================================
//
// This module loads the application configuration (config.yaml). Every
// setting has a default, so an absent file is not an error: the converter
// runs against ./input and ./output in the homologation environment.
//
// EXAMPLE:
//   input_dir: ./input
//   output_dir: ./output
//   encoding: ISO-8859-1
//   timezone: America/Sao_Paulo
//   tp_amb: 2
//   sigla_uf: MG
//   schemas_dir: ./schemes
//   validation_policy: permissive
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // Windows hosts ship no zoneinfo

	"gopkg.in/yaml.v3"
)

// Validation policies for a schema file that cannot be found.
const (
	PolicyStrict     = "strict"
	PolicyPermissive = "permissive"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned for manifest text files.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir receives the generated XML files and error logs.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// InputArchiveDir receives input files after a fully successful run.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir"`

	// OutputArchiveDir keeps a copy of every generated XML.
	// Default: "./output_archive"
	OutputArchiveDir string `yaml:"output_archive_dir"`

	// InputPattern selects input files inside InputDir.
	// Default: "*.txt"
	InputPattern string `yaml:"input_pattern"`

	// =========================================================================
	// INPUT SETTINGS
	// =========================================================================

	// LayoutFile adds layouts (.yaml or .xlsx) on top of the embedded 3.00
	// layout. Optional.
	LayoutFile string `yaml:"layout_file"`

	// Encoding of the input files: UTF-8, ISO-8859-1 or Windows-1252.
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`

	// DocumentMarker is the label that starts each document of a batch.
	// Default: "A"
	DocumentMarker string `yaml:"document_marker"`

	// =========================================================================
	// FISCAL SETTINGS
	// =========================================================================

	// Timezone is used to fill an empty dhEmi.
	// Default: "America/Sao_Paulo"
	Timezone string `yaml:"timezone"`

	// TpAmb is the environment: 1 production, 2 homologation.
	// Default: 2
	TpAmb int `yaml:"tp_amb"`

	// SiglaUF is the issuer's state, used to pick webservices.
	// Default: "SP"
	SiglaUF string `yaml:"sigla_uf"`

	// SchemasDir holds the XSD files, named {schema}_v{version}.xsd.
	// Default: "./schemes"
	SchemasDir string `yaml:"schemas_dir"`

	// ValidationPolicy decides what a missing XSD means: "permissive"
	// accepts the document, "strict" fails it.
	// Default: "permissive"
	ValidationPolicy string `yaml:"validation_policy"`

	// WebservicesFile replaces the embedded webservice table. Optional.
	WebservicesFile string `yaml:"webservices_file"`

	// RegistryPath is the bbolt file recording every emitted key. Empty
	// disables the registry.
	RegistryPath string `yaml:"registry_path"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// UUIDFormat defines the format for output file names.
	// Placeholders:
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {key}       - The document's 44-digit access key
	//   {index}     - The document's position in its batch
	//   {source}    - The input file name without extension
	// Default: "{key}-mdfe.xml"
	UUIDFormat string `yaml:"uuid_format"`

	// Indent pretty-prints the output XML. Empty means compact.
	Indent string `yaml:"indent"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency bounds the documents converted at once.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// ContinueOnError keeps the good documents of a batch when others fail.
	// When false one failing document discards the whole file.
	// Default: false
	ContinueOnError bool `yaml:"continue_on_error"`
}

// Environment returns TpAmb as the ide/tpAmb string.
func (c *MainConfig) Environment() string {
	return fmt.Sprintf("%d", c.TpAmb)
}

// Location loads the configured timezone.
func (c *MainConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the main configuration from a YAML file. A missing
// file yields the defaults.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be parsed or a value is invalid.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	var config MainConfig

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}
	if config.OutputArchiveDir == "" {
		config.OutputArchiveDir = "./output_archive"
	}
	if config.InputPattern == "" {
		config.InputPattern = "*.txt"
	}
	if config.Encoding == "" {
		config.Encoding = "UTF-8"
	}
	if config.DocumentMarker == "" {
		config.DocumentMarker = "A"
	}
	if config.Timezone == "" {
		config.Timezone = "America/Sao_Paulo"
	}
	if config.TpAmb == 0 {
		config.TpAmb = 2
	}
	if config.SiglaUF == "" {
		config.SiglaUF = "SP"
	}
	config.SiglaUF = strings.ToUpper(config.SiglaUF)
	if config.SchemasDir == "" {
		config.SchemasDir = "./schemes"
	}
	if config.ValidationPolicy == "" {
		config.ValidationPolicy = PolicyPermissive
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.UUIDFormat == "" {
		config.UUIDFormat = "{key}-mdfe.xml"
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 4
	}
}

// validateMainConfig validates the main configuration. Directories are
// created by the commands that write to them.
func validateMainConfig(config *MainConfig) error {
	if config.TpAmb != 1 && config.TpAmb != 2 {
		return fmt.Errorf("tp_amb must be 1 or 2, got %d", config.TpAmb)
	}

	switch config.ValidationPolicy {
	case PolicyStrict, PolicyPermissive:
	default:
		return fmt.Errorf("validation_policy must be %q or %q, got %q",
			PolicyStrict, PolicyPermissive, config.ValidationPolicy)
	}

	switch strings.ToUpper(config.Encoding) {
	case "UTF-8", "UTF8", "ISO-8859-1", "ISO8859-1", "LATIN1", "WINDOWS-1252", "CP1252":
	default:
		return fmt.Errorf("unsupported encoding %q", config.Encoding)
	}

	if config.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must not be negative")
	}

	if _, err := config.Location(); err != nil {
		return err
	}

	return nil
}
