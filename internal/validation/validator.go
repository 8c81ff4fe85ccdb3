// =============================================================================
// MDF-e Converter - Field Validation Engine
// =============================================================================
//
// This module checks the field formats of a built document before it is
// serialized: digit counts of codes and tax ids, decimal places of amounts,
// date-time shapes and the check digit of every referenced access key.
//
// The serializer already rejects empty required fields; this engine looks at
// fields that are present but malformed, which the XSD would reject later at
// the tax authority.
//
// VALIDATION STRATEGY:
//   - Every (group, field, value) of the document is visited in tree order
//   - A rule keyed by "group/field" (or "*/field") decides the checks
//   - Findings are collected, not thrown; the caller decides what to do
//
// CUSTOMIZATION:
//   - Add rules to DefaultRules for new fields
//   - Add data types to validateDataType
//
// =============================================================================

package validation

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ginjaninja78/mdfe-converter/internal/mdfe"
)

// Severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single validation finding.
type ValidationError struct {
	// Severity is "error" when the tax authority will certainly reject the
	// value and "warning" otherwise.
	Severity string

	// Group is the XML element holding the field.
	Group string

	// Field is the XML tag of the field.
	Field string

	// Value is the actual value that failed validation.
	Value string

	// Rule is the validation rule that was violated.
	Rule string

	// Message is a human-readable error message.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s/%s: %s (value: '%s')",
		strings.ToUpper(e.Severity),
		e.Group,
		e.Field,
		e.Message,
		e.Value,
	)
}

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no findings of severity "error".
	IsValid bool

	// Errors contains all findings (including warnings).
	Errors []*ValidationError

	// ErrorCount is the number of findings of severity "error".
	ErrorCount int

	// WarningCount is the number of warnings.
	WarningCount int

	// FieldsValidated is the number of non-empty fields checked.
	FieldsValidated int
}

// =============================================================================
// RULES
// =============================================================================

// FieldRule describes the format of one field.
type FieldRule struct {
	// DataType is one of: numeric, decimal(n), alpha, alphanumeric,
	// datetime, key. Empty means any text.
	DataType string

	// Length is the exact number of characters, 0 for any.
	Length int

	// MaxLength is the maximum number of characters, 0 for no limit.
	MaxLength int

	// Severity overrides the default "warning".
	Severity string
}

// DefaultRules is the MDF-e 3.00 rule table. Keys are "group/field"; a
// "*/field" key applies to the field in every group without its own rule.
func DefaultRules() map[string]FieldRule {
	return map[string]FieldRule{
		"ide/cUF":      {DataType: "numeric", Length: 2},
		"ide/tpAmb":    {DataType: "numeric", Length: 1},
		"ide/tpEmit":   {DataType: "numeric", Length: 1},
		"ide/tpTransp": {DataType: "numeric", Length: 1},
		"ide/mod":      {DataType: "numeric", Length: 2},
		"ide/serie":    {DataType: "numeric", MaxLength: 3},
		"ide/nMDF":     {DataType: "numeric", MaxLength: 9},
		"ide/cMDF":     {DataType: "numeric", Length: 8},
		"ide/modal":    {DataType: "numeric", Length: 1},
		"ide/dhEmi":    {DataType: "datetime"},
		"ide/tpEmis":   {DataType: "numeric", Length: 1},
		"ide/procEmi":  {DataType: "numeric", Length: 1},
		"ide/verProc":  {MaxLength: 20},
		"ide/UFIni":    {DataType: "alpha", Length: 2},
		"ide/UFFim":    {DataType: "alpha", Length: 2},

		"ide/dhIniViagem":   {DataType: "datetime"},
		"infPercurso/UFPer": {DataType: "alpha", Length: 2},

		"*/CNPJ":  {DataType: "numeric", Length: 14},
		"*/CPF":   {DataType: "numeric", Length: 11},
		"*/UF":    {DataType: "alpha", Length: 2},
		"*/xNome": {MaxLength: 60},
		"*/RNTRC": {DataType: "numeric", Length: 8},

		"enderEmit/cMun":  {DataType: "numeric", Length: 7},
		"enderEmit/CEP":   {DataType: "numeric", Length: 8},
		"enderEmit/email": {MaxLength: 60},

		"infMunCarrega/cMunCarrega":   {DataType: "numeric", Length: 7},
		"infMunDescarga/cMunDescarga": {DataType: "numeric", Length: 7},

		"infCTe/chCTe":         {DataType: "key", Severity: SeverityError},
		"infNFe/chNFe":         {DataType: "key", Severity: SeverityError},
		"infMDFeTransp/chMDFe": {DataType: "key", Severity: SeverityError},

		"peri/nONU": {DataType: "numeric", Length: 4},

		"infUnidTransp/qtdRat": {DataType: "decimal(2)"},
		"infUnidCarga/qtdRat":  {DataType: "decimal(2)"},

		"tot/qCTe":   {DataType: "numeric"},
		"tot/qNFe":   {DataType: "numeric"},
		"tot/qMDFe":  {DataType: "numeric"},
		"tot/vCarga": {DataType: "decimal(2)"},
		"tot/cUnid":  {DataType: "numeric", Length: 2},
		"tot/qCarga": {DataType: "decimal(4)"},

		"veicTracao/placa":  {DataType: "alphanumeric", MaxLength: 7},
		"veicTracao/tara":   {DataType: "numeric", MaxLength: 6},
		"veicReboque/placa": {DataType: "alphanumeric", MaxLength: 7},
		"veicReboque/tara":  {DataType: "numeric", MaxLength: 6},
		"disp/vValePed":     {DataType: "decimal(2)"},
		"infCIOT/CIOT":      {DataType: "numeric", Length: 12},
	}
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator checks documents against a rule table.
type Validator struct {
	rules   map[string]FieldRule
	options ValidationOptions
}

// ValidationOptions contains options for validation.
type ValidationOptions struct {
	// TreatWarningsAsErrors makes any warning invalidate the document.
	// Default: false
	TreatWarningsAsErrors bool
}

// NewValidator creates a Validator with DefaultRules.
func NewValidator() *Validator {
	return NewValidatorWithRules(DefaultRules(), ValidationOptions{})
}

// NewValidatorWithRules creates a Validator with a custom rule table.
func NewValidatorWithRules(rules map[string]FieldRule, options ValidationOptions) *Validator {
	return &Validator{rules: rules, options: options}
}

// ValidateDocument checks every non-empty field of doc.
func (v *Validator) ValidateDocument(doc *mdfe.Document) *ValidationResult {
	result := &ValidationResult{
		IsValid: true,
		Errors:  make([]*ValidationError, 0),
	}

	for _, f := range fieldsOf(doc) {
		if f.value == "" {
			continue
		}
		rule, ok := v.ruleFor(f.group, f.field)
		if !ok {
			continue
		}
		result.FieldsValidated++

		for _, err := range v.ValidateField(f.group, f.field, f.value, rule) {
			result.Errors = append(result.Errors, err)
			if err.Severity == SeverityError {
				result.ErrorCount++
				result.IsValid = false
			} else {
				result.WarningCount++
				if v.options.TreatWarningsAsErrors {
					result.IsValid = false
				}
			}
		}
	}

	return result
}

func (v *Validator) ruleFor(group, field string) (FieldRule, bool) {
	if rule, ok := v.rules[group+"/"+field]; ok {
		return rule, true
	}
	rule, ok := v.rules["*/"+field]
	return rule, ok
}

// ValidateField checks one value against its rule.
func (v *Validator) ValidateField(group, field, value string, rule FieldRule) []*ValidationError {
	var errors []*ValidationError

	severity := rule.Severity
	if severity == "" {
		severity = SeverityWarning
	}
	fail := func(name, message string) {
		errors = append(errors, &ValidationError{
			Severity: severity,
			Group:    group,
			Field:    field,
			Value:    value,
			Rule:     name,
			Message:  message,
		})
	}

	length := utf8.RuneCountInString(value)

	// =========================================================================
	// LENGTH VALIDATION
	// =========================================================================

	if rule.Length > 0 && length != rule.Length {
		fail("length", fmt.Sprintf("Value must have exactly %d characters (actual: %d)", rule.Length, length))
	}

	if rule.MaxLength > 0 && length > rule.MaxLength {
		fail("max_length", fmt.Sprintf("Value exceeds maximum length of %d characters (actual: %d)", rule.MaxLength, length))
	}

	// =========================================================================
	// DATA TYPE VALIDATION
	// =========================================================================

	if msg := validateDataType(value, rule.DataType); msg != "" {
		fail("data_type", msg)
	}

	return errors
}

// =============================================================================
// DATA TYPE VALIDATORS
// =============================================================================

// validateDataType validates a value against a data type.
//
// RETURNS:
//   - An error message if validation fails, empty string if valid.
func validateDataType(value, dataType string) string {
	switch {
	case dataType == "":
		return ""

	case dataType == "numeric":
		return validateNumeric(value)

	case strings.HasPrefix(dataType, "decimal"):
		return validateDecimal(value, dataType)

	case dataType == "alphanumeric":
		return validateAlphanumeric(value)

	case dataType == "alpha":
		return validateAlpha(value)

	case dataType == "datetime":
		return validateDateTime(value)

	case dataType == "key":
		return validateKey(value)

	default:
		return ""
	}
}

// validateNumeric accepts digit strings of any length. Leading zeros are
// significant in fiscal codes, so the value is not parsed as a number.
func validateNumeric(value string) string {
	if mdfe.DigitsOnly(value) != value {
		return fmt.Sprintf("Value '%s' must contain only digits", value)
	}
	return ""
}

// validateDecimal validates a decimal with "." as separator.
//
// PARAMETERS:
//   - value: The value to validate.
//   - dataType: The data type string (e.g., "decimal", "decimal(2)").
//
// The optional precision in parentheses specifies the maximum decimal places.
func validateDecimal(value, dataType string) string {
	if strings.Contains(value, ",") {
		return fmt.Sprintf("Value '%s' uses ',' as decimal separator", value)
	}

	if _, err := strconv.ParseFloat(value, 64); err != nil {
		return fmt.Sprintf("Value '%s' is not a valid decimal number", value)
	}

	precisionStr := extractParenthesesContent(dataType)
	if precisionStr == "" {
		return ""
	}
	precision, err := strconv.Atoi(precisionStr)
	if err != nil || precision < 0 {
		return ""
	}
	if _, decimals, ok := strings.Cut(value, "."); ok && len(decimals) > precision {
		return fmt.Sprintf("Value '%s' has more than %d decimal places", value, precision)
	}
	return ""
}

// validateAlphanumeric validates that a value contains only letters and numbers.
func validateAlphanumeric(value string) string {
	for _, r := range value {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return fmt.Sprintf("Value '%s' contains non-alphanumeric characters", value)
		}
	}
	return ""
}

// validateAlpha validates that a value contains only letters.
func validateAlpha(value string) string {
	for _, r := range value {
		if !unicode.IsLetter(r) {
			return fmt.Sprintf("Value '%s' contains non-alphabetic characters", value)
		}
	}
	return ""
}

// validateDateTime requires the offset form written into dhEmi.
func validateDateTime(value string) string {
	if _, err := mdfe.ParseDateTime(value, nil); err != nil {
		return fmt.Sprintf("Value '%s' is not a date-time like %s", value, mdfe.DateTimeLayout)
	}
	if len(value) != len(mdfe.DateTimeLayout) {
		return fmt.Sprintf("Value '%s' must carry its UTC offset", value)
	}
	return ""
}

// validateKey checks length and check digit of an access key.
func validateKey(value string) string {
	if !mdfe.ValidKey(value) {
		return fmt.Sprintf("Value '%s' is not a valid %d-digit access key", value, mdfe.KeyLength)
	}
	return ""
}

// extractParenthesesContent returns the text between the first "(" and ")".
func extractParenthesesContent(s string) string {
	start := strings.Index(s, "(")
	end := strings.LastIndex(s, ")")
	if start < 0 || end <= start {
		return ""
	}
	return s[start+1 : end]
}

// =============================================================================
// REPORTING
// =============================================================================

// FormatErrors formats findings for display.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Validation completed with %d finding(s):\n\n", len(errors)))
	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}
	return builder.String()
}
