package validation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/beevik/etree"
)

// ErrSchemaNotFound is returned under the strict policy when the XSD file of
// a schema is absent.
var ErrSchemaNotFound = errors.New("schema not found")

// SchemaValidator checks an XML string against a named schema ("mdfe",
// "mdfeModalRodoviario", ...).
type SchemaValidator interface {
	Validate(xml, schemaName string) (bool, error)
}

// LintFunc validates xml against the XSD at schemaPath.
type LintFunc func(ctx context.Context, xml []byte, schemaPath string) error

// XSDValidator resolves {Dir}/{schema}_v{Version}.xsd and lints the document
// against it.
type XSDValidator struct {
	Dir     string
	Version string

	// Strict fails when the XSD file is missing; otherwise such documents
	// are accepted.
	Strict bool

	// Lint defaults to the xmllint binary.
	Lint LintFunc

	Timeout time.Duration
}

// NewXSDValidator creates a validator for the schema files in dir.
func NewXSDValidator(dir, version string, strict bool) *XSDValidator {
	return &XSDValidator{
		Dir:     dir,
		Version: version,
		Strict:  strict,
		Lint:    XMLLint,
		Timeout: 30 * time.Second,
	}
}

// SchemaPath returns the file checked for schemaName.
func (v *XSDValidator) SchemaPath(schemaName string) string {
	return filepath.Join(v.Dir, fmt.Sprintf("%s_v%s.xsd", schemaName, v.Version))
}

// Validate reports whether xml is well formed and conforms to schemaName.
func (v *XSDValidator) Validate(xml, schemaName string) (bool, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		return false, fmt.Errorf("malformed xml: %w", err)
	}
	if doc.Root() == nil {
		return false, errors.New("malformed xml: no root element")
	}

	path := v.SchemaPath(schemaName)
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("stat %s: %w", path, err)
		}
		if v.Strict {
			return false, fmt.Errorf("%w: %s", ErrSchemaNotFound, path)
		}
		return true, nil
	}

	lint := v.Lint
	if lint == nil {
		lint = XMLLint
	}
	ctx := context.Background()
	if v.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.Timeout)
		defer cancel()
	}
	if err := lint(ctx, []byte(xml), path); err != nil {
		return false, err
	}
	return true, nil
}

// XMLLint runs `xmllint --noout --schema` with the document on stdin.
func XMLLint(ctx context.Context, xml []byte, schemaPath string) error {
	cmd := exec.CommandContext(ctx, "xmllint", "--noout", "--nonet", "--schema", schemaPath, "-")
	cmd.Stdin = bytes.NewReader(xml)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("xmllint: %w", err)
		}
		return fmt.Errorf("schema validation failed: %s", msg)
	}
	return nil
}
