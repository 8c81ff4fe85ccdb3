package validation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleXML = `<MDFe xmlns="http://www.portalfiscal.inf.br/mdfe"><infMDFe versao="3.00"/></MDFe>`

func TestSchemaPath(t *testing.T) {
	v := NewXSDValidator("/schemes", "3.00", true)
	require.Equal(t, filepath.Join("/schemes", "mdfe_v3.00.xsd"), v.SchemaPath("mdfe"))
}

func TestValidateMissingSchema(t *testing.T) {
	dir := t.TempDir()

	strict := NewXSDValidator(dir, "3.00", true)
	ok, err := strict.Validate(sampleXML, "mdfe")
	require.False(t, ok)
	require.ErrorIs(t, err, ErrSchemaNotFound)

	permissive := NewXSDValidator(dir, "3.00", false)
	ok, err = permissive.Validate(sampleXML, "mdfe")
	require.True(t, ok)
	require.NoError(t, err)
}

func TestValidateMalformedXML(t *testing.T) {
	v := NewXSDValidator(t.TempDir(), "3.00", false)

	ok, err := v.Validate("<MDFe><infMDFe></MDFe>", "mdfe")
	require.False(t, ok)
	require.Error(t, err)

	ok, err = v.Validate("", "mdfe")
	require.False(t, ok)
	require.Error(t, err)
}

func TestValidateRunsLint(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mdfe_v3.00.xsd"), []byte("<xs:schema/>"), 0o644))

	var gotPath string
	var gotXML []byte
	v := NewXSDValidator(dir, "3.00", true)
	v.Lint = func(ctx context.Context, xml []byte, schemaPath string) error {
		_, hasDeadline := ctx.Deadline()
		require.True(t, hasDeadline)
		gotPath, gotXML = schemaPath, xml
		return nil
	}

	ok, err := v.Validate(sampleXML, "mdfe")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, v.SchemaPath("mdfe"), gotPath)
	require.Equal(t, sampleXML, string(gotXML))

	v.Lint = func(context.Context, []byte, string) error { return errors.New("element infMDFe: missing Id") }
	ok, err = v.Validate(sampleXML, "mdfe")
	require.False(t, ok)
	require.ErrorContains(t, err, "missing Id")
}
