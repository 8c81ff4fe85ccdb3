package sefaz

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/mdfe-converter/internal/mdfe"
)

// stubSigner appends a fixed Signature element to the root.
type stubSigner struct {
	root, id string
	err      error
}

func (s *stubSigner) Sign(xml, rootElement, idAttribute string) (string, error) {
	s.root, s.id = rootElement, idAttribute
	if s.err != nil {
		return "", s.err
	}
	sig := `<Signature xmlns="http://www.w3.org/2000/09/xmldsig#"><DigestValue>abc123=</DigestValue></Signature>`
	return strings.Replace(xml, "</MDFe>", sig+"</MDFe>", 1), nil
}

const unsignedMDFe = `<?xml version="1.0" encoding="UTF-8"?><MDFe xmlns="http://www.portalfiscal.inf.br/mdfe">` +
	`<infMDFe Id="MDFe` + testKey + `" versao="3.00"><infModal versaoModal="3.00">` +
	`<rodo><infANTT><RNTRC>12345678</RNTRC></infANTT></rodo></infModal></infMDFe></MDFe>`

func TestPrepareSubmission(t *testing.T) {
	signer := &stubSigner{}
	schemas := &recordingValidator{}

	signed, err := PrepareSubmission(unsignedMDFe, signer, schemas)
	require.NoError(t, err)
	require.Contains(t, signed, "<DigestValue>abc123=</DigestValue>")
	require.Equal(t, "infMDFe", signer.root)
	require.Equal(t, "Id", signer.id)
	require.Equal(t, []string{SchemaMDFe, SchemaRoadModal}, schemas.schemas)
}

func TestPrepareSubmissionFailures(t *testing.T) {
	_, err := PrepareSubmission(unsignedMDFe, &stubSigner{err: errors.New("certificate expired")}, &recordingValidator{})
	require.ErrorContains(t, err, "certificate expired")

	_, err = PrepareSubmission(unsignedMDFe, &stubSigner{}, &recordingValidator{fail: SchemaRoadModal})
	require.ErrorContains(t, err, SchemaRoadModal)

	_, err = PrepareSubmission(unsignedMDFe, &stubSigner{}, rejectAll{})
	require.ErrorIs(t, err, ErrInvalidDocument)
}

type rejectAll struct{}

func (rejectAll) Validate(string, string) (bool, error) { return false, nil }

func TestRoadFragment(t *testing.T) {
	frag, err := RoadFragment(unsignedMDFe)
	require.NoError(t, err)
	require.Equal(t,
		`<?xml version="1.0" encoding="UTF-8"?><rodo xmlns="`+mdfe.Namespace+`"><infANTT><RNTRC>12345678</RNTRC></infANTT></rodo>`,
		frag)

	_, err = RoadFragment(`<MDFe/>`)
	require.Error(t, err)
}
