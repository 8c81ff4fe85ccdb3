package sefaz

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"

	"github.com/ginjaninja78/mdfe-converter/internal/mdfe"
	"github.com/ginjaninja78/mdfe-converter/internal/validation"
)

// Schema names checked before a manifest is sent.
const (
	SchemaMDFe      = "mdfe"
	SchemaRoadModal = "mdfeModalRodoviario"
)

// Signer signs the element rootElement, referenced by its idAttribute.
type Signer interface {
	Sign(xml, rootElement, idAttribute string) (string, error)
}

// ErrInvalidDocument is returned when a schema check reports the document
// invalid without an error of its own.
var ErrInvalidDocument = errors.New("document does not conform to schema")

// PrepareSubmission signs xml over infMDFe/Id and validates the signed
// document against "mdfe" and its rodo fragment against
// "mdfeModalRodoviario".
//
// RETURNS:
//   - The signed document.
//   - The first signing or validation error.
func PrepareSubmission(xml string, signer Signer, schemas validation.SchemaValidator) (string, error) {
	signed, err := signer.Sign(xml, "infMDFe", "Id")
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}

	if err := check(schemas, signed, SchemaMDFe); err != nil {
		return "", err
	}

	road, err := RoadFragment(signed)
	if err != nil {
		return "", err
	}
	if err := check(schemas, road, SchemaRoadModal); err != nil {
		return "", err
	}

	return signed, nil
}

// RoadFragment extracts the rodo element of a manifest as a standalone
// document.
func RoadFragment(xml string) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		return "", fmt.Errorf("failed to parse signed MDF-e: %w", err)
	}
	rodo := doc.FindElement("//rodo")
	if rodo == nil {
		return "", errors.New("signed MDF-e has no rodo element")
	}

	frag := etree.NewDocument()
	frag.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	frag.SetRoot(rodo.Copy())
	// The copy loses the namespace it inherited from MDFe.
	if frag.Root().SelectAttr("xmlns") == nil {
		frag.Root().CreateAttr("xmlns", mdfe.Namespace)
	}
	return frag.WriteToString()
}

func check(schemas validation.SchemaValidator, xml, schema string) error {
	ok, err := schemas.Validate(xml, schema)
	if err != nil {
		return fmt.Errorf("%s: %w", schema, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", schema, ErrInvalidDocument)
	}
	return nil
}
