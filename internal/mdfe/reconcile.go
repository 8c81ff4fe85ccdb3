package mdfe

import (
	"strings"
	"time"
)

// Reconcile rebuilds the access key from the document's final field values
// and compares it with the key carried in the Id attribute. A mismatch is a
// KeyMismatchError; the Id is never rewritten. An Id without the "MDFe"
// prefix is a mismatch too. On success ide/cDV is set to the key's check
// digit.
//
// loc only matters when dhEmi lacks an offset; nil means UTC.
func Reconcile(doc *Document, loc *time.Location) (*Document, error) {
	parts, err := KeyPartsOf(doc, loc)
	if err != nil {
		return nil, err
	}

	expected, err := BuildKey(parts)
	if err != nil {
		return nil, err
	}

	if !strings.HasPrefix(doc.ID, IDPrefix) {
		return nil, &KeyMismatchError{Expected: expected, Actual: doc.ID}
	}
	if actual := doc.Key(); actual != expected {
		return nil, &KeyMismatchError{Expected: expected, Actual: actual}
	}

	doc.Ide.CDV = expected[KeyLength-1:]
	return doc, nil
}
