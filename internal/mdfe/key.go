// =============================================================================
// MDF-e Converter - Access Key
// =============================================================================
//
// The 44-digit access key embedded in the infMDFe Id attribute:
//
//   | cUF | AAMM | CNPJ/CPF | mod | serie | nMDF | tpEmis | cMDF | cDV |
//   |  2  |  4   |    14    |  2  |   3   |  9   |   1    |  8   |  1  |
//
// The check digit is mod 11 with weights 2..9 cycling from the rightmost
// digit; a remainder of 0 or 1 yields 0.
//
// =============================================================================

package mdfe

import (
	"fmt"
	"strconv"
	"time"
)

// KeyLength is the number of digits of a complete access key.
const KeyLength = 44

// KeyParts are the authoritative values a key is built from.
type KeyParts struct {
	CUF          string
	Year         string // two digits
	Month        string // two digits
	TaxID        string // CNPJ, or CPF zero-padded to 14
	Model        string
	Serie        string
	Number       string
	EmissionType string
	NumericCode  string
}

// BuildKey assembles the 44-digit key with its check digit. It is a pure
// function of its input.
func BuildKey(p KeyParts) (string, error) {
	nums := []struct {
		name  string
		value string
		max   int
	}{
		{"cUF", p.CUF, 99},
		{"year", p.Year, 99},
		{"month", p.Month, 12},
		{"mod", p.Model, 99},
		{"serie", p.Serie, 999},
		{"nMDF", p.Number, 999999999},
		{"tpEmis", p.EmissionType, 9},
		{"cMDF", p.NumericCode, 99999999},
	}
	parsed := make([]int, len(nums))
	for i, n := range nums {
		v, err := strconv.Atoi(n.value)
		if err != nil {
			return "", fmt.Errorf("invalid %s %q: %w", n.name, n.value, err)
		}
		if v < 0 || v > n.max {
			return "", fmt.Errorf("%s %q out of range", n.name, n.value)
		}
		parsed[i] = v
	}

	taxID := DigitsOnly(p.TaxID)
	if taxID == "" || len(taxID) > 14 {
		return "", fmt.Errorf("invalid taxpayer id %q", p.TaxID)
	}

	base := fmt.Sprintf("%02d%02d%02d%s%02d%03d%09d%01d%08d",
		parsed[0], parsed[1], parsed[2],
		PadLeft(taxID, 14, '0'),
		parsed[3], parsed[4], parsed[5], parsed[6], parsed[7])

	return base + strconv.Itoa(CheckDigit(base)), nil
}

// CheckDigit computes the mod 11 verifier of a digit string.
func CheckDigit(digits string) int {
	sum := 0
	weight := 2
	for i := len(digits) - 1; i >= 0; i-- {
		sum += int(digits[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	rem := sum % 11
	if rem < 2 {
		return 0
	}
	return 11 - rem
}

// ValidKey reports whether key has 44 digits and a correct check digit.
func ValidKey(key string) bool {
	if len(key) != KeyLength || DigitsOnly(key) != key {
		return false
	}
	return CheckDigit(key[:KeyLength-1]) == int(key[KeyLength-1]-'0')
}

// KeyPartsOf pulls the key parts out of a built document. The year and month
// come from dhEmi as written, in its own offset.
func KeyPartsOf(doc *Document, loc *time.Location) (KeyParts, error) {
	if doc.Ide == nil {
		return KeyParts{}, Missing("infMDFe", "ide")
	}
	if doc.Emit == nil {
		return KeyParts{}, Missing("infMDFe", "emit")
	}
	ide := doc.Ide

	required := []struct{ field, value string }{
		{"cUF", ide.CUF},
		{"dhEmi", ide.DhEmi},
		{"mod", ide.Mod},
		{"serie", ide.Serie},
		{"nMDF", ide.NMDF},
		{"tpEmis", ide.TpEmis},
		{"cMDF", ide.CMDF},
	}
	for _, r := range required {
		if r.value == "" {
			return KeyParts{}, Missing("ide", r.field)
		}
	}
	if doc.Emit.TaxID() == "" {
		return KeyParts{}, Missing("emit", "CNPJ")
	}

	emitted, err := ParseDateTime(ide.DhEmi, loc)
	if err != nil {
		return KeyParts{}, fmt.Errorf("invalid dhEmi %q: %w", ide.DhEmi, err)
	}

	return KeyParts{
		CUF:          ide.CUF,
		Year:         emitted.Format("06"),
		Month:        emitted.Format("01"),
		TaxID:        doc.Emit.TaxID(),
		Model:        ide.Mod,
		Serie:        ide.Serie,
		Number:       ide.NMDF,
		EmissionType: ide.TpEmis,
		NumericCode:  ide.CMDF,
	}, nil
}
