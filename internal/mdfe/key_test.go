package mdfe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleParts() KeyParts {
	return KeyParts{
		CUF:          "31",
		Year:         "24",
		Month:        "05",
		TaxID:        "11.222.333/0001-81",
		Model:        "58",
		Serie:        "1",
		Number:       "123",
		EmissionType: "1",
		NumericCode:  "12345678",
	}
}

func TestBuildKey(t *testing.T) {
	key, err := BuildKey(sampleParts())
	require.NoError(t, err)
	require.Equal(t, "31240511222333000181580010000001231123456787", key)
	require.Len(t, key, KeyLength)
	require.True(t, ValidKey(key))

	again, err := BuildKey(sampleParts())
	require.NoError(t, err)
	require.Equal(t, key, again)
}

func TestBuildKeyPadsCPF(t *testing.T) {
	p := sampleParts()
	p.TaxID = "123.456.789-09"

	key, err := BuildKey(p)
	require.NoError(t, err)
	require.Equal(t, "00012345678909", key[6:20])
}

func TestBuildKeyRejectsBadParts(t *testing.T) {
	cases := map[string]func(p *KeyParts){
		"month":   func(p *KeyParts) { p.Month = "13" },
		"serie":   func(p *KeyParts) { p.Serie = "1000" },
		"cMDF":    func(p *KeyParts) { p.NumericCode = "abc" },
		"tax id":  func(p *KeyParts) { p.TaxID = "" },
		"long id": func(p *KeyParts) { p.TaxID = "123456789012345" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := sampleParts()
			mutate(&p)
			_, err := BuildKey(p)
			require.Error(t, err)
		})
	}
}

func TestCheckDigit(t *testing.T) {
	require.Equal(t, 7, CheckDigit("3124051122233300018158001000000123112345678"))
	require.Equal(t, 8, CheckDigit("3124051122233300018158001000000124187654321"))
	// remainders 0 and 1 both give 0
	require.Equal(t, 0, CheckDigit("0"))
	require.Equal(t, 0, CheckDigit("6"))
}

func TestValidKey(t *testing.T) {
	require.True(t, ValidKey("31240511222333000181580010000001231123456787"))
	require.False(t, ValidKey("31240511222333000181580010000001231123456788"))
	require.False(t, ValidKey("3124051122233300018158001000000123112345678"))
	require.False(t, ValidKey("3124051122233300018158001000000123112345678X"))
}

func TestKeyPartsOf(t *testing.T) {
	doc := &Document{
		Ide: &Identification{
			CUF: "31", DhEmi: "2024-05-10T08:30:00-03:00", Mod: "58",
			Serie: "001", NMDF: "123", TpEmis: "1", CMDF: "12345678",
		},
		Emit: &Issuer{CNPJ: "11222333000181"},
	}

	parts, err := KeyPartsOf(doc, time.UTC)
	require.NoError(t, err)
	require.Equal(t, "24", parts.Year)
	require.Equal(t, "05", parts.Month)
	require.Equal(t, "11222333000181", parts.TaxID)

	doc.Ide.CMDF = ""
	_, err = KeyPartsOf(doc, time.UTC)
	require.ErrorIs(t, err, ErrMissingRequiredField)

	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "ide", missing.Group)
	require.Equal(t, "cMDF", missing.Field)
}
