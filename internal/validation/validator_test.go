package validation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/mdfe-converter/internal/mdfe"
)

func sampleDocument() *mdfe.Document {
	return &mdfe.Document{
		Ide: &mdfe.Identification{
			CUF: "31", TpAmb: "2", Mod: "58", Serie: "1", NMDF: "123", CMDF: "12345678",
			DhEmi: "2024-05-10T08:30:00-03:00", UFIni: "MG", UFFim: "SP",
		},
		Emit: &mdfe.Issuer{
			CNPJ: "11222333000181", XNome: "Transportes Exemplo",
			EnderEmit: &mdfe.Address{CMun: "3106200", CEP: "30110000", UF: "MG"},
		},
		Discharges: []mdfe.Discharge{{
			CMunDescarga: "3550308",
			InfCTe:       []mdfe.FiscalRef{{Kind: mdfe.RefCTe, Key: "35240511222333000181570010000004561000004562"}},
		}},
		Road: &mdfe.RoadModal{
			RNTRC:      "12345678",
			VeicTracao: &mdfe.Vehicle{Placa: "ABC1D23", Tara: "8000"},
		},
		Totals: &mdfe.Totals{QCTe: "1", VCarga: "15000.00", CUnid: "01", QCarga: "12000.5000"},
	}
}

func TestValidateDocumentClean(t *testing.T) {
	result := NewValidator().ValidateDocument(sampleDocument())
	require.True(t, result.IsValid)
	require.Empty(t, result.Errors, FormatErrors(result.Errors))
	require.Greater(t, result.FieldsValidated, 10)
}

func TestValidateDocumentFindings(t *testing.T) {
	doc := sampleDocument()
	doc.Emit.EnderEmit.CEP = "30110-000"
	doc.Totals.VCarga = "15000,00"
	doc.Road.VeicTracao.Placa = "ABC-1D23"

	result := NewValidator().ValidateDocument(doc)
	require.True(t, result.IsValid, "format findings are warnings")
	require.Equal(t, 0, result.ErrorCount)
	require.GreaterOrEqual(t, result.WarningCount, 3)

	fields := map[string]bool{}
	for _, e := range result.Errors {
		fields[e.Group+"/"+e.Field] = true
	}
	require.True(t, fields["enderEmit/CEP"])
	require.True(t, fields["tot/vCarga"])
	require.True(t, fields["veicTracao/placa"])
}

func TestValidateDocumentBadReferenceKey(t *testing.T) {
	doc := sampleDocument()
	doc.Discharges[0].InfCTe[0].Key = "35240511222333000181570010000004561000004561"

	result := NewValidator().ValidateDocument(doc)
	require.False(t, result.IsValid)
	require.Equal(t, 1, result.ErrorCount)
	require.Equal(t, "chCTe", result.Errors[0].Field)
	require.Equal(t, SeverityError, result.Errors[0].Severity)
}

func TestTreatWarningsAsErrors(t *testing.T) {
	doc := sampleDocument()
	doc.Ide.CUF = "3"

	v := NewValidatorWithRules(DefaultRules(), ValidationOptions{TreatWarningsAsErrors: true})
	require.False(t, v.ValidateDocument(doc).IsValid)
}

func TestValidateField(t *testing.T) {
	v := NewValidator()
	cases := []struct {
		rule  FieldRule
		value string
		fails int
	}{
		{FieldRule{DataType: "numeric", Length: 2}, "31", 0},
		{FieldRule{DataType: "numeric", Length: 2}, "3a1", 2},
		{FieldRule{DataType: "decimal(2)"}, "10.5", 0},
		{FieldRule{DataType: "decimal(2)"}, "10.555", 1},
		{FieldRule{DataType: "decimal(4)"}, "abc", 1},
		{FieldRule{DataType: "alpha", Length: 2}, "M1", 1},
		{FieldRule{DataType: "datetime"}, "2024-05-10T08:30:00-03:00", 0},
		{FieldRule{DataType: "datetime"}, "2024-05-10T08:30:00", 1},
		{FieldRule{DataType: "datetime"}, "10/05/2024", 1},
		{FieldRule{MaxLength: 3}, "Ação", 1},
		{FieldRule{MaxLength: 4}, "Ação", 0},
	}
	for _, tc := range cases {
		require.Len(t, v.ValidateField("g", "f", tc.value, tc.rule), tc.fails, "%+v %q", tc.rule, tc.value)
	}
}

func TestFormatErrors(t *testing.T) {
	require.Equal(t, "No validation errors.", FormatErrors(nil))

	out := FormatErrors([]*ValidationError{{Severity: SeverityWarning, Group: "tot", Field: "cUnid", Value: "1", Message: "bad"}})
	require.Contains(t, out, "1. [WARNING] tot/cUnid: bad (value: '1')")
}
