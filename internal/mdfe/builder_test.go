package mdfe_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/mdfe-converter/internal/layout"
	"github.com/ginjaninja78/mdfe-converter/internal/mdfe"
	"github.com/ginjaninja78/mdfe-converter/internal/txtparser"
)

const validID = "MDFe31240511222333000181580010000001231123456787"

var header = []string{
	"A|3.00|" + validID + "|",
	"B|31|2|1|58|001|000000123|12345678|1|2024-05-10T08:30:00-03:00|1|0|ERP 1.0|MG|SP||||",
	"B01|3106200|Belo Horizonte|",
	"C|Transportes Exemplo Ltda|Exemplo|0623079040081|",
	"C02|11222333000181|",
	"C05|Rua das Flores|100||Centro|3106200|Belo Horizonte|30110000|MG|||",
}

// feed decodes lines with the embedded layout and runs them through a
// builder, stopping at the first error.
func feed(t *testing.T, opts mdfe.Options, lines ...string) (*mdfe.Document, error) {
	t.Helper()
	l, err := layout.Default()
	require.NoError(t, err)

	b := mdfe.NewBuilder(opts)
	for i, raw := range lines {
		line, err := txtparser.DecodeLine(i+1, raw, l)
		require.NoError(t, err)
		if err := b.Feed(line.Label, line.Fields); err != nil {
			return nil, err
		}
	}
	return b.Finish()
}

func withHeader(lines ...string) []string {
	return append(append([]string{}, header...), lines...)
}

func TestBuilderAttachesIdentificationAndIssuer(t *testing.T) {
	_, err := feed(t, mdfe.Options{}, withHeader("B02|RJ|")...)
	require.ErrorIs(t, err, mdfe.ErrSchemaViolation, "ide is closed once emit opens")

	doc, err := feed(t, mdfe.Options{}, header...)
	require.NoError(t, err)
	require.Equal(t, "3.00", doc.Version)
	require.Equal(t, validID, doc.ID)
	require.Equal(t, "31240511222333000181580010000001231123456787", doc.Key())
	require.Equal(t, "31", doc.Ide.CUF)
	require.Equal(t, "58", doc.Ide.Mod)
	require.Len(t, doc.Ide.InfMunCarrega, 1)
	require.Equal(t, "11222333000181", doc.Emit.TaxID())
	require.Equal(t, "30110000", doc.Emit.EnderEmit.CEP)
	require.False(t, doc.IsProduction())
}

func TestBuilderFillsEmptyEmissionDate(t *testing.T) {
	now := time.Date(2024, 5, 10, 11, 30, 0, 0, time.UTC)
	loc := time.FixedZone("BRT", -3*60*60)

	doc, err := feed(t, mdfe.Options{Location: loc, Now: func() time.Time { return now }},
		"A|3.00|"+validID+"|",
		"B|31|2|1||1|123|12345678|1||1|0|ERP 1.0|MG|SP||||",
	)
	require.NoError(t, err)
	require.Equal(t, "2024-05-10T08:30:00-03:00", doc.Ide.DhEmi)
	require.Equal(t, mdfe.DefaultModel, doc.Ide.Mod)
}

func TestBuilderRendersEmissionDateWithOffset(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	cases := map[string]string{
		"2024-05-10T08:30:00":       "2024-05-10T08:30:00-03:00",
		"2024-05-10T08:30:00-03:00": "2024-05-10T08:30:00-03:00",
		"2024-05-10T11:30:00Z":      "2024-05-10T11:30:00+00:00",
		"10/05/2024":                "10/05/2024",
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			doc, err := feed(t, mdfe.Options{Location: loc},
				"A|3.00|"+validID+"|",
				"B|31|2|1|58|1|123|12345678|1|"+in+"|1|0|ERP 1.0|MG|SP||||",
			)
			require.NoError(t, err)
			require.Equal(t, want, doc.Ide.DhEmi)
		})
	}
}

// Three references opened and closed back to back under one discharge
// municipality, none with transport units.
func TestBuilderReferencesUnderOneDischarge(t *testing.T) {
	doc, err := feed(t, mdfe.Options{}, withHeader(
		"E|3550308|Sao Paulo|",
		"F|35240511222333000181570010000004561000004562|||",
		"F99|",
		"F|35240511222333000181570010000004571000004578|||",
		"F99|",
		"F|35240511222333000181570010000004581000004583|||",
		"F99|",
	)...)
	require.NoError(t, err)
	require.Len(t, doc.Discharges, 1)

	refs := doc.Discharges[0].InfCTe
	require.Len(t, refs, 3)
	for _, r := range refs {
		require.Empty(t, r.TransportUnits)
	}
	require.Equal(t, "35240511222333000181570010000004571000004578", refs[1].Key)
}

func TestBuilderNestsUnitsUnderCurrentReference(t *testing.T) {
	doc, err := feed(t, mdfe.Options{}, withHeader(
		"E|3550308|Sao Paulo|",
		"H|35240511222333000181550010000000011000000012|||",
		"H01|1|ABC1D23|1.5|",
		"H02|L-1|",
		"H03|1|CONT-1|2|",
		"H04|L-2|",
		"H03|1|CONT-2||",
		"H01|2|REB-1||",
		"H05|1203|GASOLINA|3|II|100|L|",
		"H99|",
		"E|3304557|Rio de Janeiro|",
		"J|31240511222333000181580010000000991000000990|1|",
		"J99|",
	)...)
	require.NoError(t, err)
	require.Len(t, doc.Discharges, 2)

	nfe := doc.Discharges[0].InfNFe
	require.Len(t, nfe, 1)
	units := nfe[0].TransportUnits
	require.Len(t, units, 2)
	require.Equal(t, []string{"L-1"}, units[0].LacUnidTransp)
	require.Len(t, units[0].InfUnidCarga, 2)
	require.Equal(t, []string{"L-2"}, units[0].InfUnidCarga[0].LacUnidCarga)
	require.Equal(t, "2", units[0].InfUnidCarga[0].QtdRat)
	require.Empty(t, units[1].InfUnidCarga)
	require.Len(t, nfe[0].Hazards, 1)

	require.Empty(t, doc.Discharges[1].InfNFe)
	require.Len(t, doc.Discharges[1].InfMDFeTransp, 1)
}

func TestBuilderRoadAndTrailingGroups(t *testing.T) {
	doc, err := feed(t, mdfe.Options{}, withHeader(
		"E|3550308|Sao Paulo|",
		"K|APOL-1|AVER-1|",
		"K01|1|11222333000181||",
		"K02|Seguradora Exemplo|33444555000166|",
		"K03|",
		"O01|12345678||",
		"O02|1|ABC1D23|8000|20000|60|03|02|MG||",
		"O04|Joao da Silva|12345678909|",
		"O05|2|XYZ9A87|5000|30000|80|02|SP||",
		"O06||33444555000166|87654321|Locadora|ISENTO|SP|0|",
		"O05|3|XYZ9A88|5000|30000|80|02|SP||",
		"P03|LR-1|",
		"P99|",
		"W02|1||0|15000.00|01|12000.5000|",
		"X02|LAC-1|",
		"X02|LAC-2|",
		"Y02||33444555000166|",
		"Z||Carga fragil|",
		"IRT|11222333000181|Fulano|fulano@exemplo.com.br|3132221111|",
	)...)
	require.NoError(t, err)

	require.Len(t, doc.Insurance, 1)
	require.Equal(t, "Seguradora Exemplo", doc.Insurance[0].InfSeg.XSeg)

	road := doc.Road
	require.NotNil(t, road)
	require.Equal(t, "12345678", road.RNTRC)
	require.Equal(t, "03", road.VeicTracao.TpRod)
	require.Len(t, road.VeicTracao.Condutor, 1)
	require.Len(t, road.VeicReboque, 2)
	require.Empty(t, road.VeicReboque[0].TpRod)
	require.Len(t, road.VeicReboque[0].Prop, 1)
	require.Empty(t, road.VeicReboque[1].Prop)
	require.Empty(t, road.ValePed)
	require.Equal(t, []string{"LR-1"}, road.LacRodo)

	require.Equal(t, "12000.5000", doc.Totals.QCarga)
	require.Equal(t, []string{"LAC-1", "LAC-2"}, doc.Seals)
	require.Len(t, doc.Downloaders, 1)
	require.Equal(t, "Carga fragil", doc.AdditionalInfo.InfCpl)
	require.Equal(t, "Fulano", doc.TechResponsible.XContato)
}

func TestBuilderViolations(t *testing.T) {
	cases := map[string][]string{
		"first line not A":         {"B|31|2|1|58|1|123|12345678|1||1|0|ERP|MG|SP||||"},
		"reference without E":      withHeader("F|35240511222333000181570010000004561000004562|||"),
		"nested reference":         withHeader("E|1|X|", "F|1|||", "H|2|||"),
		"seal without unit":        withHeader("E|1|X|", "F|1|||", "F02|L|"),
		"cargo seal without cargo": withHeader("E|1|X|", "F|1|||", "F01|1|U||", "F04|L|"),
		"wrong family close":       withHeader("E|1|X|", "F|1|||", "H99|"),
		"unclosed reference":       withHeader("E|1|X|", "F|1|||"),
		"unclosed insurance":       withHeader("K|A|B|"),
		"insurer without K":        withHeader("K02|X|1|"),
		"driver without vehicle":   withHeader("O01|1||", "O04|X|1|"),
		"unclosed road":            withHeader("O01|1||"),
		"second issuer":            withHeader("C|Outro||1|"),
		"second totals":            withHeader("W02|1||0|1|01|1|", "W02|1||0|1|01|1|"),
		"second A":                 withHeader("A|3.00|" + validID + "|"),
	}

	for name, lines := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := feed(t, mdfe.Options{}, lines...)
			require.ErrorIs(t, err, mdfe.ErrSchemaViolation)

			var v *mdfe.SchemaViolationError
			require.ErrorAs(t, err, &v)
			require.NotEmpty(t, v.Label)
		})
	}
}

func TestBuilderUnknownLabel(t *testing.T) {
	b := mdfe.NewBuilder(mdfe.Options{})
	require.NoError(t, b.Feed("a", mdfe.Fields{"versao": "3.00"}))
	require.ErrorIs(t, b.Feed("Q99", nil), mdfe.ErrSchemaViolation)
}

func TestBuilderIsSingleUse(t *testing.T) {
	b := mdfe.NewBuilder(mdfe.Options{})
	require.NoError(t, b.Feed("A", mdfe.Fields{"versao": "3.00", "Id": validID}))
	_, err := b.Finish()
	require.NoError(t, err)

	require.ErrorIs(t, b.Feed("B", nil), mdfe.ErrSchemaViolation)
	_, err = b.Finish()
	require.ErrorIs(t, err, mdfe.ErrSchemaViolation)
}

func TestLabelsMatchEmbeddedLayout(t *testing.T) {
	l, err := layout.Default()
	require.NoError(t, err)
	require.NoError(t, l.CheckAgainst(mdfe.Labels()))
	require.True(t, mdfe.HasLabel("C02A"))
	require.False(t, mdfe.HasLabel("C02a"))
}
