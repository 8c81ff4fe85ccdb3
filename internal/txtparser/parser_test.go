package txtparser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/ginjaninja78/mdfe-converter/internal/layout"
	"github.com/ginjaninja78/mdfe-converter/internal/mdfe"
)

func TestDecodeLatin1(t *testing.T) {
	raw, err := charmap.ISO8859_1.NewEncoder().String("C|Transportes São João|")
	require.NoError(t, err)

	text, err := Decode([]byte(raw), EncodingLatin1)
	require.NoError(t, err)
	require.Equal(t, "C|Transportes São João|", text)

	_, err = Decode([]byte(raw), "EBCDIC")
	require.Error(t, err)
}

func TestDecodeStripsBOM(t *testing.T) {
	text, err := Decode([]byte("\xEF\xBB\xBFMANIFESTO|1|"), "")
	require.NoError(t, err)
	require.Equal(t, "MANIFESTO|1|", text)
}

func TestClean(t *testing.T) {
	in := "MANIFESTO|1|\r\nA | 3.00 |MDFe1|\r\n\tB|31|   2|\r\n"
	require.Equal(t, "MANIFESTO|1|\nA|3.00|MDFe1|\nB|31|2|", Clean(in))
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lote.txt")
	raw, err := charmap.Windows1252.NewEncoder().String("MANIFESTO|1|\r\nZ||Observação|\r\n")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	text, err := ReadFile(path, EncodingWindows1252)
	require.NoError(t, err)
	require.Equal(t, []string{"MANIFESTO|1|", "Z||Observação|"}, SplitLines(text))
}

func TestDecodeLine(t *testing.T) {
	l, err := layout.Default()
	require.NoError(t, err)

	line, err := DecodeLine(3, "b01|3106200|Belo Horizonte|", l)
	require.NoError(t, err)
	require.Equal(t, 3, line.Number)
	require.Equal(t, "B01", line.Label)
	require.Equal(t, "3106200", line.Fields.Get("cMunCarrega"))
	require.Equal(t, "Belo Horizonte", line.Fields.Get("xMunCarrega"))

	// missing trailing tokens decode as empty, extras are ignored
	line, err = DecodeLine(4, "Z|fisco", l)
	require.NoError(t, err)
	require.Equal(t, "fisco", line.Fields.Get("infAdFisco"))
	require.Equal(t, "", line.Fields.Get("infCpl"))

	line, err = DecodeLine(5, "B02|MG|extra|more|", l)
	require.NoError(t, err)
	require.Len(t, line.Fields, 1)
}

func TestDecodeLineMalformed(t *testing.T) {
	l, err := layout.Default()
	require.NoError(t, err)

	_, err = DecodeLine(7, "Q9|x|", l)
	require.ErrorIs(t, err, mdfe.ErrMalformedLine)

	var malformed *mdfe.MalformedLineError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, 7, malformed.Line)
	require.Equal(t, "Q9|x|", malformed.Content)

	_, err = DecodeLine(8, "|x|", l)
	require.ErrorIs(t, err, mdfe.ErrMalformedLine)
}

func TestLabelOf(t *testing.T) {
	require.Equal(t, "C02A", LabelOf("c02a|123|"))
	require.Equal(t, "MANIFESTO", LabelOf("MANIFESTO"))
	require.Equal(t, "", LabelOf(""))
}
