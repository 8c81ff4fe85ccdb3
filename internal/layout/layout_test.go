package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestDefaultLayout(t *testing.T) {
	l, err := Default()
	require.NoError(t, err)
	require.Equal(t, DefaultVersion, l.Version)
	require.Equal(t, "embedded", l.Source)

	fields, ok := l.Fields("b01")
	require.True(t, ok)
	require.Equal(t, []string{"cMunCarrega", "xMunCarrega"}, fields)

	fields, ok = l.Fields("C02A")
	require.True(t, ok)
	require.Equal(t, []string{"CPF"}, fields)

	_, ok = l.Fields("Q")
	require.False(t, ok)
}

func TestParseRejectsBadLayouts(t *testing.T) {
	_, err := Parse([]byte("labels:\n  A: [versao]\n"))
	require.Error(t, err)

	_, err = Parse([]byte("version: \"4.00\"\nlabels:\n  a: [x]\n  A: [y]\n"))
	require.ErrorContains(t, err, "twice")
}

func TestCheckAgainst(t *testing.T) {
	l, err := Parse([]byte("version: \"9.99\"\nlabels:\n  A: [versao, Id]\n  B: [cUF]\n"))
	require.NoError(t, err)

	require.NoError(t, l.CheckAgainst([]string{"A", "B"}))

	err = l.CheckAgainst([]string{"A", "C"})
	require.ErrorContains(t, err, "labels without layout: C")
	require.ErrorContains(t, err, "labels without handler: B")
}

func TestRegistryLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"3.01\"\nlabels:\n  A: [versao, Id]\n"), 0o644))

	r, err := NewRegistry()
	require.NoError(t, err)
	require.NoError(t, r.LoadFile(path))
	require.Equal(t, []string{"3.00", "3.01"}, r.Versions())

	l, ok := r.Get(" 3.01 ")
	require.True(t, ok)
	require.Equal(t, path, l.Source)

	require.Error(t, r.LoadFile(filepath.Join(t.TempDir(), "layout.json")))
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "3.00"
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	rows := [][]interface{}{
		{"Label", "Field 1", "Field 2"},
		{"A", "versao", "Id"},
		{},
		{"b01", "cMunCarrega", "xMunCarrega"},
		{"F99"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	_, err := f.NewSheet("_notes")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "layouts.xlsx")
	require.NoError(t, f.SaveAs(path))

	layouts, err := LoadXLSX(path)
	require.NoError(t, err)
	require.Len(t, layouts, 1)

	l := layouts[0]
	require.Equal(t, "3.00", l.Version)
	require.Equal(t, path+"#3.00", l.Source)
	require.Equal(t, []string{"versao", "Id"}, l.Labels["A"])
	require.Equal(t, []string{"cMunCarrega", "xMunCarrega"}, l.Labels["B01"])
	require.Empty(t, l.Labels["F99"])
	require.Contains(t, l.Labels, "F99")
}
