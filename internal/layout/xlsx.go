package layout

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SheetColumns describes where the label table lives inside a sheet.
type SheetColumns struct {
	// LabelColumn is the 0-based column of the label. Default: 0 (A).
	LabelColumn int

	// DataStartRow is the 0-based first data row. Default: 1 (row 2).
	DataStartRow int
}

// DefaultSheetColumns matches the workbook described in the package comment.
func DefaultSheetColumns() SheetColumns {
	return SheetColumns{
		LabelColumn:  0,
		DataStartRow: 1,
	}
}

// LoadXLSX reads one layout per visible sheet of a workbook. The sheet name
// is the layout version. Sheets whose name starts with "_" are skipped.
func LoadXLSX(path string) ([]*Layout, error) {
	return LoadXLSXWithColumns(path, DefaultSheetColumns())
}

// LoadXLSXWithColumns is LoadXLSX with a custom sheet shape.
func LoadXLSXWithColumns(path string, columns SheetColumns) ([]*Layout, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open layout workbook: %w", err)
	}
	defer f.Close()

	var layouts []*Layout
	for _, sheet := range f.GetSheetList() {
		if strings.HasPrefix(sheet, "_") {
			continue
		}

		l, err := parseSheet(f, sheet, columns)
		if err != nil {
			return nil, fmt.Errorf("error parsing sheet '%s': %w", sheet, err)
		}
		l.Source = path + "#" + sheet
		layouts = append(layouts, l)
	}

	if len(layouts) == 0 {
		return nil, fmt.Errorf("layout workbook %s has no sheets", path)
	}
	return layouts, nil
}

func parseSheet(f *excelize.File, sheet string, columns SheetColumns) (*Layout, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	l := &Layout{
		Version: sheet,
		Labels:  make(map[string][]string),
	}

	for i := columns.DataStartRow; i < len(rows); i++ {
		row := rows[i]
		if len(row) <= columns.LabelColumn || isRowEmpty(row) {
			continue
		}

		label := strings.TrimSpace(row[columns.LabelColumn])
		if label == "" {
			return nil, fmt.Errorf("row %d has fields but no label", i+1)
		}

		fields := []string{}
		for _, cell := range row[columns.LabelColumn+1:] {
			name := strings.TrimSpace(cell)
			if name == "" {
				break
			}
			fields = append(fields, name)
		}
		l.Labels[label] = fields
	}

	if err := l.normalize(); err != nil {
		return nil, err
	}
	return l, nil
}

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
