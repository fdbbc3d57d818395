package export

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/esdes/campus/core/entity"
)

const maxSheetName = 31

// Table is what gets exported: the columns of a view and its filtered rows.
type Table struct {
	Title   string
	Columns []entity.Column
	Rows    []entity.Row
	Totals  map[string]float64
}

// TableFromManager exports every filtered row of m, not only the current page.
func TableFromManager(m *entity.Manager) Table {
	v := m.View()
	return Table{
		Title:   v.Title,
		Columns: v.Columns,
		Rows:    m.Filtered(),
		Totals:  v.Totals,
	}
}

// WriteXLSX writes t as a one-sheet workbook: a bold header row, the rows, then a totals row if any.
func WriteXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := sheetName(t.Title)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return errors.Wrap(err, "export.SetSheetName")
	}

	header := make([]interface{}, 0, len(t.Columns))
	for _, col := range t.Columns {
		header = append(header, col.Label)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrap(err, "export.SetSheetRow")
	}
	if len(t.Columns) > 0 {
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return errors.Wrap(err, "export.NewStyle")
		}
		last, _ := excelize.CoordinatesToCellName(len(t.Columns), 1)
		if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
			return errors.Wrap(err, "export.SetCellStyle")
		}
	}

	for i, row := range t.Rows {
		cells := make([]interface{}, 0, len(t.Columns))
		for _, col := range t.Columns {
			cells = append(cells, cellValue(row[col.Field]))
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return errors.Wrap(err, "export.SetSheetRow")
		}
	}

	if len(t.Totals) > 0 {
		cells := make([]interface{}, len(t.Columns))
		cells[0] = "Total"
		for j, col := range t.Columns {
			if sum, ok := t.Totals[col.Field]; ok && j > 0 {
				cells[j] = sum
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, len(t.Rows)+2)
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return errors.Wrap(err, "export.SetSheetRow")
		}
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "export.Write")
	}
	return nil
}

// cellValue keeps numbers numeric so the sheet can sum them.
func cellValue(v interface{}) interface{} {
	if n, ok := v.(interface{ Float64() (float64, error) }); ok {
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	switch v.(type) {
	case float64, int, int64:
		return v
	}
	return entity.Text(v)
}

func sheetName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		return "Export"
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}
