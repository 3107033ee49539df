package core

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/gridhost/internal/protocol"
)

var highlightFills = map[protocol.Highlight]string{
	protocol.HighlightError:     "#F8D7DA",
	protocol.HighlightDuplicate: "#FFF3CD",
}

// ExportXLSX writes snap as a one-sheet workbook: a header row of column
// labels, then one row per snapshot row with its highlight as fill color.
func ExportXLSX(w io.Writer, snap protocol.ConfigureTable) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, col := range snap.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		label := col.Label
		if label == "" {
			label = col.Key
		}
		if err := f.SetCellValue(sheet, cell, label); err != nil {
			return err
		}
	}

	styles := make(map[protocol.Highlight]int, len(highlightFills))
	for hl, color := range highlightFills {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		})
		if err != nil {
			return fmt.Errorf("create %s style: %w", hl, err)
		}
		styles[hl] = id
	}

	for i, values := range snap.Data {
		rowIdx := i + 2
		for c, v := range values {
			cell, err := excelize.CoordinatesToCellName(c+1, rowIdx)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
		style, ok := styles[snap.RowHighlights[i]]
		if !ok || len(values) == 0 {
			continue
		}
		first, _ := excelize.CoordinatesToCellName(1, rowIdx)
		last, _ := excelize.CoordinatesToCellName(len(values), rowIdx)
		if err := f.SetCellStyle(sheet, first, last, style); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
