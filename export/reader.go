package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"ocrorder/model"
)

// ReadPurchaseOrder reads the lines of a workbook produced by Writer.
// Rows without a barcode are skipped.
func ReadPurchaseOrder(r io.Reader) ([]model.AggregatedRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open purchase order: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	var out []model.AggregatedRecord
	for i := firstRow - 1; i < len(rows); i++ {
		row := rows[i]
		barcode := strings.TrimSpace(cellAt(row, colBarcode))
		if barcode == "" {
			continue
		}
		rec := model.AggregatedRecord{Barcode: barcode}
		if rec.NormalQuantity, err = parseNumber(cellAt(row, colQuantity)); err != nil {
			return nil, fmt.Errorf("row %d quantity: %w", i+1, err)
		}
		if rec.GiftQuantity, err = parseNumber(cellAt(row, colGift)); err != nil {
			return nil, fmt.Errorf("row %d gift: %w", i+1, err)
		}
		if rec.NormalPrice, err = parseNumber(cellAt(row, colPrice)); err != nil {
			return nil, fmt.Errorf("row %d price: %w", i+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func cellAt(row []string, col int) string {
	if col-1 < len(row) {
		return row[col-1]
	}
	return ""
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
