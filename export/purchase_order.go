package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"ocrorder/model"
)

// File name prefixes of generated workbooks.
const (
	OrderPrefix = "采购单_"
	MergePrefix = "合并采购单_"
)

// Header is written when no template file is available. Columns B to E
// carry the data; column A is left for the product name in the template.
var Header = []string{"商品名称", "条码（必填）", "采购量（必填）", "赠送量", "采购单价（必填）"}

const (
	colBarcode  = 2
	colQuantity = 3
	colGift     = 4
	colPrice    = 5
	firstRow    = 2
)

// Writer fills the purchase-order template.
type Writer struct {
	templatePath string
	log          zerolog.Logger
}

func NewWriter(templatePath string, log zerolog.Logger) *Writer {
	return &Writer{
		templatePath: templatePath,
		log:          log.With().Str("component", "export").Logger(),
	}
}

// OrderFileName is the output name for an order built from source.
func OrderFileName(source string) string {
	base := filepath.Base(source)
	return OrderPrefix + strings.TrimSuffix(base, filepath.Ext(base)) + ".xlsx"
}

// MergeFileName is the output name for a merged order created at t.
func MergeFileName(t time.Time) string {
	return MergePrefix + t.Format("20060102150405") + ".xlsx"
}

// Build returns a workbook holding records. The caller closes it.
func (w *Writer) Build(records []model.AggregatedRecord) (*excelize.File, error) {
	f, err := w.open()
	if err != nil {
		return nil, err
	}
	sheet := f.GetSheetName(0)

	priceStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: strPtr("0.0000")})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create price style: %w", err)
	}

	for i, r := range records {
		row := firstRow + i
		// set records the first failure and skips the remaining cells
		var cellErr error
		set := func(col int, v interface{}) {
			if cellErr != nil {
				return
			}
			cell, err := excelize.CoordinatesToCellName(col, row)
			if err != nil {
				cellErr = err
				return
			}
			cellErr = f.SetCellValue(sheet, cell, v)
		}

		set(colBarcode, r.Barcode)
		if r.HasNormal() {
			set(colQuantity, r.NormalQuantity)
			if r.GiftQuantity > 0 {
				set(colGift, r.GiftQuantity)
			}
			set(colPrice, r.NormalPrice)
		} else {
			set(colQuantity, 0)
			set(colGift, r.GiftQuantity)
			set(colPrice, 0)
		}
		if cellErr != nil {
			f.Close()
			return nil, fmt.Errorf("row %d: %w", row, cellErr)
		}

		priceCell, err := excelize.CoordinatesToCellName(colPrice, row)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		if err := f.SetCellStyle(sheet, priceCell, priceCell, priceStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
	}
	return f, nil
}

// open loads the template, or creates a workbook with Header when the
// template does not exist.
func (w *Writer) open() (*excelize.File, error) {
	if w.templatePath != "" {
		f, err := excelize.OpenFile(w.templatePath)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to open template %s: %w", w.templatePath, err)
		}
		w.log.Warn().Str("template", w.templatePath).Msg("template not found, creating a blank order")
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &Header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return f, nil
}

// WriteTo streams the order workbook to out.
func (w *Writer) WriteTo(out io.Writer, records []model.AggregatedRecord) error {
	f, err := w.Build(records)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveAs writes the order workbook to path, creating its directory.
func (w *Writer) SaveAs(path string, records []model.AggregatedRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}
	f, err := w.Build(records)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	w.log.Info().Str("path", path).Int("lines", len(records)).Msg("purchase order saved")
	return nil
}

func strPtr(s string) *string { return &s }
