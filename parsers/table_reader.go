package parsers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"ocrorder/model"
)

// ReadTable reads an OCR result file. The format is chosen by extension.
func ReadTable(name string, r io.Reader) ([][]model.Cell, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return ReadWorkbook(r, "")
	case ".csv":
		return ReadCSV(r)
	default:
		return nil, fmt.Errorf("unsupported table format: %s", name)
	}
}

// ReadWorkbook returns the rows of sheet, or of the first sheet when sheet
// is empty. Raw cell values are used so numbers keep full precision.
func ReadWorkbook(r io.Reader, sheet string) ([][]model.Cell, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return toCells(rows), nil
}

// ReadCSV reads a CSV table. Files that are not valid UTF-8 are decoded as
// GB18030, the usual encoding of exports from Chinese POS software.
func ReadCSV(r io.Reader) ([][]model.Cell, error) {
	data, err := io.ReadAll(SkipBOM(r))
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	var src io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		src = transform.NewReader(src, simplifiedchinese.GB18030.NewDecoder())
	}

	reader := csv.NewReader(src)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return toCells(records), nil
}

func toCells(rows [][]string) [][]model.Cell {
	out := make([][]model.Cell, len(rows))
	for i, row := range rows {
		cells := make([]model.Cell, len(row))
		for j, v := range row {
			cells[j] = model.TextCell(v)
		}
		out[i] = cells
	}
	padRows(out)
	return out
}
