package units

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"ocrorder/model"
)

// LoadOverrideFile reads special-barcode entries from a CSV file with the
// columns barcode, multiplier, target_unit, fixed_price,
// fixed_specification, description. UTF-8 and GB18030 files are accepted.
func LoadOverrideFile(path string) ([]model.BarcodeOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadOverrideFile: open %s: %w", path, err)
	}
	overrides, err := ReadOverrides(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("LoadOverrideFile: %s: %w", path, err)
	}
	return overrides, nil
}

// ReadOverrides parses override records from r. A header line is skipped.
func ReadOverrides(r io.Reader) ([]model.BarcodeOverride, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	var src io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		src = transform.NewReader(src, simplifiedchinese.GB18030.NewDecoder())
	}

	reader := csv.NewReader(src)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var out []model.BarcodeOverride
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		line++
		if len(record) < 3 {
			continue
		}
		barcode := strings.TrimSpace(record[0])
		multiplier, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("line %d: invalid multiplier %q", line, record[1])
		}
		if multiplier < 1 {
			return nil, fmt.Errorf("line %d: multiplier must be >= 1", line)
		}

		o := model.BarcodeOverride{
			Barcode:    barcode,
			Multiplier: multiplier,
			TargetUnit: strings.TrimSpace(record[2]),
			Price:      model.OverridePrice{Kind: model.PriceDivided},
		}
		if len(record) > 3 && strings.TrimSpace(record[3]) != "" {
			price, err := strconv.ParseFloat(strings.TrimSpace(record[3]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid fixed price %q", line, record[3])
			}
			o.Price = model.OverridePrice{Kind: model.PriceFixed, Value: price}
		}
		if len(record) > 4 {
			o.Specification = strings.TrimSpace(record[4])
		}
		if len(record) > 5 {
			o.Description = strings.TrimSpace(record[5])
		}
		out = append(out, o)
	}
	return out, nil
}
