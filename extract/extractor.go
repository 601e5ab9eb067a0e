// Package extract turns raw OCR tables into normalized product records.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ocrorder/barcode"
	"ocrorder/config"
	"ocrorder/model"
	"ocrorder/packspec"
	"ocrorder/parsers"
	"ocrorder/units"
)

// Skip reasons counted in Stats.
const (
	SkipEmpty    = "empty"
	SkipSubtotal = "subtotal"
	SkipBarcode  = "barcode"
	SkipQuantity = "quantity"
)

// Stats summarizes one extraction.
type Stats struct {
	Rows    int
	Records int
	Skipped map[string]int
}

func newStats() Stats {
	return Stats{Skipped: make(map[string]int)}
}

// Extractor runs header detection, column mapping and the per-row rules.
// It keeps no state between documents.
type Extractor struct {
	headers    *parsers.HeaderDetector
	columns    *parsers.ColumnMapper
	barcodes   *barcode.Normalizer
	inferencer *packspec.Inferencer
	engine     *units.Engine
	subtotals  []string
	log        zerolog.Logger
}

func New(cfg config.Config, engine *units.Engine, log zerolog.Logger) *Extractor {
	return &Extractor{
		headers:    parsers.NewHeaderDetector(cfg.Header),
		columns:    parsers.NewColumnMapper(cfg, log),
		barcodes:   barcode.NewNormalizer(cfg.Barcode),
		inferencer: packspec.NewInferencer(cfg.CasePackSizes),
		engine:     engine,
		subtotals:  cfg.SubtotalMarkers,
		log:        log.With().Str("component", "extract").Logger(),
	}
}

// ExtractDocument extracts every product line of a raw table. A missing
// header row or barcode column yields no records and the cause.
func (x *Extractor) ExtractDocument(rows [][]model.Cell) ([]model.ProductRecord, Stats, error) {
	headerIdx, err := x.headers.Detect(rows)
	if err != nil {
		x.log.Error().Err(err).Int("rows", len(rows)).Msg("document skipped")
		return nil, newStats(), err
	}
	table := parsers.ApplyHeader(rows, headerIdx)

	cols, err := x.columns.Map(table)
	if err != nil {
		x.log.Error().Err(err).Strs("labels", table.Labels).Msg("document skipped")
		return nil, newStats(), err
	}
	x.log.Info().Int("header", headerIdx).Interface("columns", cols).Msg("columns mapped")

	records, stats := x.ExtractTable(table, cols)
	return records, stats, nil
}

// ExtractTable applies the row rules to a table whose columns are known.
func (x *Extractor) ExtractTable(t *model.Table, cols model.ColumnMap) ([]model.ProductRecord, Stats) {
	idx := make(map[string]int, len(cols))
	for field, label := range cols {
		idx[field] = t.Column(label)
	}
	get := func(row model.RawRow, field string) model.Cell {
		i, ok := idx[field]
		if !ok {
			return model.Cell{}
		}
		return row.Get(i)
	}

	stats := newStats()
	var records []model.ProductRecord
	for _, row := range t.Rows {
		stats.Rows++
		recs, reason := x.extractRow(row, get)
		if reason != "" {
			stats.Skipped[reason]++
			continue
		}
		records = append(records, recs...)
	}
	stats.Records = len(records)

	x.log.Info().
		Int("rows", stats.Rows).
		Int("records", stats.Records).
		Interface("skipped", stats.Skipped).
		Msg("table extracted")
	return records, stats
}

func (x *Extractor) extractRow(row model.RawRow, get func(model.RawRow, string) model.Cell) ([]model.ProductRecord, string) {
	if isEmptyRow(row) {
		return nil, SkipEmpty
	}
	if x.isSubtotal(row) {
		x.log.Debug().Int("row", row.Index).Msg("subtotal row skipped")
		return nil, SkipSubtotal
	}

	rawBarcode := get(row, model.FieldBarcode)
	code, err := x.barcodes.Normalize(rawBarcode)
	if err != nil {
		ev := x.log.Warn()
		if rawBarcode.IsEmpty() {
			ev = x.log.Debug()
		}
		ev.Int("row", row.Index).Str("field", model.FieldBarcode).Str("value", rawBarcode.String()).Err(err).Msg("row skipped")
		return nil, SkipBarcode
	}

	rec := model.ProductRecord{
		Row:           row.Index,
		Barcode:       code,
		Name:          get(row, model.FieldName).String(),
		Specification: get(row, model.FieldSpecification).String(),
		Unit:          get(row, model.FieldUnit).String(),
	}
	if rec.Name == "" {
		rec.Name = fmt.Sprintf("商品 (%s)", code)
	}

	qtyCell := get(row, model.FieldQuantity)
	if qtyCell.Numeric {
		rec.Quantity = qtyCell.Number
	} else if qty, unit, ok := x.engine.SplitQuantityUnit(qtyCell.Text); ok {
		rec.Quantity = qty
		if rec.Unit == "" && unit != "" {
			rec.Unit = unit
			x.log.Debug().Int("row", row.Index).Str("value", qtyCell.Text).Str("unit", unit).Msg("unit taken from quantity")
		}
	} else {
		rec.Quantity, _ = number(qtyCell)
	}

	rec.Price, _ = number(get(row, model.FieldPrice))

	if rec.Specification == "" {
		if spec, rule, ok := x.inferencer.Infer(rec.Name); ok {
			rec.Specification = spec
			x.log.Debug().Int("row", row.Index).Str("name", rec.Name).Str("specification", spec).Str("rule", rule).Msg("specification inferred")
		}
	}
	if rec.Specification != "" {
		rec.Multiplier, rec.HasMultiplier = packspec.Parse(rec.Specification)
		if !rec.HasMultiplier {
			x.log.Warn().Int("row", row.Index).Str("field", model.FieldSpecification).Str("value", rec.Specification).Msg("unparsable specification, multiplier defaults to 1")
		}
	} else {
		rec.Multiplier = model.DefaultMultiplier
	}

	conv := x.engine.Convert(&rec)

	if rec.Price == 0 {
		if amount, ok := number(get(row, model.FieldAmount)); ok && amount > 0 && rec.Quantity > 0 {
			rec.Price = decimal.NewFromFloat(amount).Div(decimal.NewFromFloat(rec.Quantity)).InexactFloat64()
			x.log.Debug().Int("row", row.Index).Float64("amount", amount).Float64("price", rec.Price).Msg("price derived from amount")
		}
	}

	if rec.Quantity <= 0 {
		x.log.Warn().Int("row", row.Index).Str("field", model.FieldQuantity).Str("value", qtyCell.String()).Msg("row skipped")
		return nil, SkipQuantity
	}

	out := []model.ProductRecord{rec}

	if gift, ok := number(get(row, model.FieldGiftQuantity)); ok && gift > 0 && !rec.IsGift() {
		g := rec
		g.Price = 0
		g.Quantity = gift
		if rec.OriginalQuantity > 0 {
			g.Quantity = gift * rec.Quantity / rec.OriginalQuantity
		}
		out = append(out, g)
		x.log.Debug().Int("row", row.Index).Str("barcode", code).Float64("quantity", g.Quantity).Msg("gift line added from gift column")
	}

	x.log.Debug().
		Int("row", row.Index).
		Str("barcode", rec.Barcode).
		Str("conversion", string(conv)).
		Float64("quantity", rec.Quantity).
		Str("unit", rec.Unit).
		Float64("price", rec.Price).
		Bool("gift", rec.IsGift()).
		Msg("record extracted")
	return out, ""
}

func isEmptyRow(row model.RawRow) bool {
	for _, c := range row.Values {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

func (x *Extractor) isSubtotal(row model.RawRow) bool {
	for _, c := range row.Values {
		if c.Numeric {
			continue
		}
		for _, m := range x.subtotals {
			if strings.Contains(c.Text, m) {
				return true
			}
		}
	}
	return false
}

var firstNumber = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// number reads a numeric cell or the first number inside text such as
// "¥12.50" or the range "40-44". ok is false when no number is present.
func number(c model.Cell) (float64, bool) {
	if c.Numeric {
		return c.Number, true
	}
	s := strings.ReplaceAll(c.Text, ",", "")
	m := firstNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// IsDocumentSkip reports whether err is a document-level skip rather than
// an I/O failure.
func IsDocumentSkip(err error) bool {
	return errors.Is(err, parsers.ErrHeaderNotFound) || errors.Is(err, parsers.ErrBarcodeColumnNotFound)
}
