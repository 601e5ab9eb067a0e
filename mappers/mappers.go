package mappers

import (
	"database/sql"

	"ocrorder/model"
)

// ToOrderLines numbers aggregated records from 1 in their output order.
func ToOrderLines(documentID string, records []model.AggregatedRecord) []model.OrderLine {
	lines := make([]model.OrderLine, 0, len(records))
	for i, r := range records {
		lines = append(lines, model.OrderLine{
			DocumentID:       documentID,
			LineNo:           i + 1,
			AggregatedRecord: r,
		})
	}
	return lines
}

// ToAggregatedRecords drops the persistence fields of stored lines.
func ToAggregatedRecords(lines []model.OrderLine) []model.AggregatedRecord {
	records := make([]model.AggregatedRecord, len(lines))
	for i, l := range lines {
		records[i] = l.AggregatedRecord
	}
	return records
}

// ToOverrideRow flattens the price rule into the nullable fixed_price column.
func ToOverrideRow(o model.BarcodeOverride) model.OverrideRow {
	row := model.OverrideRow{
		Barcode:            o.Barcode,
		Multiplier:         o.Multiplier,
		TargetUnit:         o.TargetUnit,
		FixedSpecification: o.Specification,
		Description:        o.Description,
	}
	if o.Price.Kind == model.PriceFixed {
		row.FixedPrice = sql.NullFloat64{Float64: o.Price.Value, Valid: true}
	}
	return row
}

func ToBarcodeOverride(row model.OverrideRow) model.BarcodeOverride {
	o := model.BarcodeOverride{
		Barcode:       row.Barcode,
		Multiplier:    row.Multiplier,
		TargetUnit:    row.TargetUnit,
		Price:         model.OverridePrice{Kind: model.PriceDivided},
		Specification: row.FixedSpecification,
		Description:   row.Description,
	}
	if row.FixedPrice.Valid {
		o.Price = model.OverridePrice{Kind: model.PriceFixed, Value: row.FixedPrice.Float64}
	}
	return o
}

// MergeOverrides returns base with every entry of top applied on top of it.
// Entries keep the order of base; barcodes only present in top are appended.
func MergeOverrides(base, top []model.BarcodeOverride) []model.BarcodeOverride {
	index := make(map[string]int, len(base))
	out := make([]model.BarcodeOverride, 0, len(base)+len(top))
	for _, o := range base {
		if i, ok := index[o.Barcode]; ok {
			out[i] = o
			continue
		}
		index[o.Barcode] = len(out)
		out = append(out, o)
	}
	for _, o := range top {
		if i, ok := index[o.Barcode]; ok {
			out[i] = o
			continue
		}
		index[o.Barcode] = len(out)
		out = append(out, o)
	}
	return out
}
