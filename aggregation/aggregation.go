package aggregation

import (
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ocrorder/model"
)

// PriceDecimals is the precision of prices handed to the template.
const PriceDecimals = 4

type normalLine struct {
	quantity float64
	price    float64
}

type barcodeGroup struct {
	normal       *normalLine
	giftQuantity float64
}

// Aggregator groups the records of one document by barcode.
type Aggregator struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Aggregator {
	return &Aggregator{log: log.With().Str("component", "aggregation").Logger()}
}

// Aggregate merges records by barcode. Paid quantities are summed; when a
// later paid line has a different price the stored price becomes the mean
// of the stored price and the new one. Gift quantities are summed apart.
// Records are consumed in input order and the result is sorted by barcode.
func (a *Aggregator) Aggregate(records []model.ProductRecord) []model.AggregatedRecord {
	groups := make(map[string]*barcodeGroup)
	var barcodes []string

	for _, r := range records {
		if r.Barcode == "" {
			continue
		}
		g, ok := groups[r.Barcode]
		if !ok {
			g = &barcodeGroup{}
			groups[r.Barcode] = g
			barcodes = append(barcodes, r.Barcode)
		}

		if r.IsGift() {
			g.giftQuantity += r.Quantity
			continue
		}
		if g.normal == nil {
			g.normal = &normalLine{quantity: r.Quantity, price: r.Price}
			continue
		}

		g.normal.quantity += r.Quantity
		if r.Price != g.normal.price {
			avg := (g.normal.price + r.Price) / 2
			a.log.Info().
				Str("barcode", r.Barcode).
				Float64("previous", g.normal.price).
				Float64("incoming", r.Price).
				Float64("average", avg).
				Msg("conflicting prices averaged")
			g.normal.price = avg
		}
	}

	out := make([]model.AggregatedRecord, 0, len(barcodes))
	for _, code := range barcodes {
		g := groups[code]
		rec := model.AggregatedRecord{Barcode: code, GiftQuantity: g.giftQuantity}
		if g.normal != nil {
			rec.NormalQuantity = g.normal.quantity
			rec.NormalPrice = RoundPrice(g.normal.price)
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Barcode < out[j].Barcode
	})
	return out
}

// RoundPrice rounds half away from zero to PriceDecimals places.
func RoundPrice(p float64) float64 {
	return decimal.NewFromFloat(p).Round(PriceDecimals).InexactFloat64()
}

type mergeKey struct {
	barcode string
	price   string
}

// MergeOrders combines aggregated orders. Lines with the same barcode and
// the same rounded price are summed; the result is sorted by barcode, then
// price.
func MergeOrders(orders ...[]model.AggregatedRecord) []model.AggregatedRecord {
	merged := make(map[mergeKey]*model.AggregatedRecord)
	var keys []mergeKey

	for _, order := range orders {
		for _, line := range order {
			price := decimal.NewFromFloat(line.NormalPrice).Round(PriceDecimals)
			k := mergeKey{barcode: line.Barcode, price: price.StringFixed(PriceDecimals)}
			m, ok := merged[k]
			if !ok {
				m = &model.AggregatedRecord{Barcode: line.Barcode, NormalPrice: price.InexactFloat64()}
				merged[k] = m
				keys = append(keys, k)
			}
			m.NormalQuantity += line.NormalQuantity
			m.GiftQuantity += line.GiftQuantity
		}
	}

	out := make([]model.AggregatedRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, *merged[k])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Barcode != out[j].Barcode {
			return out[i].Barcode < out[j].Barcode
		}
		return out[i].NormalPrice < out[j].NormalPrice
	})
	return out
}
