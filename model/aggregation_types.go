package model

// AggregatedRecord is the per-barcode output handed to the template writer.
// Gift-only barcodes carry zero NormalQuantity and NormalPrice.
type AggregatedRecord struct {
	Barcode        string  `db:"barcode" json:"barcode"`
	NormalQuantity float64 `db:"normal_quantity" json:"normalQuantity"`
	NormalPrice    float64 `db:"normal_price" json:"normalPrice"`
	GiftQuantity   float64 `db:"gift_quantity" json:"giftQuantity"`
}

// HasNormal reports whether any paid line contributed to the record.
func (a AggregatedRecord) HasNormal() bool {
	return a.NormalQuantity > 0 || a.NormalPrice > 0
}
