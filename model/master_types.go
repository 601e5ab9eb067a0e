package model

import "fmt"

// PackagingMultiplier is the parsed form of a specification string.
// Level3 == 0 means the specification has two levels.
type PackagingMultiplier struct {
	Level1 int `json:"level1"`
	Level2 int `json:"level2"`
	Level3 int `json:"level3,omitempty"`
}

// DefaultMultiplier is used when nothing could be parsed.
var DefaultMultiplier = PackagingMultiplier{Level1: 1, Level2: 1}

func (p PackagingMultiplier) IsThreeLevel() bool {
	return p.Level3 > 0
}

// Factor is the number of sell units in one case: level2 × (level3 or 1).
func (p PackagingMultiplier) Factor() int {
	if p.IsThreeLevel() {
		return p.Level2 * p.Level3
	}
	return p.Level2
}

func (p PackagingMultiplier) String() string {
	if p.IsThreeLevel() {
		return fmt.Sprintf("%d*%d*%d", p.Level1, p.Level2, p.Level3)
	}
	return fmt.Sprintf("%d*%d", p.Level1, p.Level2)
}

// ProductRecord is one normalized purchase line.
type ProductRecord struct {
	Row           int                 `json:"row"`
	Barcode       string              `json:"barcode"`
	Name          string              `json:"name"`
	Specification string              `json:"specification"`
	Multiplier    PackagingMultiplier `json:"multiplier"`
	// HasMultiplier is false when the specification was empty or unparsable.
	HasMultiplier bool                `json:"hasMultiplier"`
	Unit          string              `json:"unit"`
	Quantity      float64             `json:"quantity"`
	Price         float64             `json:"price"`

	// values before unit conversion
	OriginalUnit     string  `json:"originalUnit,omitempty"`
	OriginalQuantity float64 `json:"originalQuantity,omitempty"`
	OriginalPrice    float64 `json:"originalPrice,omitempty"`
}

// IsGift is derived, never read from input.
func (p ProductRecord) IsGift() bool {
	return p.Price == 0
}

// PriceKind discriminates how a barcode override treats the unit price.
// The zero value behaves as PriceDivided.
type PriceKind string

const (
	// PriceDivided divides the incoming price by the override multiplier.
	PriceDivided PriceKind = "divided"
	// PriceFixed replaces the price outright.
	PriceFixed PriceKind = "fixed"
)

// OverridePrice is the price half of a BarcodeOverride. A fixed price always
// wins over the computed one.
type OverridePrice struct {
	Kind  PriceKind `json:"kind,omitempty"`
	Value float64   `json:"value,omitempty"`
}

// BarcodeOverride is one special-barcode entry. It pre-empts every
// unit-based conversion rule.
type BarcodeOverride struct {
	Barcode       string        `db:"barcode" json:"barcode"`
	Multiplier    int           `db:"multiplier" json:"multiplier"`
	TargetUnit    string        `db:"target_unit" json:"targetUnit"`
	Price         OverridePrice `db:"-" json:"price"`
	Specification string        `db:"fixed_specification" json:"specification,omitempty"`
	Description   string        `db:"description" json:"description,omitempty"`
}

// HasFixedSpecification reports whether the override forces the spec string.
func (o BarcodeOverride) HasFixedSpecification() bool {
	return o.Specification != ""
}
