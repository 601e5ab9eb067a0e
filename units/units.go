package units

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ocrorder/config"
	"ocrorder/model"
	"ocrorder/packspec"
)

// Conversion names the rule that rewrote a record.
type Conversion string

const (
	ConversionNone     Conversion = "none"
	ConversionOverride Conversion = "override"
	ConversionCase     Conversion = "case"
	ConversionPack     Conversion = "pack"
)

// Engine rewrites quantity, unit and price into sell units.
type Engine struct {
	valid     map[string]struct{}
	caseUnits map[string]struct{}
	packUnits map[string]struct{}
	canonical string
	overrides map[string]model.BarcodeOverride
	log       zerolog.Logger
}

// NewEngine builds an engine. Later overrides for the same barcode replace
// earlier ones.
func NewEngine(cfg config.UnitConfig, overrides []model.BarcodeOverride, log zerolog.Logger) *Engine {
	e := &Engine{
		valid:     toSet(cfg.Valid),
		caseUnits: toSet(cfg.Case),
		packUnits: toSet(cfg.Pack),
		canonical: cfg.Canonical,
		overrides: make(map[string]model.BarcodeOverride, len(overrides)),
		log:       log.With().Str("component", "units").Logger(),
	}
	for _, o := range overrides {
		e.overrides[o.Barcode] = o
	}
	return e
}

func toSet(values []string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

// Override returns the special-barcode entry for barcode.
func (e *Engine) Override(barcode string) (model.BarcodeOverride, bool) {
	o, ok := e.overrides[barcode]
	return o, ok
}

// IsValidUnit reports whether u belongs to the unit vocabulary.
func (e *Engine) IsValidUnit(u string) bool {
	_, ok := e.valid[u]
	return ok
}

// Convert applies the first matching rule to rec in place. The original
// unit, quantity and price are kept on the record.
func (e *Engine) Convert(rec *model.ProductRecord) Conversion {
	rec.OriginalUnit = rec.Unit
	rec.OriginalQuantity = rec.Quantity
	rec.OriginalPrice = rec.Price

	if o, ok := e.overrides[rec.Barcode]; ok {
		e.applyOverride(rec, o)
		return ConversionOverride
	}

	if !rec.HasMultiplier {
		return ConversionNone
	}

	switch {
	case e.isCase(rec.Unit):
		e.scale(rec, rec.Multiplier.Factor())
		return ConversionCase
	case e.isPack(rec.Unit):
		if !rec.Multiplier.IsThreeLevel() {
			return ConversionNone
		}
		e.scale(rec, rec.Multiplier.Level3)
		return ConversionPack
	}
	return ConversionNone
}

func (e *Engine) applyOverride(rec *model.ProductRecord, o model.BarcodeOverride) {
	rec.Quantity = rec.Quantity * float64(o.Multiplier)
	rec.Unit = o.TargetUnit

	switch {
	case rec.Price == 0:
		// gift lines stay gifts
	case o.Price.Kind == model.PriceFixed:
		rec.Price = o.Price.Value
	default:
		rec.Price = divide(rec.Price, o.Multiplier)
	}

	if o.HasFixedSpecification() {
		rec.Specification = o.Specification
		rec.Multiplier, rec.HasMultiplier = packspec.Parse(o.Specification)
	}

	e.log.Debug().
		Str("barcode", rec.Barcode).
		Int("multiplier", o.Multiplier).
		Float64("quantity", rec.Quantity).
		Float64("price", rec.Price).
		Msg("special barcode override applied")
}

func (e *Engine) scale(rec *model.ProductRecord, factor int) {
	if factor < 1 {
		return
	}
	rec.Quantity = rec.Quantity * float64(factor)
	rec.Price = divide(rec.Price, factor)
	rec.Unit = e.canonical

	e.log.Debug().
		Str("barcode", rec.Barcode).
		Str("from", rec.OriginalUnit).
		Str("specification", rec.Specification).
		Int("factor", factor).
		Msg("converted to sell unit")
}

func (e *Engine) isCase(u string) bool {
	_, ok := e.caseUnits[u]
	return ok
}

func (e *Engine) isPack(u string) bool {
	_, ok := e.packUnits[u]
	return ok
}

// divide leaves a zero price untouched.
func divide(price float64, by int) float64 {
	if price == 0 || by == 0 {
		return price
	}
	return decimal.NewFromFloat(price).Div(decimal.NewFromInt(int64(by))).InexactFloat64()
}

var (
	quantityWithUnit = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([^\d\s.]+)$`)
	quantityOnly     = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
	unitOnly         = regexp.MustCompile(`^[^\d\s.]+$`)
)

// SplitQuantityUnit splits combined text such as "5箱" into 5 and "箱".
// Either part may be missing. A trailing word outside the unit vocabulary
// is dropped and the quantity kept; ok is false when nothing usable is left.
func (e *Engine) SplitQuantityUnit(text string) (qty float64, unit string, ok bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, "", false
	}
	if m := quantityWithUnit.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, "", false
		}
		if !e.IsValidUnit(m[2]) {
			e.log.Debug().Str("value", s).Str("unit", m[2]).Msg("unknown unit ignored")
			return v, "", true
		}
		return v, m[2], true
	}
	if quantityOnly.MatchString(s) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, "", false
		}
		return v, "", true
	}
	if unitOnly.MatchString(s) && e.IsValidUnit(s) {
		return 0, s, true
	}
	return 0, "", false
}
