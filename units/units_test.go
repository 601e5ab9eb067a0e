package units

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"

	"ocrorder/config"
	"ocrorder/logger"
	"ocrorder/model"
	"ocrorder/packspec"
)

func newTestEngine(overrides ...model.BarcodeOverride) *Engine {
	cfg := config.Default()
	all := append(append([]model.BarcodeOverride{}, cfg.Overrides...), overrides...)
	return NewEngine(cfg.Units, all, logger.Nop())
}

func record(barcode, unit, spec string, qty, price float64) *model.ProductRecord {
	mult, ok := packspec.Parse(spec)
	return &model.ProductRecord{
		Barcode:       barcode,
		Unit:          unit,
		Specification: spec,
		Multiplier:    mult,
		HasMultiplier: ok,
		Quantity:      qty,
		Price:         price,
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-4
}

func TestConvert(t *testing.T) {
	e := newTestEngine()

	tests := []struct {
		name     string
		rec      *model.ProductRecord
		wantConv Conversion
		wantQty  float64
		wantUnit string
		wantPric float64
	}{
		{"case 件 two-level", record("6900000000011", "件", "1*12", 2, 108), ConversionCase, 24, "瓶", 9},
		{"case 件 single", record("6900000000011", "件", "1*12", 1, 108), ConversionCase, 12, "瓶", 9},
		{"case 箱 three-level", record("6900000000012", "箱", "1*5*12", 1, 120), ConversionCase, 60, "瓶", 2},
		{"pack 提 two-level unchanged", record("6900000000013", "提", "1*16", 3, 50), ConversionNone, 3, "提", 50},
		{"pack 提 three-level", record("6900000000014", "提", "1*5*12", 2, 100), ConversionPack, 24, "瓶", 100.0 / 12},
		{"pack 盒 three-level", record("6900000000015", "盒", "1*4*6", 1, 30), ConversionPack, 6, "瓶", 5},
		{"other unit untouched", record("6900000000016", "瓶", "1*12", 5, 3), ConversionNone, 5, "瓶", 3},
		{"case without specification", record("6900000000017", "箱", "", 2, 40), ConversionNone, 2, "箱", 40},
		{"gift case keeps zero price", record("6900000000018", "件", "1*24", 1, 0), ConversionCase, 24, "瓶", 0},
		{"special barcode", record("6925019900087", "副", "", 1, 50), ConversionOverride, 10, "瓶", 5},
		{"special barcode beats case rule", record("6925019900087", "件", "1*12", 2, 60), ConversionOverride, 20, "瓶", 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origQty, origUnit := tt.rec.Quantity, tt.rec.Unit
			got := e.Convert(tt.rec)
			if got != tt.wantConv {
				t.Errorf("conversion = %s, want %s", got, tt.wantConv)
			}
			if !approx(tt.rec.Quantity, tt.wantQty) {
				t.Errorf("quantity = %v, want %v", tt.rec.Quantity, tt.wantQty)
			}
			if tt.rec.Unit != tt.wantUnit {
				t.Errorf("unit = %q, want %q", tt.rec.Unit, tt.wantUnit)
			}
			if !approx(tt.rec.Price, tt.wantPric) {
				t.Errorf("price = %v, want %v", tt.rec.Price, tt.wantPric)
			}
			if tt.rec.OriginalQuantity != origQty || tt.rec.OriginalUnit != origUnit {
				t.Errorf("original values not retained: %+v", tt.rec)
			}
		})
	}
}

func TestConvert_FixedPriceOverride(t *testing.T) {
	e := newTestEngine(model.BarcodeOverride{
		Barcode:       "6911111111111",
		Multiplier:    6,
		TargetUnit:    "瓶",
		Price:         model.OverridePrice{Kind: model.PriceFixed, Value: 4.5},
		Specification: "1*6",
	})

	rec := record("6911111111111", "提", "", 2, 30)
	if got := e.Convert(rec); got != ConversionOverride {
		t.Fatalf("conversion = %s", got)
	}
	if rec.Quantity != 12 || rec.Price != 4.5 || rec.Unit != "瓶" {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Specification != "1*6" || rec.Multiplier.Level2 != 6 {
		t.Errorf("fixed specification not applied: %+v", rec)
	}

	gift := record("6911111111111", "提", "", 1, 0)
	e.Convert(gift)
	if gift.Price != 0 {
		t.Errorf("gift price = %v, want 0", gift.Price)
	}
}

func TestSplitQuantityUnit(t *testing.T) {
	e := newTestEngine()
	tests := []struct {
		in       string
		wantQty  float64
		wantUnit string
		wantOK   bool
	}{
		{"5箱", 5, "箱", true},
		{"2.5 提", 2.5, "提", true},
		{"10", 10, "", true},
		{"件", 0, "件", true},
		{"", 0, "", false},
		{"3箱2瓶", 0, "", false},
		{"5abc", 5, "", true},
		{"12 只装", 12, "", true},
		{"abc", 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			qty, unit, ok := e.SplitQuantityUnit(tt.in)
			if qty != tt.wantQty || unit != tt.wantUnit || ok != tt.wantOK {
				t.Errorf("SplitQuantityUnit(%q) = %v, %q, %v", tt.in, qty, unit, ok)
			}
		})
	}
}

func TestReadOverrides(t *testing.T) {
	csvText := "barcode,multiplier,target_unit,fixed_price,fixed_specification,description\n" +
		"6925019900087,10,瓶,,,整箱拆瓶\n" +
		"6922222222222,6,瓶,3.5,1*6,固定价\n"

	t.Run("utf8", func(t *testing.T) {
		got, err := ReadOverrides(strings.NewReader(csvText))
		if err != nil {
			t.Fatalf("ReadOverrides: %v", err)
		}
		checkOverrides(t, got)
	})

	t.Run("gb18030", func(t *testing.T) {
		encoded, err := simplifiedchinese.GB18030.NewEncoder().String(csvText)
		if err != nil {
			t.Fatal(err)
		}
		got, err := ReadOverrides(bytes.NewReader([]byte(encoded)))
		if err != nil {
			t.Fatalf("ReadOverrides: %v", err)
		}
		checkOverrides(t, got)
	})

	t.Run("bad multiplier", func(t *testing.T) {
		_, err := ReadOverrides(strings.NewReader("6925019900087,x,瓶\n6925019900088,ten,瓶\n"))
		if err == nil {
			t.Error("expected error for invalid multiplier")
		}
	})
}

func checkOverrides(t *testing.T, got []model.BarcodeOverride) {
	t.Helper()
	if len(got) != 2 {
		t.Fatalf("got %d overrides, want 2", len(got))
	}
	if got[0].Price.Kind != model.PriceDivided || got[0].TargetUnit != "瓶" || got[0].Description != "整箱拆瓶" {
		t.Errorf("first override = %+v", got[0])
	}
	if got[1].Price.Kind != model.PriceFixed || got[1].Price.Value != 3.5 || got[1].Specification != "1*6" {
		t.Errorf("second override = %+v", got[1])
	}
}
