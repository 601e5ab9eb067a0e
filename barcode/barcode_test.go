package barcode

import (
	"errors"
	"testing"

	"ocrorder/config"
	"ocrorder/model"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(config.Default().Barcode)
}

func TestNormalize(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name    string
		in      model.Cell
		want    string
		wantErr bool
	}{
		{"plain text", model.TextCell("6925019900087"), "6925019900087", false},
		{"float with fraction", model.Cell{Text: "6925019900087.0"}, "6925019900087", false},
		{"numeric cell", model.NumberCell(6925019900087), "6925019900087", false},
		{"exponent text", model.TextCell("6.925019900087E+12"), "6925019900087", false},
		{"leading zero EAN-8", model.TextCell("01234565"), "01234565", false},
		{"leading zeros kept", model.TextCell("0012345678905"), "0012345678905", false},
		{"leading zero with fraction", model.TextCell("0012345678905.00"), "0012345678905", false},
		{"separators stripped", model.TextCell("692-5019 900087"), "6925019900087", false},
		{"leading 5 repaired", model.TextCell("5925019900087"), "6925019900087", false},
		{"53 prefix kept", model.TextCell("5312345678901"), "5312345678901", false},
		{"short 5 prefix kept", model.TextCell("51234567"), "51234567", false},
		{"allow-listed", model.TextCell("5321545613"), "5321545613", false},
		{"warehouse sentinel", model.TextCell("仓库"), "", true},
		{"warehouse name sentinel", model.TextCell(" 仓库全名 "), "", true},
		{"too short", model.TextCell("1234567"), "", true},
		{"too long", model.TextCell("69250199000871"), "", true},
		{"empty", model.Cell{}, "", true},
		{"text only", model.TextCell("赠品"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrRejected) {
					t.Fatalf("expected ErrRejected, got %v (value %q)", err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Normalize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalize_FivePrefixProperty(t *testing.T) {
	n := newTestNormalizer()
	for _, in := range []string{"512345678", "5400000000001", "5999999999", "550000000000"} {
		got, err := n.NormalizeString(in)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", in, err)
		}
		if want := "6" + in[1:]; got != want {
			t.Errorf("%s: got %q, want %q", in, got, want)
		}
	}
}
