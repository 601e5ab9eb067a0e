package barcode

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"ocrorder/config"
	"ocrorder/model"
)

// ErrRejected is returned for values that cannot be a product barcode.
var ErrRejected = errors.New("barcode rejected")

var (
	trailingZeroFraction = regexp.MustCompile(`\.0+$`)
	nonDigit             = regexp.MustCompile(`\D`)
	digitText            = regexp.MustCompile(`^\d+(?:\.0+)?$`)
)

// Normalizer validates and repairs raw barcode cells. It holds no mutable
// state and is safe for concurrent use.
type Normalizer struct {
	sentinels map[string]struct{}
	allowList map[string]struct{}
	minLen    int
	maxLen    int
}

func NewNormalizer(cfg config.BarcodeConfig) *Normalizer {
	n := &Normalizer{
		sentinels: make(map[string]struct{}, len(cfg.Sentinels)),
		allowList: make(map[string]struct{}, len(cfg.AllowList)),
		minLen:    cfg.MinLength,
		maxLen:    cfg.MaxLength,
	}
	for _, s := range cfg.Sentinels {
		n.sentinels[strings.TrimSpace(s)] = struct{}{}
	}
	for _, s := range cfg.AllowList {
		n.allowList[s] = struct{}{}
	}
	return n
}

// Normalize returns the digit-only barcode for c or an error wrapping
// ErrRejected.
func (n *Normalizer) Normalize(c model.Cell) (string, error) {
	text := strings.TrimSpace(c.Text)
	var raw string
	switch {
	case digitText.MatchString(text):
		// keep the written digits so leading zeros survive
		raw = trailingZeroFraction.ReplaceAllString(text, "")
	case c.Numeric:
		// spreadsheets coerce long codes to floats; format without exponent
		raw = strconv.FormatFloat(math.Trunc(c.Number), 'f', 0, 64)
	default:
		if _, ok := n.sentinels[text]; ok {
			return "", fmt.Errorf("%w: %q is a row label", ErrRejected, text)
		}
		raw = trailingZeroFraction.ReplaceAllString(text, "")
	}
	return n.NormalizeString(raw)
}

// NormalizeString applies the digit cleanup and repair rules to s.
func (n *Normalizer) NormalizeString(s string) (string, error) {
	if _, ok := n.sentinels[strings.TrimSpace(s)]; ok {
		return "", fmt.Errorf("%w: %q is a row label", ErrRejected, s)
	}
	code := nonDigit.ReplaceAllString(s, "")

	if _, ok := n.allowList[code]; ok {
		return code, nil
	}

	// OCR reads a leading 6 as 5; 53 is a real prefix.
	if len(code) > 8 && strings.HasPrefix(code, "5") && !strings.HasPrefix(code, "53") {
		code = "6" + code[1:]
	}

	if len(code) < n.minLen || len(code) > n.maxLen {
		return "", fmt.Errorf("%w: %q has length %d", ErrRejected, code, len(code))
	}
	return code, nil
}
