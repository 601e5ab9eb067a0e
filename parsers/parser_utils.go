package parsers

import (
	"bufio"
	"io"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// SkipBOM skips a leading UTF-8 byte order mark.
func SkipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	bom := []byte{0xEF, 0xBB, 0xBF}
	peeked, err := br.Peek(3)
	if err != nil {
		return br
	}
	isBOM := true
	for i, b := range bom {
		if peeked[i] != b {
			isBOM = false
			break
		}
	}
	if isBOM {
		br.Read(make([]byte, 3))
	}
	return br
}

// cleanLabel trims a header cell and collapses inner whitespace.
func cleanLabel(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// normalizeLabel folds full-width characters, lowercases, and drops
// whitespace, punctuation and symbols: "条码（必填）" becomes "条码必填".
func normalizeLabel(s string) string {
	folded := width.Fold.String(s)
	var b strings.Builder
	for _, r := range folded {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// padRows extends every row to the width of the widest one.
func padRows[T any](rows [][]T) int {
	w := 0
	for _, r := range rows {
		if len(r) > w {
			w = len(r)
		}
	}
	for i, r := range rows {
		if len(r) < w {
			rows[i] = append(r, make([]T, w-len(r))...)
		}
	}
	return w
}
