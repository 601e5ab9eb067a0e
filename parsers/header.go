package parsers

import (
	"errors"
	"fmt"
	"strings"

	"ocrorder/config"
	"ocrorder/model"
)

// ErrHeaderNotFound means no row of the scan window looks like a header.
var ErrHeaderNotFound = errors.New("header row not found")

const (
	keywordScore  = 5
	filledScore   = 2
	textualScore  = 3
	fallbackCells = 3
)

// HeaderDetector finds the row holding column labels in an OCR table.
type HeaderDetector struct {
	keywords  []string
	scanRows  int
	threshold int
}

func NewHeaderDetector(cfg config.HeaderConfig) *HeaderDetector {
	d := &HeaderDetector{scanRows: cfg.ScanRows, threshold: cfg.Threshold}
	for _, k := range cfg.Keywords {
		d.keywords = append(d.keywords, strings.ToLower(cleanLabel(k)))
	}
	return d
}

// Score rates one row. width is the table width.
func (d *HeaderDetector) Score(row []model.Cell, width int) int {
	if width == 0 {
		return 0
	}
	score, filled, textual := 0, 0, 0
	for _, c := range row {
		if c.IsEmpty() {
			continue
		}
		filled++
		if !c.Numeric {
			textual++
		}
		text := strings.ToLower(cleanLabel(c.String()))
		for _, k := range d.keywords {
			if strings.Contains(text, k) {
				score += keywordScore
				break
			}
		}
	}
	if filled*2 > width {
		score += filledScore
	}
	if textual*2 > width {
		score += textualScore
	}
	return score
}

// Detect returns the index of the header row among rows.
func (d *HeaderDetector) Detect(rows [][]model.Cell) (int, error) {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}

	limit := d.scanRows
	if limit > len(rows) {
		limit = len(rows)
	}

	best, bestScore := -1, -1
	for i := 0; i < limit; i++ {
		if s := d.Score(rows[i], width); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best >= 0 && bestScore >= d.threshold {
		return best, nil
	}

	for i := 0; i < limit; i++ {
		if countFilled(rows[i]) > fallbackCells {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w in first %d rows", ErrHeaderNotFound, limit)
}

func countFilled(row []model.Cell) int {
	n := 0
	for _, c := range row {
		if !c.IsEmpty() {
			n++
		}
	}
	return n
}

// ApplyHeader turns rows into a table using rows[headerIdx] as labels.
// Empty labels become Col_<i>; repeated labels get a _<n> suffix.
func ApplyHeader(rows [][]model.Cell, headerIdx int) *model.Table {
	t := &model.Table{}
	if headerIdx < 0 || headerIdx >= len(rows) {
		return t
	}
	width := padRows(rows)

	seen := make(map[string]int, width)
	for i := 0; i < width; i++ {
		label := cleanLabel(rows[headerIdx][i].String())
		if label == "" {
			label = fmt.Sprintf("Col_%d", i)
		}
		if n := seen[label]; n > 0 {
			seen[label] = n + 1
			label = fmt.Sprintf("%s_%d", label, n+1)
		} else {
			seen[label] = 1
		}
		t.Labels = append(t.Labels, label)
	}

	for i := headerIdx + 1; i < len(rows); i++ {
		t.Rows = append(t.Rows, model.RawRow{Index: i, Values: rows[i]})
	}
	return t
}
