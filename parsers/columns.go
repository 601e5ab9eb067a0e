package parsers

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"ocrorder/config"
	"ocrorder/model"
)

// ErrBarcodeColumnNotFound aborts extraction of a document.
var ErrBarcodeColumnNotFound = errors.New("barcode column not found")

var (
	barcodeShape = regexp.MustCompile(`^\d{8,14}$`)
	digitsOnly   = regexp.MustCompile(`^(\d+)(?:\.0+)?$`)
)

// ColumnMapper resolves canonical fields to the labels of one table.
type ColumnMapper struct {
	synonyms   map[string][]string
	sampleRows int
	log        zerolog.Logger
}

func NewColumnMapper(cfg config.Config, log zerolog.Logger) *ColumnMapper {
	return &ColumnMapper{
		synonyms:   cfg.Columns,
		sampleRows: cfg.Header.SampleRows,
		log:        log.With().Str("component", "columns").Logger(),
	}
}

type matchFunc func(label, synonym string) bool

var matchPasses = []struct {
	name  string
	match matchFunc
	// longest resolves the pass across all fields by synonym length, so
	// 赠送数量 wins its label before 数量 can claim it
	longest bool
}{
	{"exact", func(label, syn string) bool {
		return label == strings.TrimSpace(syn)
	}, false},
	{"normalized", func(label, syn string) bool {
		return normalizeLabel(label) == normalizeLabel(syn)
	}, false},
	{"substring", func(label, syn string) bool {
		n := normalizeLabel(syn)
		return n != "" && strings.Contains(normalizeLabel(label), n)
	}, true},
}

// Map runs every pass over all fields, strictest first, so a loose match
// never steals a column that another field matches exactly. A label is
// assigned to at most one field.
func (m *ColumnMapper) Map(t *model.Table) (model.ColumnMap, error) {
	result := make(model.ColumnMap)
	claimed := make(map[string]bool)

	for _, pass := range matchPasses {
		if pass.longest {
			m.assignLongest(t.Labels, result, claimed, pass.name, pass.match)
			continue
		}
		for _, field := range model.CanonicalFields {
			if result.Has(field) {
				continue
			}
			if label, ok := m.find(t.Labels, m.synonyms[field], claimed, pass.match); ok {
				result[field] = label
				claimed[label] = true
				m.log.Debug().Str("field", field).Str("label", label).Str("pass", pass.name).Msg("column mapped")
			}
		}
	}

	if !result.Has(model.FieldBarcode) {
		if label, ok := m.inferBarcode(t, claimed); ok {
			result[model.FieldBarcode] = label
			m.log.Info().Str("label", label).Msg("barcode column inferred from values")
		}
	}

	if !result.Has(model.FieldBarcode) {
		return result, ErrBarcodeColumnNotFound
	}
	return result, nil
}

func (m *ColumnMapper) find(labels, synonyms []string, claimed map[string]bool, match matchFunc) (string, bool) {
	for _, syn := range synonyms {
		for _, label := range labels {
			if claimed[label] {
				continue
			}
			if match(label, syn) {
				return label, true
			}
		}
	}
	return "", false
}

type candidate struct {
	field, label string
	weight       int
	fi, si, li   int
}

// assignLongest gathers every match of the pass for the unmapped fields and
// hands out labels from the longest synonym down. Ties keep field order and
// then synonym order.
func (m *ColumnMapper) assignLongest(labels []string, result model.ColumnMap, claimed map[string]bool, pass string, match matchFunc) {
	var cands []candidate
	for fi, field := range model.CanonicalFields {
		if result.Has(field) {
			continue
		}
		for si, syn := range m.synonyms[field] {
			for li, label := range labels {
				if claimed[label] || !match(label, syn) {
					continue
				}
				cands = append(cands, candidate{
					field:  field,
					label:  label,
					weight: utf8.RuneCountInString(normalizeLabel(syn)),
					fi:     fi,
					si:     si,
					li:     li,
				})
			}
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].weight != cands[j].weight {
			return cands[i].weight > cands[j].weight
		}
		if cands[i].fi != cands[j].fi {
			return cands[i].fi < cands[j].fi
		}
		if cands[i].si != cands[j].si {
			return cands[i].si < cands[j].si
		}
		return cands[i].li < cands[j].li
	})
	for _, c := range cands {
		if result.Has(c.field) || claimed[c.label] {
			continue
		}
		result[c.field] = c.label
		claimed[c.label] = true
		m.log.Debug().Str("field", c.field).Str("label", c.label).Str("pass", pass).Msg("column mapped")
	}
}

// inferBarcode picks the first free column whose sampled values are mostly
// 8 to 14 digit numbers.
func (m *ColumnMapper) inferBarcode(t *model.Table, claimed map[string]bool) (string, bool) {
	for col, label := range t.Labels {
		if claimed[label] {
			continue
		}
		filled, shaped := 0, 0
		for i, row := range t.Rows {
			if m.sampleRows > 0 && i >= m.sampleRows {
				break
			}
			c := row.Get(col)
			if c.IsEmpty() {
				continue
			}
			filled++
			if barcodeShape.MatchString(digitText(c)) {
				shaped++
			}
		}
		if filled > 0 && shaped*2 > filled {
			return label, true
		}
	}
	return "", false
}

func digitText(c model.Cell) string {
	text := strings.TrimSpace(c.Text)
	if m := digitsOnly.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if c.Numeric {
		return strconv.FormatFloat(math.Trunc(c.Number), 'f', 0, 64)
	}
	return text
}
