// Package packspec reads packaging specifications such as "1*15" or
// "1*5*12" and infers them from product names when the column is missing.
package packspec

import (
	"regexp"
	"strconv"
	"strings"

	"ocrorder/model"
)

var (
	whitespace     = regexp.MustCompile(`\s+`)
	anySeparator   = regexp.MustCompile(`[xX×＊]`)
	digitSeparator = regexp.MustCompile(`(\d)\s*[*xX×＊]\s*(\d)`)
)

// parseRule builds a multiplier from the submatches of pattern.
type parseRule struct {
	name    string
	pattern *regexp.Regexp
	build   func(m []string) model.PackagingMultiplier
}

var parseRules = []parseRule{
	{
		name:    "three-level",
		pattern: regexp.MustCompile(`(\d+)\*(\d+)\*(\d+)`),
		build: func(m []string) model.PackagingMultiplier {
			if atoi(m[3]) < 1 {
				return model.PackagingMultiplier{}
			}
			return model.PackagingMultiplier{Level1: atoi(m[1]), Level2: atoi(m[2]), Level3: atoi(m[3])}
		},
	},
	{
		name:    "weight-volume-count",
		pattern: regexp.MustCompile(`\d+(?:\.\d+)?(?:kg|KG|Kg|g|G|克|ml|mL|ML|Ml|毫升)\*(\d+)`),
		build:   countOnly,
	},
	{
		name:    "liters-count",
		pattern: regexp.MustCompile(`\d+(?:\.\d+)?[Ll升]\*(\d+)`),
		build:   countOnly,
	},
	{
		name:    "two-level",
		pattern: regexp.MustCompile(`(\d+)\*(\d+)`),
		build: func(m []string) model.PackagingMultiplier {
			return model.PackagingMultiplier{Level1: atoi(m[1]), Level2: atoi(m[2])}
		},
	},
	{
		name:    "pieces-per-case",
		pattern: regexp.MustCompile(`(\d+)[瓶个支袋包盒罐桶听][/／](?:件|箱)`),
		build:   countOnly,
	},
	{
		name:    "bare-volume",
		pattern: regexp.MustCompile(`\d+(?:\.\d+)?[Ll升](?:\*(\d+))?`),
		build: func(m []string) model.PackagingMultiplier {
			if m[1] == "" {
				return model.PackagingMultiplier{Level1: 1, Level2: 1}
			}
			return countOnly(m)
		},
	},
}

func countOnly(m []string) model.PackagingMultiplier {
	return model.PackagingMultiplier{Level1: 1, Level2: atoi(m[len(m)-1])}
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// Normalize strips whitespace and rewrites every separator to "*".
func Normalize(spec string) string {
	s := whitespace.ReplaceAllString(spec, "")
	return anySeparator.ReplaceAllString(s, "*")
}

// Parse returns the packaging multiplier of spec. ok is false when no rule
// matched and the default (1,1) was returned.
func Parse(spec string) (mult model.PackagingMultiplier, ok bool) {
	s := Normalize(spec)
	if s == "" {
		return model.DefaultMultiplier, false
	}
	for _, r := range parseRules {
		m := r.pattern.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		mult = r.build(m)
		if valid(mult) {
			return mult, true
		}
	}
	return model.DefaultMultiplier, false
}

// match runs the parse rules anywhere in s and returns the canonical
// specification of the first valid hit.
func match(s string) (string, bool) {
	for _, r := range parseRules {
		m := r.pattern.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		if mult := r.build(m); valid(mult) {
			return mult.String(), true
		}
	}
	return "", false
}

func valid(m model.PackagingMultiplier) bool {
	return m.Level1 >= 1 && m.Level2 >= 1
}

// IsThreeLevel reports whether spec carries an explicit third level.
func IsThreeLevel(spec string) bool {
	m, ok := Parse(spec)
	return ok && m.IsThreeLevel()
}

func normalizeName(name string) string {
	s := strings.TrimSpace(name)
	// a second pass catches the middle digit of "1x5x12"
	for i := 0; i < 2; i++ {
		s = digitSeparator.ReplaceAllString(s, "$1*$2")
	}
	return s
}
