package packspec

import (
	"fmt"
	"regexp"
	"strconv"
)

// inferRule pairs a name pattern with the specification it implies.
// Rules are tried in order and the first match wins.
type inferRule struct {
	name    string
	pattern *regexp.Regexp
	format  func(m []string) string
}

func oneByCount(m []string) string {
	return "1*" + m[len(m)-1]
}

var inferRules = []inferRule{
	{
		name:    "weight-volume-count",
		pattern: regexp.MustCompile(`\d+(?:\.\d+)?(?:kg|KG|Kg|g|G|克|ml|mL|ML|Ml|毫升)\*(\d+)`),
		format:  oneByCount,
	},
	{
		name:    "count-film",
		pattern: regexp.MustCompile(`(\d+)入白膜`),
		format:  oneByCount,
	},
	{
		name:    "count-carton",
		pattern: regexp.MustCompile(`(\d+)入纸箱`),
		format:  oneByCount,
	},
	{
		name:    "embedded",
		pattern: regexp.MustCompile(`(\d+\*\d+(?:\*\d+)?)`),
		format:  func(m []string) string { return m[1] },
	},
	{
		name:    "bare-carton",
		pattern: regexp.MustCompile(`(\d+)纸箱`),
		format:  oneByCount,
	},
	{
		name:    "bare-film",
		pattern: regexp.MustCompile(`(\d+)白膜`),
		format:  oneByCount,
	},
	{
		name:    "volume-count",
		pattern: regexp.MustCompile(`(\d+(?:\.\d+)?)[Ll升]\*(\d+)`),
		format:  func(m []string) string { return fmt.Sprintf("%sL*%s", m[1], m[2]) },
	},
	{
		name:    "bare-volume",
		pattern: regexp.MustCompile(`(\d+(?:\.\d+)?)[Ll升]`),
		format:  func(m []string) string { return m[1] + "L*1" },
	},
}

var digitRun = regexp.MustCompile(`\d+`)

// Inferencer derives a specification from a product name.
type Inferencer struct {
	casePackSizes map[int]struct{}
}

// NewInferencer takes the typical case-pack sizes (12, 15, 24, 30) used as
// the last resort.
func NewInferencer(casePackSizes []int) *Inferencer {
	inf := &Inferencer{casePackSizes: make(map[int]struct{}, len(casePackSizes))}
	for _, n := range casePackSizes {
		inf.casePackSizes[n] = struct{}{}
	}
	return inf
}

// Infer returns the specification implied by name and the rule that
// produced it. ok is false when nothing matched.
func (inf *Inferencer) Infer(name string) (spec, rule string, ok bool) {
	s := normalizeName(name)
	if s == "" {
		return "", "", false
	}

	for _, r := range inferRules {
		if m := r.pattern.FindStringSubmatch(s); m != nil {
			return r.format(m), r.name, true
		}
	}

	if text, ok := match(Normalize(s)); ok {
		return text, "generic", true
	}

	for _, run := range digitRun.FindAllString(s, -1) {
		n, err := strconv.Atoi(run)
		if err != nil {
			continue
		}
		if _, typical := inf.casePackSizes[n]; typical {
			return fmt.Sprintf("1*%d", n), "case-pack-size", true
		}
	}
	return "", "", false
}
