package extract

import (
	"regexp"
	"strings"

	"github.com/LouYuanbo1/catalogsync/internal/domain/model"
)

// amountPattern allows a short parenthetical between label and amount, as in
// "MRP (Incl. of all taxes): ₹ 1,299.00".
const amountPattern = `[\s:.\-=]*(?:\([^)]{0,40}\))?[\s:.\-=]*(?:(?:rs|inr|usd|eur)\.?|[₹$€£])?\s*(\d[\d,]*(?:\.\d+)?)`

// labelled matches "<label> <optional currency> <amount>" case-insensitively.
func labelled(labels string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + labels + `)\b` + amountPattern)
}

// labelledLine matches "<label>: rest of line".
func labelledLine(labels string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^\s*(?:` + labels + `)\s*[:\-]\s*(.+)$`)
}

// PatternLayer matches labelled prices, point value and inline
// "Label: value" lines in the visible page text.
type PatternLayer struct {
	ListPrice     []*regexp.Regexp
	BusinessPrice []*regexp.Regexp
	// AnyPrice is consulted only when neither price tier matched.
	AnyPrice       []*regexp.Regexp
	PointValue     []*regexp.Regexp
	Ingredients    []*regexp.Regexp
	HealthBenefits []*regexp.Regexp
	Dosage         []*regexp.Regexp
	Caution        []*regexp.Regexp
}

func NewPatternLayer() PatternLayer {
	return PatternLayer{
		ListPrice: []*regexp.Regexp{
			labelled(`mrp|m\.r\.p|retail\s+price|list\s+price|regular\s+price|maximum\s+retail\s+price`),
		},
		BusinessPrice: []*regexp.Regexp{
			labelled(`dp|d\.p|distributor\s+price|business\s+price|member\s+price|associate\s+price|wholesale\s+price`),
		},
		AnyPrice: []*regexp.Regexp{
			labelled(`sale\s+price|our\s+price|price`),
		},
		PointValue: []*regexp.Regexp{
			labelled(`pv|bv|point\s+values?|business\s+volume`),
		},
		Ingredients: []*regexp.Regexp{
			labelledLine(`(?:key\s+)?ingredients?|composition`),
		},
		HealthBenefits: []*regexp.Regexp{
			labelledLine(`(?:health\s+|key\s+)?benefits?`),
		},
		Dosage: []*regexp.Regexp{
			labelledLine(`dosage|how\s+to\s+use|directions(?:\s+for\s+use)?`),
		},
		Caution: []*regexp.Regexp{
			labelledLine(`cautions?|warnings?|precautions?`),
		},
	}
}

func (PatternLayer) Name() string { return "pattern" }

func (l PatternLayer) Apply(page *Page, e *model.CatalogEntry) {
	text := page.Text
	if e.ListPrice == 0 {
		e.ListPrice = firstAmount(l.ListPrice, text)
	}
	if e.BusinessPrice == 0 {
		e.BusinessPrice = firstAmount(l.BusinessPrice, text)
	}
	if e.ListPrice == 0 && e.BusinessPrice == 0 {
		e.ListPrice = firstAmount(l.AnyPrice, text)
	}
	if e.PointValue == 0 {
		e.PointValue = ParsePoints(firstCapture(l.PointValue, text))
	}
	if len(e.Ingredients) == 0 {
		e.Ingredients = splitList(firstCapture(l.Ingredients, text))
	}
	if len(e.HealthBenefits) == 0 {
		e.HealthBenefits = splitList(firstCapture(l.HealthBenefits, text))
	}
	if e.Usage.Dosage == "" {
		e.Usage.Dosage = clean(firstCapture(l.Dosage, text))
	}
	if e.Usage.Caution == "" {
		e.Usage.Caution = clean(firstCapture(l.Caution, text))
	}
}

// firstAmount returns the first positive amount any pattern captures.
func firstAmount(patterns []*regexp.Regexp, text string) float64 {
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if v := ParseAmount(m[1]); v > 0 {
				return v
			}
		}
	}
	return 0
}

func firstCapture(patterns []*regexp.Regexp, text string) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// splitList splits "a, b; c" style enumerations.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '•'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSuffix(clean(p), ".")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
