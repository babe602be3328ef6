package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/formscan/formscan/internal/types"
)

// Enrich canonicalizes free-text values on keyed fields in place, after
// Apply has assigned keys. Year counts collapse to a bare number and
// license lists split into discrete entries; values that do not parse
// stay as written.
func Enrich(fields []types.ReconciledField) {
	for i := range fields {
		f := &fields[i]
		if f.FinalValue == nil {
			continue
		}
		switch f.Key {
		case "employment.years_experience", "employment.mining_experience", "equipment.komatsu_experience":
			if n, ok := ParseYears(*f.FinalValue); ok {
				v := strconv.Itoa(n)
				f.FinalValue = &v
			}
		case "credentials.trade_licenses", "credentials.safety_tickets":
			if len(f.Selected) > 0 {
				continue
			}
			if parts := SplitLicenses(*f.FinalValue); len(parts) > 1 {
				f.Selected = parts
				v := strings.Join(parts, ", ")
				f.FinalValue = &v
			}
		}
	}
}

var digitsPattern = regexp.MustCompile(`\d+`)

// wordNumbers covers the spelled-out counts that actually show up in
// handwritten experience answers.
var wordNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20,
}

// ParseYears pulls a year count out of a free-text answer like
// "12 years", "5+ yrs", or "about seven years". Digits win over words.
func ParseYears(s string) (int, bool) {
	if m := digitsPattern.FindString(s); m != "" {
		n, err := strconv.Atoi(m)
		if err == nil {
			return n, true
		}
	}
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.Trim(word, ".,;:!?")
		if n, ok := wordNumbers[word]; ok {
			return n, true
		}
	}
	return 0, false
}

var licenseSeparators = regexp.MustCompile(`[,;\n•]| - | / `)

// SplitLicenses breaks a free-text license or certification list on the
// separators people actually write, trimming each entry.
func SplitLicenses(s string) []string {
	parts := licenseSeparators.Split(s, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
