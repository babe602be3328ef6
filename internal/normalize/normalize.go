// Package normalize maps differently worded questions onto stable
// canonical keys so downstream consumers never depend on a form's exact
// phrasing. The rule table is ordered; the first matching rule wins and
// each key is claimed at most once per question set.
package normalize

import (
	"strings"

	"github.com/formscan/formscan/internal/types"
)

// Rule maps question wording to a canonical key. A rule matches when
// every substring in All appears in the lowercased question text and, if
// Any is non-empty, at least one of those does too.
type Rule struct {
	Key types.CanonicalKey
	All []string
	Any []string
}

// Rules is the canonical mapping table, most specific first. Ordering
// matters: "mining experience" must claim before the bare "experience"
// rule sees the text.
var Rules = []Rule{
	{Key: "credentials.red_seal", All: []string{"red seal"}},
	{Key: "credentials.journeyman_license", All: []string{"journeyman"}},
	{Key: "credentials.safety_tickets", All: []string{"safety"}, Any: []string{"ticket", "certification", "cert"}},
	{Key: "credentials.trade_licenses", Any: []string{"trade license", "trade licence", "licenses held", "certifications"}},

	{Key: "equipment.komatsu_experience", All: []string{"komatsu"}},
	{Key: "equipment.underground_brands", All: []string{"underground", "brand"}},
	{Key: "equipment.winter_gear", All: []string{"winter", "gear"}},
	{Key: "equipment.brands_experience", Any: []string{"equipment brand", "caterpillar", "john deere", "hitachi", "volvo"}},
	{Key: "equipment.service_truck_sharing", All: []string{"service truck"}},

	{Key: "scheduling.rotational_shifts", All: []string{"rotational shift"}},
	{Key: "scheduling.overtime_willing", All: []string{"overtime"}},
	{Key: "scheduling.willing_to_travel", All: []string{"travel"}},
	{Key: "scheduling.start_availability", Any: []string{"available to start", "start date", "availability", "can start"}},
	{Key: "scheduling.preferred_location", Any: []string{"preferred location", "work location", "which city"}},

	{Key: "employment.status", All: []string{"employment status"}},
	{Key: "employment.drug_test", All: []string{"drug", "test"}},
	{Key: "employment.background_check", All: []string{"background check"}},
	{Key: "employment.union_member", All: []string{"union"}},
	{Key: "employment.reason_for_looking", All: []string{"new opportunity"}},
	{Key: "employment.mining_experience", All: []string{"mining experience"}},
	{Key: "employment.industries_worked", All: []string{"industries"}},
	{Key: "employment.positions_interested", All: []string{"position", "interested"}},
	{Key: "employment.physical_limitations", All: []string{"physical", "limitation"}},
	{Key: "employment.fast_paced_comfort", All: []string{"fast-paced"}},
	{Key: "employment.hourly_rate", Any: []string{"hourly rate", "wage", "salary", "pay rate"}},
	{Key: "employment.years_experience", All: []string{"experience"}, Any: []string{"years", "how long", "how many"}},
}

// Apply assigns canonical keys to fields in place. Each key is claimed by
// the first matching question; later duplicates stay unkeyed and roll up
// into the "other" bucket.
func Apply(fields []types.ReconciledField) {
	claimed := make(map[types.CanonicalKey]bool)
	for i := range fields {
		key, ok := Match(fields[i].Question.Text)
		if !ok || claimed[key] {
			continue
		}
		claimed[key] = true
		fields[i].Key = key
	}
}

// Match returns the canonical key for question text, if any rule matches.
func Match(text string) (types.CanonicalKey, bool) {
	lower := strings.ToLower(text)
	for _, r := range Rules {
		if r.matches(lower) {
			return r.Key, true
		}
	}
	return "", false
}

func (r Rule) matches(lower string) bool {
	for _, s := range r.All {
		if !strings.Contains(lower, s) {
			return false
		}
	}
	if len(r.Any) == 0 {
		return true
	}
	for _, s := range r.Any {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
