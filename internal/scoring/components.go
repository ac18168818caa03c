package scoring

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/outreach-engine/internal/model"
)

// Component caps. Each raw component is clamped to its cap before
// weighting; risk is a deduction.
const (
	capQuality   = 20.0
	capAuthority = 25.0
	capFit       = 25.0
	capTiming    = 15.0
	capRisk      = 15.0
)

// Caps returns the per-component caps as a score breakdown, for callers
// that normalize raw components against them.
func Caps() model.ComponentScores {
	return model.ComponentScores{
		Quality:   capQuality,
		Authority: capAuthority,
		Fit:       capFit,
		Timing:    capTiming,
		Risk:      capRisk,
	}
}

var titleCaser = cases.Lower(language.Und)

// scoreQuality scores contact completeness: verified email, phone on
// file, professional-network profile.
func scoreQuality(lead *model.Lead) float64 {
	var pts float64
	if lead.EmailVerified {
		pts += 8
	}
	if lead.Phone != "" {
		pts += 6
	}
	if lead.LinkedInURL != "" {
		pts += 6
	}
	return math.Min(pts, capQuality)
}

// scoreAuthority scores domain authority from cached enrichment signals.
// A missing or invalid signal scores zero; enrichment failure is never
// fatal to the composite.
func scoreAuthority(sig *model.DomainSignal) float64 {
	if sig == nil || !sig.Valid() {
		return 0
	}

	var pts float64

	switch {
	case sig.Rank <= 100_000:
		pts += 15
	case sig.Rank <= 1_000_000:
		pts += 10
	default:
		pts += 5
	}

	switch {
	case sig.MonthlyTraffic >= 10_000:
		pts += 5
	case sig.MonthlyTraffic >= 1_000:
		pts += 3
	case sig.MonthlyTraffic > 0:
		pts += 1
	}

	switch {
	case sig.IndexedKeywords >= 500:
		pts += 5
	case sig.IndexedKeywords >= 50:
		pts += 3
	case sig.IndexedKeywords > 0:
		pts += 1
	}

	return math.Min(pts, capAuthority)
}

// decisionMakerTitles and influencerTitles classify role seniority.
var (
	decisionMakerTitles = []string{"founder", "co-founder", "ceo", "owner", "president", "managing partner", "principal"}
	influencerTitles    = []string{"vp", "vice president", "director", "head of", "partner", "chief"}
	managerTitles       = []string{"manager", "lead"}
)

// scoreFit scores role and organizational fit: title seniority, employee
// count sweet spot, target-country match.
func scoreFit(lead *model.Lead, targetCountries []string) float64 {
	var pts float64

	title := titleCaser.String(lead.Title)
	switch {
	case containsAny(title, decisionMakerTitles...):
		pts += 10
	case containsAny(title, influencerTitles...):
		pts += 6
	case containsAny(title, managerTitles...):
		pts += 3
	}

	switch {
	case lead.EmployeeCount >= 11 && lead.EmployeeCount <= 50:
		pts += 8
	case lead.EmployeeCount >= 51 && lead.EmployeeCount <= 200:
		pts += 6
	case lead.EmployeeCount >= 1 && lead.EmployeeCount <= 10:
		pts += 5
	case lead.EmployeeCount >= 201 && lead.EmployeeCount <= 1000:
		pts += 3
	case lead.EmployeeCount > 1000:
		pts += 1
	}

	if countryMatch(lead.Country, targetCountries) {
		pts += 7
	}

	return math.Min(pts, capFit)
}

// scoreTiming scores buying-window signals: active hiring and recent
// funding.
func scoreTiming(lead *model.Lead) float64 {
	var pts float64
	if lead.Hiring {
		pts += 8
	}
	if lead.RecentFunding {
		pts += 7
	}
	return math.Min(pts, capTiming)
}

// scoreRisk accumulates deliverability and fit risk. Returned as a
// positive number; the composite subtracts it.
func scoreRisk(lead *model.Lead, targetCountries []string) float64 {
	var pts float64
	if lead.Email != "" && !lead.EmailVerified {
		pts += 5
	}
	if lead.Domain == "" {
		pts += 4
	}
	if lead.Title == "" {
		pts += 3
	}
	if lead.Country != "" && !countryMatch(lead.Country, targetCountries) {
		pts += 3
	}
	return math.Min(pts, capRisk)
}

func countryMatch(country string, targets []string) bool {
	if country == "" {
		return false
	}
	for _, t := range targets {
		if strings.EqualFold(country, t) {
			return true
		}
	}
	return false
}

// containsAny checks if s contains any of the given substrings.
func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
