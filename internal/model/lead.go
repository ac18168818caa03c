// Package model defines the core domain types shared across the scoring,
// allocation, and learning subsystems.
package model

import "time"

// Tier is a discrete priority band derived from a lead's score. It gates
// which outreach channels the lead is eligible for.
type Tier string

const (
	TierHot      Tier = "hot"
	TierWarm     Tier = "warm"
	TierLukewarm Tier = "lukewarm"
	TierCold     Tier = "cold"
	TierDead     Tier = "dead"
)

// ComponentScores holds the raw per-component sub-scores that make up a
// composite lead score. Quality, Authority, Fit, and Timing add; Risk
// deducts.
type ComponentScores struct {
	Quality   float64 `json:"quality"`
	Authority float64 `json:"authority"`
	Fit       float64 `json:"fit"`
	Timing    float64 `json:"timing"`
	Risk      float64 `json:"risk"`
}

// Lead is a prospect record. Enrichment creates it; the scoring engine
// mutates score, tier, and the component breakdown. Leads are never deleted
// by this core — a dead tier soft-deprioritizes them.
type Lead struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`

	// Contact completeness.
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	Phone         string `json:"phone,omitempty"`
	LinkedInURL   string `json:"linkedin_url,omitempty"`

	// Role and organization.
	Title         string `json:"title,omitempty"`
	Industry      string `json:"industry,omitempty"`
	EmployeeCount int    `json:"employee_count,omitempty"`
	Country       string `json:"country,omitempty"`
	Hiring        bool   `json:"hiring"`
	RecentFunding bool   `json:"recent_funding"`

	// Domain-authority signals from the last enrichment pass.
	Domain          string     `json:"domain,omitempty"`
	DomainRank      *int       `json:"domain_rank,omitempty"`
	MonthlyTraffic  *int64     `json:"monthly_traffic,omitempty"`
	IndexedKeywords *int       `json:"indexed_keywords,omitempty"`
	EnrichedAt      *time.Time `json:"enriched_at,omitempty"`

	// Current scoring state.
	Score       int             `json:"score"`
	Tier        Tier            `json:"tier"`
	Components  ComponentScores `json:"components"`
	WeightSetID string          `json:"weight_set_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasContactIdentity reports whether the lead carries at least one
// contactable identity field. Leads without any are scored but never
// allocated.
func (l *Lead) HasContactIdentity() bool {
	return l.Email != "" || l.Phone != "" || l.LinkedInURL != ""
}
