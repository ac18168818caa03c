package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// PatternKind tags the four learned-pattern variants: who responds
// (audience-fit weights), what converts (content), when to send (timing),
// and how to sequence channels.
type PatternKind string

const (
	PatternWho  PatternKind = "who"
	PatternWhat PatternKind = "what"
	PatternWhen PatternKind = "when"
	PatternHow  PatternKind = "how"
)

// Kinds lists all pattern kinds in learner execution order.
func Kinds() []PatternKind {
	return []PatternKind{PatternWho, PatternWhat, PatternWhen, PatternHow}
}

// Pattern is a tenant-scoped, confidence-scored generalization mined from
// outcome history. The payload is kind-specific; decode it through the
// typed accessor for the kind. Superseded versions are retained inactive
// for audit.
type Pattern struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenant_id"`
	Kind       PatternKind     `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	SampleSize int             `json:"sample_size"`
	Confidence float64         `json:"confidence"`
	ValidFrom  time.Time       `json:"valid_from"`
	ValidUntil time.Time       `json:"valid_until"`
	Active     bool            `json:"active"`
	CreatedAt  time.Time       `json:"created_at"`
}

// WhoPayload carries learned component weights for a tenant.
type WhoPayload struct {
	WeightSetID string  `json:"weight_set_id"`
	Weights     Weights `json:"weights"`
}

// WhatPayload carries the best-performing content template.
type WhatPayload struct {
	TemplateKey    string  `json:"template_key"`
	OpenRate       float64 `json:"open_rate"`
	ReplyRate      float64 `json:"reply_rate"`
	ConversionRate float64 `json:"conversion_rate"`
}

// WhenPayload carries the best send days and hours in the tenant's
// timezone.
type WhenPayload struct {
	Days           []time.Weekday `json:"days"`
	Hours          []int          `json:"hours"`
	Timezone       string         `json:"timezone"`
	ConversionRate float64        `json:"conversion_rate"`
}

// HowPayload carries the winning channel sequence for a tier.
type HowPayload struct {
	Tier           Tier      `json:"tier"`
	Sequence       []Channel `json:"sequence"`
	ConversionRate float64   `json:"conversion_rate"`
}

// Who decodes the payload of a WHO pattern.
func (p *Pattern) Who() (*WhoPayload, error) {
	if p.Kind != PatternWho {
		return nil, eris.Errorf("pattern: %s is not a who pattern", p.Kind)
	}
	var out WhoPayload
	if err := json.Unmarshal(p.Payload, &out); err != nil {
		return nil, eris.Wrap(err, "pattern: decode who payload")
	}
	return &out, nil
}

// What decodes the payload of a WHAT pattern.
func (p *Pattern) What() (*WhatPayload, error) {
	if p.Kind != PatternWhat {
		return nil, eris.Errorf("pattern: %s is not a what pattern", p.Kind)
	}
	var out WhatPayload
	if err := json.Unmarshal(p.Payload, &out); err != nil {
		return nil, eris.Wrap(err, "pattern: decode what payload")
	}
	return &out, nil
}

// When decodes the payload of a WHEN pattern.
func (p *Pattern) When() (*WhenPayload, error) {
	if p.Kind != PatternWhen {
		return nil, eris.Errorf("pattern: %s is not a when pattern", p.Kind)
	}
	var out WhenPayload
	if err := json.Unmarshal(p.Payload, &out); err != nil {
		return nil, eris.Wrap(err, "pattern: decode when payload")
	}
	return &out, nil
}

// How decodes the payload of a HOW pattern.
func (p *Pattern) How() (*HowPayload, error) {
	if p.Kind != PatternHow {
		return nil, eris.Errorf("pattern: %s is not a how pattern", p.Kind)
	}
	var out HowPayload
	if err := json.Unmarshal(p.Payload, &out); err != nil {
		return nil, eris.Wrap(err, "pattern: decode how payload")
	}
	return &out, nil
}

// Expired reports whether the pattern's validity window has passed at t.
// Expiry is evaluated once when a decision starts; in-flight decisions
// keep the pattern they read.
func (p *Pattern) Expired(t time.Time) bool {
	return !p.ValidUntil.IsZero() && t.After(p.ValidUntil)
}
