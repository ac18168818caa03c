package model

import "time"

// OutcomeRecord is one historical outreach touch and its observed
// engagement. Outcome ingestion writes these; the pattern learner reads
// them in bulk.
type OutcomeRecord struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	LeadID   string `json:"lead_id"`

	Channel     Channel `json:"channel"`
	TemplateKey string  `json:"template_key,omitempty"`
	SequenceKey string  `json:"sequence_key,omitempty"`
	SequencePos int     `json:"sequence_pos"`

	SentAt  time.Time    `json:"sent_at"`
	Weekday time.Weekday `json:"weekday"`
	Hour    int          `json:"hour"`

	Opened    bool `json:"opened"`
	Clicked   bool `json:"clicked"`
	Replied   bool `json:"replied"`
	Meeting   bool `json:"meeting"`
	Converted bool `json:"converted"`

	// Component sub-scores of the lead at send time, for the weight
	// optimizer's lift analysis.
	Components ComponentScores `json:"components"`
	Tier       Tier            `json:"tier"`
}
