package model

import "time"

// AllocationStatus is the explicit outcome of an allocation attempt.
// NoResources (every eligible channel exhausted) is distinct from
// Ineligible (the lead's tier permits no channel at all).
type AllocationStatus string

const (
	AllocationFull        AllocationStatus = "allocated"
	AllocationPartial     AllocationStatus = "partially_allocated"
	AllocationNoResources AllocationStatus = "no_resources_available"
	AllocationIneligible  AllocationStatus = "lead_ineligible"
)

// SkipReason records why an eligible channel did not receive an assignment.
type SkipReason string

const (
	SkipResourceExhausted     SkipReason = "resource_exhausted"
	SkipComplianceBlocked     SkipReason = "compliance_blocked"
	SkipComplianceUnavailable SkipReason = "compliance_unavailable"
)

// ChannelAssignment binds one channel to a resource and a send time.
type ChannelAssignment struct {
	Channel    Channel   `json:"channel"`
	ResourceID string    `json:"resource_id"`
	Identity   string    `json:"identity"`
	SendAt     time.Time `json:"send_at"`
}

// AllocationDecision is the ephemeral result of allocating one lead. It is
// handed to the outreach-execution layer, not persisted here.
type AllocationDecision struct {
	LeadID      string                 `json:"lead_id"`
	TenantID    string                 `json:"tenant_id"`
	Tier        Tier                   `json:"tier"`
	Status      AllocationStatus       `json:"status"`
	Assignments []ChannelAssignment    `json:"assignments,omitempty"`
	Skipped     map[Channel]SkipReason `json:"skipped,omitempty"`
	DecidedAt   time.Time              `json:"decided_at"`
}
