package model

import "time"

// Channel is an outreach channel type.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelLinkedIn Channel = "linkedin"
	ChannelSMS      Channel = "sms"
	ChannelVoice    Channel = "voice"
)

// RegulatedChannels lists the channels that require a do-not-contact check
// before a resource may be assigned.
func RegulatedChannels() map[Channel]bool {
	return map[Channel]bool{
		ChannelSMS:   true,
		ChannelVoice: true,
	}
}

// ResourceStatus is the lifecycle state of a sending asset.
type ResourceStatus string

const (
	ResourceActive    ResourceStatus = "active"
	ResourceWarming   ResourceStatus = "warming"
	ResourceExhausted ResourceStatus = "exhausted"
	ResourceRetired   ResourceStatus = "retired"
)

// Resource is a shared, rate-limited sending asset: a sending domain, a
// phone number, or a social-outreach seat. The usage counter is scoped to
// UsageDay and resets when the day rolls over; increments go through the
// store's conditional update, never read-modify-write.
type Resource struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	Channel    Channel        `json:"channel"`
	Identity   string         `json:"identity"`
	DailyLimit int            `json:"daily_limit"`
	UsedToday  int            `json:"used_today"`
	UsageDay   string         `json:"usage_day"`
	Status     ResourceStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
}

// UsageDayFormat is the layout for Resource.UsageDay values.
const UsageDayFormat = "2006-01-02"

// Remaining returns how many sends the resource has left for day. A stale
// UsageDay means the counter has not rolled over yet and the full limit is
// available.
func (r *Resource) Remaining(day string) int {
	if r.UsageDay != day {
		return r.DailyLimit
	}
	left := r.DailyLimit - r.UsedToday
	if left < 0 {
		return 0
	}
	return left
}
