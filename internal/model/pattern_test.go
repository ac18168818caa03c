package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternTypedAccessors(t *testing.T) {
	t.Parallel()

	payload, err := json.Marshal(WhenPayload{
		Days:     []time.Weekday{time.Tuesday},
		Hours:    []int{9, 14},
		Timezone: "UTC",
	})
	require.NoError(t, err)
	p := &Pattern{Kind: PatternWhen, Payload: payload}

	when, err := p.When()
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Tuesday}, when.Days)
	assert.Equal(t, []int{9, 14}, when.Hours)

	// The accessor for any other kind refuses.
	_, err = p.Who()
	assert.Error(t, err)
	_, err = p.What()
	assert.Error(t, err)
	_, err = p.How()
	assert.Error(t, err)
}

func TestPatternAccessorBadPayload(t *testing.T) {
	t.Parallel()
	p := &Pattern{Kind: PatternHow, Payload: json.RawMessage(`{"tier": 42`)}
	_, err := p.How()
	assert.Error(t, err)
}

func TestPatternExpired(t *testing.T) {
	t.Parallel()
	now := time.Now()

	p := &Pattern{ValidUntil: now.Add(time.Hour)}
	assert.False(t, p.Expired(now))
	assert.True(t, p.Expired(now.Add(2*time.Hour)))

	// Zero ValidUntil means no expiry.
	open := &Pattern{}
	assert.False(t, open.Expired(now))
}

func TestKindsOrder(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []PatternKind{PatternWho, PatternWhat, PatternWhen, PatternHow}, Kinds())
}
