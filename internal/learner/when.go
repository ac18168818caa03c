package learner

import (
	"sort"
	"time"

	"github.com/sells-group/outreach-engine/internal/model"
)

// Timing buckets below this many sends are noise and never win.
const minBucketSends = 5

// How many winning days and hours a WHEN pattern carries.
const (
	topDays  = 3
	topHours = 2
)

type bucketStats struct {
	sends     int
	converted int
}

func (b bucketStats) rate() float64 {
	if b.sends == 0 {
		return 0
	}
	return float64(b.converted) / float64(b.sends)
}

// detectWhen buckets outcomes by weekday and hour and keeps the
// best-converting buckets. Every outcome record carries timing, so the
// sample is the whole window.
func detectWhen(records []model.OutcomeRecord) *detection {
	det := &detection{sample: len(records)}
	if len(records) == 0 {
		return det
	}

	var days [7]bucketStats
	var hours [24]bucketStats
	for _, r := range records {
		d := int(r.Weekday)
		if d < 0 || d > 6 {
			continue
		}
		days[d].sends++
		if r.Hour >= 0 && r.Hour < 24 {
			hours[r.Hour].sends++
		}
		if r.Converted {
			days[d].converted++
			if r.Hour >= 0 && r.Hour < 24 {
				hours[r.Hour].converted++
			}
		}
	}

	bestDays := topBuckets(days[:], topDays)
	bestHours := topBuckets(hours[:], topHours)
	if len(bestDays) == 0 || len(bestHours) == 0 {
		return det
	}

	winDays := make([]time.Weekday, len(bestDays))
	for i, d := range bestDays {
		winDays[i] = time.Weekday(d)
	}

	// The pattern's headline rate is the conversion rate inside the
	// winning day buckets.
	var sends, converted int
	for _, d := range bestDays {
		sends += days[d].sends
		converted += days[d].converted
	}

	first, second := halves(records)
	det.halfStats = [2]float64{
		daysRate(first, bestDays),
		daysRate(second, bestDays),
	}

	// Outcome send times are stored in UTC; the allocation engine shifts
	// the hours into the channel schedule's zone when needed.
	det.payload = &model.WhenPayload{
		Days:           winDays,
		Hours:          bestHours,
		Timezone:       "UTC",
		ConversionRate: float64(converted) / float64(sends),
	}
	return det
}

// topBuckets returns the indexes of the best-converting buckets with
// enough sends, ordered by rate descending, index ascending on ties. A
// bucket that never converted is not a winner.
func topBuckets(buckets []bucketStats, n int) []int {
	var idx []int
	for i, b := range buckets {
		if b.sends >= minBucketSends && b.converted > 0 {
			idx = append(idx, i)
		}
	}
	sort.Slice(idx, func(a, b int) bool {
		ra, rb := buckets[idx[a]].rate(), buckets[idx[b]].rate()
		if ra != rb {
			return ra > rb
		}
		return idx[a] < idx[b]
	})
	if len(idx) > n {
		idx = idx[:n]
	}
	sort.Ints(idx)
	return idx
}

func daysRate(records []model.OutcomeRecord, days []int) float64 {
	in := make(map[int]bool, len(days))
	for _, d := range days {
		in[d] = true
	}
	var sends, converted int
	for _, r := range records {
		if !in[int(r.Weekday)] {
			continue
		}
		sends++
		if r.Converted {
			converted++
		}
	}
	if sends == 0 {
		return 0
	}
	return float64(converted) / float64(sends)
}
