package summary

import (
	"sort"
	"time"
)

const dayKeyLayout = "2006-01-02"

// DayKey formats the wall-clock date of t as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.Format(dayKeyLayout)
}

// BucketByDay groups events by the day key of their primary timestamp.
// Events without a timestamp are dropped.
func BucketByDay[E any](events []E, at func(E) time.Time) map[string][]E {
	buckets := make(map[string][]E)
	for _, event := range events {
		ts := at(event)
		if ts.IsZero() {
			continue
		}
		key := DayKey(ts)
		buckets[key] = append(buckets[key], event)
	}
	return buckets
}

type FeedDay struct {
	TotalAmount int
	Count       int
}

type DiaperDay struct {
	WetCount   int
	DirtyCount int
}

type SleepDay struct {
	TotalDurationMs int64
}

func ReduceFeeds(buckets map[string][]FeedEvent) map[string]FeedDay {
	days := make(map[string]FeedDay, len(buckets))
	for key, events := range buckets {
		day := FeedDay{}
		for _, event := range events {
			day.Count++
			if event.AmountOunces != nil && *event.AmountOunces > 0 {
				day.TotalAmount += *event.AmountOunces
			}
		}
		if day.Count > 0 {
			days[key] = day
		}
	}
	return days
}

func ReduceDiapers(buckets map[string][]DiaperEvent) map[string]DiaperDay {
	days := make(map[string]DiaperDay, len(buckets))
	for key, events := range buckets {
		if len(events) == 0 {
			continue
		}
		day := DiaperDay{}
		for _, event := range events {
			if event.IsWet {
				day.WetCount++
			}
			if event.IsDirty {
				day.DirtyCount++
			}
		}
		days[key] = day
	}
	return days
}

// ReduceSleep sums finished intervals into the day they started on. A day
// with only open or inverted intervals gets no entry.
func ReduceSleep(buckets map[string][]SleepInterval) map[string]SleepDay {
	days := make(map[string]SleepDay, len(buckets))
	for key, intervals := range buckets {
		total := int64(0)
		finished := 0
		for _, interval := range intervals {
			if interval.End == nil || interval.End.Before(interval.Start) {
				continue
			}
			total += interval.End.Sub(interval.Start).Milliseconds()
			finished++
		}
		if finished > 0 {
			days[key] = SleepDay{TotalDurationMs: total}
		}
	}
	return days
}

// SortedWeights drops non-positive samples and orders the rest by timestamp.
// Samples with equal timestamps keep their input order.
func SortedWeights(samples []WeightSample) []WeightSample {
	valid := make([]WeightSample, 0, len(samples))
	for _, sample := range samples {
		if sample.At.IsZero() || sample.Ounces <= 0 {
			continue
		}
		valid = append(valid, sample)
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].At.Before(valid[j].At)
	})
	return valid
}
