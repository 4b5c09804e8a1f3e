package summary

import (
	"math"
	"sort"
	"strings"
	"time"
)

type WindowKind int

const (
	DailyKind WindowKind = iota
	WeeklyKind
)

const weekLength = 7

func (k WindowKind) String() string {
	if k == WeeklyKind {
		return "weekly"
	}
	return "daily"
}

// Window is an inclusive range of day keys.
type Window struct {
	Kind  WindowKind
	First string
	Last  string
}

func DailyWindow(now time.Time) Window {
	key := DayKey(now)
	return Window{Kind: DailyKind, First: key, Last: key}
}

// WeeklyWindow covers seven calendar days ending with the day of now.
func WeeklyWindow(now time.Time) Window {
	return Window{
		Kind:  WeeklyKind,
		First: DayKey(now.AddDate(0, 0, -(weekLength - 1))),
		Last:  DayKey(now),
	}
}

func (w Window) Contains(key string) bool {
	return key >= w.First && key <= w.Last
}

func withinWindow[V any](days map[string]V, w Window) map[string]V {
	result := make(map[string]V, len(days))
	for key, value := range days {
		if w.Contains(key) {
			result[key] = value
		}
	}
	return result
}

func roundedMean(sum int64, days int) int64 {
	return int64(math.Round(float64(sum) / float64(days)))
}

// Aggregate reduces the input into window statistics. Every category is
// averaged over its own populated days, which for a daily window is the
// identity.
func Aggregate(in Input, w Window) WindowAggregate {
	agg := WindowAggregate{
		Kind:     w.Kind,
		BabyName: strings.TrimSpace(in.Baby.Name),
		BabySex:  in.Baby.Sex,
	}
	if !in.Baby.Birthdate.IsZero() {
		agg.Age = CalculateAgeFromBirthdate(in.Baby.Birthdate, in.Now)
	}

	feedDays := withinWindow(ReduceFeeds(BucketByDay(in.Feeds, func(e FeedEvent) time.Time { return e.At })), w)
	if len(feedDays) > 0 {
		var amount, count int64
		for _, day := range feedDays {
			amount += int64(day.TotalAmount)
			count += int64(day.Count)
		}
		agg.Feeding = &FeedingStats{
			TotalAmount: int(roundedMean(amount, len(feedDays))),
			Count:       int(roundedMean(count, len(feedDays))),
		}
	}

	diaperDays := withinWindow(ReduceDiapers(BucketByDay(in.Diapers, func(e DiaperEvent) time.Time { return e.At })), w)
	if len(diaperDays) > 0 {
		var wet, dirty int64
		for _, day := range diaperDays {
			wet += int64(day.WetCount)
			dirty += int64(day.DirtyCount)
		}
		agg.Diapers = &DiaperStats{
			WetCount:   int(roundedMean(wet, len(diaperDays))),
			DirtyCount: int(roundedMean(dirty, len(diaperDays))),
		}
	}

	sleepDays := withinWindow(ReduceSleep(BucketByDay(in.Sleeps, func(e SleepInterval) time.Time { return e.Start })), w)
	if len(sleepDays) > 0 {
		var total int64
		for _, day := range sleepDays {
			total += day.TotalDurationMs
		}
		mean := roundedMean(total, len(sleepDays))
		agg.Sleep = &SleepStats{DurationMs: mean, Duration: FormatDuration(mean)}
	}

	weights := make([]WeightSample, 0, len(in.Weights))
	for _, sample := range SortedWeights(in.Weights) {
		if w.Contains(DayKey(sample.At)) {
			weights = append(weights, sample)
		}
	}
	if len(weights) > 0 {
		earliest := weights[0]
		latest := weights[len(weights)-1]
		ounces := latest.Ounces
		agg.WeightOunces = &ounces
		if w.Kind == WeeklyKind && DayKey(earliest.At) != DayKey(latest.At) {
			agg.WeightGain = &WeightGain{
				Ounces: latest.Ounces - earliest.Ounces,
				Days:   elapsedDays(earliest.At, latest.At),
			}
		}
	}

	agg.Activities = distinctInWindow(in.Activities, w, func(e ActivityEvent) (time.Time, string) { return e.At, e.Activity })
	agg.Words = distinctInWindow(in.Words, w, func(e WordEvent) (time.Time, string) { return e.At, e.Word })
	return agg
}

// elapsedDays rounds the absolute time between two instants up to whole days.
func elapsedDays(from, to time.Time) int {
	return int(math.Ceil(math.Abs(to.Sub(from).Hours() / 24)))
}

// distinctInWindow returns the distinct trimmed values inside the window in
// timestamp order, comparing case-insensitively.
func distinctInWindow[E any](events []E, w Window, fields func(E) (time.Time, string)) []string {
	type entry struct {
		at    time.Time
		value string
	}
	entries := make([]entry, 0, len(events))
	for _, event := range events {
		at, value := fields(event)
		value = strings.TrimSpace(value)
		if at.IsZero() || value == "" || !w.Contains(DayKey(at)) {
			continue
		}
		entries = append(entries, entry{at: at, value: value})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].at.Before(entries[j].at)
	})

	seen := make(map[string]struct{}, len(entries))
	result := make([]string, 0, len(entries))
	for _, item := range entries {
		key := strings.ToLower(item.value)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, item.value)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
