// Package summary turns already-fetched caregiving events into daily and
// weekly summaries: a spoken message plus a multi-line card.
//
// Everything here is a pure function of its inputs. Timestamps are read as
// wall-clock values, so callers convert them into the baby's timezone before
// handing them over.
package summary

import "time"

type FeedEvent struct {
	At           time.Time
	AmountOunces *int
}

type DiaperEvent struct {
	At      time.Time
	IsWet   bool
	IsDirty bool
}

// SleepInterval with a nil End is still in progress.
type SleepInterval struct {
	Start time.Time
	End   *time.Time
}

type WeightSample struct {
	At     time.Time
	Ounces int
}

type ActivityEvent struct {
	At       time.Time
	Activity string
}

type WordEvent struct {
	At   time.Time
	Word string
}

type Baby struct {
	Name      string
	Sex       string
	Birthdate time.Time
}

type Input struct {
	Baby       Baby
	Now        time.Time
	Feeds      []FeedEvent
	Diapers    []DiaperEvent
	Sleeps     []SleepInterval
	Weights    []WeightSample
	Activities []ActivityEvent
	Words      []WordEvent
}

type FeedingStats struct {
	TotalAmount int
	Count       int
}

type DiaperStats struct {
	WetCount   int
	DirtyCount int
}

type SleepStats struct {
	DurationMs int64
	Duration   string
}

type WeightGain struct {
	Ounces int
	Days   int
}

// WindowAggregate holds window-level statistics. Nil categories had no
// populated day in the window and are left out of the rendered output.
type WindowAggregate struct {
	Kind         WindowKind
	BabyName     string
	BabySex      string
	Age          string
	Feeding      *FeedingStats
	Diapers      *DiaperStats
	Sleep        *SleepStats
	WeightOunces *int
	WeightGain   *WeightGain
	Activities   []string
	Words        []string
}

type RenderedResponse struct {
	Message   string `json:"message"`
	CardTitle string `json:"card_title"`
	CardBody  string `json:"card_body"`
}

func Daily(in Input) RenderedResponse {
	return Render(Aggregate(in, DailyWindow(in.Now)))
}

func Weekly(in Input) RenderedResponse {
	return Render(Aggregate(in, WeeklyWindow(in.Now)))
}
