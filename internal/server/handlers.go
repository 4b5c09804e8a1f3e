package server

import (
	"time"

	"github.com/csickelco/newbie-sub000/internal/store"
	"github.com/csickelco/newbie-sub000/internal/summary"
)

type recordEventRequest struct {
	Type      string         `json:"type"`
	StartTime *time.Time     `json:"start_time"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
	Value     map[string]any `json:"value"`
	Source    string         `json:"source"`
}

type recordEventResponse struct {
	EventID      string `json:"event_id"`
	Type         string `json:"type"`
	Confirmation string `json:"confirmation"`
}

type voiceIntentRequest struct {
	Intent string `json:"intent"`
}

type voiceIntentResponse struct {
	Intent    string `json:"intent"`
	Speech    string `json:"speech"`
	CardTitle string `json:"card_title,omitempty"`
	CardBody  string `json:"card_body,omitempty"`
}

type lastFeedResponse struct {
	Message string `json:"message"`
}

// confirmationFor describes a stored event the way it is read back to the
// caregiver.
func confirmationFor(babyName string, event store.NewEvent) string {
	switch store.Category(event.Type) {
	case "feed":
		if amount := store.FeedOunces(event.Value); amount != nil && *amount > 0 {
			return "Recorded a feeding of " + summary.Pluralize(*amount, "ounce") + " for " + babyName + "."
		}
		return "Recorded a feeding for " + babyName + "."
	case "diaper":
		return "Recorded " + diaperPhrase(event) + " for " + babyName + "."
	case "sleep":
		if event.End != nil {
			return "Recorded " + summary.CalculateDuration(event.Start, *event.End) + " of sleep for " + babyName + "."
		}
		return "Recorded that " + babyName + " fell asleep."
	case "weight":
		ounces, _ := store.WeightOunces(event.Value)
		return "Recorded a weight of " + summary.FormatWeight(ounces) + " for " + babyName + "."
	case "activity":
		return "Recorded that " + babyName + " did " + store.ActivityName(event.Value) + "."
	case "word":
		return "Recorded that " + babyName + " said " + store.SpokenWord(event.Value) + "."
	default:
		return "Recorded an event for " + babyName + "."
	}
}

func diaperPhrase(event store.NewEvent) string {
	wet, dirty := store.DiaperFlags(event.Type, event.Value)
	switch {
	case wet && dirty:
		return "a wet and dirty diaper"
	case wet:
		return "a wet diaper"
	case dirty:
		return "a dirty diaper"
	default:
		return "a diaper change"
	}
}
