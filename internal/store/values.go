package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/csickelco/newbie-sub000/internal/summary"
)

const (
	millilitersPerOunce = 29.5735
	ouncesPerKilogram   = 35.274
)

type eventRow struct {
	Type  string
	Start time.Time
	End   *time.Time
	Value map[string]any
}

func parseJSONStringMap(input []byte) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	var result map[string]any
	if err := json.Unmarshal(input, &result); err != nil || result == nil {
		return map[string]any{}
	}
	return result
}

func lookupNumber(data map[string]any, keys ...string) (float64, bool) {
	if data == nil {
		return 0, false
	}
	for _, key := range keys {
		raw, ok := data[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case float64:
			return v, true
		case float32:
			return float64(v), true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, true
			}
		case string:
			var parsed float64
			if _, err := fmt.Sscanf(v, "%f", &parsed); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}

func lookupString(data map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := data[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func toBool(input any) (bool, bool) {
	switch value := input.(type) {
	case bool:
		return value, true
	case string:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		}
	case float64:
		if value == 1 {
			return true, true
		}
		if value == 0 {
			return false, true
		}
	}
	return false, false
}

func normalizeBabySex(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "male", "m", "boy":
		return "male"
	case "female", "f", "girl":
		return "female"
	default:
		return "unknown"
	}
}

// FeedOunces reads a feed amount in ounces, falling back to milliliters.
func FeedOunces(value map[string]any) *int {
	if oz, ok := lookupNumber(value, "ounces", "amount_oz", "oz"); ok && oz >= 0 {
		rounded := int(math.Round(oz))
		return &rounded
	}
	if ml, ok := lookupNumber(value, "ml", "amount_ml", "volume_ml"); ok && ml >= 0 {
		rounded := int(math.Round(ml / millilitersPerOunce))
		return &rounded
	}
	return nil
}

// WeightOunces reads a weight in ounces, falling back to kilograms.
func WeightOunces(value map[string]any) (int, bool) {
	if oz, ok := lookupNumber(value, "ounces", "weight_oz"); ok && oz > 0 {
		return int(math.Round(oz)), true
	}
	if kg, ok := lookupNumber(value, "weight_kg", "kg"); ok && kg > 0 {
		return int(math.Round(kg * ouncesPerKilogram)), true
	}
	return 0, false
}

func toFeedEvent(row eventRow) summary.FeedEvent {
	return summary.FeedEvent{At: row.Start, AmountOunces: FeedOunces(row.Value)}
}

// DiaperFlags reports what a diaper event contained. PEE and POO imply their
// flag; DIAPER reads "wet" and "dirty" from the value.
func DiaperFlags(eventType string, value map[string]any) (wet, dirty bool) {
	switch eventType {
	case TypePee:
		return true, false
	case TypePoo:
		return false, true
	}
	wet, _ = toBool(value["wet"])
	dirty, _ = toBool(value["dirty"])
	return wet, dirty
}

// ActivityName returns the trimmed activity of an ACTIVITY value, or "".
func ActivityName(value map[string]any) string {
	return lookupString(value, "activity", "name")
}

// SpokenWord returns the trimmed word of a WORD value, or "".
func SpokenWord(value map[string]any) string {
	return lookupString(value, "word", "text")
}

func toDiaperEvent(row eventRow) summary.DiaperEvent {
	event := summary.DiaperEvent{At: row.Start}
	event.IsWet, event.IsDirty = DiaperFlags(row.Type, row.Value)
	return event
}

func toSleepInterval(row eventRow) summary.SleepInterval {
	return summary.SleepInterval{Start: row.Start, End: row.End}
}

func toWeightSample(row eventRow) (summary.WeightSample, bool) {
	ounces, ok := WeightOunces(row.Value)
	if !ok {
		return summary.WeightSample{}, false
	}
	return summary.WeightSample{At: row.Start, Ounces: ounces}, true
}

func toActivityEvent(row eventRow) (summary.ActivityEvent, bool) {
	activity := ActivityName(row.Value)
	if activity == "" {
		return summary.ActivityEvent{}, false
	}
	return summary.ActivityEvent{At: row.Start, Activity: activity}, true
}

func toWordEvent(row eventRow) (summary.WordEvent, bool) {
	word := SpokenWord(row.Value)
	if word == "" {
		return summary.WordEvent{}, false
	}
	return summary.WordEvent{At: row.Start, Word: word}, true
}
