package summary

import (
	"strconv"
	"strings"
	"time"
)

const (
	millisPerMinute = int64(60 * 1000)
	minutesPerHour  = int64(60)
	minutesPerDay   = int64(24 * 60)

	// Ages strictly above this many whole weeks are spoken in months.
	monthThresholdWeeks = 20
	// Leftover days above this round the month count up.
	monthRoundUpDays = 15
	ouncesPerPound   = 16
)

// Pluralize renders a count with its unit, adding "s" unless the count is 1.
func Pluralize(count int, unit string) string {
	if count == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(count) + " " + unit + "s"
}

// JoinList joins phrases as "A", "A and B" or "A, B, and C".
func JoinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}

// FormatDuration verbalizes a millisecond duration as days, hours and minutes,
// truncating at every level.
func FormatDuration(milliseconds int64) string {
	if milliseconds < 0 {
		milliseconds = 0
	}
	totalMinutes := milliseconds / millisPerMinute
	days := totalMinutes / minutesPerDay
	hours := (totalMinutes / minutesPerHour) % 24
	minutes := totalMinutes % minutesPerHour

	parts := make([]string, 0, 3)
	if days > 0 {
		parts = append(parts, Pluralize(int(days), "day"))
	}
	if hours > 0 {
		parts = append(parts, Pluralize(int(hours), "hour"))
	}
	if minutes > 0 {
		parts = append(parts, Pluralize(int(minutes), "minute"))
	}
	if len(parts) == 0 {
		return "0 minutes"
	}
	return JoinList(parts)
}

func CalculateDuration(start, end time.Time) string {
	return FormatDuration(end.Sub(start).Milliseconds())
}

// CalculateAgeFromBirthdate renders an age in years, months, or weeks and days.
// Both dates are read as wall-clock calendar dates; callers convert now into
// the baby's timezone first.
func CalculateAgeFromBirthdate(birthdate, now time.Time) string {
	birth := civilDate(birthdate)
	today := civilDate(now)
	if today.Before(birth) {
		return "0 days"
	}

	years := today.Year() - birth.Year()
	if today.Month() < birth.Month() || (today.Month() == birth.Month() && today.Day() < birth.Day()) {
		years--
	}
	if years >= 1 {
		return Pluralize(years, "year")
	}

	days := daysBetween(birth, today)
	weeks := days / 7
	if weeks > monthThresholdWeeks {
		months := (today.Year()-birth.Year())*12 + int(today.Month()) - int(birth.Month())
		anchor := addMonthsClamped(birth, months)
		if anchor.After(today) {
			months--
			anchor = addMonthsClamped(birth, months)
		}
		leftover := daysBetween(anchor, today)
		if leftover > monthRoundUpDays {
			months++
		}
		text := Pluralize(months, "month")
		if leftover > 0 {
			return "about " + text
		}
		return text
	}

	parts := make([]string, 0, 2)
	if weeks > 0 {
		parts = append(parts, Pluralize(weeks, "week"))
	}
	if rem := days % 7; rem > 0 {
		parts = append(parts, Pluralize(rem, "day"))
	}
	if len(parts) == 0 {
		return "0 days"
	}
	return strings.Join(parts, " and ")
}

// FormatWeight renders ounces as pounds and ounces.
func FormatWeight(ounces int) string {
	pounds := ounces / ouncesPerPound
	rem := ounces % ouncesPerPound
	switch {
	case pounds == 0:
		return Pluralize(rem, "ounce")
	case rem == 0:
		return Pluralize(pounds, "pound")
	default:
		return Pluralize(pounds, "pound") + " and " + Pluralize(rem, "ounce")
	}
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(civilDate(to).Sub(civilDate(from)).Hours() / 24)
}

func addMonthsClamped(date time.Time, months int) time.Time {
	first := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	lastDay := first.AddDate(0, 1, -1).Day()
	day := date.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}
