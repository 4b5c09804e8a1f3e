package summary

import (
	"strconv"
	"strings"
)

func subjectFor(sex, name string) (string, string) {
	switch strings.ToLower(strings.TrimSpace(sex)) {
	case "female", "girl", "f":
		return "She", "she"
	case "male", "boy", "m":
		return "He", "he"
	default:
		return name, name
	}
}

// Render builds the spoken message and the card. Facts appear in a fixed
// order: identity and age, weight, weight gain, feeding, diapers, sleep,
// activities, words.
func Render(agg WindowAggregate) RenderedResponse {
	weekly := agg.Kind == WeeklyKind
	subject, subjectLower := subjectFor(agg.BabySex, agg.BabyName)

	sentences := make([]string, 0, 8)
	var card strings.Builder
	line := func(label, value string) {
		card.WriteString(label)
		card.WriteString(": ")
		card.WriteString(value)
		card.WriteString("\n")
	}

	identity := agg.BabyName
	if agg.Age != "" {
		identity += " is " + agg.Age + " old"
		line("Age", agg.Age)
	}
	if agg.WeightOunces != nil {
		weight := FormatWeight(*agg.WeightOunces)
		if agg.Age != "" {
			identity += " and weighs " + weight
		} else {
			identity += " weighs " + weight
		}
		line("Weight", weight)
	}
	if agg.Age == "" && agg.WeightOunces == nil {
		identity = "Here is the summary for " + agg.BabyName
	}
	sentences = append(sentences, identity+".")

	if agg.WeightGain != nil {
		gain := Pluralize(agg.WeightGain.Ounces, "ounce") + " in " + Pluralize(agg.WeightGain.Days, "day")
		sentences = append(sentences, subject+" gained "+gain+".")
		line("Weight gain", gain)
	}

	if agg.Feeding != nil {
		times := Pluralize(agg.Feeding.Count, "time")
		amount := Pluralize(agg.Feeding.TotalAmount, "ounce")
		if weekly {
			sentences = append(sentences, "On average this week, "+subjectLower+" ate "+times+" a day for a total of "+amount+".")
			line("Average feedings per day", strconv.Itoa(agg.Feeding.Count))
			line("Average fed per day", amount)
		} else {
			sentences = append(sentences, "Today "+subjectLower+" ate "+times+" for a total of "+amount+".")
			line("Feedings", strconv.Itoa(agg.Feeding.Count))
			line("Total fed", amount)
		}
	}

	if agg.Diapers != nil {
		diapers := Pluralize(agg.Diapers.WetCount, "wet diaper") + " and " + Pluralize(agg.Diapers.DirtyCount, "dirty diaper")
		if weekly {
			sentences = append(sentences, subject+" had "+diapers+" a day.")
			line("Average wet diapers per day", strconv.Itoa(agg.Diapers.WetCount))
			line("Average dirty diapers per day", strconv.Itoa(agg.Diapers.DirtyCount))
		} else {
			sentences = append(sentences, subject+" had "+diapers+".")
			line("Wet diapers", strconv.Itoa(agg.Diapers.WetCount))
			line("Dirty diapers", strconv.Itoa(agg.Diapers.DirtyCount))
		}
	}

	if agg.Sleep != nil {
		if weekly {
			sentences = append(sentences, subject+" slept "+agg.Sleep.Duration+" a day.")
			line("Average sleep per day", agg.Sleep.Duration)
		} else {
			sentences = append(sentences, subject+" slept "+agg.Sleep.Duration+".")
			line("Sleep", agg.Sleep.Duration)
		}
	}

	if len(agg.Activities) > 0 {
		activities := JoinList(agg.Activities)
		sentences = append(sentences, subject+" did "+activities+".")
		line("Activities", activities)
	}
	if len(agg.Words) > 0 {
		words := JoinList(agg.Words)
		sentences = append(sentences, subject+" said "+words+".")
		line("Words", words)
	}

	title := "Daily Summary for " + agg.BabyName
	if weekly {
		title = "Weekly Summary for " + agg.BabyName
	}
	return RenderedResponse{
		Message:   strings.Join(sentences, " "),
		CardTitle: title,
		CardBody:  card.String(),
	}
}
