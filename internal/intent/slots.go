package intent

import (
	"strconv"
	"strings"
	"time"
)

// wordNumbers covers the spoken digits recognizers produce instead of
// numerals.
var wordNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"fifteen": 15, "twenty": 20, "thirty": 30, "forty": 40,
	"sixty": 60, "a": 1, "an": 1,
}

// filterWords are stripped from candidate locations so "weather like in
// london tomorrow" yields just "london".
var filterWords = map[string]bool{
	"weather": true, "forecast": true, "temperature": true, "climate": true,
	"like": true, "show": true, "me": true, "the": true, "what": true,
	"whats": true, "will": true, "it": true, "rain": true, "next": true,
	"week": true, "tomorrow": true, "tonight": true, "hourly": true,
	"daily": true, "today": true, "please": true,
}

// locationPrepositions introduce a place in weather queries.
var locationPrepositions = map[string]bool{
	"in": true, "at": true, "for": true, "near": true, "by": true,
}

// ParseTimerDuration extracts a duration from phrases like "set a timer
// for five minutes" or "timer 90 seconds". Returns false when no number
// and unit pair is found.
func ParseTimerDuration(text string) (time.Duration, bool) {
	if strings.Contains(text, "half an hour") || strings.Contains(text, "half hour") {
		return 30 * time.Minute, true
	}

	words := strings.Fields(strings.ToLower(text))
	for i, w := range words {
		unit, ok := durationUnit(w)
		if !ok || i == 0 {
			continue
		}
		if n, ok := parseNumber(words[i-1]); ok && n > 0 {
			return time.Duration(n) * unit, true
		}
	}
	return 0, false
}

// durationUnit maps a unit word to its duration.
func durationUnit(w string) (time.Duration, bool) {
	switch strings.TrimSuffix(w, "s") {
	case "second", "sec":
		return time.Second, true
	case "minute", "min":
		return time.Minute, true
	case "hour", "hr":
		return time.Hour, true
	default:
		return 0, false
	}
}

// parseNumber reads a numeral or a spoken number word.
func parseNumber(w string) (int, bool) {
	if n, err := strconv.Atoi(w); err == nil {
		return n, true
	}
	n, ok := wordNumbers[w]
	return n, ok
}

// ExtractLocation finds the place name in a weather query, taking the
// words after a location preposition and dropping filler. Returns ""
// when no location is present.
func ExtractLocation(text string) string {
	words := strings.Fields(strings.ToLower(text))

	start := -1
	for i, w := range words {
		if locationPrepositions[w] && i+1 < len(words) {
			start = i + 1
		}
	}
	if start < 0 {
		return ""
	}

	var parts []string
	for _, w := range words[start:] {
		w = strings.TrimSuffix(w, "?")
		if filterWords[strings.TrimSuffix(w, "'s")] {
			// Filler after the city name ends the location.
			if len(parts) > 0 {
				break
			}
			continue
		}
		parts = append(parts, w)
	}
	return strings.Join(parts, " ")
}
