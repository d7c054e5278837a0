// Package timeframe parses the natural-language and shorthand "since"
// expressions the context builder accepts (spec.md §4.8).
package timeframe

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Error reports an invalid timeframe string at a query boundary
// (spec.md §7 TimeframeError).
type Error struct {
	Input  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid timeframe %q: %s", e.Input, e.Reason)
}

var shorthand = regexp.MustCompile(`^(\d+)([hdwm])$`)

var unitDurations = map[byte]time.Duration{
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
	'm': 30 * 24 * time.Hour,
}

var daysAgo = regexp.MustCompile(`^(\d+)\s+days?\s+ago$`)

// Parse resolves a timeframe expression relative to now, returning the
// earliest instant it should include. Invalid strings or times in the
// future produce an *Error.
func Parse(input string, now time.Time) (time.Time, error) {
	trimmed := strings.ToLower(strings.TrimSpace(input))
	if trimmed == "" {
		return time.Time{}, &Error{Input: input, Reason: "empty timeframe"}
	}

	if match := shorthand.FindStringSubmatch(trimmed); match != nil {
		n, err := strconv.Atoi(match[1])
		if err != nil {
			return time.Time{}, &Error{Input: input, Reason: "bad numeric value"}
		}
		unit := unitDurations[match[2][0]]
		return checkNotFuture(now.Add(-time.Duration(n) * unit), now, input)
	}

	switch trimmed {
	case "today":
		return checkNotFuture(startOfDay(now), now, input)
	case "yesterday":
		return checkNotFuture(startOfDay(now.AddDate(0, 0, -1)), now, input)
	case "last week":
		return checkNotFuture(now.AddDate(0, 0, -7), now, input)
	}

	if match := daysAgo.FindStringSubmatch(trimmed); match != nil {
		n, err := strconv.Atoi(match[1])
		if err != nil {
			return time.Time{}, &Error{Input: input, Reason: "bad numeric value"}
		}
		return checkNotFuture(now.AddDate(0, 0, -n), now, input)
	}

	return time.Time{}, &Error{Input: input, Reason: "unrecognized timeframe format"}
}

func checkNotFuture(candidate, now time.Time, input string) (time.Time, error) {
	if candidate.After(now) {
		return time.Time{}, &Error{Input: input, Reason: "resolves to a future time"}
	}
	return candidate, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
