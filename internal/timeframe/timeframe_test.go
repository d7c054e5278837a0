package timeframe

import (
	"testing"
	"time"
)

var fixedNow = time.Date(2026, time.July, 31, 12, 0, 0, 0, time.UTC)

func TestParseShorthandDurations(t *testing.T) {
	cases := []struct {
		input string
		want  time.Time
	}{
		{"7d", fixedNow.Add(-7 * 24 * time.Hour)},
		{"2h", fixedNow.Add(-2 * time.Hour)},
		{"1w", fixedNow.Add(-7 * 24 * time.Hour)},
		{"1m", fixedNow.Add(-30 * 24 * time.Hour)},
	}
	for _, c := range cases {
		got, err := Parse(c.input, fixedNow)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.input, err)
		}
		if !got.Equal(c.want) {
			t.Fatalf("Parse(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestParseNaturalLanguageForms(t *testing.T) {
	if got, err := Parse("today", fixedNow); err != nil || !got.Equal(time.Date(2026, time.July, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Parse(today) = %v, %v", got, err)
	}
	if got, err := Parse("yesterday", fixedNow); err != nil || !got.Equal(time.Date(2026, time.July, 30, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Parse(yesterday) = %v, %v", got, err)
	}
	if got, err := Parse("3 days ago", fixedNow); err != nil || !got.Equal(fixedNow.AddDate(0, 0, -3)) {
		t.Fatalf("Parse(3 days ago) = %v, %v", got, err)
	}
	if _, err := Parse("last week", fixedNow); err != nil {
		t.Fatalf("Parse(last week): %v", err)
	}
}

func TestParseRejectsInvalidInput(t *testing.T) {
	cases := []string{"", "soon", "7x", "next tuesday"}
	for _, c := range cases {
		if _, err := Parse(c, fixedNow); err == nil {
			t.Fatalf("Parse(%q): expected an error", c)
		}
	}
}
