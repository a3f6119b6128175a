package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Val d'Isère":       "val-d-is-re",
		"  Alpine Academy ": "alpine-academy",
		"St. Anton -- AT":   "st-anton-at",
		"***":               "",
		"Les 2 Alpes!":      "les-2-alpes",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestCleanStrings(t *testing.T) {
	assert.Nil(t, CleanStrings(nil))
	assert.Equal(t, []string{"ski", "freeride"}, CleanStrings([]string{" SKI ", "", "  ", "Freeride"}, true))
	assert.Equal(t, []string{"SKI"}, CleanStrings([]string{" SKI "}))
}

func TestDaysBetween(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, time.December, d, 0, 0, 0, 0, time.UTC) }

	assert.Equal(t, []time.Time{day(30), day(31), day(31).AddDate(0, 0, 1)}, DaysBetween(day(30).Add(15*time.Hour), day(31).AddDate(0, 0, 1)))
	assert.Equal(t, []time.Time{day(5)}, DaysBetween(day(5), day(5).Add(time.Hour)))
	assert.Nil(t, DaysBetween(day(6), day(5)))
}

func TestDayCount(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, time.December, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name     string
		from, to time.Time
		want     int
	}{
		{name: "same day", from: day(5), to: day(5).Add(20 * time.Hour), want: 1},
		{name: "across the year", from: day(30).Add(15 * time.Hour), to: day(31).AddDate(0, 0, 1), want: 3},
		{name: "reversed", from: day(6), to: day(5), want: 0},
		{name: "whole calendar", from: time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC), to: time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC), want: 106752},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DayCount(tt.from, tt.to))
		})
	}
}

func TestResolveLocale(t *testing.T) {
	tests := []struct {
		candidates []string
		want       string
	}{
		{want: DefaultLocale},
		{candidates: []string{"fr"}, want: LocaleFR},
		{candidates: []string{"", "FR-ch"}, want: LocaleFR},
		{candidates: []string{"de-DE,de;q=0.9,fr;q=0.8,en;q=0.7"}, want: LocaleFR},
		{candidates: []string{"en;q=0.5,fr;q=0.8"}, want: LocaleFR},
		{candidates: []string{"es"}, want: DefaultLocale},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveLocale(tt.candidates...), tt.candidates)
	}
}
