package core

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanStrings applies CleanString to every item and drops the blank ones.
func CleanStrings(items []string, lower ...bool) []string {
	if items == nil {
		return nil
	}
	cleaned := make([]string, 0, len(items))
	for _, s := range items {
		if s = CleanString(s, lower...); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}

// Slugify lowers `s` and replaces every run of non-alphanumeric characters with a single "-".
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteRune('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ContainsString reports whether `s` is in `items`.
func ContainsString(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayCount returns the number of days from `from` to `to`, both included.
// It is zero when to is before from. Ranges longer than a time.Duration saturate.
func DayCount(from, to time.Time) int {
	from, to = Day(from), Day(to)
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from)/(24*time.Hour)) + 1
}

// DaysBetween returns every day from `from` to `to` (both included).
func DaysBetween(from, to time.Time) []time.Time {
	from, to = Day(from), Day(to)
	if to.Before(from) {
		return nil
	}
	days := make([]time.Time, 0, DayCount(from, to))
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// NowFunc is mockable.
var NowFunc = func() time.Time { return time.Now().UTC() }

// Getwd tries to find the project root (the first parent directory holding a go.mod file).
// go-test changes the working directory to the test package being run during tests, assets are
// resolved from the project root instead.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
