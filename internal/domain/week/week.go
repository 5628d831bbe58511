// Package week defines the canonical weekly key used to align every source,
// plus the low-frequency reporting periods the economic indicators use.
//
// A week key is the ISO week start: Monday 00:00 UTC. Every provider maps its
// native timestamps onto this key, regardless of the upstream API's own week
// convention (BigQuery's DATE_TRUNC(WEEK) starts on Sunday, for example).
package week

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layout is the canonical string form of a week key.
const Layout = "2006-01-02"

const day = 24 * time.Hour

// ErrInvalidPeriod is returned for period strings that cannot be parsed.
var ErrInvalidPeriod = errors.New("invalid period")

// Start returns the week key containing t.
func Start(t time.Time) time.Time {
	t = t.UTC()
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return d.AddDate(0, 0, -offset)
}

// Format renders the week key containing t.
func Format(t time.Time) string {
	return Start(t).Format(Layout)
}

// Parse parses a YYYY-MM-DD date and returns its week key.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(Layout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return Start(t), nil
}

// Range returns every week key whose week overlaps [from, to], ascending.
func Range(from, to time.Time) []time.Time {
	if to.Before(from) {
		return nil
	}
	var out []time.Time
	last := Start(to)
	for w := Start(from); !w.After(last); w = w.AddDate(0, 0, 7) {
		out = append(out, w)
	}
	return out
}

// Days returns every calendar day in [from, to], ascending.
func Days(from, to time.Time) []time.Time {
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	var out []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// Period is a half-open reporting interval [Start, End).
type Period struct {
	Label string
	Start time.Time
	End   time.Time
}

// Midpoint is the instant halfway through the period.
func (p Period) Midpoint() time.Time {
	return p.Start.Add(p.End.Sub(p.Start) / 2)
}

// ParsePeriod understands annual ("2020"), quarterly ("2020Q2"), World Bank
// monthly ("2020M04") and daily ("2020-04-06") labels.
func ParsePeriod(s string) (Period, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch {
	case len(s) == 4:
		y, err := strconv.Atoi(s)
		if err != nil {
			return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
		}
		start := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
		return Period{Label: s, Start: start, End: start.AddDate(1, 0, 0)}, nil
	case len(s) == 6 && s[4] == 'Q':
		y, err := strconv.Atoi(s[:4])
		q, qerr := strconv.Atoi(s[5:])
		if err != nil || qerr != nil || q < 1 || q > 4 {
			return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
		}
		start := time.Date(y, time.Month(3*(q-1)+1), 1, 0, 0, 0, 0, time.UTC)
		return Period{Label: s, Start: start, End: start.AddDate(0, 3, 0)}, nil
	case len(s) == 7 && s[4] == 'M':
		y, err := strconv.Atoi(s[:4])
		m, merr := strconv.Atoi(s[5:])
		if err != nil || merr != nil || m < 1 || m > 12 {
			return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
		}
		start := time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
		return Period{Label: s, Start: start, End: start.AddDate(0, 1, 0)}, nil
	case len(s) == len(Layout):
		d, err := time.Parse(Layout, s)
		if err != nil {
			return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
		}
		return Period{Label: s, Start: d, End: d.Add(day)}, nil
	default:
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
}
