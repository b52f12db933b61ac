// Package timefmt renders coarse, human-oriented time strings: elapsed spans,
// short time-zone labels and calendar-style dates.
package timefmt

import (
	"fmt"
	"strings"
	"time"
)

// Elapsed renders the whole-unit span from since to now using the first
// non-zero unit among days, hours, minutes and seconds. Smaller units are
// dropped ("1 day", never "1 day 3 hours"). Negative spans render as
// "0 seconds".
func Elapsed(since, now time.Time) string {
	d := now.Sub(since)
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	mins := secs / 60
	hours := mins / 60
	days := hours / 24

	switch {
	case days > 0:
		return plural(days, "day")
	case hours > 0:
		return plural(hours, "hour")
	case mins > 0:
		return plural(mins, "minute")
	default:
		return plural(secs, "second")
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// ShortTimeZoneLabel returns the short abbreviation of zone at instant at,
// e.g. "PST" for America/Los_Angeles in winter. Zones without a letter
// abbreviation render as a GMT offset ("GMT+7", "GMT+5:30"). If the zone
// cannot be loaded or yields nothing, zone itself is returned.
//
// Letter abbreviations come from tzdata, so zones such as Europe/Berlin
// render "CET" and Asia/Kolkata "IST" where an en-US browser shows
// "GMT+1" and "GMT+5:30".
func ShortTimeZoneLabel(zone string, at time.Time) string {
	name := strings.TrimSpace(zone)
	if name == "" {
		return zone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return zone
	}
	abbr, offset := at.In(loc).Zone()
	abbr = strings.TrimSpace(abbr)
	if abbr == "" {
		return zone
	}
	if abbr[0] == '+' || abbr[0] == '-' {
		return gmtOffset(offset)
	}
	return abbr
}

func gmtOffset(offset int) string {
	if offset == 0 {
		return "GMT"
	}
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	h := offset / 3600
	m := (offset % 3600) / 60
	if m == 0 {
		return fmt.Sprintf("GMT%s%d", sign, h)
	}
	return fmt.Sprintf("GMT%s%d:%02d", sign, h, m)
}

const clockLayout = "3:04 PM"

// Calendar renders t relative to now in loc:
//
//	Today at 3:04 PM / Tomorrow at ... / Yesterday at ...
//	Monday at ...       (within the next week)
//	Last Monday at ...  (within the previous week)
//	01/02/2006          (anything further away)
func Calendar(t, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	now = now.In(loc)

	diff := calendarDays(t, now)
	clock := t.Format(clockLayout)

	switch {
	case diff < -6:
		return t.Format("01/02/2006")
	case diff < -1:
		return "Last " + t.Weekday().String() + " at " + clock
	case diff < 0:
		return "Yesterday at " + clock
	case diff < 1:
		return "Today at " + clock
	case diff < 2:
		return "Tomorrow at " + clock
	case diff < 7:
		return t.Weekday().String() + " at " + clock
	default:
		return t.Format("01/02/2006")
	}
}

// calendarDays is the distance from the start of now's day to t in days,
// counted on the wall clock so 23h and 25h DST days still count as one.
func calendarDays(t, now time.Time) float64 {
	day := func(x time.Time) time.Time { return time.Date(x.Year(), x.Month(), x.Day(), 0, 0, 0, 0, time.UTC) }
	days := day(t).Sub(day(now)).Hours() / 24
	clock := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second + time.Duration(t.Nanosecond())
	return days + clock.Hours()/24
}

// LowerFirst lower-cases only the first character of s.
func LowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
