package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Regular session of US equity markets, in the market timezone
const (
	MarketOpenTime  = 9*time.Hour + 30*time.Minute
	MarketCloseTime = 16 * time.Hour
)

// Rule is a trigger time relative to the trading session.
// Holidays and half days are not modeled.
type Rule struct {
	times []time.Duration // time of day
	days  string          // cron day-of-week field
	desc  string
}

// MarketOpen fires offset after the open on every trading day
func MarketOpen(offset time.Duration) Rule {
	return Rule{
		times: []time.Duration{MarketOpenTime + offset},
		days:  "MON-FRI",
		desc:  "market open + " + fmtOffset(offset),
	}
}

// MarketClose fires offset before the close on every trading day
func MarketClose(offset time.Duration) Rule {
	return Rule{
		times: []time.Duration{MarketCloseTime - offset},
		days:  "MON-FRI",
		desc:  "market close - " + fmtOffset(offset),
	}
}

// BeforeOpen fires lead before the open on every trading day
func BeforeOpen(lead time.Duration) Rule {
	return Rule{
		times: []time.Duration{MarketOpenTime - lead},
		days:  "MON-FRI",
		desc:  "market open - " + fmtOffset(lead),
	}
}

// Every fires count times, interval apart, starting first after the open
func Every(first, interval time.Duration, count int) Rule {
	times := make([]time.Duration, 0, count)
	for i := 0; i < count; i++ {
		times = append(times, MarketOpenTime+first+time.Duration(i)*interval)
	}
	return Rule{
		times: times,
		days:  "MON-FRI",
		desc:  fmt.Sprintf("every %s from market open + %s (%d times)", fmtOffset(interval), fmtOffset(first), count),
	}
}

// EveryMinute fires on every minute of the session
func EveryMinute() Rule {
	var times []time.Duration
	for t := MarketOpenTime; t < MarketCloseTime; t += time.Minute {
		times = append(times, t)
	}
	return Rule{times: times, days: "MON-FRI", desc: "every minute"}
}

// WeekStart restricts the rule to the first weekday of the week
func (r Rule) WeekStart() Rule {
	r.days = "MON"
	r.desc += " on week start"
	return r
}

// String describes the rule
func (r Rule) String() string {
	return r.desc
}

// Spec returns the rule as a schedule string accepted by Parse
func (r Rule) Spec() string {
	byHour := make(map[int][]int)
	for _, t := range r.times {
		h := int(t / time.Hour)
		m := int(t % time.Hour / time.Minute)
		byHour[h] = append(byHour[h], m)
	}

	hours := make([]int, 0, len(byHour))
	for h := range byHour {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	specs := make([]string, 0, len(hours))
	for _, h := range hours {
		specs = append(specs, fmt.Sprintf("0 %s %d * * %s", compressMinutes(byHour[h]), h, r.days))
	}
	return JoinSpecs(specs...)
}

// compressMinutes renders minutes as a cron list, folding runs into ranges
func compressMinutes(minutes []int) string {
	sort.Ints(minutes)

	var parts []string
	for i := 0; i < len(minutes); {
		j := i
		for j+1 < len(minutes) && minutes[j+1] == minutes[j]+1 {
			j++
		}
		if j > i {
			parts = append(parts, fmt.Sprintf("%d-%d", minutes[i], minutes[j]))
		} else {
			parts = append(parts, strconv.Itoa(minutes[i]))
		}
		i = j + 1
	}
	return strings.Join(parts, ",")
}

func fmtOffset(d time.Duration) string {
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh%dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}

// InSession reports whether t, in the market timezone, falls within the
// regular session of a weekday
func InSession(t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	y, mo, d := t.Date()
	midnight := time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
	tod := t.Sub(midnight)
	return tod >= MarketOpenTime && tod < MarketCloseTime
}

// MarketDay returns the calendar day of t in loc, at midnight
func MarketDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
