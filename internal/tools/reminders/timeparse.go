// Package reminders implements the reminder_create, reminder_list, and
// reminder_delete tool types from spec §4.5, talking to the REST Data
// Plane (C2) the same way the Reminder Scheduler (C3) does: reminders
// are rows C2 owns, never scheduled or fired by the tool itself.
package reminders

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// parseWhen parses a time specification into an absolute time, grounded
// on the teacher's deleted internal/tools/reminders/set.go helper of the
// same name: relative phrasing ("in 5 minutes"), then a fixed list of
// absolute layouts, assuming today (or tomorrow, if already past) when
// no date component is present.
func parseWhen(when string) (time.Time, error) {
	when = strings.TrimSpace(strings.ToLower(when))

	if strings.HasPrefix(when, "in ") {
		return parseRelativeTime(strings.TrimPrefix(when, "in "))
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"Jan 2 15:04",
		"Jan 2 3:04 PM",
		"3:04 PM",
		"15:04",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, when); err == nil {
			if t.Year() == 0 {
				now := time.Now()
				t = time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.Local)
				if t.Before(now) {
					t = t.Add(24 * time.Hour)
				}
			}
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("could not parse time: %s", when)
}

var relativeTimePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(seconds?|minutes?|mins?|hours?|hrs?|days?|weeks?)$`)

func parseRelativeTime(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.ToLower(s))

	matches := relativeTimePattern.FindStringSubmatch(s)
	if matches == nil {
		return time.Time{}, fmt.Errorf("invalid relative time: %s", s)
	}

	amount, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid number: %s", matches[1])
	}

	unit := matches[2]
	var duration time.Duration

	switch {
	case strings.HasPrefix(unit, "second"):
		duration = time.Duration(amount * float64(time.Second))
	case strings.HasPrefix(unit, "min"):
		duration = time.Duration(amount * float64(time.Minute))
	case strings.HasPrefix(unit, "hour"), strings.HasPrefix(unit, "hr"):
		duration = time.Duration(amount * float64(time.Hour))
	case strings.HasPrefix(unit, "day"):
		duration = time.Duration(amount * float64(24*time.Hour))
	case strings.HasPrefix(unit, "week"):
		duration = time.Duration(amount * float64(7*24*time.Hour))
	default:
		return time.Time{}, fmt.Errorf("unknown unit: %s", unit)
	}

	return time.Now().Add(duration), nil
}

// translateCronHourToUTC converts a 5-field cron expression's hour field
// from the given IANA timezone to UTC, relative to the current
// wall-clock day, leaving every other field (including non-numeric hour
// fields like "*", lists, ranges, and steps) unchanged. Grounded on
// spec §4.3's creation-time translation step.
func translateCronHourToUTC(cronExpr, timezone string) (string, error) {
	fields := strings.Fields(cronExpr)
	if len(fields) != 5 {
		return "", fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}
	if timezone == "" {
		return cronExpr, nil
	}

	hour, err := strconv.Atoi(fields[1])
	if err != nil {
		// Non-numeric hour field (*, list, range, step) passes through unchanged.
		return cronExpr, nil
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return "", fmt.Errorf("unknown timezone %q: %w", timezone, err)
	}

	now := time.Now().In(loc)
	local := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, loc)
	utcHour := local.UTC().Hour()

	fields[1] = strconv.Itoa(utcHour)
	return strings.Join(fields, " "), nil
}
