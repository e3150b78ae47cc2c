package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func TimeNowUTC() time.Time {
	return time.Now().UTC()
}

// ParseClockTime parses "HH:MM" into hour and minute components.
func ParseClockTime(input string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(input), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock time %q", input)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid hour in %q: %w", input, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid minute in %q: %w", input, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("clock time %q out of range", input)
	}
	return hour, minute, nil
}

// AtClockTime returns t with its time-of-day replaced by hour:minute in t's location.
func AtClockTime(t time.Time, hour, minute int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
}
