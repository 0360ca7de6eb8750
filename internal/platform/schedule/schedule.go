// Package schedule computes the next run time for the daily aggregation
// cycle from an HH:MM wall-clock setting.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	// Embed tzdata for environments without zoneinfo.
	_ "time/tzdata"
)

const (
	minutesPerHour = 60
	maxHour        = 23
)

// Static errors for schedule validation.
var (
	ErrTimeFormat     = errors.New("time must be HH:MM")
	ErrInvalidHour    = errors.New("invalid hour")
	ErrInvalidMinute  = errors.New("invalid minute")
	ErrHourOutOfRange = errors.New("hour out of range")
)

// Daily fires once per day at a fixed wall-clock time in a location.
type Daily struct {
	hour   int
	minute int
	loc    *time.Location
}

// ParseDaily parses an HH:MM value. An empty timezone means UTC.
func ParseDaily(value, timezone string) (Daily, error) {
	loc := time.UTC

	if strings.TrimSpace(timezone) != "" {
		parsed, err := time.LoadLocation(timezone)
		if err != nil {
			return Daily{}, fmt.Errorf("invalid timezone: %w", err)
		}

		loc = parsed
	}

	minutes, err := parseTimeHM(value)
	if err != nil {
		return Daily{}, err
	}

	return Daily{hour: minutes / minutesPerHour, minute: minutes % minutesPerHour, loc: loc}, nil
}

// Next returns the first scheduled instant strictly after the given moment.
func (d Daily) Next(after time.Time) time.Time {
	local := after.In(d.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.hour, d.minute, 0, 0, d.loc)

	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}

	return next
}

func parseTimeHM(value string) (int, error) {
	normalized, err := NormalizeTimeHM(value)
	if err != nil {
		return 0, err
	}

	hour, err := strconv.Atoi(normalized[:2])
	if err != nil {
		return 0, ErrInvalidHour
	}

	minute, err := strconv.Atoi(normalized[3:])
	if err != nil {
		return 0, ErrInvalidMinute
	}

	return hour*minutesPerHour + minute, nil
}

// NormalizeTimeHM accepts H:MM or HH:MM and returns HH:MM.
func NormalizeTimeHM(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrTimeFormat
	}

	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return "", ErrTimeFormat
	}

	if len(parts[1]) != 2 {
		return "", ErrTimeFormat
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", ErrInvalidHour
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", ErrInvalidMinute
	}

	if hour > maxHour || hour < 0 {
		return "", ErrHourOutOfRange
	}

	if minute < 0 || minute >= minutesPerHour {
		return "", ErrInvalidMinute
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}
