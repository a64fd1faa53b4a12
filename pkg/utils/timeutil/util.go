/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package timeutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	TimeRFC3339Short = "2006-01-02T15:04:05"
	TimeRFC3339Milli = "2006-01-02T15:04:05.999Z"
)

func FormatRFC3339(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeRFC3339Short)
}

func ParseRFC3339Milli(timeStr string) (time.Time, error) {
	if timeStr == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(TimeRFC3339Milli, timeStr)
	if err != nil {
		// workers emit both millisecond and plain RFC3339 stamps
		if t, err = time.Parse(time.RFC3339, timeStr); err != nil {
			return time.Time{}, err
		}
	}
	return t.UTC(), nil
}

// ParseCronStandard parses a standard 5-field cron expression and returns the
// schedule plus the seconds until its next firing after now (UTC).
func ParseCronStandard(scheduleStr string) (cron.Schedule, float64, error) {
	if strings.TrimSpace(scheduleStr) == "" {
		return nil, 0, fmt.Errorf("invalid input")
	}
	schedule, err := cron.ParseStandard(scheduleStr)
	if err != nil {
		return nil, 0, err
	}
	now := time.Now().UTC()
	nextTime := schedule.Next(now)
	return schedule, nextTime.Sub(now).Seconds(), nil
}

// YearMonth returns the month key "YYYY-MM" used for execution-second pools.
func YearMonth(t time.Time) string {
	return t.UTC().Format("2006-01")
}
