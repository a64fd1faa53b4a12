/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package timeutil

import (
	"testing"
	"time"

	"gotest.tools/assert"
)

func TestParseRFC3339Milli(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expect    time.Time
		expectErr bool
	}{
		{"empty", "", time.Time{}, false},
		{"millis", "2026-08-25T12:00:01.250Z",
			time.Date(2026, 8, 25, 12, 0, 1, 250_000_000, time.UTC), false},
		{"plain rfc3339", "2026-08-25T12:00:01Z",
			time.Date(2026, 8, 25, 12, 0, 1, 0, time.UTC), false},
		{"garbage", "yesterday", time.Time{}, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := ParseRFC3339Milli(test.input)
			if test.expectErr {
				assert.Assert(t, err != nil)
				return
			}
			assert.NilError(t, err)
			assert.Equal(t, got, test.expect)
		})
	}
}

func TestParseCronStandard(t *testing.T) {
	schedule, seconds, err := ParseCronStandard("0 3 * * *")
	assert.NilError(t, err)
	assert.Assert(t, schedule != nil)
	assert.Assert(t, seconds > 0)
	assert.Assert(t, seconds <= 24*60*60)

	_, _, err = ParseCronStandard("")
	assert.Assert(t, err != nil)

	_, _, err = ParseCronStandard("not a cron")
	assert.Assert(t, err != nil)
}

func TestYearMonth(t *testing.T) {
	assert.Equal(t, YearMonth(time.Date(2026, 8, 25, 23, 59, 0, 0, time.UTC)), "2026-08")
	// month keys are UTC, so late local times never roll the month early
	loc := time.FixedZone("UTC+10", 10*3600)
	assert.Equal(t, YearMonth(time.Date(2026, 9, 1, 5, 0, 0, 0, loc)), "2026-08")
}
