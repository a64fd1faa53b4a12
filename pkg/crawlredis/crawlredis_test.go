/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package crawlredis

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatDecode(t *testing.T) {
	raw := `{"pagesDone": 42, "size": 1048576, "lastPageTime": "2026-08-25T10:30:00.123Z", "state": "running"}`

	var hb Heartbeat
	require.NoError(t, json.Unmarshal([]byte(raw), &hb))
	assert.Equal(t, int64(42), hb.PagesDone)
	assert.Equal(t, int64(1048576), hb.Size)
	assert.Equal(t, "running", hb.State)

	last, err := hb.LastPage()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 25, 10, 30, 0, 123000000, time.UTC), last)
}

func TestHeartbeatLastPagePlainRFC3339(t *testing.T) {
	hb := Heartbeat{LastPageTime: "2026-08-25T10:30:00Z"}
	last, err := hb.LastPage()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC), last)
}

func TestHeartbeatLastPageEmpty(t *testing.T) {
	hb := Heartbeat{}
	last, err := hb.LastPage()
	require.NoError(t, err)
	assert.True(t, last.IsZero())
}

func TestPageEntryDecode(t *testing.T) {
	raw := `{"id": "p1", "url": "https://webrecorder.net/", "ts": "2026-08-25T10:00:00Z",
		"title": "Webrecorder", "loadState": 4, "status": 200, "mime": "text/html",
		"depth": 0, "seed": true}`

	var entry PageEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &entry))
	assert.Equal(t, "p1", entry.Id)
	assert.True(t, entry.Seed)
	assert.False(t, entry.IsError)
	assert.Equal(t, 200, entry.Status)
}
