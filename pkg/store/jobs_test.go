/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestBackgroundJobMarshalsZeroAttempts(t *testing.T) {
	job := &BackgroundJob{
		Id:      "j1",
		Type:    "create-replica",
		Oid:     "o1",
		Started: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
	}

	raw, err := bson.Marshal(job)
	require.NoError(t, err)

	var doc bson.M
	require.NoError(t, bson.Unmarshal(raw, &doc))

	// a fresh job must carry attempts=0 explicitly: the claim filter uses
	// {"attempts": {"$lt": 1}} and a missing field would never match it
	got, ok := doc["attempts"]
	require.True(t, ok, "attempts field missing from marshaled job")
	assert.EqualValues(t, 0, got)
}
