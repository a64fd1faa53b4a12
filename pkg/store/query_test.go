/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestQueryComposition(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	q := NewQuery().
		Eq("oid", "o1").
		In("state", "complete", "failed").
		StartedAfter(from).
		StartedBefore(to)

	filter := q.Filter()
	assert.Equal(t, "o1", filter["oid"])
	assert.Equal(t, bson.M{"$in": []string{"complete", "failed"}}, filter["state"])
	assert.Equal(t, bson.M{"$gte": from, "$lt": to}, filter["started"])
}

func TestQueryUnfinished(t *testing.T) {
	filter := NewQuery().Eq("oid", "o1").Unfinished().Filter()
	assert.Nil(t, filter["finished"])
	_, present := filter["finished"]
	assert.True(t, present)
}

func TestQueryUrlPrefixEscapes(t *testing.T) {
	filter := NewQuery().UrlPrefix("https://example.com/a+b?x=1").Filter()
	re, ok := filter["url"].(primitive.Regex)
	assert.True(t, ok)
	assert.Equal(t, `^https://example\.com/a\+b\?x=1`, re.Pattern)
}
