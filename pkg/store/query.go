/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package store

import (
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Query composes filters from a closed predicate set: equality, membership,
// ranges on started/finished, and URL prefix matching. Repositories accept a
// Query rather than raw bson so callers cannot smuggle arbitrary operators.
type Query struct {
	filter bson.M
}

func NewQuery() *Query {
	return &Query{filter: bson.M{}}
}

func (q *Query) Eq(field string, value interface{}) *Query {
	q.filter[field] = value
	return q
}

func (q *Query) In(field string, values ...string) *Query {
	q.filter[field] = bson.M{"$in": values}
	return q
}

func (q *Query) StartedAfter(t time.Time) *Query {
	q.mergeRange("started", "$gte", t)
	return q
}

func (q *Query) StartedBefore(t time.Time) *Query {
	q.mergeRange("started", "$lt", t)
	return q
}

func (q *Query) FinishedAfter(t time.Time) *Query {
	q.mergeRange("finished", "$gte", t)
	return q
}

func (q *Query) FinishedBefore(t time.Time) *Query {
	q.mergeRange("finished", "$lt", t)
	return q
}

// Unfinished matches documents whose finished field is unset.
func (q *Query) Unfinished() *Query {
	q.filter["finished"] = nil
	return q
}

// UrlPrefix matches url fields beginning with the given literal prefix.
func (q *Query) UrlPrefix(prefix string) *Query {
	q.filter["url"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(prefix)}
	return q
}

func (q *Query) mergeRange(field, op string, t time.Time) {
	if existing, ok := q.filter[field].(bson.M); ok {
		existing[op] = t
		return
	}
	q.filter[field] = bson.M{op: t}
}

func (q *Query) Filter() bson.M {
	return q.filter
}
