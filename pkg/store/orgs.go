/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	btrixerrors "github.com/webrecorder/btrix-operator/pkg/errors"
)

type OrgRepo struct {
	coll *mongo.Collection
}

func (r *OrgRepo) GetByID(ctx context.Context, id string) (*Organization, error) {
	var org Organization
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&org)
	if err == mongo.ErrNoDocuments {
		return nil, btrixerrors.NewNotFound("Organization", id)
	}
	if err != nil {
		return nil, btrixerrors.NewInternalError(err.Error())
	}
	return &org, nil
}

func (r *OrgRepo) Find(ctx context.Context, q *Query, sort bson.D, limit int64) ([]*Organization, error) {
	opts := options.Find()
	if sort != nil {
		opts.SetSort(sort)
	}
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.coll.Find(ctx, q.Filter(), opts)
	if err != nil {
		return nil, btrixerrors.NewInternalError(err.Error())
	}
	var orgs []*Organization
	if err = cursor.All(ctx, &orgs); err != nil {
		return nil, btrixerrors.NewInternalError(err.Error())
	}
	return orgs, nil
}

func (r *OrgRepo) Insert(ctx context.Context, org *Organization) error {
	_, err := r.coll.InsertOne(ctx, org)
	if mongo.IsDuplicateKeyError(err) {
		return btrixerrors.NewAlreadyExist("org slug " + org.Slug + " already exists")
	}
	if err != nil {
		return btrixerrors.NewInternalError(err.Error())
	}
	return nil
}

func (r *OrgRepo) Update(ctx context.Context, id string, patch bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": patch})
	if err != nil {
		return btrixerrors.NewInternalError(err.Error())
	}
	if res.MatchedCount == 0 {
		return btrixerrors.NewNotFound("Organization", id)
	}
	return nil
}

// IncCounters applies atomic increments to byte and second counters. Every
// write path touching bytesStored* or the month-keyed pools must come through
// here so concurrent reconciles never lose updates.
func (r *OrgRepo) IncCounters(ctx context.Context, id string, deltas map[string]int64) error {
	if len(deltas) == 0 {
		return nil
	}
	inc := bson.M{}
	for path, delta := range deltas {
		if delta == 0 {
			continue
		}
		inc[path] = delta
	}
	if len(inc) == 0 {
		return nil
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": inc})
	if err != nil {
		return btrixerrors.NewInternalError(err.Error())
	}
	if res.MatchedCount == 0 {
		return btrixerrors.NewNotFound("Organization", id)
	}
	return nil
}

func (r *OrgRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return btrixerrors.NewInternalError(err.Error())
	}
	return nil
}

// IncStorage adjusts bytesStored and the type-specific counter in one atomic
// update. delta is negative on file deletion.
func (r *OrgRepo) IncStorage(ctx context.Context, id, objectType string, delta int64) error {
	if delta == 0 {
		return nil
	}
	deltas := map[string]int64{"bytesStored": delta}
	switch objectType {
	case "crawl":
		deltas["bytesStoredCrawls"] = delta
	case "upload":
		deltas["bytesStoredUploads"] = delta
	case "profile":
		deltas["bytesStoredProfiles"] = delta
	case "seedFile":
		deltas["bytesStoredSeedFiles"] = delta
	case "thumbnail":
		deltas["bytesStoredThumbnails"] = delta
	}
	return r.IncCounters(ctx, id, deltas)
}

// PoolDebit is one month's worth of debits produced by SplitExecSeconds,
// expressed as the exact $inc paths the org document takes.
type PoolDebit struct {
	Monthly int64
	Extra   int64
	Gifted  int64
}

func (d PoolDebit) Total() int64 {
	return d.Monthly + d.Extra + d.Gifted
}

// SplitExecSeconds partitions an execution-second delta across the org's
// pools in priority order: monthly first, then extra, then gifted. Seconds
// that no pool can absorb land in the monthly pool anyway so the usage record
// stays complete; the caller detects exhaustion separately.
func SplitExecSeconds(org *Organization, yymm string, delta int64) PoolDebit {
	if delta <= 0 {
		return PoolDebit{}
	}
	var debit PoolDebit
	remaining := delta

	monthlyRemaining := org.MonthlySecondsRemaining(yymm)
	if monthlyRemaining < 0 {
		// unlimited monthly pool
		debit.Monthly = remaining
		return debit
	}
	if monthlyRemaining > 0 {
		debit.Monthly = min64(remaining, monthlyRemaining)
		remaining -= debit.Monthly
	}
	if remaining > 0 && org.ExtraExecSecondsAvailable > 0 {
		debit.Extra = min64(remaining, org.ExtraExecSecondsAvailable)
		remaining -= debit.Extra
	}
	if remaining > 0 && org.GiftedExecSecondsAvailable > 0 {
		debit.Gifted = min64(remaining, org.GiftedExecSecondsAvailable)
		remaining -= debit.Gifted
	}
	if remaining > 0 {
		debit.Monthly += remaining
	}
	return debit
}

// ApplyExecDebit commits a split debit: month-keyed usage records plus
// drawdown of the extra/gifted available balances.
func (r *OrgRepo) ApplyExecDebit(ctx context.Context, id, yymm string, debit PoolDebit) error {
	deltas := map[string]int64{}
	if debit.Monthly > 0 {
		deltas["monthlyExecSeconds."+yymm] = debit.Monthly
	}
	if debit.Extra > 0 {
		deltas["extraExecSeconds."+yymm] = debit.Extra
		deltas["extraExecSecondsAvailable"] = -debit.Extra
	}
	if debit.Gifted > 0 {
		deltas["giftedExecSeconds."+yymm] = debit.Gifted
		deltas["giftedExecSecondsAvailable"] = -debit.Gifted
	}
	return r.IncCounters(ctx, id, deltas)
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
