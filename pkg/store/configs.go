/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	btrixerrors "github.com/webrecorder/btrix-operator/pkg/errors"
)

type CrawlConfigRepo struct {
	coll *mongo.Collection
}

func (r *CrawlConfigRepo) GetByID(ctx context.Context, id string) (*CrawlConfig, error) {
	var config CrawlConfig
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&config)
	if err == mongo.ErrNoDocuments {
		return nil, btrixerrors.NewNotFound("CrawlConfig", id)
	}
	if err != nil {
		return nil, btrixerrors.NewInternalError(err.Error())
	}
	return &config, nil
}

func (r *CrawlConfigRepo) Find(ctx context.Context, q *Query, sort bson.D, limit int64) ([]*CrawlConfig, error) {
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
	var configs []*CrawlConfig
	if err = cursor.All(ctx, &configs); err != nil {
		return nil, btrixerrors.NewInternalError(err.Error())
	}
	return configs, nil
}

// FindScheduled returns all active workflows carrying a cron expression.
func (r *CrawlConfigRepo) FindScheduled(ctx context.Context) ([]*CrawlConfig, error) {
	filter := bson.M{
		"schedule": bson.M{"$nin": bson.A{nil, ""}},
		"inactive": bson.M{"$ne": true},
	}
	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, btrixerrors.NewInternalError(err.Error())
	}
	var configs []*CrawlConfig
	if err = cursor.All(ctx, &configs); err != nil {
		return nil, btrixerrors.NewInternalError(err.Error())
	}
	return configs, nil
}

func (r *CrawlConfigRepo) Insert(ctx context.Context, config *CrawlConfig) error {
	if _, err := r.coll.InsertOne(ctx, config); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return btrixerrors.NewAlreadyExist("workflow " + config.Id + " already exists")
		}
		return btrixerrors.NewInternalError(err.Error())
	}
	return nil
}

func (r *CrawlConfigRepo) Update(ctx context.Context, id string, patch bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": patch})
	if err != nil {
		return btrixerrors.NewInternalError(err.Error())
	}
	if res.MatchedCount == 0 {
		return btrixerrors.NewNotFound("CrawlConfig", id)
	}
	return nil
}

func (r *CrawlConfigRepo) IncCounters(ctx context.Context, id string, deltas map[string]int64) error {
	if len(deltas) == 0 {
		return nil
	}
	inc := bson.M{}
	for path, delta := range deltas {
		inc[path] = delta
	}
	if _, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": inc}); err != nil {
		return btrixerrors.NewInternalError(err.Error())
	}
	return nil
}

func (r *CrawlConfigRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return btrixerrors.NewInternalError(err.Error())
	}
	return nil
}

func (r *CrawlConfigRepo) DeleteByOrg(ctx context.Context, oid string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"oid": oid})
	if err != nil {
		return 0, btrixerrors.NewInternalError(err.Error())
	}
	return res.DeletedCount, nil
}

// RecordCrawlFinished updates the workflow's derived aggregates after a
// referencing crawl reaches a terminal state.
func (r *CrawlConfigRepo) RecordCrawlFinished(ctx context.Context, id, crawlId, state, startedBy string, finished time.Time, size int64, successful bool) error {
	set := bson.M{
		"lastCrawlId":    crawlId,
		"lastCrawlState": state,
		"lastCrawlTime":  finished,
	}
	if startedBy != "" {
		set["lastStartedBy"] = startedBy
	}
	inc := bson.M{
		"crawlCount": int64(1),
		"totalSize":  size,
	}
	if successful {
		inc["crawlSuccessfulCount"] = int64(1)
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set, "$inc": inc})
	if err != nil {
		return btrixerrors.NewInternalError(err.Error())
	}
	if res.MatchedCount == 0 {
		return btrixerrors.NewNotFound("CrawlConfig", id)
	}
	return nil
}

// SeedFilesInUse returns the set of seed-file ids referenced by any workflow,
// used by the cleanup-seed-files job.
func (r *CrawlConfigRepo) SeedFilesInUse(ctx context.Context) (map[string]bool, error) {
	cursor, err := r.coll.Find(ctx,
		bson.M{"seedFileId": bson.M{"$nin": bson.A{nil, ""}}},
		options.Find().SetProjection(bson.M{"seedFileId": 1}))
	if err != nil {
		return nil, btrixerrors.NewInternalError(err.Error())
	}
	var refs []struct {
		SeedFileId string `bson:"seedFileId"`
	}
	if err = cursor.All(ctx, &refs); err != nil {
		return nil, btrixerrors.NewInternalError(err.Error())
	}
	inUse := make(map[string]bool, len(refs))
	for _, ref := range refs {
		inUse[ref.SeedFileId] = true
	}
	return inUse, nil
}
