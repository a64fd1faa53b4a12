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

type CrawlRepo struct {
	coll *mongo.Collection
}

func (r *CrawlRepo) GetByID(ctx context.Context, id string) (*Crawl, error) {
	var crawl Crawl
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&crawl)
	if err == mongo.ErrNoDocuments {
		return nil, btrixerrors.NewNotFound("Crawl", id)
	}
	if err != nil {
		return nil, btrixerrors.NewInternalError(err.Error())
	}
	return &crawl, nil
}

func (r *CrawlRepo) Find(ctx context.Context, q *Query, sort bson.D, limit int64) ([]*Crawl, error) {
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
	var crawls []*Crawl
	if err = cursor.All(ctx, &crawls); err != nil {
		return nil, btrixerrors.NewInternalError(err.Error())
	}
	return crawls, nil
}

func (r *CrawlRepo) Insert(ctx context.Context, crawl *Crawl) error {
	_, err := r.coll.InsertOne(ctx, crawl)
	if mongo.IsDuplicateKeyError(err) {
		return btrixerrors.NewAlreadyExist("crawl " + crawl.Id + " already exists")
	}
	if err != nil {
		return btrixerrors.NewInternalError(err.Error())
	}
	return nil
}

func (r *CrawlRepo) Update(ctx context.Context, id string, patch bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": patch})
	if err != nil {
		return btrixerrors.NewInternalError(err.Error())
	}
	if res.MatchedCount == 0 {
		return btrixerrors.NewNotFound("Crawl", id)
	}
	return nil
}

func (r *CrawlRepo) IncCounters(ctx context.Context, id string, deltas map[string]int64) error {
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

func (r *CrawlRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return btrixerrors.NewInternalError(err.Error())
	}
	return nil
}

func (r *CrawlRepo) DeleteByOrg(ctx context.Context, oid string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"oid": oid})
	if err != nil {
		return 0, btrixerrors.NewInternalError(err.Error())
	}
	return res.DeletedCount, nil
}

// AddFile appends a finalized WACZ record, skipping files whose hash is
// already registered on the crawl. Returns true if the file was added.
func (r *CrawlRepo) AddFile(ctx context.Context, id string, file CrawlFile) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "files.hash": bson.M{"$ne": file.Hash}},
		bson.M{"$push": bson.M{"files": file}})
	if err != nil {
		return false, btrixerrors.NewInternalError(err.Error())
	}
	return res.ModifiedCount > 0, nil
}

// AddFileReplica records a completed replica copy on the matching file.
// Idempotence is scoped to that file via an array filter: a top-level $ne on
// files.replicas.name would veto the push whenever any other file of the
// crawl already carries a replica with the same name. Returns true if the
// replica was recorded.
func (r *CrawlRepo) AddFileReplica(ctx context.Context, id, filename string, replica FileReplica) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "files.filename": filename},
		bson.M{"$push": bson.M{"files.$[f].replicas": replica}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{
				"f.filename":      filename,
				"f.replicas.name": bson.M{"$ne": replica.Name},
			}},
		}))
	if err != nil {
		return false, btrixerrors.NewInternalError(err.Error())
	}
	return res.ModifiedCount > 0, nil
}

// MarkFinished records the terminal state. It only matches unfinished
// documents, so a replayed finalization is a no-op.
func (r *CrawlRepo) MarkFinished(ctx context.Context, id, state string, finished time.Time, stats CrawlStats) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "finished": nil},
		bson.M{"$set": bson.M{
			"state":    state,
			"finished": finished,
			"stats":    stats,
		}})
	if err != nil {
		return false, btrixerrors.NewInternalError(err.Error())
	}
	return res.ModifiedCount > 0, nil
}

// CountActive returns the number of unfinished crawls in the org, used for
// the concurrent-crawl admission gate.
func (r *CrawlRepo) CountActive(ctx context.Context, oid string) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{"oid": oid, "finished": nil})
	if err != nil {
		return 0, btrixerrors.NewInternalError(err.Error())
	}
	return count, nil
}

// CountActiveByConfig returns the number of unfinished crawls materialized
// from the given workflow. A schedule never starts a second instance while
// the previous one still runs.
func (r *CrawlRepo) CountActiveByConfig(ctx context.Context, cid string) (int64, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{"cid": cid, "finished": nil})
	if err != nil {
		return 0, btrixerrors.NewInternalError(err.Error())
	}
	return count, nil
}
