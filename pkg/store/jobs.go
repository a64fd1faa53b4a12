/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	btrixerrors "github.com/webrecorder/btrix-operator/pkg/errors"
)

type BackgroundJobRepo struct {
	coll *mongo.Collection
}

func (r *BackgroundJobRepo) GetByID(ctx context.Context, id string) (*BackgroundJob, error) {
	var job BackgroundJob
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if err == mongo.ErrNoDocuments {
		return nil, btrixerrors.NewNotFound("BackgroundJob", id)
	}
	if err != nil {
		return nil, btrixerrors.NewInternalError(err.Error())
	}
	return &job, nil
}

func (r *BackgroundJobRepo) Find(ctx context.Context, q *Query, sort bson.D, limit int64) ([]*BackgroundJob, error) {
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
	var jobs []*BackgroundJob
	if err = cursor.All(ctx, &jobs); err != nil {
		return nil, btrixerrors.NewInternalError(err.Error())
	}
	return jobs, nil
}

func (r *BackgroundJobRepo) Insert(ctx context.Context, job *BackgroundJob) error {
	if job.Id == "" {
		job.Id = uuid.NewString()
	}
	if job.Started.IsZero() {
		job.Started = time.Now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, job); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return btrixerrors.NewAlreadyExist("job " + job.Id + " already exists")
		}
		return btrixerrors.NewInternalError(err.Error())
	}
	return nil
}

func (r *BackgroundJobRepo) Update(ctx context.Context, id string, patch bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": patch})
	if err != nil {
		return btrixerrors.NewInternalError(err.Error())
	}
	if res.MatchedCount == 0 {
		return btrixerrors.NewNotFound("BackgroundJob", id)
	}
	return nil
}

func (r *BackgroundJobRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return btrixerrors.NewInternalError(err.Error())
	}
	return nil
}

func (r *BackgroundJobRepo) DeleteByOrg(ctx context.Context, oid string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"oid": oid})
	if err != nil {
		return 0, btrixerrors.NewInternalError(err.Error())
	}
	return res.DeletedCount, nil
}

// ClaimPending atomically marks up to limit unfinished, unclaimed jobs as
// claimed by this worker run and returns them. Claiming is an attempt
// counter bump so a crashed worker's claim expires via stuck-job recovery.
func (r *BackgroundJobRepo) ClaimPending(ctx context.Context, limit int) ([]*BackgroundJob, error) {
	var claimed []*BackgroundJob
	for i := 0; i < limit; i++ {
		var job BackgroundJob
		err := r.coll.FindOneAndUpdate(ctx,
			bson.M{"finished": nil, "attempts": bson.M{"$lt": 1}},
			bson.M{"$inc": bson.M{"attempts": 1}},
			options.FindOneAndUpdate().
				SetSort(bson.D{{Key: "started", Value: 1}}).
				SetReturnDocument(options.After),
		).Decode(&job)
		if err == mongo.ErrNoDocuments {
			break
		}
		if err != nil {
			return claimed, btrixerrors.NewInternalError(err.Error())
		}
		claimed = append(claimed, &job)
	}
	return claimed, nil
}

// MarkFinished records the outcome. Once finished is set the outcome is
// final; re-marking an already finished job is a no-op.
func (r *BackgroundJobRepo) MarkFinished(ctx context.Context, id string, success bool) error {
	now := time.Now().UTC()
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "finished": nil},
		bson.M{"$set": bson.M{"finished": now, "success": success}})
	if err != nil {
		return btrixerrors.NewInternalError(err.Error())
	}
	return nil
}

// Requeue clears the claim on an unfinished job so the next poll retries it.
func (r *BackgroundJobRepo) Requeue(ctx context.Context, id string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "finished": nil},
		bson.M{"$set": bson.M{"attempts": 0}})
	if err != nil {
		return btrixerrors.NewInternalError(err.Error())
	}
	return nil
}

// FailStuck marks jobs that started before the cutoff and never finished as
// failed so they become visible for manual retry.
func (r *BackgroundJobRepo) FailStuck(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC()
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"finished": nil, "started": bson.M{"$lt": cutoff}},
		bson.M{"$set": bson.M{"finished": now, "success": false}})
	if err != nil {
		return 0, btrixerrors.NewInternalError(err.Error())
	}
	return res.ModifiedCount, nil
}
