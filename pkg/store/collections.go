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

type CollectionRepo struct {
	coll *mongo.Collection
}

func (r *CollectionRepo) GetByID(ctx context.Context, id string) (*Collection, error) {
	var c Collection
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, btrixerrors.NewNotFound("Collection", id)
	}
	if err != nil {
		return nil, btrixerrors.NewInternalError(err.Error())
	}
	return &c, nil
}

func (r *CollectionRepo) Find(ctx context.Context, q *Query, sort bson.D, limit int64) ([]*Collection, error) {
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
	var collections []*Collection
	if err = cursor.All(ctx, &collections); err != nil {
		return nil, btrixerrors.NewInternalError(err.Error())
	}
	return collections, nil
}

func (r *CollectionRepo) Insert(ctx context.Context, c *Collection) error {
	if _, err := r.coll.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return btrixerrors.NewAlreadyExist("collection " + c.Name + " already exists in org")
		}
		return btrixerrors.NewInternalError(err.Error())
	}
	return nil
}

func (r *CollectionRepo) Update(ctx context.Context, id string, patch bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": patch})
	if err != nil {
		return btrixerrors.NewInternalError(err.Error())
	}
	if res.MatchedCount == 0 {
		return btrixerrors.NewNotFound("Collection", id)
	}
	return nil
}

func (r *CollectionRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return btrixerrors.NewInternalError(err.Error())
	}
	return nil
}

func (r *CollectionRepo) DeleteByOrg(ctx context.Context, oid string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"oid": oid})
	if err != nil {
		return 0, btrixerrors.NewInternalError(err.Error())
	}
	return res.DeletedCount, nil
}

// AddCrawl appends a finished crawl to the named auto-add collections and
// bumps their aggregates.
func (r *CollectionRepo) AddCrawl(ctx context.Context, oid, crawlId string, names []string, size, pageCount int64) error {
	if len(names) == 0 {
		return nil
	}
	_, err := r.coll.UpdateMany(ctx,
		bson.M{"oid": oid, "name": bson.M{"$in": names}, "crawlIds": bson.M{"$ne": crawlId}},
		bson.M{
			"$push": bson.M{"crawlIds": crawlId},
			"$inc":  bson.M{"totalSize": size, "pageCount": pageCount},
			"$set":  bson.M{"modified": time.Now().UTC()},
		})
	if err != nil {
		return btrixerrors.NewInternalError(err.Error())
	}
	return nil
}
