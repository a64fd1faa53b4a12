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

type PageRepo struct {
	coll *mongo.Collection
}

func (r *PageRepo) GetByID(ctx context.Context, id string) (*Page, error) {
	var page Page
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&page)
	if err == mongo.ErrNoDocuments {
		return nil, btrixerrors.NewNotFound("Page", id)
	}
	if err != nil {
		return nil, btrixerrors.NewInternalError(err.Error())
	}
	return &page, nil
}

func (r *PageRepo) Find(ctx context.Context, q *Query, sort bson.D, limit int64) ([]*Page, error) {
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
	var pages []*Page
	if err = cursor.All(ctx, &pages); err != nil {
		return nil, btrixerrors.NewInternalError(err.Error())
	}
	return pages, nil
}

func (r *PageRepo) Insert(ctx context.Context, page *Page) error {
	if _, err := r.coll.InsertOne(ctx, page); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return btrixerrors.NewAlreadyExist("page " + page.Id + " already exists")
		}
		return btrixerrors.NewInternalError(err.Error())
	}
	return nil
}

// UpsertBatch writes drained page records, deduplicating by (crawlId, url,
// ts) so a replayed drain never inflates uniquePageCount. Returns the number
// of pages that were new.
func (r *PageRepo) UpsertBatch(ctx context.Context, pages []*Page) (int64, error) {
	if len(pages) == 0 {
		return 0, nil
	}
	models := make([]mongo.WriteModel, 0, len(pages))
	for _, page := range pages {
		filter := bson.M{"crawl_id": page.CrawlId, "url": page.Url, "ts": page.Ts}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(bson.M{"$setOnInsert": page}).
			SetUpsert(true))
	}
	res, err := r.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, btrixerrors.NewInternalError(err.Error())
	}
	return res.UpsertedCount, nil
}

func (r *PageRepo) Update(ctx context.Context, id string, patch bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": patch})
	if err != nil {
		return btrixerrors.NewInternalError(err.Error())
	}
	if res.MatchedCount == 0 {
		return btrixerrors.NewNotFound("Page", id)
	}
	return nil
}

func (r *PageRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return btrixerrors.NewInternalError(err.Error())
	}
	return nil
}

func (r *PageRepo) DeleteByCrawl(ctx context.Context, crawlId string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"crawl_id": crawlId})
	if err != nil {
		return 0, btrixerrors.NewInternalError(err.Error())
	}
	return res.DeletedCount, nil
}

func (r *PageRepo) DeleteByOrg(ctx context.Context, oid string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"oid": oid})
	if err != nil {
		return 0, btrixerrors.NewInternalError(err.Error())
	}
	return res.DeletedCount, nil
}

// CountByCrawl returns total, error and file page counts for one crawl.
func (r *PageRepo) CountByCrawl(ctx context.Context, crawlId string) (total, errored, files int64, err error) {
	total, err = r.coll.CountDocuments(ctx, bson.M{"crawl_id": crawlId})
	if err != nil {
		return 0, 0, 0, btrixerrors.NewInternalError(err.Error())
	}
	errored, err = r.coll.CountDocuments(ctx, bson.M{"crawl_id": crawlId, "isError": true})
	if err != nil {
		return 0, 0, 0, btrixerrors.NewInternalError(err.Error())
	}
	files, err = r.coll.CountDocuments(ctx, bson.M{"crawl_id": crawlId, "isFile": true})
	if err != nil {
		return 0, 0, 0, btrixerrors.NewInternalError(err.Error())
	}
	return total, errored, files, nil
}
