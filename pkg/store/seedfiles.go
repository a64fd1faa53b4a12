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

	btrixerrors "github.com/webrecorder/btrix-operator/pkg/errors"
)

type SeedFileRepo struct {
	coll *mongo.Collection
}

func (r *SeedFileRepo) GetByID(ctx context.Context, id string) (*SeedFile, error) {
	var file SeedFile
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&file)
	if err == mongo.ErrNoDocuments {
		return nil, btrixerrors.NewNotFound("SeedFile", id)
	}
	if err != nil {
		return nil, btrixerrors.NewInternalError(err.Error())
	}
	return &file, nil
}

func (r *SeedFileRepo) Insert(ctx context.Context, file *SeedFile) error {
	if file.Created.IsZero() {
		file.Created = time.Now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, file); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return btrixerrors.NewAlreadyExist("seed file " + file.Id + " already exists")
		}
		return btrixerrors.NewInternalError(err.Error())
	}
	return nil
}

// FindCreatedBefore returns seed files uploaded before the cutoff. Recent
// uploads are excluded so a file is not collected between upload and the
// workflow save that references it.
func (r *SeedFileRepo) FindCreatedBefore(ctx context.Context, cutoff time.Time) ([]*SeedFile, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"created": bson.M{"$lt": cutoff}})
	if err != nil {
		return nil, btrixerrors.NewInternalError(err.Error())
	}
	var files []*SeedFile
	if err = cursor.All(ctx, &files); err != nil {
		return nil, btrixerrors.NewInternalError(err.Error())
	}
	return files, nil
}

func (r *SeedFileRepo) FindByOrg(ctx context.Context, oid string) ([]*SeedFile, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"oid": oid})
	if err != nil {
		return nil, btrixerrors.NewInternalError(err.Error())
	}
	var files []*SeedFile
	if err = cursor.All(ctx, &files); err != nil {
		return nil, btrixerrors.NewInternalError(err.Error())
	}
	return files, nil
}

func (r *SeedFileRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return btrixerrors.NewInternalError(err.Error())
	}
	return nil
}

func (r *SeedFileRepo) DeleteByOrg(ctx context.Context, oid string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"oid": oid})
	if err != nil {
		return 0, btrixerrors.NewInternalError(err.Error())
	}
	return res.DeletedCount, nil
}
