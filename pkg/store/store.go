/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package store

import (
	"context"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"k8s.io/klog/v2"
)

const (
	collCrawls      = "crawls"
	collConfigs     = "crawl_configs"
	collOrgs        = "organizations"
	collPages       = "pages"
	collJobs        = "jobs"
	collCollections = "collections"
	collInvites     = "invites"
	collSeedFiles   = "seed_files"

	connectTimeout = 10 * time.Second
	inviteTTL      = 7 * 24 * time.Hour
)

// Store is the handle to the progress database. All repositories share one
// underlying client.
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	crawls      *CrawlRepo
	configs     *CrawlConfigRepo
	orgs        *OrgRepo
	pages       *PageRepo
	jobs        *BackgroundJobRepo
	collections *CollectionRepo
	seedFiles   *SeedFileRepo
}

// Connect opens the database, verifies connectivity and bootstraps the
// required indices.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "connect progress store")
	}
	if err = client.Ping(cctx, readpref.Primary()); err != nil {
		return nil, pkgerrors.Wrap(err, "ping progress store")
	}

	s := &Store{client: client, db: client.Database(dbName)}
	s.crawls = &CrawlRepo{coll: s.db.Collection(collCrawls)}
	s.configs = &CrawlConfigRepo{coll: s.db.Collection(collConfigs)}
	s.orgs = &OrgRepo{coll: s.db.Collection(collOrgs)}
	s.pages = &PageRepo{coll: s.db.Collection(collPages)}
	s.jobs = &BackgroundJobRepo{coll: s.db.Collection(collJobs)}
	s.collections = &CollectionRepo{coll: s.db.Collection(collCollections)}
	s.seedFiles = &SeedFileRepo{coll: s.db.Collection(collSeedFiles)}

	if err = s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	klog.Infof("connected to progress store, db: %s", dbName)
	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Crawls() *CrawlRepo            { return s.crawls }
func (s *Store) Configs() *CrawlConfigRepo     { return s.configs }
func (s *Store) Orgs() *OrgRepo                { return s.orgs }
func (s *Store) Pages() *PageRepo              { return s.pages }
func (s *Store) Jobs() *BackgroundJobRepo      { return s.jobs }
func (s *Store) Collections() *CollectionRepo  { return s.collections }
func (s *Store) SeedFiles() *SeedFileRepo      { return s.seedFiles }

var caseInsensitive = options.Collation{Locale: "en", Strength: 2}

func (s *Store) ensureIndexes(ctx context.Context) error {
	type indexSet struct {
		coll    string
		indexes []mongo.IndexModel
	}
	sets := []indexSet{
		{collOrgs, []mongo.IndexModel{{
			Keys: bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true).SetCollation(&caseInsensitive),
		}}},
		{collCollections, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "oid", Value: 1}, {Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true).SetCollation(&caseInsensitive),
			},
			{
				Keys:    bson.D{{Key: "oid", Value: 1}, {Key: "slug", Value: 1}},
				Options: options.Index().SetUnique(true).SetCollation(&caseInsensitive),
			},
		}},
		{collPages, []mongo.IndexModel{
			{Keys: bson.D{{Key: "crawl_id", Value: 1}}},
			{Keys: bson.D{
				{Key: "crawl_id", Value: 1},
				{Key: "url", Value: 1},
				{Key: "ts", Value: 1},
			}},
		}},
		{collCrawls, []mongo.IndexModel{{
			Keys: bson.D{
				{Key: "oid", Value: 1},
				{Key: "type", Value: 1},
				{Key: "finished", Value: 1},
			},
		}}},
		{collJobs, []mongo.IndexModel{{
			Keys: bson.D{
				{Key: "type", Value: 1},
				{Key: "success", Value: 1},
				{Key: "finished", Value: 1},
			},
		}}},
		{collInvites, []mongo.IndexModel{{
			Keys:    bson.D{{Key: "created", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(inviteTTL.Seconds())),
		}}},
	}

	for _, set := range sets {
		if _, err := s.db.Collection(set.coll).Indexes().CreateMany(ctx, set.indexes); err != nil {
			return pkgerrors.Wrapf(err, "create indexes for %s", set.coll)
		}
	}
	return nil
}
