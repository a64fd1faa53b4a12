/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

// Package scheduler materializes crawl jobs from workflow cron schedules and
// runs the asynchronous background jobs (replication, deletion cascades,
// stats recalculation) that the reconcile loop must not block on.
package scheduler

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/webrecorder/btrix-operator/pkg/store"
)

// KubeWriter is the slice of client.Client the scheduler needs.
type KubeWriter interface {
	Create(ctx context.Context, obj client.Object, opts ...client.CreateOption) error
	Delete(ctx context.Context, obj client.Object, opts ...client.DeleteOption) error
}

type WorkflowStore interface {
	GetByID(ctx context.Context, id string) (*store.CrawlConfig, error)
	FindScheduled(ctx context.Context) ([]*store.CrawlConfig, error)
	SeedFilesInUse(ctx context.Context) (map[string]bool, error)
	DeleteByOrg(ctx context.Context, oid string) (int64, error)
}

type CrawlStore interface {
	GetByID(ctx context.Context, id string) (*store.Crawl, error)
	Find(ctx context.Context, q *store.Query, sort bson.D, limit int64) ([]*store.Crawl, error)
	Insert(ctx context.Context, crawl *store.Crawl) error
	Update(ctx context.Context, id string, patch bson.M) error
	Delete(ctx context.Context, id string) error
	DeleteByOrg(ctx context.Context, oid string) (int64, error)
	AddFileReplica(ctx context.Context, id, filename string, replica store.FileReplica) (bool, error)
	CountActiveByConfig(ctx context.Context, cid string) (int64, error)
}

type OrgStore interface {
	GetByID(ctx context.Context, id string) (*store.Organization, error)
	Update(ctx context.Context, id string, patch bson.M) error
	Delete(ctx context.Context, id string) error
	IncStorage(ctx context.Context, id, objectType string, delta int64) error
}

type PageStore interface {
	DeleteByCrawl(ctx context.Context, crawlId string) (int64, error)
	DeleteByOrg(ctx context.Context, oid string) (int64, error)
	CountByCrawl(ctx context.Context, crawlId string) (total, errored, files int64, err error)
}

type JobStore interface {
	ClaimPending(ctx context.Context, limit int) ([]*store.BackgroundJob, error)
	MarkFinished(ctx context.Context, id string, success bool) error
	Requeue(ctx context.Context, id string) error
	FailStuck(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteByOrg(ctx context.Context, oid string) (int64, error)
}

type CollectionStore interface {
	DeleteByOrg(ctx context.Context, oid string) (int64, error)
}

type SeedFileStore interface {
	FindCreatedBefore(ctx context.Context, cutoff time.Time) ([]*store.SeedFile, error)
	FindByOrg(ctx context.Context, oid string) ([]*store.SeedFile, error)
	Delete(ctx context.Context, id string) error
	DeleteByOrg(ctx context.Context, oid string) (int64, error)
}

// Stores bundles the repository facets the scheduler uses.
type Stores struct {
	Workflows   WorkflowStore
	Crawls      CrawlStore
	Orgs        OrgStore
	Pages       PageStore
	Jobs        JobStore
	Collections CollectionStore
	SeedFiles   SeedFileStore
}

func NewStores(s *store.Store) *Stores {
	return &Stores{
		Workflows:   s.Configs(),
		Crawls:      s.Crawls(),
		Orgs:        s.Orgs(),
		Pages:       s.Pages(),
		Jobs:        s.Jobs(),
		Collections: s.Collections(),
		SeedFiles:   s.SeedFiles(),
	}
}
