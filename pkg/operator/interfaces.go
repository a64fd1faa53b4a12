/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package operator

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/webrecorder/btrix-operator/pkg/crawlredis"
	"github.com/webrecorder/btrix-operator/pkg/store"
)

// CrawlChannel is the slice of the per-crawl Redis keyspace the reconciler
// touches. Satisfied by *crawlredis.Client; faked in tests.
type CrawlChannel interface {
	ReadHeartbeats(ctx context.Context, crawlId string, podCount int) (map[int]*crawlredis.Heartbeat, error)
	DrainPages(ctx context.Context, crawlId string, batch int) ([]*crawlredis.PageEntry, error)
	DrainFiles(ctx context.Context, crawlId string) ([]*crawlredis.FileEntry, error)
	PagesFound(ctx context.Context, crawlId string) (int64, error)
	CrawlSize(ctx context.Context, crawlId string) (int64, error)
	SetStop(ctx context.Context, crawlId string) error
	SetPause(ctx context.Context, crawlId string) error
	ClearPause(ctx context.Context, crawlId string) error
	DeleteCrawlKeys(ctx context.Context, crawlId string, podCount int) error
}

// ChannelFactory opens the channel for one crawl. Each crawl has its own
// redis pod, so the connection is resolved per crawl id.
type ChannelFactory func(crawlId string) (CrawlChannel, error)

type OrgStore interface {
	GetByID(ctx context.Context, id string) (*store.Organization, error)
	ApplyExecDebit(ctx context.Context, id, yymm string, debit store.PoolDebit) error
	IncStorage(ctx context.Context, id, objectType string, delta int64) error
}

type CrawlStore interface {
	GetByID(ctx context.Context, id string) (*store.Crawl, error)
	Update(ctx context.Context, id string, patch bson.M) error
	IncCounters(ctx context.Context, id string, deltas map[string]int64) error
	AddFile(ctx context.Context, id string, file store.CrawlFile) (bool, error)
	MarkFinished(ctx context.Context, id, state string, finished time.Time, stats store.CrawlStats) (bool, error)
	CountActive(ctx context.Context, oid string) (int64, error)
}

type ConfigStore interface {
	GetByID(ctx context.Context, id string) (*store.CrawlConfig, error)
	RecordCrawlFinished(ctx context.Context, id, crawlId, state, startedBy string, finished time.Time, size int64, successful bool) error
}

type PageStore interface {
	UpsertBatch(ctx context.Context, pages []*store.Page) (int64, error)
}

type JobStore interface {
	Insert(ctx context.Context, job *store.BackgroundJob) error
}

type CollectionStore interface {
	AddCrawl(ctx context.Context, oid, crawlId string, names []string, size, pageCount int64) error
}

// Stores bundles the progress-store repositories the operator uses.
type Stores struct {
	Orgs        OrgStore
	Crawls      CrawlStore
	Configs     ConfigStore
	Pages       PageStore
	Jobs        JobStore
	Collections CollectionStore
}

// NewStores adapts the concrete progress store.
func NewStores(s *store.Store) *Stores {
	return &Stores{
		Orgs:        s.Orgs(),
		Crawls:      s.Crawls(),
		Configs:     s.Configs(),
		Pages:       s.Pages(),
		Jobs:        s.Jobs(),
		Collections: s.Collections(),
	}
}
