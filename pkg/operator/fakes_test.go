/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package operator

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/webrecorder/btrix-operator/pkg/crawlredis"
	btrixerrors "github.com/webrecorder/btrix-operator/pkg/errors"
	"github.com/webrecorder/btrix-operator/pkg/store"
)

// fakeChannel is an in-memory CrawlChannel.
type fakeChannel struct {
	beats map[int]*crawlredis.Heartbeat
	pages []*crawlredis.PageEntry
	files []*crawlredis.FileEntry
	size  int64
	found int64

	stopSet   bool
	pauseSet  bool
	deleted   bool
	unreachable bool
}

var errUnreachable = fmt.Errorf("connection refused")

func (f *fakeChannel) ReadHeartbeats(ctx context.Context, crawlId string, podCount int) (map[int]*crawlredis.Heartbeat, error) {
	if f.unreachable {
		return nil, errUnreachable
	}
	return f.beats, nil
}

func (f *fakeChannel) DrainPages(ctx context.Context, crawlId string, batch int) ([]*crawlredis.PageEntry, error) {
	if f.unreachable {
		return nil, errUnreachable
	}
	if batch > len(f.pages) {
		batch = len(f.pages)
	}
	drained := f.pages[:batch]
	f.pages = f.pages[batch:]
	return drained, nil
}

func (f *fakeChannel) DrainFiles(ctx context.Context, crawlId string) ([]*crawlredis.FileEntry, error) {
	if f.unreachable {
		return nil, errUnreachable
	}
	drained := f.files
	f.files = nil
	return drained, nil
}

func (f *fakeChannel) PagesFound(ctx context.Context, crawlId string) (int64, error) {
	if f.unreachable {
		return 0, errUnreachable
	}
	return f.found, nil
}

func (f *fakeChannel) CrawlSize(ctx context.Context, crawlId string) (int64, error) {
	if f.unreachable {
		return 0, errUnreachable
	}
	return f.size, nil
}

func (f *fakeChannel) SetStop(ctx context.Context, crawlId string) error {
	if f.unreachable {
		return errUnreachable
	}
	f.stopSet = true
	return nil
}

func (f *fakeChannel) SetPause(ctx context.Context, crawlId string) error {
	if f.unreachable {
		return errUnreachable
	}
	f.pauseSet = true
	return nil
}

func (f *fakeChannel) ClearPause(ctx context.Context, crawlId string) error {
	if f.unreachable {
		return errUnreachable
	}
	f.pauseSet = false
	return nil
}

func (f *fakeChannel) DeleteCrawlKeys(ctx context.Context, crawlId string, podCount int) error {
	f.deleted = true
	return nil
}

// fakeState is the shared backing store for all fake repositories.
type fakeState struct {
	org     *store.Organization
	orgErr  error
	debits  []store.PoolDebit
	storage map[string]int64

	crawlDoc      *store.Crawl
	activeCrawls  int64
	finishedState string
	finishedStats store.CrawlStats
	crawlCounters map[string]int64
	files         []store.CrawlFile

	workflow       *store.CrawlConfig
	workflowEvents []string

	pages []*store.Page

	jobs []*store.BackgroundJob

	collectionAdds []string
}

func newFakeState() *fakeState {
	return &fakeState{
		storage:       map[string]int64{},
		crawlCounters: map[string]int64{},
	}
}

func (s *fakeState) stores() *Stores {
	return &Stores{
		Orgs:        &fakeOrgs{s},
		Crawls:      &fakeCrawls{s},
		Configs:     &fakeConfigs{s},
		Pages:       &fakePages{s},
		Jobs:        &fakeJobs{s},
		Collections: &fakeCollections{s},
	}
}

type fakeOrgs struct{ st *fakeState }

func (f *fakeOrgs) GetByID(ctx context.Context, id string) (*store.Organization, error) {
	if f.st.orgErr != nil {
		return nil, f.st.orgErr
	}
	if f.st.org == nil {
		return nil, btrixerrors.NewNotFound("Organization", id)
	}
	copied := *f.st.org
	return &copied, nil
}

func (f *fakeOrgs) ApplyExecDebit(ctx context.Context, id, yymm string, debit store.PoolDebit) error {
	f.st.debits = append(f.st.debits, debit)
	if f.st.org.MonthlyExecSeconds == nil {
		f.st.org.MonthlyExecSeconds = map[string]int64{}
	}
	f.st.org.MonthlyExecSeconds[yymm] += debit.Monthly
	f.st.org.ExtraExecSecondsAvailable -= debit.Extra
	f.st.org.GiftedExecSecondsAvailable -= debit.Gifted
	return nil
}

func (f *fakeOrgs) IncStorage(ctx context.Context, id, objectType string, delta int64) error {
	f.st.storage[objectType] += delta
	f.st.org.BytesStored += delta
	return nil
}

type fakeCrawls struct{ st *fakeState }

func (f *fakeCrawls) GetByID(ctx context.Context, id string) (*store.Crawl, error) {
	if f.st.crawlDoc == nil {
		return nil, btrixerrors.NewNotFound("Crawl", id)
	}
	return f.st.crawlDoc, nil
}

func (f *fakeCrawls) Update(ctx context.Context, id string, patch bson.M) error {
	return nil
}

func (f *fakeCrawls) IncCounters(ctx context.Context, id string, deltas map[string]int64) error {
	for path, delta := range deltas {
		f.st.crawlCounters[path] += delta
	}
	return nil
}

func (f *fakeCrawls) AddFile(ctx context.Context, id string, file store.CrawlFile) (bool, error) {
	for _, existing := range f.st.files {
		if existing.Hash == file.Hash {
			return false, nil
		}
	}
	f.st.files = append(f.st.files, file)
	return true, nil
}

func (f *fakeCrawls) MarkFinished(ctx context.Context, id, state string, finished time.Time, stats store.CrawlStats) (bool, error) {
	if f.st.finishedState != "" {
		return false, nil
	}
	f.st.finishedState = state
	f.st.finishedStats = stats
	return true, nil
}

func (f *fakeCrawls) CountActive(ctx context.Context, oid string) (int64, error) {
	return f.st.activeCrawls, nil
}

type fakeConfigs struct{ st *fakeState }

func (f *fakeConfigs) GetByID(ctx context.Context, id string) (*store.CrawlConfig, error) {
	if f.st.workflow == nil {
		return nil, btrixerrors.NewNotFound("CrawlConfig", id)
	}
	return f.st.workflow, nil
}

func (f *fakeConfigs) RecordCrawlFinished(ctx context.Context, id, crawlId, state, startedBy string, finished time.Time, size int64, successful bool) error {
	f.st.workflowEvents = append(f.st.workflowEvents, state)
	return nil
}

type fakePages struct{ st *fakeState }

func (f *fakePages) UpsertBatch(ctx context.Context, pages []*store.Page) (int64, error) {
	var unique int64
	for _, page := range pages {
		dup := false
		for _, existing := range f.st.pages {
			if existing.CrawlId == page.CrawlId && existing.Url == page.Url {
				dup = true
				break
			}
		}
		if !dup {
			f.st.pages = append(f.st.pages, page)
			unique++
		}
	}
	return unique, nil
}

type fakeJobs struct{ st *fakeState }

func (f *fakeJobs) Insert(ctx context.Context, job *store.BackgroundJob) error {
	f.st.jobs = append(f.st.jobs, job)
	return nil
}

type fakeCollections struct{ st *fakeState }

func (f *fakeCollections) AddCrawl(ctx context.Context, oid, crawlId string, names []string, size, pageCount int64) error {
	f.st.collectionAdds = append(f.st.collectionAdds, names...)
	return nil
}
