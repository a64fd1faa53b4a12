/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"

	btrixerrors "github.com/webrecorder/btrix-operator/pkg/errors"
	"github.com/webrecorder/btrix-operator/pkg/storage"
	"github.com/webrecorder/btrix-operator/pkg/store"
)

// fakeState backs all fake repositories in this package's tests.
type fakeState struct {
	org        *store.Organization
	orgUpdates []bson.M
	orgDeleted bool
	storageInc map[string]int64

	workflows        map[string]*store.CrawlConfig
	seedFilesInUse   map[string]bool
	workflowsDropped bool

	crawls         []*store.Crawl
	insertedCrawls []*store.Crawl
	deletedCrawls  []string
	crawlUpdates   map[string]bson.M
	activeByConfig map[string]int64
	replicas       map[string][]store.FileReplica
	crawlsDropped  bool

	pageCounts   map[string][3]int64
	pagesDropped bool

	pending          []*store.BackgroundJob
	finishedJobs     map[string]bool
	requeuedJobs     []string
	stuckCutoff      time.Time
	jobsDropped      bool
	collectionsDropped bool

	seedFiles        []*store.SeedFile
	deletedSeedFiles []string
	seedFilesDropped bool
}

func newFakeState() *fakeState {
	return &fakeState{
		storageInc:     map[string]int64{},
		workflows:      map[string]*store.CrawlConfig{},
		crawlUpdates:   map[string]bson.M{},
		activeByConfig: map[string]int64{},
		replicas:       map[string][]store.FileReplica{},
		pageCounts:     map[string][3]int64{},
		finishedJobs:   map[string]bool{},
	}
}

func (s *fakeState) stores() *Stores {
	return &Stores{
		Workflows:   &fakeWorkflows{s},
		Crawls:      &fakeCrawls{s},
		Orgs:        &fakeOrgs{s},
		Pages:       &fakePages{s},
		Jobs:        &fakeJobs{s},
		Collections: &fakeCollections{s},
		SeedFiles:   &fakeSeedFiles{s},
	}
}

type fakeWorkflows struct{ st *fakeState }

func (f *fakeWorkflows) GetByID(ctx context.Context, id string) (*store.CrawlConfig, error) {
	workflow, ok := f.st.workflows[id]
	if !ok {
		return nil, btrixerrors.NewNotFound("CrawlConfig", id)
	}
	return workflow, nil
}

func (f *fakeWorkflows) FindScheduled(ctx context.Context) ([]*store.CrawlConfig, error) {
	var scheduled []*store.CrawlConfig
	for _, workflow := range f.st.workflows {
		if workflow.Schedule != "" && !workflow.Inactive {
			scheduled = append(scheduled, workflow)
		}
	}
	return scheduled, nil
}

func (f *fakeWorkflows) SeedFilesInUse(ctx context.Context) (map[string]bool, error) {
	return f.st.seedFilesInUse, nil
}

func (f *fakeWorkflows) DeleteByOrg(ctx context.Context, oid string) (int64, error) {
	f.st.workflowsDropped = true
	return 0, nil
}

type fakeCrawls struct{ st *fakeState }

func (f *fakeCrawls) GetByID(ctx context.Context, id string) (*store.Crawl, error) {
	for _, crawl := range f.st.crawls {
		if crawl.Id == id {
			return crawl, nil
		}
	}
	return nil, btrixerrors.NewNotFound("Crawl", id)
}

func (f *fakeCrawls) Find(ctx context.Context, q *store.Query, sort bson.D, limit int64) ([]*store.Crawl, error) {
	oid, _ := q.Filter()["oid"].(string)
	var matched []*store.Crawl
	for _, crawl := range f.st.crawls {
		if oid == "" || crawl.Oid == oid {
			matched = append(matched, crawl)
		}
	}
	return matched, nil
}

func (f *fakeCrawls) Insert(ctx context.Context, crawl *store.Crawl) error {
	f.st.insertedCrawls = append(f.st.insertedCrawls, crawl)
	return nil
}

func (f *fakeCrawls) Update(ctx context.Context, id string, patch bson.M) error {
	f.st.crawlUpdates[id] = patch
	return nil
}

func (f *fakeCrawls) Delete(ctx context.Context, id string) error {
	f.st.deletedCrawls = append(f.st.deletedCrawls, id)
	return nil
}

func (f *fakeCrawls) DeleteByOrg(ctx context.Context, oid string) (int64, error) {
	f.st.crawlsDropped = true
	return int64(len(f.st.crawls)), nil
}

func (f *fakeCrawls) AddFileReplica(ctx context.Context, id, filename string, replica store.FileReplica) (bool, error) {
	// dedupe per file, matching the array-filtered push in the real repo
	for _, existing := range f.st.replicas[id+"/"+filename] {
		if existing.Name == replica.Name {
			return false, nil
		}
	}
	f.st.replicas[id+"/"+filename] = append(f.st.replicas[id+"/"+filename], replica)
	return true, nil
}

func (f *fakeCrawls) CountActiveByConfig(ctx context.Context, cid string) (int64, error) {
	return f.st.activeByConfig[cid], nil
}

type fakeOrgs struct{ st *fakeState }

func (f *fakeOrgs) GetByID(ctx context.Context, id string) (*store.Organization, error) {
	if f.st.org == nil || f.st.org.Id != id {
		return nil, btrixerrors.NewNotFound("Organization", id)
	}
	copied := *f.st.org
	return &copied, nil
}

func (f *fakeOrgs) Update(ctx context.Context, id string, patch bson.M) error {
	f.st.orgUpdates = append(f.st.orgUpdates, patch)
	return nil
}

func (f *fakeOrgs) Delete(ctx context.Context, id string) error {
	f.st.orgDeleted = true
	return nil
}

func (f *fakeOrgs) IncStorage(ctx context.Context, id, objectType string, delta int64) error {
	f.st.storageInc[objectType] += delta
	return nil
}

type fakePages struct{ st *fakeState }

func (f *fakePages) DeleteByCrawl(ctx context.Context, crawlId string) (int64, error) {
	return 0, nil
}

func (f *fakePages) DeleteByOrg(ctx context.Context, oid string) (int64, error) {
	f.st.pagesDropped = true
	return 0, nil
}

func (f *fakePages) CountByCrawl(ctx context.Context, crawlId string) (int64, int64, int64, error) {
	counts := f.st.pageCounts[crawlId]
	return counts[0], counts[1], counts[2], nil
}

type fakeJobs struct{ st *fakeState }

func (f *fakeJobs) ClaimPending(ctx context.Context, limit int) ([]*store.BackgroundJob, error) {
	if limit > len(f.st.pending) {
		limit = len(f.st.pending)
	}
	claimed := f.st.pending[:limit]
	f.st.pending = f.st.pending[limit:]
	return claimed, nil
}

func (f *fakeJobs) MarkFinished(ctx context.Context, id string, success bool) error {
	f.st.finishedJobs[id] = success
	return nil
}

func (f *fakeJobs) Requeue(ctx context.Context, id string) error {
	f.st.requeuedJobs = append(f.st.requeuedJobs, id)
	return nil
}

func (f *fakeJobs) FailStuck(ctx context.Context, cutoff time.Time) (int64, error) {
	f.st.stuckCutoff = cutoff
	return 0, nil
}

func (f *fakeJobs) DeleteByOrg(ctx context.Context, oid string) (int64, error) {
	f.st.jobsDropped = true
	return 0, nil
}

type fakeCollections struct{ st *fakeState }

func (f *fakeCollections) DeleteByOrg(ctx context.Context, oid string) (int64, error) {
	f.st.collectionsDropped = true
	return 0, nil
}

type fakeSeedFiles struct{ st *fakeState }

func (f *fakeSeedFiles) FindCreatedBefore(ctx context.Context, cutoff time.Time) ([]*store.SeedFile, error) {
	var matched []*store.SeedFile
	for _, file := range f.st.seedFiles {
		if file.Created.Before(cutoff) {
			matched = append(matched, file)
		}
	}
	return matched, nil
}

func (f *fakeSeedFiles) FindByOrg(ctx context.Context, oid string) ([]*store.SeedFile, error) {
	var matched []*store.SeedFile
	for _, file := range f.st.seedFiles {
		if file.Oid == oid {
			matched = append(matched, file)
		}
	}
	return matched, nil
}

func (f *fakeSeedFiles) Delete(ctx context.Context, id string) error {
	f.st.deletedSeedFiles = append(f.st.deletedSeedFiles, id)
	return nil
}

func (f *fakeSeedFiles) DeleteByOrg(ctx context.Context, oid string) (int64, error) {
	f.st.seedFilesDropped = true
	return int64(len(f.st.seedFiles)), nil
}

// fakeKube records created and deleted objects.
type fakeKube struct {
	created    []client.Object
	deleted    []string
	failCreate bool
}

func (f *fakeKube) Create(ctx context.Context, obj client.Object, opts ...client.CreateOption) error {
	if f.failCreate {
		return fmt.Errorf("apiserver unavailable")
	}
	f.created = append(f.created, obj)
	return nil
}

func (f *fakeKube) Delete(ctx context.Context, obj client.Object, opts ...client.DeleteOption) error {
	for _, name := range f.deleted {
		if name == obj.GetName() {
			return apierrors.NewNotFound(schema.GroupResource{Resource: "crawljobs"}, obj.GetName())
		}
	}
	f.deleted = append(f.deleted, obj.GetName())
	return nil
}

// fakeStorage is an in-memory object store keyed storage/key.
type fakeStorage struct {
	objects map[string]int64
	copies  []string
	deletes []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string]int64{}}
}

func (f *fakeStorage) key(storageName, key string) string { return storageName + "/" + key }

func (f *fakeStorage) Presign(ctx context.Context, storageName, key string, duration time.Duration) (string, error) {
	return "https://signed.example.com/" + f.key(storageName, key), nil
}

func (f *fakeStorage) Head(ctx context.Context, storageName, key string) (*storage.ObjectInfo, error) {
	size, ok := f.objects[f.key(storageName, key)]
	if !ok {
		return nil, fmt.Errorf("object %s/%s missing", storageName, key)
	}
	return &storage.ObjectInfo{Size: size}, nil
}

func (f *fakeStorage) Copy(ctx context.Context, srcStorage, srcKey, dstStorage, dstKey string) error {
	size, ok := f.objects[f.key(srcStorage, srcKey)]
	if !ok {
		return fmt.Errorf("source object %s/%s missing", srcStorage, srcKey)
	}
	f.objects[f.key(dstStorage, dstKey)] = size
	f.copies = append(f.copies, f.key(dstStorage, dstKey))
	return nil
}

func (f *fakeStorage) Delete(ctx context.Context, storageName, key string) error {
	delete(f.objects, f.key(storageName, key))
	f.deletes = append(f.deletes, f.key(storageName, key))
	return nil
}

func (f *fakeStorage) List(ctx context.Context, storageName, prefix string, fn func(key string, size int64) error) error {
	for k, size := range f.objects {
		if len(k) > len(storageName)+1 && k[:len(storageName)+1] == storageName+"/" {
			key := k[len(storageName)+1:]
			if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
				if err := fn(key, size); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (f *fakeStorage) DefaultReplicas() []string { return []string{"replica-east"} }
