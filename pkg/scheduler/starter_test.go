/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	btrixv1 "github.com/webrecorder/btrix-operator/pkg/apis/btrix/v1"
	btrixerrors "github.com/webrecorder/btrix-operator/pkg/errors"
	"github.com/webrecorder/btrix-operator/pkg/store"
)

var testNow = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func testStarter(st *fakeState, kube *fakeKube) *CrawlStarter {
	s := NewCrawlStarter(st.stores(), kube, "crawlers")
	s.now = func() time.Time { return testNow }
	return s
}

func testWorkflow() *store.CrawlConfig {
	return &store.CrawlConfig{
		Id:             "w1",
		Oid:            "o1",
		Name:           "nightly",
		Schedule:       "0 3 * * *",
		BrowserWindows: 4,
		CrawlTimeout:   3600,
		MaxCrawlSize:   1 << 30,
		CrawlerChannel: "default",
	}
}

func TestStartCrawlCreatesDocumentAndJob(t *testing.T) {
	st := newFakeState()
	st.org = &store.Organization{Id: "o1", Storage: "default"}
	st.workflows["w1"] = testWorkflow()
	kube := &fakeKube{}

	id, err := testStarter(st, kube).StartCrawl(context.Background(), st.workflows["w1"], "u1", true)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Len(t, st.insertedCrawls, 1)
	crawl := st.insertedCrawls[0]
	assert.Equal(t, id, crawl.Id)
	assert.Equal(t, "w1", crawl.Cid)
	assert.Equal(t, string(btrixv1.StateStarting), crawl.State)
	assert.True(t, crawl.Manual)
	assert.False(t, crawl.Scheduled)

	require.Len(t, kube.created, 1)
	job, ok := kube.created[0].(*btrixv1.CrawlJob)
	require.True(t, ok)
	assert.Equal(t, "crawljob-"+id, job.Name)
	assert.Equal(t, "crawlers", job.Namespace)
	assert.Equal(t, id, job.Labels[btrixv1.CrawlLabel])
	assert.Equal(t, "o1", job.Labels[btrixv1.OrgLabel])
	assert.Equal(t, 4, job.Spec.BrowserWindows)
	assert.Equal(t, 3600, job.Spec.Timeout)
	assert.Equal(t, int64(1<<30), job.Spec.MaxCrawlSize)
	assert.Equal(t, "default", job.Spec.StorageName)
	assert.True(t, job.Spec.Manual)
}

func TestStartCrawlRejectsWhilePreviousRuns(t *testing.T) {
	st := newFakeState()
	st.org = &store.Organization{Id: "o1"}
	st.workflows["w1"] = testWorkflow()
	st.activeByConfig["w1"] = 1
	kube := &fakeKube{}

	_, err := testStarter(st, kube).StartCrawl(context.Background(), st.workflows["w1"], "", false)
	require.Error(t, err)
	assert.Equal(t, btrixerrors.TooManyCrawls, btrixerrors.GetErrorCode(err))

	// nothing recorded
	assert.Empty(t, st.insertedCrawls)
	assert.Empty(t, kube.created)
}

func TestStartCrawlRejectsReadOnlyOrg(t *testing.T) {
	st := newFakeState()
	st.org = &store.Organization{Id: "o1", ReadOnly: true}
	st.workflows["w1"] = testWorkflow()

	_, err := testStarter(st, &fakeKube{}).StartCrawl(context.Background(), st.workflows["w1"], "u1", true)
	require.Error(t, err)
	assert.Equal(t, btrixerrors.OrgReadOnly, btrixerrors.GetErrorCode(err))
	assert.Empty(t, st.insertedCrawls)
}

func TestStartCrawlRollsBackOnJobCreateFailure(t *testing.T) {
	st := newFakeState()
	st.org = &store.Organization{Id: "o1"}
	st.workflows["w1"] = testWorkflow()
	kube := &fakeKube{failCreate: true}

	_, err := testStarter(st, kube).StartCrawl(context.Background(), st.workflows["w1"], "u1", true)
	require.Error(t, err)

	require.Len(t, st.insertedCrawls, 1)
	require.Len(t, st.deletedCrawls, 1)
	assert.Equal(t, st.insertedCrawls[0].Id, st.deletedCrawls[0])
}

func TestStopCrawlIgnoresMissingJob(t *testing.T) {
	st := newFakeState()
	kube := &fakeKube{deleted: []string{"crawljob-c1"}}

	err := testStarter(st, kube).StopCrawl(context.Background(), "c1")
	require.NoError(t, err)
}
