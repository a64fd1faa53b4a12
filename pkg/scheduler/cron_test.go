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

	"github.com/webrecorder/btrix-operator/pkg/store"
)

func testCron(st *fakeState, kube *fakeKube, current *time.Time) *CronScheduler {
	starter := NewCrawlStarter(st.stores(), kube, "crawlers")
	starter.now = func() time.Time { return *current }
	c := NewCronScheduler(&fakeWorkflows{st}, starter)
	c.now = func() time.Time { return *current }
	return c
}

func TestCronFiresOncePerInstant(t *testing.T) {
	st := newFakeState()
	st.org = &store.Organization{Id: "o1"}
	st.workflows["w1"] = testWorkflow()
	kube := &fakeKube{}

	current := time.Date(2026, 8, 25, 2, 59, 0, 0, time.UTC)
	c := testCron(st, kube, &current)
	ctx := context.Background()

	// first scan arms, never fires
	require.NoError(t, c.Scan(ctx))
	assert.Empty(t, st.insertedCrawls)

	// instant passes: exactly one firing
	current = time.Date(2026, 8, 25, 3, 0, 30, 0, time.UTC)
	require.NoError(t, c.Scan(ctx))
	require.Len(t, st.insertedCrawls, 1)
	assert.True(t, st.insertedCrawls[0].Scheduled)
	assert.False(t, st.insertedCrawls[0].Manual)

	// a rescan at the same wall time does not double-fire
	require.NoError(t, c.Scan(ctx))
	assert.Len(t, st.insertedCrawls, 1)
}

func TestCronSkipsMissedInstants(t *testing.T) {
	st := newFakeState()
	st.org = &store.Organization{Id: "o1"}
	st.workflows["w1"] = testWorkflow()
	kube := &fakeKube{}

	current := time.Date(2026, 8, 25, 2, 59, 0, 0, time.UTC)
	c := testCron(st, kube, &current)
	ctx := context.Background()
	require.NoError(t, c.Scan(ctx))

	// three daily instants elapse while the scheduler was down: one firing,
	// no backfill
	current = current.AddDate(0, 0, 3)
	require.NoError(t, c.Scan(ctx))
	assert.Len(t, st.insertedCrawls, 1)
}

func TestCronEditedScheduleRearmsWithoutFiring(t *testing.T) {
	st := newFakeState()
	st.org = &store.Organization{Id: "o1"}
	st.workflows["w1"] = testWorkflow()
	kube := &fakeKube{}

	current := time.Date(2026, 8, 25, 2, 59, 0, 0, time.UTC)
	c := testCron(st, kube, &current)
	ctx := context.Background()
	require.NoError(t, c.Scan(ctx))

	// schedule edited before the armed instant passed
	st.workflows["w1"].Schedule = "30 2 * * *"
	current = time.Date(2026, 8, 25, 3, 5, 0, 0, time.UTC)
	require.NoError(t, c.Scan(ctx))
	assert.Empty(t, st.insertedCrawls)

	// the edited schedule's next instant fires
	current = time.Date(2026, 8, 26, 2, 30, 30, 0, time.UTC)
	require.NoError(t, c.Scan(ctx))
	assert.Len(t, st.insertedCrawls, 1)
}

func TestCronSkipsWhilePreviousCrawlRuns(t *testing.T) {
	st := newFakeState()
	st.org = &store.Organization{Id: "o1"}
	st.workflows["w1"] = testWorkflow()
	st.activeByConfig["w1"] = 1
	kube := &fakeKube{}

	current := time.Date(2026, 8, 25, 2, 59, 0, 0, time.UTC)
	c := testCron(st, kube, &current)
	ctx := context.Background()
	require.NoError(t, c.Scan(ctx))

	current = time.Date(2026, 8, 25, 3, 0, 30, 0, time.UTC)
	require.NoError(t, c.Scan(ctx))
	// skipped, nothing recorded
	assert.Empty(t, st.insertedCrawls)
	assert.Empty(t, kube.created)
}

func TestCronDisarmsRemovedWorkflow(t *testing.T) {
	st := newFakeState()
	st.org = &store.Organization{Id: "o1"}
	st.workflows["w1"] = testWorkflow()
	kube := &fakeKube{}

	current := time.Date(2026, 8, 25, 2, 59, 0, 0, time.UTC)
	c := testCron(st, kube, &current)
	ctx := context.Background()
	require.NoError(t, c.Scan(ctx))
	require.Contains(t, c.armed, "w1")

	st.workflows["w1"].Inactive = true
	require.NoError(t, c.Scan(ctx))
	assert.NotContains(t, c.armed, "w1")
}
