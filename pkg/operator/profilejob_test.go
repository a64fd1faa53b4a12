/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package operator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	btrixv1 "github.com/webrecorder/btrix-operator/pkg/apis/btrix/v1"
	"github.com/webrecorder/btrix-operator/pkg/render"
)

func testProfileReconciler() *ProfileJobReconciler {
	r := NewProfileJobReconciler(&render.Environment{
		Namespace:     "crawlers",
		CrawlerImage:  "webrecorder/browsertrix-crawler:1.5.0",
		MemoryBase:    1 << 30,
		CPUBaseMillis: 900,
		StoragePerPod: resource.MustParse("1Gi"),
	})
	r.now = func() time.Time { return testNow }
	return r
}

func profileRequest(t *testing.T, profile *btrixv1.ProfileJob) *SyncRequest {
	t.Helper()
	parent, err := json.Marshal(profile)
	require.NoError(t, err)
	return &SyncRequest{Parent: parent}
}

func TestProfileJobRendersBrowserPod(t *testing.T) {
	profile := &btrixv1.ProfileJob{}
	profile.Spec = btrixv1.ProfileJobSpec{
		Id:       "p1",
		OrgId:    "o1",
		UserId:   "u1",
		StartUrl: "https://example.org/login",
	}

	r := testProfileReconciler()
	resp, err := r.Sync(context.Background(), profileRequest(t, profile))
	require.NoError(t, err)

	require.Len(t, resp.Children, 1)
	status := resp.Status.(*btrixv1.ProfileJobStatus)
	assert.Equal(t, ProfileStateWaiting, status.State)
}

func TestProfileJobExpires(t *testing.T) {
	profile := &btrixv1.ProfileJob{}
	expire := metav1.NewTime(testNow.Add(-time.Minute))
	profile.Spec = btrixv1.ProfileJobSpec{
		Id:         "p1",
		OrgId:      "o1",
		StartUrl:   "https://example.org/",
		ExpireTime: &expire,
	}

	r := testProfileReconciler()
	resp, err := r.Sync(context.Background(), profileRequest(t, profile))
	require.NoError(t, err)

	assert.Empty(t, resp.Children)
	assert.Equal(t, ProfileStateExpired, resp.Status.(*btrixv1.ProfileJobStatus).State)
}
