/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"

	btrixv1 "github.com/webrecorder/btrix-operator/pkg/apis/btrix/v1"
	btrixerrors "github.com/webrecorder/btrix-operator/pkg/errors"
)

func testEnv() *Environment {
	return &Environment{
		Namespace:       "crawlers",
		CrawlerImage:    "webrecorder/browsertrix-crawler:1.5.0",
		ImagePullPolicy: "IfNotPresent",
		RedisImage:      "redis:7",
		BrowsersPerPod:  2,
		MaxCrawlScale:   3,
		StoragePerPod:   resource.MustParse("25Gi"),
		MemoryBase:      700 << 20, // 700Mi per browser
		CPUBaseMillis:   900,
		MongoURL:        "mongodb://mongo:27017",
		AppOrigin:       "https://app.example.org",
	}
}

func testJob(windows int) *btrixv1.CrawlJob {
	job := &btrixv1.CrawlJob{}
	job.Name = "crawljob-c1"
	job.Spec = btrixv1.CrawlJobSpec{
		Id:             "c1",
		OrgId:          "o1",
		ConfigId:       "w1",
		UserId:         "u1",
		BrowserWindows: windows,
		Timeout:        3600,
		MaxCrawlSize:   10 << 30,
		Manual:         true,
		StorageName:    "default",
	}
	return job
}

func TestPodCount(t *testing.T) {
	assert.Equal(t, 1, PodCount(1, 2, 3))
	assert.Equal(t, 1, PodCount(2, 2, 3))
	assert.Equal(t, 2, PodCount(3, 2, 3))
	assert.Equal(t, 3, PodCount(6, 2, 3))
	// scale ceiling
	assert.Equal(t, 3, PodCount(12, 2, 3))
	// degenerate browsersPerPod
	assert.Equal(t, 2, PodCount(2, 0, 3))
}

func TestRenderChildSet(t *testing.T) {
	objs, err := Render(testJob(4), testEnv())
	require.NoError(t, err)

	var pods []*corev1.Pod
	var pvcs []*corev1.PersistentVolumeClaim
	var cms []*corev1.ConfigMap
	var svcs []*corev1.Service
	for _, obj := range objs {
		switch o := obj.(type) {
		case *corev1.Pod:
			pods = append(pods, o)
		case *corev1.PersistentVolumeClaim:
			pvcs = append(pvcs, o)
		case *corev1.ConfigMap:
			cms = append(cms, o)
		case *corev1.Service:
			svcs = append(svcs, o)
		}
	}

	// 4 windows / 2 per pod = 2 crawler pods, plus redis
	require.Len(t, pods, 3)
	require.Len(t, pvcs, 2)
	require.Len(t, cms, 1)
	require.Len(t, svcs, 1)

	for _, obj := range objs {
		assert.Equal(t, "c1", obj.GetLabels()[btrixv1.CrawlLabel], obj.GetName())
		assert.Equal(t, "o1", obj.GetLabels()[btrixv1.OrgLabel], obj.GetName())
		assert.Equal(t, "w1", obj.GetLabels()[btrixv1.ConfigIdLabel], obj.GetName())
		assert.Equal(t, "crawlers", obj.GetNamespace(), obj.GetName())
	}

	cm := cms[0]
	assert.Equal(t, "c1", cm.Data["CRAWL_ID"])
	assert.Equal(t, "3600", cm.Data["TIME_LIMIT"])
	assert.Equal(t, "redis://redis-c1.crawlers.svc.cluster.local:6379/0", cm.Data["REDIS_URL"])
}

func TestRenderResourcePadding(t *testing.T) {
	objs, err := Render(testJob(2), testEnv())
	require.NoError(t, err)

	var crawler *corev1.Pod
	for _, obj := range objs {
		if pod, ok := obj.(*corev1.Pod); ok && IsCrawlerPod(pod) {
			crawler = pod
		}
	}
	require.NotNil(t, crawler)

	res := crawler.Spec.Containers[0].Resources
	reqMem := res.Requests[corev1.ResourceMemory]
	limMem := res.Limits[corev1.ResourceMemory]
	// 2 browsers x 700Mi, limit padded x1.2
	assert.Equal(t, int64(1400<<20), reqMem.Value())
	assert.Equal(t, int64(float64(1400<<20)*1.2), limMem.Value())

	reqCPU := res.Requests[corev1.ResourceCPU]
	limCPU := res.Limits[corev1.ResourceCPU]
	assert.Equal(t, int64(1800), reqCPU.MilliValue())
	assert.Equal(t, int64(2160), limCPU.MilliValue())
}

func TestRenderMemoryOverride(t *testing.T) {
	job := testJob(2)
	override := int64(float64(1400<<20) * 1.2)
	job.Status.PodStatus = map[string]*btrixv1.PodInfo{
		PodName("c1", 0): {NewMemory: override},
	}

	objs, err := Render(job, testEnv())
	require.NoError(t, err)

	for _, obj := range objs {
		pod, ok := obj.(*corev1.Pod)
		if !ok || !IsCrawlerPod(pod) {
			continue
		}
		mem := pod.Spec.Containers[0].Resources.Requests[corev1.ResourceMemory]
		assert.Equal(t, override, mem.Value())
	}
}

func TestRenderPausedDropsCrawlers(t *testing.T) {
	job := testJob(4)
	job.Spec.Paused = true

	objs, err := Render(job, testEnv())
	require.NoError(t, err)

	var crawlers, redis, pvcs int
	for _, obj := range objs {
		switch o := obj.(type) {
		case *corev1.Pod:
			if IsCrawlerPod(o) {
				crawlers++
			} else {
				redis++
			}
		case *corev1.PersistentVolumeClaim:
			pvcs++
		}
	}
	assert.Equal(t, 0, crawlers)
	assert.Equal(t, 1, redis)
	assert.Equal(t, 2, pvcs)
}

func TestRenderInvalidSpec(t *testing.T) {
	job := testJob(0)
	_, err := Render(job, testEnv())
	require.Error(t, err)
	assert.False(t, btrixerrors.IsRetryable(err))

	job = testJob(1)
	job.Spec.OrgId = ""
	_, err = Render(job, testEnv())
	require.Error(t, err)
}

func TestCrawlerIndex(t *testing.T) {
	objs, err := Render(testJob(4), testEnv())
	require.NoError(t, err)

	seen := map[int]bool{}
	for _, obj := range objs {
		pod, ok := obj.(*corev1.Pod)
		if !ok || !IsCrawlerPod(pod) {
			continue
		}
		seen[CrawlerIndex(pod)] = true
	}
	assert.Equal(t, map[int]bool{0: true, 1: true}, seen)
}

func TestRenderProfileBrowser(t *testing.T) {
	job := &btrixv1.ProfileJob{}
	job.Spec = btrixv1.ProfileJobSpec{
		Id:       "p1",
		OrgId:    "o1",
		UserId:   "u1",
		StartUrl: "https://example.org/login",
	}

	objs, err := RenderProfileBrowser(job, testEnv())
	require.NoError(t, err)
	require.Len(t, objs, 1)

	pod := objs[0].(*corev1.Pod)
	assert.Equal(t, "profile-p1", pod.Name)
	assert.Equal(t, btrixv1.RoleProfile, pod.Labels[btrixv1.RoleLabel])

	job.Spec.StartUrl = ""
	_, err = RenderProfileBrowser(job, testEnv())
	require.Error(t, err)
}
