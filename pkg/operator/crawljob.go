/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package operator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"
	"sigs.k8s.io/controller-runtime/pkg/client"

	btrixv1 "github.com/webrecorder/btrix-operator/pkg/apis/btrix/v1"
	"github.com/webrecorder/btrix-operator/pkg/config"
	btrixerrors "github.com/webrecorder/btrix-operator/pkg/errors"
	"github.com/webrecorder/btrix-operator/pkg/render"
	"github.com/webrecorder/btrix-operator/pkg/store"
	"github.com/webrecorder/btrix-operator/pkg/utils/timeutil"
)

// stop reasons recorded on the status and mapped to terminal states
const (
	StopReasonUserStop     = "stopped_by_user"
	StopReasonSizeLimit    = "size-limit"
	StopReasonTimeLimit    = "time-limit"
	StopReasonPauseQuota   = "stopped_quota_reached"
	StopReasonOOM          = "oom"
	StopReasonOrgReadOnly  = "org_read_only"
	StopReasonInvalidSpec  = "invalid_crawl_spec"
)

// worker exit codes from the crawler contract
const (
	exitCodeSuccess     = 0
	exitCodeNotLoggedIn = 45
)

const (
	// sustained-memory threshold that arms a scale-up
	memScaleThreshold = 0.90
	// hard threshold that triggers a soft-OOM graceful stop
	memStopThreshold = 1.00
	// memory grow factor once a scale-up is armed twice in a row
	memScaleUp = 1.2

	// resync hint when redis or the store was unreachable
	degradedResyncSeconds = 2
)

type CrawlJobReconciler struct {
	env      *render.Environment
	stores   *Stores
	channels ChannelFactory

	startingTimeout time.Duration
	execUpdateBound time.Duration
	resyncInterval  time.Duration
	defaultTTL      int
	pageDrainBatch  int

	now func() time.Time

	mu    sync.Mutex
	locks map[string]*crawlLock
}

// crawlLock is a per-crawl mutex with a holder count so the map entry is
// only dropped once no goroutine still references it. Deleting the entry
// while a holder is blocked on the old mutex would let a later sync mint a
// second mutex for the same crawl and run concurrently with the holder.
type crawlLock struct {
	mu   sync.Mutex
	refs int
}

func NewCrawlJobReconciler(env *render.Environment, stores *Stores, channels ChannelFactory) *CrawlJobReconciler {
	return &CrawlJobReconciler{
		env:             env,
		stores:          stores,
		channels:        channels,
		startingTimeout: time.Duration(config.GetStartingTimeSecond()) * time.Second,
		execUpdateBound: time.Duration(config.GetExecTimeUpdateSecond()) * time.Second,
		resyncInterval:  time.Duration(config.GetResyncIntervalSecond()) * time.Second,
		defaultTTL:      config.GetDefaultTTLSecond(),
		pageDrainBatch:  config.GetPageDrainBatch(),
		now:             time.Now,
		locks:           map[string]*crawlLock{},
	}
}

// acquireLock serializes reconciles per crawl id so status computation for
// one crawl never interleaves. The caller must pair it with releaseLock.
func (r *CrawlJobReconciler) acquireLock(id string) *crawlLock {
	r.mu.Lock()
	lock, ok := r.locks[id]
	if !ok {
		lock = &crawlLock{}
		r.locks[id] = lock
	}
	lock.refs++
	r.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (r *CrawlJobReconciler) releaseLock(id string, lock *crawlLock) {
	lock.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(r.locks, id)
	}
}

// Sync handles one meta-controller sync or finalize call for a CrawlJob.
func (r *CrawlJobReconciler) Sync(ctx context.Context, req *SyncRequest) (*SyncResponse, error) {
	crawl := &btrixv1.CrawlJob{}
	if err := json.Unmarshal(req.Parent, crawl); err != nil {
		return nil, btrixerrors.NewBadRequest(fmt.Sprintf("malformed CrawlJob parent: %v", err))
	}
	if crawl.Spec.Id == "" {
		return nil, btrixerrors.NewInvalidCrawlSpec("crawl id is empty")
	}

	lock := r.acquireLock(crawl.Spec.Id)
	defer r.releaseLock(crawl.Spec.Id, lock)

	observed, err := DecodeChildren(req)
	if err != nil {
		return nil, btrixerrors.NewBadRequest(err.Error())
	}
	metrics := DecodePodMetrics(req)

	if req.Finalizing {
		return r.finalizeDeletion(ctx, crawl)
	}
	return r.reconcile(ctx, crawl, observed, metrics)
}

// finalizeDeletion handles CR deletion: an active crawl becomes canceled and
// all children are dropped without registering any files.
func (r *CrawlJobReconciler) finalizeDeletion(ctx context.Context, crawl *btrixv1.CrawlJob) (*SyncResponse, error) {
	status := crawl.Status.DeepCopy()
	id := crawl.Spec.Id

	if !status.State.IsTerminal() {
		now := metav1.NewTime(r.now().UTC())
		status.State = btrixv1.StateCanceled
		status.Finished = &now
		if _, err := r.stores.Crawls.MarkFinished(ctx, id, string(btrixv1.StateCanceled), now.Time, statsFromStatus(status)); err != nil {
			klog.ErrorS(err, "record canceled crawl", "crawl", id)
		}
		r.recordWorkflowAggregates(ctx, crawl, status)
		klog.Infof("crawl %s canceled on deletion", id)
	}
	r.cleanupChannel(ctx, id, status.Scale)

	return &SyncResponse{
		Status:    status,
		Children:  []client.Object{},
		Finalized: true,
	}, nil
}

func (r *CrawlJobReconciler) cleanupChannel(ctx context.Context, id string, scale int) {
	ch, err := r.channels(id)
	if err != nil {
		return
	}
	if err = ch.DeleteCrawlKeys(ctx, id, scale); err != nil {
		klog.V(4).Infof("crawl %s channel cleanup skipped: %v", id, err)
	}
}

func (r *CrawlJobReconciler) reconcile(ctx context.Context, crawl *btrixv1.CrawlJob, observed *ObservedChildren, metrics map[string]btrixv1.ResourceAmounts) (*SyncResponse, error) {
	status := crawl.Status.DeepCopy()
	status.Resync = false
	now := r.now().UTC()
	id := crawl.Spec.Id

	// terminal states are frozen; only the TTL teardown remains
	if status.State.IsTerminal() {
		return r.reconcileTerminal(ctx, crawl, status, now)
	}

	// admission runs once, before any children exist
	if status.State == "" {
		resp, admitted := r.admit(ctx, crawl, status, now)
		if !admitted {
			return resp, nil
		}
	}

	if status.State == btrixv1.StateWaitingOrgLimit {
		if !r.orgLimitHasSlack(ctx, crawl) {
			return r.respond(status, []client.Object{}, r.resyncInterval), nil
		}
		status.State = btrixv1.StateStarting
		klog.Infof("crawl %s admitted after org limit wait", id)
	}

	children, err := render.Render(crawl, r.env)
	if err != nil {
		// rendering failures are permanent spec errors
		r.failPermanently(ctx, crawl, status, now, StopReasonInvalidSpec, err)
		return r.respond(status, []client.Object{}, 0), nil
	}
	status.Scale = render.PodCount(crawl.Spec.BrowserWindows, r.env.BrowsersPerPod, r.env.MaxCrawlScale)
	r.recordAllocations(status, observed)

	ch, err := r.channels(id)
	if err != nil {
		// redis unreachable: keep state, ask for a fast resync
		status.Resync = true
		return r.respond(status, children, degradedResyncSeconds*time.Second), nil
	}

	beats, err := ch.ReadHeartbeats(ctx, id, status.Scale)
	if err != nil {
		status.Resync = true
		return r.respond(status, children, degradedResyncSeconds*time.Second), nil
	}

	r.observeProgress(ctx, ch, crawl, status, beats)
	r.observeExits(crawl, status, observed)

	switch {
	case status.State.IsWaiting():
		r.reconcileWaiting(crawl, status, beats, now)
	case status.State.IsPaused():
		r.reconcilePaused(ctx, ch, crawl, status, now)
	case status.State.IsRunning():
		r.reconcileRunning(ctx, ch, crawl, status, observed, metrics, beats, now)
	}

	// a running or stopping crawl finalizes once every worker has quiesced
	if r.readyToFinalize(status, observed, beats) {
		if err = r.finalizeCrawl(ctx, ch, crawl, status, beats, now); err != nil {
			klog.ErrorS(err, "finalize crawl", "crawl", id)
			status.Resync = true
			return r.respond(status, children, degradedResyncSeconds*time.Second), nil
		}
		// re-render: terminal holdover drops the crawler pods
		children = r.renderHoldover(crawl, status)
	}

	if !status.State.IsTerminal() && status.State.IsPaused() {
		// paused crawls keep pvcs + redis but no crawler pods
		crawlCopy := crawl.DeepCopy()
		crawlCopy.Status = *status
		if children, err = render.Render(crawlCopy, r.env); err != nil {
			r.failPermanently(ctx, crawl, status, now, StopReasonInvalidSpec, err)
			children = []client.Object{}
		}
	}

	interval := r.resyncInterval
	if status.Resync {
		interval = degradedResyncSeconds * time.Second
	}
	return r.respond(status, children, interval), nil
}

func (r *CrawlJobReconciler) respond(status *btrixv1.CrawlJobStatus, children []client.Object, resync time.Duration) *SyncResponse {
	if children == nil {
		children = []client.Object{}
	}
	resp := &SyncResponse{Status: status, Children: children}
	if resync > 0 {
		resp.ResyncAfterSeconds = resync.Seconds()
	}
	return resp
}

// admit performs the initial quota gate. Returns admitted=false with a final
// response when the crawl is skipped or must wait.
func (r *CrawlJobReconciler) admit(ctx context.Context, crawl *btrixv1.CrawlJob, status *btrixv1.CrawlJobStatus, now time.Time) (*SyncResponse, bool) {
	org, err := r.stores.Orgs.GetByID(ctx, crawl.Spec.OrgId)
	if err != nil {
		if btrixerrors.IsRetryable(err) {
			status.Resync = true
			return r.respond(status, []client.Object{}, degradedResyncSeconds*time.Second), false
		}
		r.failPermanently(ctx, crawl, status, now, StopReasonInvalidSpec, err)
		return r.respond(status, []client.Object{}, 0), false
	}

	if org.BytesStored < 0 {
		// counter drift; rebuild from storage instead of trusting it
		klog.Warningf("org %s bytesStored is negative (%d), scheduling stats rebuild",
			org.Id, org.BytesStored)
		job := &store.BackgroundJob{
			Id:   "recalc-drift-" + org.Id,
			Type: btrixv1.BgJobRecalculateStats,
			Oid:  org.Id,
		}
		if err := r.stores.Jobs.Insert(ctx, job); err != nil && !btrixerrors.IsAlreadyExist(err) {
			klog.ErrorS(err, "stats rebuild enqueue failed", "org", org.Id)
		}
	}

	if org.ReadOnly {
		r.skip(ctx, crawl, status, now, btrixv1.StateFailed, StopReasonOrgReadOnly)
		return r.respond(status, []client.Object{}, 0), false
	}
	if org.StorageQuotaReached(0) {
		r.skip(ctx, crawl, status, now, btrixv1.StateSkippedStorageQuota, StopReasonPauseQuota)
		return r.respond(status, []client.Object{}, 0), false
	}
	if org.ExecSecondsExhausted(timeutil.YearMonth(now)) {
		r.skip(ctx, crawl, status, now, btrixv1.StateSkippedTimeQuota, StopReasonPauseQuota)
		return r.respond(status, []client.Object{}, 0), false
	}
	if org.Quotas.MaxConcurrentCrawls > 0 && !r.orgLimitHasSlack(ctx, crawl) {
		status.State = btrixv1.StateWaitingOrgLimit
		klog.Infof("crawl %s waiting on org concurrent limit", crawl.Spec.Id)
		return r.respond(status, []client.Object{}, r.resyncInterval), false
	}

	status.State = btrixv1.StateStarting
	status.LastUpdatedTime = ptrTime(now)
	status.CrawlerImage = r.env.CrawlerImage
	if err = r.stores.Crawls.Update(ctx, crawl.Spec.Id, crawlStatePatch(btrixv1.StateStarting)); err != nil {
		klog.V(4).Infof("crawl %s store state update deferred: %v", crawl.Spec.Id, err)
	}
	return nil, true
}

// orgLimitHasSlack counts other unfinished crawls in the org against the
// concurrency cap.
func (r *CrawlJobReconciler) orgLimitHasSlack(ctx context.Context, crawl *btrixv1.CrawlJob) bool {
	org, err := r.stores.Orgs.GetByID(ctx, crawl.Spec.OrgId)
	if err != nil || org.Quotas.MaxConcurrentCrawls <= 0 {
		return true
	}
	active, err := r.stores.Crawls.CountActive(ctx, crawl.Spec.OrgId)
	if err != nil {
		return true
	}
	// the count includes this crawl's own unfinished document
	if own, err := r.stores.Crawls.GetByID(ctx, crawl.Spec.Id); err == nil && own.Finished == nil {
		active--
	}
	return active < int64(org.Quotas.MaxConcurrentCrawls)
}

func (r *CrawlJobReconciler) skip(ctx context.Context, crawl *btrixv1.CrawlJob, status *btrixv1.CrawlJobStatus, now time.Time, state btrixv1.CrawlState, reason string) {
	status.State = state
	status.StopReason = reason
	status.Finished = ptrTime(now)
	if _, err := r.stores.Crawls.MarkFinished(ctx, crawl.Spec.Id, string(state), now, store.CrawlStats{}); err != nil {
		klog.ErrorS(err, "record skipped crawl", "crawl", crawl.Spec.Id)
	}
	r.recordWorkflowAggregates(ctx, crawl, status)
	klog.Infof("crawl %s skipped: %s", crawl.Spec.Id, state)
}

func (r *CrawlJobReconciler) failPermanently(ctx context.Context, crawl *btrixv1.CrawlJob, status *btrixv1.CrawlJobStatus, now time.Time, reason string, cause error) {
	status.State = btrixv1.StateFailed
	status.StopReason = reason
	if cause != nil {
		status.StopReason = fmt.Sprintf("%s: %v", reason, cause)
	}
	status.Finished = ptrTime(now)
	if _, err := r.stores.Crawls.MarkFinished(ctx, crawl.Spec.Id, string(btrixv1.StateFailed), now, statsFromStatus(status)); err != nil {
		klog.ErrorS(err, "record failed crawl", "crawl", crawl.Spec.Id)
	}
	r.recordWorkflowAggregates(ctx, crawl, status)
	klog.ErrorS(cause, "crawl failed permanently", "crawl", crawl.Spec.Id, "reason", reason)
}

// reconcileTerminal holds remaining children until the TTL elapses, then
// returns an empty desired set so everything is garbage-collected.
func (r *CrawlJobReconciler) reconcileTerminal(ctx context.Context, crawl *btrixv1.CrawlJob, status *btrixv1.CrawlJobStatus, now time.Time) (*SyncResponse, error) {
	// crawls skipped at admission never had children to hold over
	if status.Started == nil {
		return r.respond(status, []client.Object{}, 0), nil
	}
	ttl := time.Duration(crawl.GetTTLSecond(r.defaultTTL)) * time.Second
	if status.Finished != nil && now.Sub(status.Finished.Time) >= ttl {
		r.cleanupChannel(ctx, crawl.Spec.Id, status.Scale)
		return r.respond(status, []client.Object{}, 0), nil
	}
	return r.respond(status, r.renderHoldover(crawl, status), r.resyncInterval), nil
}

// renderHoldover keeps the ConfigMap, PVCs and redis alive between crawl end
// and TTL teardown so late uploads and QA reads still work.
func (r *CrawlJobReconciler) renderHoldover(crawl *btrixv1.CrawlJob, status *btrixv1.CrawlJobStatus) []client.Object {
	crawlCopy := crawl.DeepCopy()
	crawlCopy.Spec.Paused = true // paused rendering drops crawler pods
	crawlCopy.Status = *status
	children, err := render.Render(crawlCopy, r.env)
	if err != nil {
		return []client.Object{}
	}
	return children
}

// recordAllocations copies the rendered resource requests into PodInfo so
// the memory policy can compute usage ratios.
func (r *CrawlJobReconciler) recordAllocations(status *btrixv1.CrawlJobStatus, observed *ObservedChildren) {
	for _, pod := range observed.CrawlerPods() {
		if len(pod.Spec.Containers) == 0 {
			continue
		}
		info := status.PodInfoFor(pod.Name)
		requests := pod.Spec.Containers[0].Resources.Requests
		if mem, ok := requests[corev1.ResourceMemory]; ok {
			info.Allocated.Memory = mem.Value()
		}
		if cpu, ok := requests[corev1.ResourceCPU]; ok {
			info.Allocated.CPU = cpu.MilliValue()
		}
	}
}

func ptrTime(t time.Time) *metav1.Time {
	mt := metav1.NewTime(t)
	return &mt
}

func crawlStatePatch(state btrixv1.CrawlState) map[string]interface{} {
	return map[string]interface{}{"state": string(state)}
}

func statsFromStatus(status *btrixv1.CrawlJobStatus) store.CrawlStats {
	return store.CrawlStats{
		Found: status.PagesFound,
		Done:  status.PagesDone,
		Size:  status.Size,
	}
}
