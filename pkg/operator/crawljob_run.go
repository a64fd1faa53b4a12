/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package operator

import (
	"context"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/klog/v2"

	btrixv1 "github.com/webrecorder/btrix-operator/pkg/apis/btrix/v1"
	"github.com/webrecorder/btrix-operator/pkg/crawlredis"
	"github.com/webrecorder/btrix-operator/pkg/store"
	"github.com/webrecorder/btrix-operator/pkg/utils/timeutil"
)

// observeProgress pulls heartbeat aggregates and drains a bounded page batch
// into the progress store. Store failures leave the CR status authoritative
// and are retried next reconcile.
func (r *CrawlJobReconciler) observeProgress(ctx context.Context, ch CrawlChannel, crawl *btrixv1.CrawlJob, status *btrixv1.CrawlJobStatus, beats map[int]*crawlredis.Heartbeat) {
	id := crawl.Spec.Id

	var pagesDone int64
	for _, hb := range beats {
		pagesDone += hb.PagesDone
	}
	if pagesDone > status.PagesDone {
		status.PagesDone = pagesDone
	}
	if size, err := ch.CrawlSize(ctx, id); err == nil && size > status.Size {
		status.Size = size
	}
	if found, err := ch.PagesFound(ctx, id); err == nil && found > status.PagesFound {
		status.PagesFound = found
	}

	r.drainPages(ctx, ch, crawl, status, r.pageDrainBatch)
}

func (r *CrawlJobReconciler) drainPages(ctx context.Context, ch CrawlChannel, crawl *btrixv1.CrawlJob, status *btrixv1.CrawlJobStatus, batch int) {
	entries, err := ch.DrainPages(ctx, crawl.Spec.Id, batch)
	if err != nil {
		status.Resync = true
		return
	}
	if len(entries) > 0 {
		r.storePageEntries(ctx, crawl, status, entries)
	}
}

// observeExits records container terminations into PodInfo. Exit handling is
// edge-triggered on IsNewExit; the flag stays set until finalization reads it.
func (r *CrawlJobReconciler) observeExits(crawl *btrixv1.CrawlJob, status *btrixv1.CrawlJobStatus, observed *ObservedChildren) {
	for _, pod := range observed.CrawlerPods() {
		info := status.PodInfoFor(pod.Name)
		for _, cs := range pod.Status.ContainerStatuses {
			term := cs.State.Terminated
			if term == nil {
				continue
			}
			if info.ExitCode != nil && *info.ExitCode == term.ExitCode {
				continue
			}
			code := term.ExitCode
			info.ExitCode = &code
			info.Reason = term.Reason
			info.IsNewExit = true
			klog.Infof("crawl %s pod %s exited with code %d", crawl.Spec.Id, pod.Name, code)
		}
	}
}

// allWorkersFailed reports whether every crawler pod has terminated with a
// nonzero exit code.
func allWorkersFailed(status *btrixv1.CrawlJobStatus) bool {
	if len(status.PodStatus) == 0 {
		return false
	}
	for _, info := range status.PodStatus {
		if info.ExitCode == nil || *info.ExitCode == exitCodeSuccess {
			return false
		}
	}
	return true
}

func anyWorkerNotLoggedIn(status *btrixv1.CrawlJobStatus) bool {
	for _, info := range status.PodStatus {
		if info.ExitCode != nil && *info.ExitCode == exitCodeNotLoggedIn {
			return true
		}
	}
	return false
}

// reconcileWaiting moves starting crawls forward on the first heartbeat, or
// sideways to waiting_capacity when the start window elapses.
func (r *CrawlJobReconciler) reconcileWaiting(crawl *btrixv1.CrawlJob, status *btrixv1.CrawlJobStatus, beats map[int]*crawlredis.Heartbeat, now time.Time) {
	if len(beats) > 0 {
		status.State = btrixv1.StateRunning
		if status.Started == nil {
			status.Started = ptrTime(now)
		}
		status.LastUpdatedTime = ptrTime(now)
		klog.Infof("crawl %s running with %d worker(s)", crawl.Spec.Id, len(beats))
		return
	}
	if status.State == btrixv1.StateStarting &&
		now.Sub(crawl.CreationTimestamp.Time) > r.startingTimeout {
		status.State = btrixv1.StateWaitingCapacity
		klog.Infof("crawl %s still unscheduled after %s, waiting for capacity", crawl.Spec.Id, r.startingTimeout)
	}
}

// reconcilePaused resumes a paused crawl once its trigger has slack again:
// user unpause, quota increase, or month turn.
func (r *CrawlJobReconciler) reconcilePaused(ctx context.Context, ch CrawlChannel, crawl *btrixv1.CrawlJob, status *btrixv1.CrawlJobStatus, now time.Time) {
	id := crawl.Spec.Id

	// stop wins over pause: finalize as user-stop
	if crawl.Spec.Stopping {
		status.StopReason = StopReasonUserStop
		if err := ch.SetStop(ctx, id); err != nil {
			status.Resync = true
			return
		}
		if err := ch.ClearPause(ctx, id); err != nil {
			status.Resync = true
		}
		return
	}

	resume := false
	switch status.State {
	case btrixv1.StatePaused:
		resume = !crawl.Spec.Paused
	case btrixv1.StatePausedStorageQuota:
		org, err := r.stores.Orgs.GetByID(ctx, crawl.Spec.OrgId)
		resume = err == nil && !org.StorageQuotaReached(0)
	case btrixv1.StatePausedTimeQuota:
		org, err := r.stores.Orgs.GetByID(ctx, crawl.Spec.OrgId)
		resume = err == nil && !org.ExecSecondsExhausted(timeutil.YearMonth(now))
	}
	if !resume {
		return
	}
	if err := ch.ClearPause(ctx, id); err != nil {
		status.Resync = true
		return
	}
	status.State = btrixv1.StateRunning
	status.PausedAt = nil
	status.LastUpdatedTime = ptrTime(now)
	klog.Infof("crawl %s resumed", id)
}

func (r *CrawlJobReconciler) reconcileRunning(ctx context.Context, ch CrawlChannel, crawl *btrixv1.CrawlJob, status *btrixv1.CrawlJobStatus, observed *ObservedChildren, metrics map[string]btrixv1.ResourceAmounts, beats map[int]*crawlredis.Heartbeat, now time.Time) {
	id := crawl.Spec.Id

	org := r.debitExecSeconds(ctx, crawl, status, observed, now)

	// user pause: fold the active stretch into the running total first
	if crawl.Spec.Paused && !crawl.Spec.Stopping {
		if err := ch.SetPause(ctx, id); err != nil {
			status.Resync = true
			return
		}
		status.State = btrixv1.StatePaused
		status.PausedAt = ptrTime(now)
		klog.Infof("crawl %s paused by user", id)
		return
	}

	if org != nil {
		yymm := timeutil.YearMonth(now)
		if org.ExecSecondsExhausted(yymm) {
			r.pauseForQuota(ctx, ch, crawl, status, now, btrixv1.StatePausedTimeQuota)
			return
		}
		if org.StorageQuotaReached(status.Size) {
			r.pauseForQuota(ctx, ch, crawl, status, now, btrixv1.StatePausedStorageQuota)
			return
		}
	}

	// graceful stop triggers, in precedence order
	switch {
	case crawl.Spec.Stopping && status.StopReason == "":
		r.requestStop(ctx, ch, crawl, status, StopReasonUserStop)
	case crawl.Spec.MaxCrawlSize > 0 && status.Size >= crawl.Spec.MaxCrawlSize && status.StopReason == "":
		r.requestStop(ctx, ch, crawl, status, StopReasonSizeLimit)
	case crawl.GetTimeout() > 0 && crawl.ActiveSeconds(now) >= int64(crawl.GetTimeout()) && status.StopReason == "":
		r.requestStop(ctx, ch, crawl, status, StopReasonTimeLimit)
	}

	r.applyMemoryPolicy(ctx, ch, crawl, status, metrics)

	if allWorkersFailed(status) {
		state := btrixv1.StateFailed
		if anyWorkerNotLoggedIn(status) {
			state = btrixv1.StateFailedNotLoggedIn
		}
		status.State = state
		status.Finished = ptrTime(now)
		if _, err := r.stores.Crawls.MarkFinished(ctx, id, string(state), now, statsFromStatus(status)); err != nil {
			klog.ErrorS(err, "record failed crawl", "crawl", id)
		}
		r.recordWorkflowAggregates(ctx, crawl, status)
		klog.Infof("crawl %s failed: all workers exited nonzero", id)
		return
	}

	status.LastUpdatedTime = ptrTime(now)
}

func (r *CrawlJobReconciler) requestStop(ctx context.Context, ch CrawlChannel, crawl *btrixv1.CrawlJob, status *btrixv1.CrawlJobStatus, reason string) {
	if err := ch.SetStop(ctx, crawl.Spec.Id); err != nil {
		status.Resync = true
		return
	}
	status.StopReason = reason
	klog.Infof("crawl %s graceful stop requested: %s", crawl.Spec.Id, reason)
}

func (r *CrawlJobReconciler) pauseForQuota(ctx context.Context, ch CrawlChannel, crawl *btrixv1.CrawlJob, status *btrixv1.CrawlJobStatus, now time.Time, state btrixv1.CrawlState) {
	if err := ch.SetPause(ctx, crawl.Spec.Id); err != nil {
		status.Resync = true
		return
	}
	status.State = state
	status.PausedAt = ptrTime(now)
	klog.Infof("crawl %s paused: %s", crawl.Spec.Id, state)
}

// debitExecSeconds charges the elapsed active browser seconds against the
// org pools. The delta is bounded so a missed reconcile can never charge
// more than one update window. Returns the org as read, or nil when the
// store was unreachable.
func (r *CrawlJobReconciler) debitExecSeconds(ctx context.Context, crawl *btrixv1.CrawlJob, status *btrixv1.CrawlJobStatus, observed *ObservedChildren, now time.Time) *store.Organization {
	org, err := r.stores.Orgs.GetByID(ctx, crawl.Spec.OrgId)
	if err != nil {
		status.Resync = true
		return nil
	}
	if status.LastUpdatedTime == nil {
		return org
	}

	delta := now.Sub(status.LastUpdatedTime.Time)
	if delta <= 0 {
		return org
	}
	if delta > r.execUpdateBound {
		delta = r.execUpdateBound
	}
	deltaSeconds := int64(delta.Seconds())
	if deltaSeconds == 0 {
		return org
	}

	alivePods := 0
	for _, pod := range observed.CrawlerPods() {
		if pod.Status.Phase == corev1.PodRunning {
			alivePods++
		}
	}
	if alivePods == 0 {
		return org
	}
	execDelta := deltaSeconds * int64(alivePods) * int64(r.env.BrowsersPerPod)

	yymm := timeutil.YearMonth(now)
	debit := store.SplitExecSeconds(org, yymm, execDelta)
	if err = r.stores.Orgs.ApplyExecDebit(ctx, crawl.Spec.OrgId, yymm, debit); err != nil {
		klog.ErrorS(err, "exec debit deferred", "crawl", crawl.Spec.Id)
		status.Resync = true
		return org
	}
	status.ElapsedExecSeconds += deltaSeconds
	if err = r.stores.Crawls.IncCounters(ctx, crawl.Spec.Id, map[string]int64{"crawlExecSeconds": execDelta}); err != nil {
		klog.V(4).Infof("crawl %s exec counter deferred: %v", crawl.Spec.Id, err)
	}

	// keep the in-memory org in step so quota checks below see the debit
	if org.MonthlyExecSeconds == nil {
		org.MonthlyExecSeconds = map[string]int64{}
	}
	org.MonthlyExecSeconds[yymm] += debit.Monthly
	org.ExtraExecSecondsAvailable -= debit.Extra
	org.GiftedExecSecondsAvailable -= debit.Gifted
	return org
}

// applyMemoryPolicy scales a pod's memory after two consecutive reconciles
// at or above the threshold, and requests a graceful stop on hitting the
// allocation ceiling.
func (r *CrawlJobReconciler) applyMemoryPolicy(ctx context.Context, ch CrawlChannel, crawl *btrixv1.CrawlJob, status *btrixv1.CrawlJobStatus, metrics map[string]btrixv1.ResourceAmounts) {
	for name, used := range metrics {
		info, ok := status.PodStatus[name]
		if !ok || info.Allocated.Memory == 0 {
			continue
		}
		info.Used = used

		ratio := float64(used.Memory) / float64(info.Allocated.Memory)
		switch {
		case ratio >= memStopThreshold:
			// soft OOM: stop gracefully before the kernel kills the pod
			if status.StopReason == "" {
				r.requestStop(ctx, ch, crawl, status, StopReasonOOM)
			}
			info.HighMemory = true
			klog.Infof("crawl %s pod %s at %.0f%% of memory allocation, soft OOM stop", crawl.Spec.Id, name, ratio*100)
		case ratio >= memScaleThreshold:
			if info.HighMemory && info.NewMemory == 0 {
				info.NewMemory = int64(float64(info.Allocated.Memory) * memScaleUp)
				klog.Infof("crawl %s pod %s memory scaled to %d bytes", crawl.Spec.Id, name, info.NewMemory)
			}
			info.HighMemory = true
		default:
			info.HighMemory = false
		}
	}
}

// readyToFinalize is true once every heartbeating worker has quiesced: all
// reported states are done or interrupted, and at least one worker ever ran.
func (r *CrawlJobReconciler) readyToFinalize(status *btrixv1.CrawlJobStatus, observed *ObservedChildren, beats map[int]*crawlredis.Heartbeat) bool {
	if status.State.IsTerminal() || status.State.IsWaiting() {
		return false
	}
	if status.State.IsPaused() {
		// a stopped-while-paused crawl has no workers left to wait for
		return status.StopReason == StopReasonUserStop
	}
	if len(beats) == 0 {
		return false
	}
	for _, hb := range beats {
		switch hb.State {
		case btrixv1.WorkerStateDone, btrixv1.WorkerStateInterrupted:
		default:
			return false
		}
	}
	return true
}
