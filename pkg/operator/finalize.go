/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package operator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	btrixv1 "github.com/webrecorder/btrix-operator/pkg/apis/btrix/v1"
	"github.com/webrecorder/btrix-operator/pkg/crawlredis"
	"github.com/webrecorder/btrix-operator/pkg/store"
	"github.com/webrecorder/btrix-operator/pkg/utils/timeutil"
)

// finalDrainRounds bounds how many page batches finalization drains; beyond
// this the rest is picked up by the next reconcile before TTL teardown.
const finalDrainRounds = 50

// finalizeCrawl runs once, when every worker has quiesced: it drains the
// remaining page stream, registers WACZ files, enqueues replication, marks
// the crawl finished and freezes the terminal state.
func (r *CrawlJobReconciler) finalizeCrawl(ctx context.Context, ch CrawlChannel, crawl *btrixv1.CrawlJob, status *btrixv1.CrawlJobStatus, beats map[int]*crawlredis.Heartbeat, now time.Time) error {
	id := crawl.Spec.Id

	for i := 0; i < finalDrainRounds; i++ {
		entries, err := ch.DrainPages(ctx, id, r.pageDrainBatch)
		if err != nil || len(entries) == 0 {
			break
		}
		// re-feed through the normal drain path for store bookkeeping
		r.storePageEntries(ctx, crawl, status, entries)
	}

	if err := r.registerFiles(ctx, ch, crawl, status); err != nil {
		return err
	}

	state := r.terminalState(status, beats)
	status.State = state
	status.Finished = ptrTime(now)
	if status.PausedAt == nil && status.LastUpdatedTime != nil {
		status.ElapsedExecSeconds = crawl.ActiveSeconds(now)
	}
	status.LastUpdatedTime = ptrTime(now)

	applied, err := r.stores.Crawls.MarkFinished(ctx, id, string(state), now, statsFromStatus(status))
	if err != nil {
		return err
	}
	if applied {
		r.recordWorkflowAggregates(ctx, crawl, status)
		if state.IsSuccessful() {
			r.autoAddCollections(ctx, crawl, status)
		}
	}
	klog.Infof("crawl %s finished: %s, %d pages, %d files, %d bytes",
		id, state, status.PagesDone, status.FilesAdded, status.FilesAddedSize)
	return nil
}

// storePageEntries is the unbatched form of drainPages used during the final
// drain, where the entries were already popped.
func (r *CrawlJobReconciler) storePageEntries(ctx context.Context, crawl *btrixv1.CrawlJob, status *btrixv1.CrawlJobStatus, entries []*crawlredis.PageEntry) {
	pages := make([]*store.Page, 0, len(entries))
	var errorCount, fileCount int64
	for _, entry := range entries {
		page := pageFromEntry(crawl, entry)
		if entry.IsError {
			errorCount++
		}
		if entry.IsFile {
			fileCount++
		}
		pages = append(pages, page)
	}
	unique, err := r.stores.Pages.UpsertBatch(ctx, pages)
	if err != nil {
		klog.V(4).Infof("crawl %s final page drain deferred: %v", crawl.Spec.Id, err)
		return
	}
	deltas := map[string]int64{
		"pageCount":       int64(len(pages)),
		"uniquePageCount": unique,
	}
	if errorCount > 0 {
		deltas["errorPageCount"] = errorCount
	}
	if fileCount > 0 {
		deltas["filePageCount"] = fileCount
	}
	if err = r.stores.Crawls.IncCounters(ctx, crawl.Spec.Id, deltas); err != nil {
		klog.V(4).Infof("crawl %s page counters deferred: %v", crawl.Spec.Id, err)
	}
}

// registerFiles turns the workers' upload reports into CrawlFile records,
// charges storage and enqueues one create-replica job per file per replica
// target. Duplicate hashes on the same crawl are dropped.
func (r *CrawlJobReconciler) registerFiles(ctx context.Context, ch CrawlChannel, crawl *btrixv1.CrawlJob, status *btrixv1.CrawlJobStatus) error {
	id := crawl.Spec.Id
	entries, err := ch.DrainFiles(ctx, id)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	org, err := r.stores.Orgs.GetByID(ctx, crawl.Spec.OrgId)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		file := store.CrawlFile{
			Filename: entry.Filename,
			Hash:     entry.Hash,
			Size:     entry.Size,
			Storage:  crawl.Spec.StorageName,
		}
		added, err := r.stores.Crawls.AddFile(ctx, id, file)
		if err != nil {
			return err
		}
		if !added {
			klog.V(4).Infof("crawl %s duplicate file hash %s skipped", id, entry.Hash)
			continue
		}
		status.FilesAdded++
		status.FilesAddedSize += entry.Size

		if err = r.stores.Orgs.IncStorage(ctx, crawl.Spec.OrgId, btrixv1.CrawlTypeCrawl, entry.Size); err != nil {
			klog.ErrorS(err, "storage debit deferred", "crawl", id, "file", entry.Filename)
		}
		for _, replica := range org.StorageReplicas {
			job := &store.BackgroundJob{
				Type:           btrixv1.BgJobCreateReplica,
				Oid:            crawl.Spec.OrgId,
				FilePath:       entry.Filename,
				ObjectType:     btrixv1.CrawlTypeCrawl,
				ObjectId:       id,
				PrimaryStorage: crawl.Spec.StorageName,
				ReplicaStorage: replica,
			}
			if err = r.stores.Jobs.Insert(ctx, job); err != nil {
				klog.ErrorS(err, "enqueue replica job", "crawl", id, "file", entry.Filename)
			}
		}
	}
	return nil
}

// terminalState maps the stop reason and worker outcomes onto the closed
// terminal state set.
func (r *CrawlJobReconciler) terminalState(status *btrixv1.CrawlJobStatus, beats map[int]*crawlredis.Heartbeat) btrixv1.CrawlState {
	switch status.StopReason {
	case StopReasonUserStop:
		return btrixv1.StateCompleteUserStop
	case StopReasonSizeLimit:
		return btrixv1.StateCompleteSizeLimit
	case StopReasonTimeLimit:
		return btrixv1.StateCompleteTimeLimit
	case StopReasonOOM:
		if status.PagesDone > 0 {
			return btrixv1.StateCompletePartial
		}
		return btrixv1.StateFailed
	}
	for _, hb := range beats {
		if hb.State == btrixv1.WorkerStateInterrupted {
			return btrixv1.StateCompletePartial
		}
	}
	if status.PagesDone == 0 && status.FilesAdded == 0 {
		return btrixv1.StateFailed
	}
	return btrixv1.StateComplete
}

// recordWorkflowAggregates recomputes the owning workflow's derived fields
// after any terminal transition.
func (r *CrawlJobReconciler) recordWorkflowAggregates(ctx context.Context, crawl *btrixv1.CrawlJob, status *btrixv1.CrawlJobStatus) {
	if crawl.Spec.ConfigId == "" || status.Finished == nil {
		return
	}
	err := r.stores.Configs.RecordCrawlFinished(ctx,
		crawl.Spec.ConfigId, crawl.Spec.Id, string(status.State), crawl.Spec.UserId,
		status.Finished.Time, status.FilesAddedSize, status.State.IsSuccessful())
	if err != nil {
		klog.ErrorS(err, "workflow aggregates deferred", "workflow", crawl.Spec.ConfigId)
	}
}

// autoAddCollections attaches the finished crawl to the workflow's
// auto-add collections.
func (r *CrawlJobReconciler) autoAddCollections(ctx context.Context, crawl *btrixv1.CrawlJob, status *btrixv1.CrawlJobStatus) {
	config, err := r.stores.Configs.GetByID(ctx, crawl.Spec.ConfigId)
	if err != nil || len(config.AutoAddCollections) == 0 {
		return
	}
	err = r.stores.Collections.AddCrawl(ctx, crawl.Spec.OrgId, crawl.Spec.Id,
		config.AutoAddCollections, status.FilesAddedSize, status.PagesDone)
	if err != nil {
		klog.ErrorS(err, "auto-add collections deferred", "crawl", crawl.Spec.Id)
	}
}

func pageFromEntry(crawl *btrixv1.CrawlJob, entry *crawlredis.PageEntry) *store.Page {
	page := &store.Page{
		Id:        entry.Id,
		CrawlId:   crawl.Spec.Id,
		Oid:       crawl.Spec.OrgId,
		Url:       entry.Url,
		Title:     entry.Title,
		LoadState: entry.LoadState,
		Status:    entry.Status,
		Mime:      entry.Mime,
		Depth:     entry.Depth,
		IsSeed:    entry.Seed,
		IsError:   entry.IsError,
		IsFile:    entry.IsFile,
	}
	if page.Id == "" {
		page.Id = uuid.NewString()
	}
	if ts, err := timeutil.ParseRFC3339Milli(entry.Ts); err == nil && !ts.IsZero() {
		page.Ts = &ts
	}
	return page
}
