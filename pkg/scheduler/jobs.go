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
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"
	"sigs.k8s.io/controller-runtime/pkg/client"

	btrixv1 "github.com/webrecorder/btrix-operator/pkg/apis/btrix/v1"
	"github.com/webrecorder/btrix-operator/pkg/config"
	btrixerrors "github.com/webrecorder/btrix-operator/pkg/errors"
	"github.com/webrecorder/btrix-operator/pkg/storage"
	"github.com/webrecorder/btrix-operator/pkg/store"
	"github.com/webrecorder/btrix-operator/pkg/utils/concurrent"
)

// errNotDue marks a claimed job whose grace window has not elapsed yet; it is
// requeued rather than finished.
var errNotDue = fmt.Errorf("job not due yet")

// Seed files uploaded inside this window are never collected, so an upload
// is safe until the workflow save that references it lands.
const seedFileGrace = time.Hour

// minStuckCutoff is the floor for stuck-job recovery. Jobs legitimately wait
// out the replica deletion grace window, so the cutoff must exceed it.
const minStuckCutoff = 7 * 24 * time.Hour

// JobRunner polls the background job queue and executes claimed jobs on a
// bounded worker pool. Replication, deletion cascades and stats rebuilds run
// here so the reconcile loop never blocks on object storage.
type JobRunner struct {
	stores  *Stores
	storage storage.Client
	kube    KubeWriter

	namespace    string
	concurrency  int
	pollInterval time.Duration
	replicaDelay time.Duration

	now func() time.Time
}

func NewJobRunner(stores *Stores, storageClient storage.Client, kube KubeWriter, namespace string) *JobRunner {
	return &JobRunner{
		stores:       stores,
		storage:      storageClient,
		kube:         kube,
		namespace:    namespace,
		concurrency:  config.GetJobConcurrency(),
		pollInterval: time.Duration(config.GetBgJobPollSecond()) * time.Second,
		replicaDelay: config.GetReplicaDeletionDelay(),
		now:          time.Now,
	}
}

// Run polls until the context is canceled.
func (r *JobRunner) Run(ctx context.Context) {
	klog.Infof("background job runner started, concurrency: %d, poll interval: %s",
		r.concurrency, r.pollInterval)
	pool := concurrent.NewPool(r.concurrency)
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			pool.Wait()
			klog.Info("background job runner stopped")
			return
		case <-ticker.C:
			r.recoverStuck(ctx)
			r.dispatch(ctx, pool)
		}
	}
}

func (r *JobRunner) dispatch(ctx context.Context, pool *concurrent.Pool) {
	jobs, err := r.stores.Jobs.ClaimPending(ctx, r.concurrency)
	if err != nil {
		klog.ErrorS(err, "background job claim failed")
		return
	}
	for _, job := range jobs {
		job := job
		pool.Submit(func() {
			r.runOne(ctx, job)
		})
	}
}

func (r *JobRunner) runOne(ctx context.Context, job *store.BackgroundJob) {
	err := r.handle(ctx, job)
	switch {
	case err == nil:
		if err = r.stores.Jobs.MarkFinished(ctx, job.Id, true); err != nil {
			klog.ErrorS(err, "background job finish not recorded", "job", job.Id)
		}
		klog.Infof("background job %s done, type: %s", job.Id, job.Type)
	case err == errNotDue:
		if err = r.stores.Jobs.Requeue(ctx, job.Id); err != nil {
			klog.ErrorS(err, "background job requeue failed", "job", job.Id)
		}
	case btrixerrors.IsRetryable(err):
		klog.ErrorS(err, "background job failed, will retry", "job", job.Id, "type", job.Type)
		if err = r.stores.Jobs.Requeue(ctx, job.Id); err != nil {
			klog.ErrorS(err, "background job requeue failed", "job", job.Id)
		}
	default:
		klog.ErrorS(err, "background job failed permanently", "job", job.Id, "type", job.Type)
		if err = r.stores.Jobs.MarkFinished(ctx, job.Id, false); err != nil {
			klog.ErrorS(err, "background job failure not recorded", "job", job.Id)
		}
	}
}

func (r *JobRunner) handle(ctx context.Context, job *store.BackgroundJob) error {
	switch job.Type {
	case btrixv1.BgJobCreateReplica:
		return r.createReplica(ctx, job)
	case btrixv1.BgJobDeleteReplica:
		return r.deleteReplica(ctx, job)
	case btrixv1.BgJobDeleteOrg:
		return r.deleteOrg(ctx, job)
	case btrixv1.BgJobRecalculateStats:
		return r.recalculateOrgStats(ctx, job)
	case btrixv1.BgJobCleanupSeedFiles:
		return r.cleanupSeedFiles(ctx, job)
	case btrixv1.BgJobReAddOrgPages:
		return r.reAddOrgPages(ctx, job)
	default:
		return btrixerrors.NewBadRequest(fmt.Sprintf("unknown background job type %q", job.Type))
	}
}

// createReplica copies one finalized file to a replica storage and records
// the replica on the owning crawl document.
func (r *JobRunner) createReplica(ctx context.Context, job *store.BackgroundJob) error {
	if err := r.storage.Copy(ctx, job.PrimaryStorage, job.FilePath, job.ReplicaStorage, job.FilePath); err != nil {
		return err
	}
	if job.ObjectType == btrixv1.CrawlTypeCrawl || job.ObjectType == btrixv1.CrawlTypeUpload {
		recorded, err := r.stores.Crawls.AddFileReplica(ctx, job.ObjectId, job.FilePath,
			store.FileReplica{Name: job.ReplicaStorage})
		if err != nil {
			return err
		}
		if !recorded {
			// a retried copy lands here; the replica is already on the file
			klog.V(4).Infof("replica %s already recorded on crawl %s file %s",
				job.ReplicaStorage, job.ObjectId, job.FilePath)
		}
	}
	return nil
}

// deleteReplica removes a replica object once its grace window elapsed.
func (r *JobRunner) deleteReplica(ctx context.Context, job *store.BackgroundJob) error {
	if job.DeleteAfter != nil && r.now().UTC().Before(*job.DeleteAfter) {
		return errNotDue
	}
	return r.storage.Delete(ctx, job.ReplicaStorage, job.FilePath)
}

// deleteOrg cascades an org deletion: running crawls are canceled, stored
// objects with their replicas and seed files removed, then every per-org
// collection and finally the org document itself.
func (r *JobRunner) deleteOrg(ctx context.Context, job *store.BackgroundJob) error {
	oid := job.Oid
	crawls, err := r.stores.Crawls.Find(ctx, store.NewQuery().Eq("oid", oid), nil, 0)
	if err != nil {
		return err
	}

	for _, crawl := range crawls {
		if crawl.Finished == nil {
			if err = r.cancelCrawlJob(ctx, crawl.Id); err != nil {
				return err
			}
		}
		for _, file := range crawl.Files {
			if err = r.storage.Delete(ctx, file.Storage, file.Filename); err != nil {
				klog.ErrorS(err, "org file delete failed", "org", oid, "file", file.Filename)
			}
			for _, replica := range file.Replicas {
				if err = r.storage.Delete(ctx, replica.Name, file.Filename); err != nil {
					klog.ErrorS(err, "org replica delete failed", "org", oid, "file", file.Filename)
				}
			}
		}
	}

	seedFiles, err := r.stores.SeedFiles.FindByOrg(ctx, oid)
	if err != nil {
		return err
	}
	for _, file := range seedFiles {
		storageName := file.Storage
		if storageName == "" {
			storageName = "default"
		}
		if err = r.storage.Delete(ctx, storageName, file.Filename); err != nil {
			klog.ErrorS(err, "org seed file delete failed", "org", oid, "file", file.Id)
		}
	}

	if _, err = r.stores.Pages.DeleteByOrg(ctx, oid); err != nil {
		return err
	}
	if _, err = r.stores.Crawls.DeleteByOrg(ctx, oid); err != nil {
		return err
	}
	if _, err = r.stores.Workflows.DeleteByOrg(ctx, oid); err != nil {
		return err
	}
	if _, err = r.stores.Collections.DeleteByOrg(ctx, oid); err != nil {
		return err
	}
	if _, err = r.stores.SeedFiles.DeleteByOrg(ctx, oid); err != nil {
		return err
	}
	if err = r.stores.Orgs.Delete(ctx, oid); err != nil {
		return err
	}
	// queued jobs for the org are purged last; this one is already claimed so
	// its own finish becomes a no-op
	if _, err = r.stores.Jobs.DeleteByOrg(ctx, oid); err != nil {
		return err
	}
	klog.Infof("org %s deleted, crawls removed: %d", oid, len(crawls))
	return nil
}

func (r *JobRunner) cancelCrawlJob(ctx context.Context, crawlId string) error {
	cj := &btrixv1.CrawlJob{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "crawljob-" + crawlId,
			Namespace: r.namespace,
		},
	}
	if err := r.kube.Delete(ctx, cj); err != nil {
		return client.IgnoreNotFound(err)
	}
	return nil
}

// recalculateOrgStats rebuilds the org's stored-bytes counter from a full
// listing of its storage prefix, repairing drift from interrupted
// finalizations.
func (r *JobRunner) recalculateOrgStats(ctx context.Context, job *store.BackgroundJob) error {
	org, err := r.stores.Orgs.GetByID(ctx, job.Oid)
	if err != nil {
		return err
	}
	storageName := org.Storage
	if storageName == "" {
		storageName = "default"
	}
	var total int64
	err = r.storage.List(ctx, storageName, org.Id+"/", func(key string, size int64) error {
		total += size
		return nil
	})
	if err != nil {
		return err
	}
	if err = r.stores.Orgs.Update(ctx, org.Id, bson.M{"bytesStored": total}); err != nil {
		return err
	}
	klog.Infof("org %s stats recalculated, bytesStored: %d", org.Id, total)
	return nil
}

// cleanupSeedFiles removes uploaded seed files that no workflow references.
func (r *JobRunner) cleanupSeedFiles(ctx context.Context, job *store.BackgroundJob) error {
	inUse, err := r.stores.Workflows.SeedFilesInUse(ctx)
	if err != nil {
		return err
	}
	files, err := r.stores.SeedFiles.FindCreatedBefore(ctx, r.now().UTC().Add(-seedFileGrace))
	if err != nil {
		return err
	}
	var removed int
	for _, file := range files {
		if inUse[file.Id] {
			continue
		}
		storageName := file.Storage
		if storageName == "" {
			storageName = "default"
		}
		if err = r.storage.Delete(ctx, storageName, file.Filename); err != nil {
			klog.ErrorS(err, "seed file delete failed", "file", file.Id)
			continue
		}
		if err = r.stores.SeedFiles.Delete(ctx, file.Id); err != nil {
			return err
		}
		if err = r.stores.Orgs.IncStorage(ctx, file.Oid, "seedFile", -file.Size); err != nil {
			return err
		}
		removed++
	}
	klog.Infof("seed file cleanup done, removed: %d", removed)
	return nil
}

// reAddOrgPages rebuilds the per-crawl page counters for every crawl in the
// org from the pages collection.
func (r *JobRunner) reAddOrgPages(ctx context.Context, job *store.BackgroundJob) error {
	crawls, err := r.stores.Crawls.Find(ctx, store.NewQuery().Eq("oid", job.Oid), nil, 0)
	if err != nil {
		return err
	}
	for _, crawl := range crawls {
		total, errored, files, err := r.stores.Pages.CountByCrawl(ctx, crawl.Id)
		if err != nil {
			return err
		}
		err = r.stores.Crawls.Update(ctx, crawl.Id, bson.M{
			"pageCount":      total,
			"errorPageCount": errored,
			"filePageCount":  files,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *JobRunner) recoverStuck(ctx context.Context) {
	window := r.replicaDelay + 24*time.Hour
	if window < minStuckCutoff {
		window = minStuckCutoff
	}
	failed, err := r.stores.Jobs.FailStuck(ctx, r.now().UTC().Add(-window))
	if err != nil {
		klog.ErrorS(err, "stuck job recovery failed")
		return
	}
	if failed > 0 {
		klog.Warningf("marked %d stuck background jobs failed", failed)
	}
}
