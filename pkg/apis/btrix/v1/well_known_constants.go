/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package v1

const (
	BtrixPrefix = "btrix."

	// Labels carried by every rendered child object. These labels are the sole
	// supported selector for crawl operations.
	CrawlLabel    = BtrixPrefix + "crawl"
	OrgLabel      = BtrixPrefix + "org"
	ConfigIdLabel = BtrixPrefix + "configid"

	// Identifies resources materialized from a workflow schedule.
	CrawlConfigLabel = BtrixPrefix + "crawlconfig"

	// Role label distinguishing crawler pods from the per-crawl redis pod.
	RoleLabel       = BtrixPrefix + "role"
	RoleCrawler     = "crawler"
	RoleRedis       = "redis"
	RoleProfile     = "profilebrowser"

	// Profile browser id label.
	ProfileLabel = BtrixPrefix + "profile"

	// Collection id label carried by replay index pods.
	CollectionLabel = BtrixPrefix + "collection"

	// Annotation recording the user that triggered the job.
	UserIdAnnotation = BtrixPrefix + "user.id"

	// Pod ordinal within the crawl, "0".."N-1".
	CrawlerIndexAnnotation = BtrixPrefix + "crawler.index"
)

// Crawl types persisted in the progress store.
const (
	CrawlTypeCrawl  = "crawl"
	CrawlTypeUpload = "upload"
	CrawlTypeQA     = "qa"
)

// Background job kinds.
const (
	BgJobCreateReplica    = "create-replica"
	BgJobDeleteReplica    = "delete-replica"
	BgJobDeleteOrg        = "delete-org"
	BgJobRecalculateStats = "recalculate-org-stats"
	BgJobReAddOrgPages    = "re-add-org-pages"
	BgJobCleanupSeedFiles = "cleanup-seed-files"
	BgJobOptimizePages    = "optimize-pages"
	BgJobMigration        = "migration-job"
)

// Worker-reported heartbeat states. A pod is quiescent once it reports one of
// the last two.
const (
	WorkerStateRunning     = "running"
	WorkerStateGenerateWACZ = "generate-wacz"
	WorkerStateUploading   = "uploading-wacz"
	WorkerStateDone        = "done"
	WorkerStateInterrupted = "interrupted"
)
