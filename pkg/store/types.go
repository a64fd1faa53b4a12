/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package store

import (
	"time"
)

// Crawl is the persisted record of one crawl (or upload, or QA run).
type Crawl struct {
	Id       string `bson:"_id"`
	Oid      string `bson:"oid"`
	Cid      string `bson:"cid"`
	UserId   string `bson:"userid"`
	Type     string `bson:"type"`
	Manual   bool   `bson:"manual"`
	Scheduled bool  `bson:"scheduled,omitempty"`

	Started  time.Time  `bson:"started"`
	Finished *time.Time `bson:"finished,omitempty"`
	State    string     `bson:"state"`
	Stopping bool       `bson:"stopping,omitempty"`
	Paused   bool       `bson:"paused,omitempty"`

	StopReason   string `bson:"stopReason,omitempty"`
	CrawlerImage string `bson:"image,omitempty"`

	Files []CrawlFile `bson:"files,omitempty"`
	Stats CrawlStats  `bson:"stats"`

	FilePageCount   int64 `bson:"filePageCount,omitempty"`
	ErrorPageCount  int64 `bson:"errorPageCount,omitempty"`
	PageCount       int64 `bson:"pageCount,omitempty"`
	UniquePageCount int64 `bson:"uniquePageCount,omitempty"`

	CrawlExecSeconds int64 `bson:"crawlExecSeconds,omitempty"`
}

// CrawlFile describes one finalized WACZ artifact. Write-once except
// Replicas, which grows as replication jobs succeed.
type CrawlFile struct {
	Filename string        `bson:"filename"`
	Hash     string        `bson:"hash"`
	Size     int64         `bson:"size"`
	Storage  string        `bson:"storage"`
	Replicas []FileReplica `bson:"replicas,omitempty"`
}

type FileReplica struct {
	Name string `bson:"name"`
	Path string `bson:"custom,omitempty"`
}

type CrawlStats struct {
	Found int64 `bson:"found"`
	Done  int64 `bson:"done"`
	Size  int64 `bson:"size"`
}

// CrawlConfig is a reusable workflow from which crawls are materialized,
// manually or on schedule. The aggregate fields (CrawlCount and friends) are
// derived state recomputed on any terminal transition of a referencing crawl.
type CrawlConfig struct {
	Id         string   `bson:"_id"`
	Oid        string   `bson:"oid"`
	Name       string   `bson:"name,omitempty"`
	ScopeType  string   `bson:"scopeType,omitempty"`
	Seeds      []Seed   `bson:"seeds,omitempty"`
	SeedFileId string   `bson:"seedFileId,omitempty"`
	JobType    string   `bson:"jobType,omitempty"`
	Schedule   string   `bson:"schedule,omitempty"`

	CrawlTimeout   int64 `bson:"crawlTimeout,omitempty"`
	MaxCrawlSize   int64 `bson:"maxCrawlSize,omitempty"`
	BrowserWindows int   `bson:"browserWindows,omitempty"`

	ProfileId          string   `bson:"profileid,omitempty"`
	CrawlerChannel     string   `bson:"crawlerChannel,omitempty"`
	ProxyId            string   `bson:"proxyId,omitempty"`
	AutoAddCollections []string `bson:"autoAddCollections,omitempty"`

	CreatedBy string `bson:"createdBy,omitempty"`
	Inactive  bool   `bson:"inactive,omitempty"`

	LastCrawlId      string     `bson:"lastCrawlId,omitempty"`
	LastCrawlState   string     `bson:"lastCrawlState,omitempty"`
	LastCrawlTime    *time.Time `bson:"lastCrawlTime,omitempty"`
	LastStartedBy    string     `bson:"lastStartedBy,omitempty"`
	CrawlCount           int64 `bson:"crawlCount,omitempty"`
	CrawlSuccessfulCount int64 `bson:"crawlSuccessfulCount,omitempty"`
	TotalSize            int64 `bson:"totalSize,omitempty"`
}

type Seed struct {
	Url       string `bson:"url"`
	ScopeType string `bson:"scopeType,omitempty"`
	Depth     *int   `bson:"depth,omitempty"`
	Limit     *int   `bson:"limit,omitempty"`
}

// OrgQuotas are the configured limits; zero means unlimited.
type OrgQuotas struct {
	MaxConcurrentCrawls    int   `bson:"maxConcurrentCrawls,omitempty"`
	MaxPagesPerCrawl       int64 `bson:"maxPagesPerCrawl,omitempty"`
	StorageQuota           int64 `bson:"storageQuota,omitempty"`
	MaxExecMinutesPerMonth int64 `bson:"maxExecMinutesPerMonth,omitempty"`
	ExtraExecMinutes       int64 `bson:"extraExecMinutes,omitempty"`
	GiftedExecMinutes      int64 `bson:"giftedExecMinutes,omitempty"`
}

// Organization holds quotas and running byte/second counters. The counters
// are only ever mutated through atomic increments (see OrgRepo.IncCounters),
// never by read-modify-write.
type Organization struct {
	Id   string `bson:"_id"`
	Name string `bson:"name"`
	Slug string `bson:"slug"`

	Quotas OrgQuotas `bson:"quotas"`

	BytesStored           int64 `bson:"bytesStored"`
	BytesStoredCrawls     int64 `bson:"bytesStoredCrawls"`
	BytesStoredUploads    int64 `bson:"bytesStoredUploads"`
	BytesStoredProfiles   int64 `bson:"bytesStoredProfiles"`
	BytesStoredSeedFiles  int64 `bson:"bytesStoredSeedFiles"`
	BytesStoredThumbnails int64 `bson:"bytesStoredThumbnails"`

	// month-keyed ("2026-08") execution-second pools
	MonthlyExecSeconds map[string]int64 `bson:"monthlyExecSeconds,omitempty"`
	ExtraExecSeconds   map[string]int64 `bson:"extraExecSeconds,omitempty"`
	GiftedExecSeconds  map[string]int64 `bson:"giftedExecSeconds,omitempty"`

	ExtraExecSecondsAvailable  int64 `bson:"extraExecSecondsAvailable"`
	GiftedExecSecondsAvailable int64 `bson:"giftedExecSecondsAvailable"`

	ReadOnly       bool   `bson:"readOnly,omitempty"`
	ReadOnlyReason string `bson:"readOnlyReason,omitempty"`
	Subscription   string `bson:"subscription,omitempty"`

	Storage         string   `bson:"storage,omitempty"`
	StorageReplicas []string `bson:"storageReplicas,omitempty"`
}

// MonthlySecondsUsed returns the seconds already debited from the monthly
// pool for the given month key.
func (o *Organization) MonthlySecondsUsed(yymm string) int64 {
	if o.MonthlyExecSeconds == nil {
		return 0
	}
	return o.MonthlyExecSeconds[yymm]
}

// MonthlySecondsRemaining returns the slack left in the monthly pool, or -1
// when the pool is unlimited.
func (o *Organization) MonthlySecondsRemaining(yymm string) int64 {
	if o.Quotas.MaxExecMinutesPerMonth == 0 {
		return -1
	}
	remaining := o.Quotas.MaxExecMinutesPerMonth*60 - o.MonthlySecondsUsed(yymm)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ExecSecondsExhausted reports whether all three pools are empty for the
// given month.
func (o *Organization) ExecSecondsExhausted(yymm string) bool {
	if o.Quotas.MaxExecMinutesPerMonth == 0 {
		return false
	}
	return o.MonthlySecondsRemaining(yymm) == 0 &&
		o.ExtraExecSecondsAvailable <= 0 &&
		o.GiftedExecSecondsAvailable <= 0
}

// StorageQuotaReached reports whether bytesStored plus the pending size would
// exceed the configured storage quota.
func (o *Organization) StorageQuotaReached(pendingSize int64) bool {
	if o.Quotas.StorageQuota == 0 {
		return false
	}
	return o.BytesStored+pendingSize > o.Quotas.StorageQuota
}

type PageQA struct {
	TextMatch       float64          `bson:"textMatch,omitempty"`
	ScreenshotMatch float64          `bson:"screenshotMatch,omitempty"`
	ResourceCounts  map[string]int64 `bson:"resourceCounts,omitempty"`
}

type Page struct {
	Id      string `bson:"_id"`
	CrawlId string `bson:"crawl_id"`
	Oid     string `bson:"oid"`

	Url   string     `bson:"url"`
	Ts    *time.Time `bson:"ts,omitempty"`
	Title string     `bson:"title,omitempty"`

	LoadState int    `bson:"loadState,omitempty"`
	Status    int    `bson:"status,omitempty"`
	Mime      string `bson:"mime,omitempty"`
	Depth     int    `bson:"depth,omitempty"`

	IsSeed  bool `bson:"isSeed,omitempty"`
	IsError bool `bson:"isError,omitempty"`
	IsFile  bool `bson:"isFile,omitempty"`

	QA map[string]*PageQA `bson:"qa,omitempty"`
}

// BackgroundJob is a sum type discriminated by Type. Once Finished is set,
// Success is final; until then both are unset.
type BackgroundJob struct {
	Id      string     `bson:"_id"`
	Type    string     `bson:"type"`
	Oid     string     `bson:"oid,omitempty"`
	Started time.Time  `bson:"started"`
	Finished *time.Time `bson:"finished,omitempty"`
	Success  *bool      `bson:"success,omitempty"`

	// no omitempty: ClaimPending's $lt filter must see attempts=0 on
	// fresh jobs, and a missing field never matches a range operator.
	Attempts int `bson:"attempts"`

	// create-replica / delete-replica
	FilePath       string `bson:"file_path,omitempty"`
	ObjectType     string `bson:"object_type,omitempty"`
	ObjectId       string `bson:"object_id,omitempty"`
	ReplicaStorage string `bson:"replica_storage,omitempty"`
	PrimaryStorage string `bson:"primary_storage,omitempty"`

	// delete-replica grace window
	DeleteAfter *time.Time `bson:"delete_after,omitempty"`
}

type Collection struct {
	Id          string    `bson:"_id"`
	Oid         string    `bson:"oid"`
	Name        string    `bson:"name"`
	Slug        string    `bson:"slug"`
	Description string    `bson:"description,omitempty"`
	CrawlIds    []string  `bson:"crawlIds,omitempty"`
	Modified    time.Time `bson:"modified"`
	TotalSize   int64     `bson:"totalSize,omitempty"`
	PageCount   int64     `bson:"pageCount,omitempty"`
}

type Invite struct {
	Id      string    `bson:"_id"`
	Email   string    `bson:"email"`
	Oid     string    `bson:"oid,omitempty"`
	Created time.Time `bson:"created"`
	Role    int       `bson:"role,omitempty"`
}

type SeedFile struct {
	Id       string    `bson:"_id"`
	Oid      string    `bson:"oid"`
	Filename string    `bson:"filename"`
	Hash     string    `bson:"hash,omitempty"`
	Size     int64     `bson:"size,omitempty"`
	Storage  string    `bson:"storage,omitempty"`
	Created  time.Time `bson:"created"`
}
