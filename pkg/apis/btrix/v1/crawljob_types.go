/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package v1

import (
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

type CrawlState string

const (
	CrawlJobKind   = "CrawlJob"
	ProfileJobKind = "ProfileJob"

	StateStarting        CrawlState = "starting"
	StateWaitingCapacity CrawlState = "waiting_capacity"
	StateWaitingOrgLimit CrawlState = "waiting_org_limit"
	StateRunning         CrawlState = "running"
	StateStopping        CrawlState = "stopping"
	StatePendingWait     CrawlState = "pending-wait"

	StatePaused             CrawlState = "paused"
	StatePausedStorageQuota CrawlState = "paused_storage_quota_reached"
	StatePausedTimeQuota    CrawlState = "paused_time_quota_reached"

	StateComplete          CrawlState = "complete"
	StateCompletePartial   CrawlState = "complete:partial"
	StateCompleteUserStop  CrawlState = "complete:user-stop"
	StateCompleteSizeLimit CrawlState = "complete:size-limit"
	StateCompleteTimeLimit CrawlState = "complete:time-limit"

	StateFailed             CrawlState = "failed"
	StateFailedNotLoggedIn  CrawlState = "failed_not_logged_in"
	StateCanceled           CrawlState = "canceled"
	StateSkippedStorageQuota CrawlState = "skipped_storage_quota_reached"
	StateSkippedTimeQuota    CrawlState = "skipped_time_quota_reached"
)

// State partitions. A state belongs to exactly one partition; transitions are
// monotonic RUNNING -> (PAUSED|WAITING) -> SUCCESSFUL|FAILED and the terminal
// partitions are frozen.
var (
	RunningStates = []CrawlState{StateRunning, StateStopping, StatePendingWait}

	WaitingStates = []CrawlState{StateStarting, StateWaitingCapacity, StateWaitingOrgLimit}

	PausedStates = []CrawlState{StatePaused, StatePausedStorageQuota, StatePausedTimeQuota}

	SuccessfulStates = []CrawlState{
		StateComplete, StateCompletePartial, StateCompleteUserStop,
		StateCompleteSizeLimit, StateCompleteTimeLimit,
	}

	FailedStates = []CrawlState{
		StateFailed, StateFailedNotLoggedIn, StateCanceled,
		StateSkippedStorageQuota, StateSkippedTimeQuota,
	}
)

func stateIn(state CrawlState, states []CrawlState) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

func (s CrawlState) IsRunning() bool    { return stateIn(s, RunningStates) }
func (s CrawlState) IsWaiting() bool    { return stateIn(s, WaitingStates) }
func (s CrawlState) IsPaused() bool     { return stateIn(s, PausedStates) }
func (s CrawlState) IsSuccessful() bool { return stateIn(s, SuccessfulStates) }
func (s CrawlState) IsFailed() bool     { return stateIn(s, FailedStates) }

// IsTerminal returns true once the crawl can never run again.
func (s CrawlState) IsTerminal() bool { return s.IsSuccessful() || s.IsFailed() }

type CrawlJobSpec struct {
	// Crawl id. Equals the persisted Crawl document id.
	Id string `json:"id"`
	// Owning organization id
	OrgId string `json:"oid"`
	// Workflow (CrawlConfig) id this job was materialized from
	ConfigId string `json:"cid"`
	// User that requested the crawl
	UserId string `json:"userid,omitempty"`
	// Requested crawl scale in browser windows (1..MAX_CRAWL_SCALE * NUM_BROWSERS)
	BrowserWindows int `json:"browserWindows"`
	// Crawl timeout in seconds. 0 = unlimited
	Timeout int `json:"timeout,omitempty"`
	// Crawl size limit in bytes. 0 = unlimited
	MaxCrawlSize int64 `json:"maxCrawlSize,omitempty"`
	// True when started by a user, false when materialized from a schedule
	Manual bool `json:"manual"`
	// True when materialized from a cron schedule
	Scheduled bool `json:"scheduled,omitempty"`
	// Graceful stop requested. Written once by the control plane, never cleared.
	Stopping bool `json:"stopping,omitempty"`
	// Pause requested by the user
	Paused bool `json:"paused,omitempty"`
	// Logical storage reference, resolved to bucket+prefix by the storage facet
	StorageName string `json:"storageName"`
	// Object key of the browser profile to load, if any
	ProfileFilename string `json:"profileFilename,omitempty"`
	// Crawler release channel used to resolve the image
	CrawlerChannel string `json:"crawlerChannel,omitempty"`
	// Proxy id passed through to the crawler
	ProxyId string `json:"proxyId,omitempty"`
	// Lifecycle of rendered children after the crawl finishes, in seconds
	TTLSecondsAfterFinished *int `json:"ttlSecondsAfterFinished,omitempty"`
}

// ResourceAmounts holds observed or allocated pod resources.
// Memory is in bytes, CPU in millicores.
type ResourceAmounts struct {
	Memory int64 `json:"memory,omitempty"`
	CPU    int64 `json:"cpu,omitempty"`
}

type PodInfo struct {
	// Last observed usage from PodMetrics
	Used ResourceAmounts `json:"used,omitempty"`
	// Requests the pod was rendered with
	Allocated ResourceAmounts `json:"allocated,omitempty"`
	// Desired memory request after a scale-up decision. Zero means unchanged.
	NewMemory int64 `json:"newMemory,omitempty"`
	// True when the memory ratio was >= MemScaleThreshold on the previous reconcile
	HighMemory bool `json:"highMemory,omitempty"`
	// Set once the pod terminates; cleared after the exit has been handled
	IsNewExit bool   `json:"isNewExit,omitempty"`
	ExitCode  *int32 `json:"exitCode,omitempty"`
	Reason    string `json:"reason,omitempty"`
	// When a graceful shutdown signal was sent to this pod
	SignalTime *metav1.Time `json:"signalTime,omitempty"`
}

type CrawlJobStatus struct {
	State CrawlState `json:"state,omitempty"`
	// Total bytes produced so far, from the crawl's Redis size key
	Size int64 `json:"size,omitempty"`
	// Scale actually rendered, after MAX_CRAWL_SCALE capping
	Scale      int   `json:"scale,omitempty"`
	PagesFound int64 `json:"pagesFound,omitempty"`
	PagesDone  int64 `json:"pagesDone,omitempty"`
	// WACZ files registered at finalization
	FilesAdded     int   `json:"filesAdded,omitempty"`
	FilesAddedSize int64 `json:"filesAddedSize,omitempty"`
	// Per-pod resource and exit bookkeeping, keyed by pod name
	PodStatus map[string]*PodInfo `json:"podStatus,omitempty"`
	// Wall time when the first worker heartbeat was observed
	Started *metav1.Time `json:"started,omitempty"`
	// Set exactly once, on the transition into a terminal state
	Finished *metav1.Time `json:"finished,omitempty"`
	// Active (non-paused) execution seconds already debited from the org pools
	ElapsedExecSeconds int64 `json:"elapsedExecSeconds,omitempty"`
	// When the current pause began; used to exempt paused intervals from timeouts
	PausedAt        *metav1.Time `json:"pausedAt,omitempty"`
	LastUpdatedTime *metav1.Time `json:"lastUpdatedTime,omitempty"`
	StopReason      string       `json:"stopReason,omitempty"`
	CrawlerImage    string       `json:"crawlerImage,omitempty"`
	// Hint to the meta-controller to resync immediately
	Resync bool `json:"resync,omitempty"`
}

// +genclient
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:rbac:groups=btrix.cloud,resources=crawljobs,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=btrix.cloud,resources=crawljobs/status,verbs=get;update;patch

type CrawlJob struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   CrawlJobSpec   `json:"spec,omitempty"`
	Status CrawlJobStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
type CrawlJobList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []CrawlJob `json:"items"`
}

func init() {
	SchemeBuilder.Register(&CrawlJob{}, &CrawlJobList{})
}

// IsEnd returns true once the crawl job reached a terminal state or is being deleted.
func (c *CrawlJob) IsEnd() bool {
	if c.Status.State.IsTerminal() {
		return true
	}
	return !c.GetDeletionTimestamp().IsZero()
}

func (c *CrawlJob) IsPaused() bool {
	return c.Status.State.IsPaused()
}

// GetTimeout returns the crawl timeout in seconds, 0 meaning unlimited.
func (c *CrawlJob) GetTimeout() int {
	if c.Spec.Timeout < 0 {
		return 0
	}
	return c.Spec.Timeout
}

// GetTTLSecond returns the children TTL after the crawl finishes.
func (c *CrawlJob) GetTTLSecond(defaultTTL int) int {
	if c.Spec.TTLSecondsAfterFinished == nil {
		return defaultTTL
	}
	return *c.Spec.TTLSecondsAfterFinished
}

// ActiveSeconds returns the non-paused wall seconds since the first heartbeat.
// Paused intervals are exempt from time-limit accrual, so the running total is
// carried in ElapsedExecSeconds and only the current active stretch is added.
func (c *CrawlJob) ActiveSeconds(now time.Time) int64 {
	if c.Status.Started == nil {
		return 0
	}
	if c.Status.PausedAt != nil {
		return c.Status.ElapsedExecSeconds
	}
	last := c.Status.Started.Time
	if c.Status.LastUpdatedTime != nil {
		last = c.Status.LastUpdatedTime.Time
	}
	if now.Before(last) {
		return c.Status.ElapsedExecSeconds
	}
	return c.Status.ElapsedExecSeconds + int64(now.Sub(last).Seconds())
}

// PodInfoFor returns the PodInfo entry for the named pod, creating it if needed.
func (s *CrawlJobStatus) PodInfoFor(name string) *PodInfo {
	if s.PodStatus == nil {
		s.PodStatus = make(map[string]*PodInfo)
	}
	info, ok := s.PodStatus[name]
	if !ok {
		info = &PodInfo{}
		s.PodStatus[name] = info
	}
	return info
}
