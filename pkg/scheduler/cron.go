/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package scheduler

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	"github.com/webrecorder/btrix-operator/pkg/config"
	btrixerrors "github.com/webrecorder/btrix-operator/pkg/errors"
	"github.com/webrecorder/btrix-operator/pkg/utils/timeutil"
)

type fireEntry struct {
	schedule string
	next     time.Time
}

// CronScheduler rescans workflow schedules and fires each due workflow at
// most once per elapsed schedule instant. There is no backfill: instants that
// passed while the scheduler was down are skipped and only the next upcoming
// one is armed. Single-writer; run exactly one instance (leader election at
// the process level).
type CronScheduler struct {
	workflows WorkflowStore
	starter   *CrawlStarter

	scanInterval time.Duration
	now          func() time.Time

	armed map[string]fireEntry
}

func NewCronScheduler(workflows WorkflowStore, starter *CrawlStarter) *CronScheduler {
	return &CronScheduler{
		workflows:    workflows,
		starter:      starter,
		scanInterval: time.Duration(config.GetCronScanSecond()) * time.Second,
		now:          time.Now,
		armed:        map[string]fireEntry{},
	}
}

// Run scans until the context is canceled.
func (c *CronScheduler) Run(ctx context.Context) {
	klog.Infof("cron scheduler started, scan interval: %s", c.scanInterval)
	ticker := time.NewTicker(c.scanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			klog.Info("cron scheduler stopped")
			return
		case <-ticker.C:
			if err := c.Scan(ctx); err != nil {
				klog.ErrorS(err, "schedule scan failed")
			}
		}
	}
}

// Scan performs one pass over all scheduled workflows, firing the ones whose
// armed instant has passed.
func (c *CronScheduler) Scan(ctx context.Context) error {
	workflows, err := c.workflows.FindScheduled(ctx)
	if err != nil {
		return err
	}
	now := c.now().UTC()

	seen := make(map[string]bool, len(workflows))
	for _, workflow := range workflows {
		seen[workflow.Id] = true
		c.scanOne(ctx, workflow.Id, workflow.Schedule, now)
	}
	// deactivated or deleted workflows disarm
	for id := range c.armed {
		if !seen[id] {
			delete(c.armed, id)
		}
	}
	return nil
}

func (c *CronScheduler) scanOne(ctx context.Context, id, scheduleStr string, now time.Time) {
	schedule, _, err := timeutil.ParseCronStandard(scheduleStr)
	if err != nil {
		klog.ErrorS(err, "workflow carries unparsable schedule", "workflow", id, "schedule", scheduleStr)
		delete(c.armed, id)
		return
	}

	entry, ok := c.armed[id]
	if !ok || entry.schedule != scheduleStr {
		// first sight or edited schedule: arm the next instant, never fire
		// retroactively
		c.armed[id] = fireEntry{schedule: scheduleStr, next: schedule.Next(now)}
		return
	}
	if now.Before(entry.next) {
		return
	}

	c.fire(ctx, id)
	// re-arm from now, collapsing any instants that elapsed in between
	c.armed[id] = fireEntry{schedule: scheduleStr, next: schedule.Next(now)}
}

func (c *CronScheduler) fire(ctx context.Context, workflowId string) {
	workflow, err := c.workflows.GetByID(ctx, workflowId)
	if err != nil {
		klog.ErrorS(err, "scheduled workflow lookup failed", "workflow", workflowId)
		return
	}
	_, err = c.starter.StartCrawl(ctx, workflow, "", false)
	switch {
	case err == nil:
	case btrixerrors.GetErrorCode(err) == btrixerrors.TooManyCrawls:
		klog.Warningf("workflow %s schedule fired while previous crawl still running, skipped", workflowId)
	default:
		klog.ErrorS(err, "scheduled crawl start failed", "workflow", workflowId)
	}
}
