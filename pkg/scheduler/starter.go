/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/klog/v2"
	"sigs.k8s.io/controller-runtime/pkg/client"

	btrixv1 "github.com/webrecorder/btrix-operator/pkg/apis/btrix/v1"
	btrixerrors "github.com/webrecorder/btrix-operator/pkg/errors"
	"github.com/webrecorder/btrix-operator/pkg/store"
)

// CrawlStarter creates a crawl from a workflow: the persisted crawl document
// plus the CrawlJob resource the operator reconciles. Manual starts and
// schedule firings both go through here so they share the same gating.
type CrawlStarter struct {
	stores    *Stores
	kube      KubeWriter
	namespace string

	now func() time.Time
}

func NewCrawlStarter(stores *Stores, kube KubeWriter, namespace string) *CrawlStarter {
	return &CrawlStarter{
		stores:    stores,
		kube:      kube,
		namespace: namespace,
		now:       time.Now,
	}
}

// StartCrawl materializes one crawl from the workflow and returns the new
// crawl id. When the workflow's previous crawl is still unfinished the start
// is rejected and nothing is recorded.
func (s *CrawlStarter) StartCrawl(ctx context.Context, workflow *store.CrawlConfig, userId string, manual bool) (string, error) {
	org, err := s.stores.Orgs.GetByID(ctx, workflow.Oid)
	if err != nil {
		return "", err
	}
	if org.ReadOnly {
		return "", btrixerrors.NewOrgReadOnly(org.Id)
	}

	active, err := s.stores.Crawls.CountActiveByConfig(ctx, workflow.Id)
	if err != nil {
		return "", err
	}
	if active > 0 {
		return "", btrixerrors.NewTooManyCrawls(org.Id)
	}

	now := s.now().UTC()
	crawlId := uuid.NewString()

	crawl := &store.Crawl{
		Id:        crawlId,
		Oid:       workflow.Oid,
		Cid:       workflow.Id,
		UserId:    userId,
		Type:      btrixv1.CrawlTypeCrawl,
		Manual:    manual,
		Scheduled: !manual,
		Started:   now,
		State:     string(btrixv1.StateStarting),
	}
	if err = s.stores.Crawls.Insert(ctx, crawl); err != nil {
		return "", err
	}

	job := s.newCrawlJob(crawlId, workflow, org, userId, manual)
	if err = s.kube.Create(ctx, job); err != nil {
		// roll the document back so a retry is not blocked by a phantom
		// unfinished crawl
		if delErr := s.stores.Crawls.Delete(ctx, crawlId); delErr != nil {
			klog.ErrorS(delErr, "orphaned crawl document after failed job create", "crawl", crawlId)
		}
		return "", err
	}

	klog.Infof("started crawl %s from workflow %s, org: %s, manual: %v",
		crawlId, workflow.Id, workflow.Oid, manual)
	return crawlId, nil
}

func (s *CrawlStarter) newCrawlJob(crawlId string, workflow *store.CrawlConfig, org *store.Organization, userId string, manual bool) *btrixv1.CrawlJob {
	storageName := org.Storage
	if storageName == "" {
		storageName = "default"
	}
	job := &btrixv1.CrawlJob{
		TypeMeta: metav1.TypeMeta{
			APIVersion: btrixv1.SchemeGroupVersion.String(),
			Kind:       btrixv1.CrawlJobKind,
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      "crawljob-" + crawlId,
			Namespace: s.namespace,
			Labels: map[string]string{
				btrixv1.CrawlLabel:       crawlId,
				btrixv1.OrgLabel:         workflow.Oid,
				btrixv1.ConfigIdLabel:    workflow.Id,
				btrixv1.CrawlConfigLabel: workflow.Id,
			},
		},
		Spec: btrixv1.CrawlJobSpec{
			Id:              crawlId,
			OrgId:           workflow.Oid,
			ConfigId:        workflow.Id,
			UserId:          userId,
			BrowserWindows:  workflow.BrowserWindows,
			Timeout:         int(workflow.CrawlTimeout),
			MaxCrawlSize:    workflow.MaxCrawlSize,
			Manual:          manual,
			Scheduled:       !manual,
			StorageName:     storageName,
			CrawlerChannel:  workflow.CrawlerChannel,
			ProxyId:         workflow.ProxyId,
			ProfileFilename: profileFilename(workflow),
		},
	}
	if userId != "" {
		job.Annotations = map[string]string{btrixv1.UserIdAnnotation: userId}
	}
	return job
}

func profileFilename(workflow *store.CrawlConfig) string {
	if workflow.ProfileId == "" {
		return ""
	}
	return "profiles/profile-" + workflow.ProfileId + ".tar.gz"
}

// StopCrawl requests teardown of a running crawl by deleting its CrawlJob.
// The operator's finalize hook records the cancellation.
func (s *CrawlStarter) StopCrawl(ctx context.Context, crawlId string) error {
	job := &btrixv1.CrawlJob{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "crawljob-" + crawlId,
			Namespace: s.namespace,
		},
	}
	if err := s.kube.Delete(ctx, job); err != nil {
		if client.IgnoreNotFound(err) == nil {
			return nil
		}
		return err
	}
	return nil
}
