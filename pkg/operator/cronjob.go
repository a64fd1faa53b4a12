/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package operator

import (
	"context"
	"encoding/json"
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	"k8s.io/klog/v2"

	btrixv1 "github.com/webrecorder/btrix-operator/pkg/apis/btrix/v1"
	btrixerrors "github.com/webrecorder/btrix-operator/pkg/errors"
)

// SuspendedAnnotation marks schedule resources whose workflow went inactive.
const SuspendedAnnotation = btrixv1.BtrixPrefix + "suspended"

// DecorateRequest is the meta-controller decorator hook envelope.
type DecorateRequest struct {
	Object      json.RawMessage                       `json:"object"`
	Attachments map[string]map[string]json.RawMessage `json:"attachments"`
}

type DecorateResponse struct {
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	Attachments []interface{}     `json:"attachments"`
}

// CronJobDecorator stamps workflow selector metadata onto scheduled-crawl
// CronJobs and flags those whose workflow was deactivated, so schedule
// resources stay addressable with the same label set as crawl children.
type CronJobDecorator struct {
	configs ConfigStore
}

func NewCronJobDecorator(configs ConfigStore) *CronJobDecorator {
	return &CronJobDecorator{configs: configs}
}

func (d *CronJobDecorator) Decorate(ctx context.Context, req *DecorateRequest) (*DecorateResponse, error) {
	cron := &batchv1.CronJob{}
	if err := json.Unmarshal(req.Object, cron); err != nil {
		return nil, btrixerrors.NewBadRequest(fmt.Sprintf("malformed CronJob object: %v", err))
	}

	resp := &DecorateResponse{
		Labels:      map[string]string{},
		Annotations: map[string]string{},
		Attachments: []interface{}{},
	}

	// cronjob names are the workflow id
	cid := cron.Labels[btrixv1.CrawlConfigLabel]
	if cid == "" {
		cid = cron.Name
	}
	resp.Labels[btrixv1.CrawlConfigLabel] = cid

	workflow, err := d.configs.GetByID(ctx, cid)
	if err != nil {
		if !btrixerrors.IsNotFound(err) {
			klog.V(4).Infof("cronjob %s workflow lookup deferred: %v", cron.Name, err)
		}
		return resp, nil
	}
	if workflow.Inactive || workflow.Schedule == "" {
		resp.Annotations[SuspendedAnnotation] = "true"
	}
	return resp, nil
}
