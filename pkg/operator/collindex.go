/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package operator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/klog/v2"
	"sigs.k8s.io/controller-runtime/pkg/client"

	btrixv1 "github.com/webrecorder/btrix-operator/pkg/apis/btrix/v1"
	"github.com/webrecorder/btrix-operator/pkg/config"
	btrixerrors "github.com/webrecorder/btrix-operator/pkg/errors"
	"github.com/webrecorder/btrix-operator/pkg/render"
)

const (
	IndexStateWaiting = "waiting"
	IndexStateRunning = "running"
)

// CollIndexReconciler keeps one redis index pod alive per collection for
// replay page lookups. No quotas, no expiry: the index lives until its
// resource is deleted.
type CollIndexReconciler struct {
	env            *render.Environment
	resyncInterval time.Duration
	now            func() time.Time
}

func NewCollIndexReconciler(env *render.Environment) *CollIndexReconciler {
	return &CollIndexReconciler{
		env:            env,
		resyncInterval: time.Duration(config.GetResyncIntervalSecond()) * time.Second,
		now:            time.Now,
	}
}

func (r *CollIndexReconciler) Sync(ctx context.Context, req *SyncRequest) (*SyncResponse, error) {
	idx := &btrixv1.CollIndex{}
	if err := json.Unmarshal(req.Parent, idx); err != nil {
		return nil, btrixerrors.NewBadRequest(fmt.Sprintf("malformed CollIndex parent: %v", err))
	}
	observed, err := DecodeChildren(req)
	if err != nil {
		return nil, btrixerrors.NewBadRequest(err.Error())
	}

	status := idx.Status.DeepCopy()
	status.LastUpdatedTime = ptrTime(r.now().UTC())

	if req.Finalizing {
		return &SyncResponse{
			Status:    status,
			Children:  []client.Object{},
			Finalized: true,
		}, nil
	}

	children, err := render.RenderCollIndex(idx, r.env)
	if err != nil {
		klog.ErrorS(err, "collection index render failed", "collection", idx.Spec.Id)
		return nil, err
	}

	status.State = IndexStateWaiting
	for _, pod := range observed.Pods {
		if pod.Status.Phase == corev1.PodRunning {
			status.State = IndexStateRunning
		}
	}

	return &SyncResponse{
		Status:             status,
		Children:           children,
		ResyncAfterSeconds: r.resyncInterval.Seconds(),
	}, nil
}
