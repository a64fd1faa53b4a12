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
	ProfileStateWaiting = "waiting"
	ProfileStateRunning = "running"
	ProfileStateExpired = "expired"
)

// ProfileJobReconciler drives interactive profile browser sessions, the
// trivial variant of the crawl operator: one pod, no quotas, expiry-driven
// teardown.
type ProfileJobReconciler struct {
	env            *render.Environment
	resyncInterval time.Duration
	now            func() time.Time
}

func NewProfileJobReconciler(env *render.Environment) *ProfileJobReconciler {
	return &ProfileJobReconciler{
		env:            env,
		resyncInterval: time.Duration(config.GetResyncIntervalSecond()) * time.Second,
		now:            time.Now,
	}
}

func (r *ProfileJobReconciler) Sync(ctx context.Context, req *SyncRequest) (*SyncResponse, error) {
	profile := &btrixv1.ProfileJob{}
	if err := json.Unmarshal(req.Parent, profile); err != nil {
		return nil, btrixerrors.NewBadRequest(fmt.Sprintf("malformed ProfileJob parent: %v", err))
	}
	observed, err := DecodeChildren(req)
	if err != nil {
		return nil, btrixerrors.NewBadRequest(err.Error())
	}

	status := profile.Status.DeepCopy()
	now := r.now().UTC()
	status.LastUpdatedTime = ptrTime(now)

	if req.Finalizing || profile.IsExpired(now) || status.State == ProfileStateExpired {
		if status.State != ProfileStateExpired {
			status.State = ProfileStateExpired
			klog.Infof("profile browser %s expired", profile.Spec.Id)
		}
		return &SyncResponse{
			Status:    status,
			Children:  []client.Object{},
			Finalized: req.Finalizing,
		}, nil
	}

	children, err := render.RenderProfileBrowser(profile, r.env)
	if err != nil {
		status.State = ProfileStateExpired
		klog.ErrorS(err, "profile browser render failed", "profile", profile.Spec.Id)
		return &SyncResponse{Status: status, Children: []client.Object{}}, nil
	}

	status.State = ProfileStateWaiting
	for _, pod := range observed.Pods {
		status.PodName = pod.Name
		if pod.Status.Phase == corev1.PodRunning {
			status.State = ProfileStateRunning
		}
	}

	return &SyncResponse{
		Status:             status,
		Children:           children,
		ResyncAfterSeconds: r.resyncInterval.Seconds(),
	}, nil
}
