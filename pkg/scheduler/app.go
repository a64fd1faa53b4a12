/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package scheduler

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/klog/v2"
	"k8s.io/client-go/tools/leaderelection/resourcelock"
	"k8s.io/utils/ptr"
	ctrlruntime "sigs.k8s.io/controller-runtime"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/config"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	btrixv1 "github.com/webrecorder/btrix-operator/pkg/apis/btrix/v1"
	"github.com/webrecorder/btrix-operator/pkg/config"
	"github.com/webrecorder/btrix-operator/pkg/storage"
	"github.com/webrecorder/btrix-operator/pkg/store"
	"github.com/webrecorder/btrix-operator/pkg/utils/backoff"
)

// App wires the scheduler process: one leader-elected controller manager
// carrying the cron materializer and the background job runner, so exactly
// one instance fires schedules and claims jobs.
type App struct {
	manager manager.Manager
	store   *store.Store
}

func NewApp(ctx context.Context) (*App, error) {
	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		return nil, err
	}
	if err := btrixv1.AddToScheme(scheme); err != nil {
		return nil, err
	}
	mgr, err := newManager(scheme)
	if err != nil {
		return nil, err
	}

	var st *store.Store
	// the progress store may come up after the scheduler pod does
	err = backoff.Retry(func() error {
		var connErr error
		st, connErr = store.Connect(ctx, config.GetMongoURI(), config.GetMongoDbName())
		return connErr
	}, 2*time.Minute, 10*time.Second)
	if err != nil {
		return nil, err
	}
	storageClient, err := storage.NewClient(ctx, config.GetStorageSecretPath())
	if err != nil {
		return nil, err
	}

	stores := NewStores(st)
	namespace := config.GetCrawlerNamespace()
	starter := NewCrawlStarter(stores, mgr.GetClient(), namespace)
	cron := NewCronScheduler(stores.Workflows, starter)
	runner := NewJobRunner(stores, storageClient, mgr.GetClient(), namespace)

	// plain runnables require leadership, which is exactly the single-writer
	// guarantee the materializer needs
	if err = mgr.Add(manager.RunnableFunc(func(ctx context.Context) error {
		cron.Run(ctx)
		return nil
	})); err != nil {
		return nil, err
	}
	if err = mgr.Add(manager.RunnableFunc(func(ctx context.Context) error {
		runner.Run(ctx)
		return nil
	})); err != nil {
		return nil, err
	}

	return &App{manager: mgr, store: st}, nil
}

func newManager(scheme *runtime.Scheme) (manager.Manager, error) {
	healthProbeAddress := ""
	if config.IsHealthCheckEnabled() {
		if config.GetHealthCheckPort() <= 0 {
			return nil, fmt.Errorf("the healthcheck port is not defined")
		}
		healthProbeAddress = fmt.Sprintf(":%d", config.GetHealthCheckPort())
	}

	opts := manager.Options{
		Scheme:                     scheme,
		LeaderElection:             config.IsLeaderElectionEnable(),
		LeaderElectionResourceLock: resourcelock.LeasesResourceLock,
		LeaderElectionNamespace:    config.GetDefaultNamespace(),
		LeaderElectionID:           "btrix-scheduler",
		HealthProbeBindAddress:     healthProbeAddress,
		Metrics: metricsserver.Options{
			BindAddress: "0",
		},
		Controller: ctrlconfig.Controller{
			SkipNameValidation: ptr.To(true),
		},
	}
	cfg, err := ctrlruntime.GetConfig()
	if err != nil {
		return nil, err
	}
	mgr, err := manager.New(cfg, opts)
	if err != nil {
		return nil, err
	}
	if config.IsHealthCheckEnabled() {
		if err = mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
			return nil, fmt.Errorf("failed to set up health check: %v", err)
		}
		if err = mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
			return nil, fmt.Errorf("failed to set up ready check: %v", err)
		}
	}
	return mgr, nil
}

// Start runs the manager until the context is canceled.
func (a *App) Start(ctx context.Context) error {
	defer func() {
		if err := a.store.Close(context.Background()); err != nil {
			klog.ErrorS(err, "progress store close failed")
		}
	}()
	return a.manager.Start(ctx)
}
