/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package operator

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/klog/v2"

	"github.com/webrecorder/btrix-operator/pkg/config"
	"github.com/webrecorder/btrix-operator/pkg/crawlredis"
	"github.com/webrecorder/btrix-operator/pkg/render"
	"github.com/webrecorder/btrix-operator/pkg/store"
	"github.com/webrecorder/btrix-operator/pkg/utils/backoff"
)

// App wires the operator process: the progress store, the render environment
// and the sync webhook server.
type App struct {
	store  *store.Store
	server *Server
}

func NewApp(ctx context.Context) (*App, error) {
	var st *store.Store
	// the progress store may come up after the operator pod does
	err := backoff.Retry(func() error {
		var connErr error
		st, connErr = store.Connect(ctx, config.GetMongoURI(), config.GetMongoDbName())
		return connErr
	}, 2*time.Minute, 10*time.Second)
	if err != nil {
		return nil, err
	}
	env := EnvironmentFromConfig()
	channels := func(crawlId string) (CrawlChannel, error) {
		return crawlredis.NewClient(render.RedisURL(crawlId, env.Namespace))
	}
	server := NewServer(
		NewCrawlJobReconciler(env, NewStores(st), channels),
		NewProfileJobReconciler(env),
		NewCollIndexReconciler(env),
		NewCronJobDecorator(st.Configs()),
	)
	return &App{store: st, server: server}, nil
}

// Start serves until the context is canceled.
func (a *App) Start(ctx context.Context) error {
	defer func() {
		if err := a.store.Close(context.Background()); err != nil {
			klog.ErrorS(err, "progress store close failed")
		}
	}()
	return a.server.Start(ctx)
}

// EnvironmentFromConfig builds the render environment from configuration.
func EnvironmentFromConfig() *render.Environment {
	return &render.Environment{
		Namespace:         config.GetCrawlerNamespace(),
		CrawlerImage:      config.GetCrawlerImage(),
		ImagePullPolicy:   config.GetCrawlerImagePullPolicy(),
		RedisImage:        config.GetRedisImage(),
		PriorityClass:     config.GetCrawlerPriorityClass(),
		BrowsersPerPod:    config.GetNumBrowsers(),
		MaxCrawlScale:     config.GetMaxCrawlScale(),
		StoragePerPod:     *resource.NewQuantity(config.GetCrawlerStoragePerPod(), resource.BinarySI),
		MemoryBase:        config.GetCrawlerMemoryBase(),
		CPUBaseMillis:     config.GetCrawlerCpuBase(),
		MongoURL:          config.GetMongoHost(),
		AppOrigin:         config.GetAppOrigin(),
		StorageSecretName: config.GetStorageSecretName(),
		MaxPagesPerCrawl:  config.GetMaxPagesPerCrawl(),
	}
}
