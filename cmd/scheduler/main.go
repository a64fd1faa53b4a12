/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package main

import (
	"flag"

	"k8s.io/klog/v2"
	ctrlruntime "sigs.k8s.io/controller-runtime"

	"github.com/webrecorder/btrix-operator/pkg/config"
	"github.com/webrecorder/btrix-operator/pkg/scheduler"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to the configuration file")
	klog.InitFlags(nil)
	flag.Parse()

	if err := config.LoadConfig(configPath); err != nil {
		klog.Fatalf("failed to load config: %v", err)
	}

	ctx := ctrlruntime.SetupSignalHandler()
	app, err := scheduler.NewApp(ctx)
	if err != nil {
		klog.Fatalf("failed to initialize scheduler: %v", err)
	}
	if err = app.Start(ctx); err != nil {
		klog.Fatalf("scheduler exited: %v", err)
	}
}
