/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package config

const (
	// global
	globalPrefix     = "global."
	appOrigin        = globalPrefix + "app_origin"
	crawlerNamespace = globalPrefix + "crawler_namespace"
	defaultNamespace = globalPrefix + "default_namespace"

	// server
	serverPrefix = "server."
	serverPort   = serverPrefix + "port"

	// health_check
	healthCheckPrefix = "health_check."
	healthCheckEnable = healthCheckPrefix + "enable"
	healthCheckPort   = healthCheckPrefix + "port"

	// leader_election
	leaderElectionPrefix = "leader_election."
	leaderElectionEnable = leaderElectionPrefix + "enable"

	// mongo
	mongoPrefix     = "mongo."
	mongoHost       = mongoPrefix + "host"
	mongoSecretPath = mongoPrefix + "secret_path"
	mongoDbName     = mongoPrefix + "db_name"

	// redis
	redisPrefix = "redis."
	redisURL    = redisPrefix + "url"

	// crawler
	crawlerPrefix          = "crawler."
	crawlerImage           = crawlerPrefix + "image"
	crawlerImagePullPolicy = crawlerPrefix + "image_pull_policy"
	numBrowsers            = crawlerPrefix + "num_browsers"
	maxCrawlScale          = crawlerPrefix + "max_crawl_scale"
	crawlerStoragePerPod   = crawlerPrefix + "storage_per_pod"
	crawlerMemoryBase      = crawlerPrefix + "memory_base"
	crawlerCpuBase         = crawlerPrefix + "cpu_base_millis"
	redisImage             = crawlerPrefix + "redis_image"
	crawlerPriorityClass   = crawlerPrefix + "priority_class"
	storageSecretName      = crawlerPrefix + "storage_secret_name"
	maxPagesPerCrawl       = crawlerPrefix + "max_pages_per_crawl"

	// operator
	operatorPrefix       = "operator."
	startingTimeSecond   = operatorPrefix + "starting_time_second"
	execTimeUpdateSecond = operatorPrefix + "exec_time_update_second"
	defaultTTLSecond     = operatorPrefix + "default_ttl_second"
	resyncIntervalSecond = operatorPrefix + "resync_interval_second"
	pageDrainBatch       = operatorPrefix + "page_drain_batch"

	// scheduler
	schedulerPrefix          = "scheduler."
	jobConcurrency           = schedulerPrefix + "job_concurrency"
	replicaDeletionDelayDays = schedulerPrefix + "replica_deletion_delay_days"
	bgJobPollSecond          = schedulerPrefix + "bg_job_poll_second"
	cronScanSecond           = schedulerPrefix + "cron_scan_second"

	// storage
	storagePrefix     = "storage."
	storageSecretPath = storagePrefix + "secret_path"
	presignDuration   = storagePrefix + "presign_duration_second"
)
