/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SetValue sets a configuration value for the specified key.
func SetValue(key string, value any) {
	viper.Set(key, value)
}

// LoadConfig loads configuration from the specified file path. Environment
// variables override file values; the key "crawler.image" maps to
// CRAWLER_IMAGE and so on.
func LoadConfig(path string) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if path == "" {
		return nil
	}
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	return viper.ReadInConfig()
}

func getString(key, defaultValue string) string {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetString(key)
}

func getBool(key string, defaultValue bool) bool {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetBool(key)
}

func getInt(key string, defaultValue int) int {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetInt(key)
}

func getInt64(key string, defaultValue int64) int64 {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetInt64(key)
}

func getFromFile(configPath, item string) string {
	path := getString(configPath, "")
	data, err := os.ReadFile(filepath.Join(path, item))
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(data), "\r\n")
}

// GetAppOrigin returns the public origin of the deployment.
func GetAppOrigin() string {
	return getString(appOrigin, "http://localhost:9871")
}

// GetCrawlerNamespace returns the namespace crawl children are rendered into.
func GetCrawlerNamespace() string {
	return getString(crawlerNamespace, "crawlers")
}

// GetDefaultNamespace returns the namespace the control plane itself runs in.
func GetDefaultNamespace() string {
	return getString(defaultNamespace, "default")
}

// GetServerPort returns the sync webhook server port.
func GetServerPort() int {
	return getInt(serverPort, 8756)
}

// IsHealthCheckEnabled returns whether health checks are enabled.
func IsHealthCheckEnabled() bool {
	return getBool(healthCheckEnable, true)
}

// GetHealthCheckPort returns the port for the health check endpoint.
func GetHealthCheckPort() int {
	return getInt(healthCheckPort, 8081)
}

// IsLeaderElectionEnable returns whether leader election is enabled.
func IsLeaderElectionEnable() bool {
	return getBool(leaderElectionEnable, true)
}

// GetMongoHost returns the progress store connection string.
func GetMongoHost() string {
	return getString(mongoHost, "mongodb://localhost:27017")
}

// GetMongoDbName returns the progress store database name.
func GetMongoDbName() string {
	return getString(mongoDbName, "btrix")
}

// GetMongoUser returns the progress store username, if mounted.
func GetMongoUser() string {
	return getFromFile(mongoSecretPath, "username")
}

// GetMongoPassword returns the progress store password, if mounted.
func GetMongoPassword() string {
	return getFromFile(mongoSecretPath, "password")
}

// GetMongoURI returns the connection string with mounted credentials, if any,
// applied.
func GetMongoURI() string {
	uri := GetMongoHost()
	user := GetMongoUser()
	if user == "" {
		return uri
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	parsed.User = url.UserPassword(user, GetMongoPassword())
	return parsed.String()
}

// GetRedisURL returns the shared Redis endpoint used by crawl channels.
func GetRedisURL() string {
	return getString(redisURL, "redis://localhost:6379/0")
}

// GetCrawlerImage returns the crawler image for new crawls.
func GetCrawlerImage() string {
	return getString(crawlerImage, "docker.io/webrecorder/browsertrix-crawler:latest")
}

// GetCrawlerImagePullPolicy returns the pull policy for crawler pods.
func GetCrawlerImagePullPolicy() string {
	return getString(crawlerImagePullPolicy, "IfNotPresent")
}

// GetNumBrowsers returns how many browsers a single crawler pod runs.
func GetNumBrowsers() int {
	n := getInt(numBrowsers, 2)
	if n < 1 {
		return 1
	}
	return n
}

// GetMaxCrawlScale returns the cap on pods per crawl.
func GetMaxCrawlScale() int {
	return getInt(maxCrawlScale, 3)
}

// GetCrawlerStoragePerPod returns the PVC size per crawler pod, in bytes.
func GetCrawlerStoragePerPod() int64 {
	return getInt64(crawlerStoragePerPod, 25<<30)
}

// GetCrawlerMemoryBase returns the base memory request per crawler pod, in bytes.
func GetCrawlerMemoryBase() int64 {
	return getInt64(crawlerMemoryBase, 1<<30)
}

// GetCrawlerCpuBase returns the base CPU request per crawler pod, in millicores.
func GetCrawlerCpuBase() int64 {
	return getInt64(crawlerCpuBase, 900)
}

// GetRedisImage returns the image for the per-crawl redis pod.
func GetRedisImage() string {
	return getString(redisImage, "docker.io/library/redis:7-alpine")
}

// GetCrawlerPriorityClass returns the priority class for crawler pods, if any.
func GetCrawlerPriorityClass() string {
	return getString(crawlerPriorityClass, "")
}

// GetStorageSecretName returns the name of the secret mounted into crawler
// pods for WACZ uploads.
func GetStorageSecretName() string {
	return getString(storageSecretName, "storage-auth")
}

// GetMaxPagesPerCrawl returns the global page ceiling per crawl, 0 meaning
// unlimited.
func GetMaxPagesPerCrawl() int64 {
	return getInt64(maxPagesPerCrawl, 50000)
}

// GetStartingTimeSecond returns how long a crawl may sit in starting before it
// is considered waiting for capacity.
func GetStartingTimeSecond() int {
	return getInt(startingTimeSecond, 150)
}

// GetExecTimeUpdateSecond bounds a single execution-second debit.
func GetExecTimeUpdateSecond() int {
	return getInt(execTimeUpdateSecond, 60)
}

// GetDefaultTTLSecond returns the children TTL after a crawl finishes.
func GetDefaultTTLSecond() int {
	return getInt(defaultTTLSecond, 30)
}

// GetResyncIntervalSecond returns the fixed resync interval for reconciles.
func GetResyncIntervalSecond() int {
	return getInt(resyncIntervalSecond, 10)
}

// GetPageDrainBatch bounds how many page entries one reconcile drains.
func GetPageDrainBatch() int {
	return getInt(pageDrainBatch, 100)
}

// GetJobConcurrency returns the background job worker pool size.
func GetJobConcurrency() int {
	return getInt(jobConcurrency, 8)
}

// GetReplicaDeletionDelay returns the grace window before replica deletion.
func GetReplicaDeletionDelay() time.Duration {
	days := getInt(replicaDeletionDelayDays, 0)
	return time.Duration(days) * 24 * time.Hour
}

// GetBgJobPollSecond returns the background job poll interval.
func GetBgJobPollSecond() int {
	return getInt(bgJobPollSecond, 30)
}

// GetCronScanSecond returns how often workflow schedules are rescanned.
func GetCronScanSecond() int {
	return getInt(cronScanSecond, 60)
}

// GetStorageSecretPath returns the mount path of default storage credentials.
func GetStorageSecretPath() string {
	return getString(storageSecretPath, "")
}

// GetStorageAccessKey returns the default storage access key.
func GetStorageAccessKey() string {
	return getFromFile(storageSecretPath, "access_key")
}

// GetStorageSecretKey returns the default storage secret key.
func GetStorageSecretKey() string {
	return getFromFile(storageSecretPath, "secret_key")
}

// GetStorageEndpoint returns the default storage endpoint.
func GetStorageEndpoint() string {
	return getFromFile(storageSecretPath, "endpoint")
}

// GetPresignDuration returns the lifetime of presigned URLs.
func GetPresignDuration() time.Duration {
	return time.Duration(getInt(presignDuration, 3600)) * time.Second
}
