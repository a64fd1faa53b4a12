/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

// Package render maps a CrawlJob spec plus environment to the concrete child
// objects the crawl needs: one ConfigMap, N crawler Pods with their PVCs, and
// a per-crawl redis Pod and Service. Rendering is a pure function of its
// inputs; it touches no external state.
package render

import (
	"fmt"
	"strconv"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"sigs.k8s.io/controller-runtime/pkg/client"

	btrixv1 "github.com/webrecorder/btrix-operator/pkg/apis/btrix/v1"
	btrixerrors "github.com/webrecorder/btrix-operator/pkg/errors"
)

const (
	crawlDataMount = "/crawls"
	redisPort      = 6379

	// limits are requests padded by this factor
	limitPadding = 1.2
)

// Environment carries the deploy-time settings rendering depends on.
type Environment struct {
	Namespace       string
	CrawlerImage    string
	ImagePullPolicy string
	RedisImage      string
	PriorityClass   string

	BrowsersPerPod int
	MaxCrawlScale  int

	StoragePerPod  resource.Quantity
	MemoryBase     int64 // bytes per browser
	CPUBaseMillis  int64 // millicores per browser

	MongoURL  string
	AppOrigin string

	StorageSecretName string
	MaxPagesPerCrawl  int64
}

// PodName returns the crawler pod name for one ordinal index.
func PodName(crawlId string, index int) string {
	return fmt.Sprintf("crawl-%s-%d", crawlId, index)
}

func pvcName(crawlId string, index int) string {
	return fmt.Sprintf("crawl-data-%s-%d", crawlId, index)
}

func configMapName(crawlId string) string {
	return fmt.Sprintf("crawl-config-%s", crawlId)
}

// RedisName returns the per-crawl redis pod and service name.
func RedisName(crawlId string) string {
	return fmt.Sprintf("redis-%s", crawlId)
}

// RedisURL returns the in-cluster URL workers use for the crawl channel.
func RedisURL(crawlId, namespace string) string {
	return fmt.Sprintf("redis://%s.%s.svc.cluster.local:%d/0", RedisName(crawlId), namespace, redisPort)
}

// PodCount returns ceil(browserWindows / browsersPerPod) capped by the
// configured scale ceiling.
func PodCount(browserWindows, browsersPerPod, maxScale int) int {
	if browsersPerPod < 1 {
		browsersPerPod = 1
	}
	n := (browserWindows + browsersPerPod - 1) / browsersPerPod
	if n < 1 {
		n = 1
	}
	if maxScale > 0 && n > maxScale {
		n = maxScale
	}
	return n
}

func validate(job *btrixv1.CrawlJob) error {
	spec := &job.Spec
	if spec.Id == "" {
		return btrixerrors.NewInvalidCrawlSpec("crawl id is empty")
	}
	if spec.OrgId == "" || spec.ConfigId == "" {
		return btrixerrors.NewInvalidCrawlSpec(
			fmt.Sprintf("crawl %s missing org or workflow reference", spec.Id))
	}
	if spec.BrowserWindows < 1 {
		return btrixerrors.NewInvalidCrawlSpec(
			fmt.Sprintf("crawl %s browserWindows must be >= 1, got %d", spec.Id, spec.BrowserWindows))
	}
	return nil
}

// Render produces the full desired-children list for a non-terminal crawl.
// A paused crawl keeps its ConfigMap, PVCs and redis but drops the crawler
// pods so no browser seconds accrue. Errors are permanent spec failures.
func Render(job *btrixv1.CrawlJob, env *Environment) ([]client.Object, error) {
	if err := validate(job); err != nil {
		return nil, err
	}
	id := job.Spec.Id
	podCount := PodCount(job.Spec.BrowserWindows, env.BrowsersPerPod, env.MaxCrawlScale)
	labels := crawlLabels(job)

	objects := []client.Object{renderConfigMap(job, env, labels)}
	for i := 0; i < podCount; i++ {
		objects = append(objects, renderPVC(id, i, env, labels))
	}
	if !job.Spec.Paused && !job.IsPaused() {
		for i := 0; i < podCount; i++ {
			objects = append(objects, renderCrawlerPod(job, env, i, labels))
		}
	}
	objects = append(objects, renderRedisPod(id, env, labels), renderRedisService(id, env, labels))
	return objects, nil
}

func crawlLabels(job *btrixv1.CrawlJob) map[string]string {
	return map[string]string{
		btrixv1.CrawlLabel:    job.Spec.Id,
		btrixv1.OrgLabel:      job.Spec.OrgId,
		btrixv1.ConfigIdLabel: job.Spec.ConfigId,
	}
}

func withRole(labels map[string]string, role string) map[string]string {
	merged := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		merged[k] = v
	}
	merged[btrixv1.RoleLabel] = role
	return merged
}

func renderConfigMap(job *btrixv1.CrawlJob, env *Environment, labels map[string]string) *corev1.ConfigMap {
	spec := &job.Spec
	data := map[string]string{
		"CRAWL_ID":    spec.Id,
		"ORG_ID":      spec.OrgId,
		"CID":         spec.ConfigId,
		"USER_ID":     spec.UserId,
		"STORE_USER":  spec.UserId,
		"REDIS_URL":   RedisURL(spec.Id, env.Namespace),
		"MONGO_URL":   env.MongoURL,
		"APP_ORIGIN":  env.AppOrigin,
		"STORAGE_NAME": spec.StorageName,
	}
	if spec.Timeout > 0 {
		data["TIME_LIMIT"] = strconv.Itoa(spec.Timeout)
	}
	if spec.MaxCrawlSize > 0 {
		data["SIZE_LIMIT"] = strconv.FormatInt(spec.MaxCrawlSize, 10)
	}
	if env.MaxPagesPerCrawl > 0 {
		data["PAGE_LIMIT"] = strconv.FormatInt(env.MaxPagesPerCrawl, 10)
	}
	if spec.ProfileFilename != "" {
		data["PROFILE_FILENAME"] = spec.ProfileFilename
	}
	if spec.ProxyId != "" {
		data["PROXY_ID"] = spec.ProxyId
	}
	if spec.CrawlerChannel != "" {
		data["CRAWLER_CHANNEL"] = spec.CrawlerChannel
	}
	return &corev1.ConfigMap{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "ConfigMap"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      configMapName(spec.Id),
			Namespace: env.Namespace,
			Labels:    labels,
		},
		Data: data,
	}
}

func renderPVC(crawlId string, index int, env *Environment, labels map[string]string) *corev1.PersistentVolumeClaim {
	return &corev1.PersistentVolumeClaim{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "PersistentVolumeClaim"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      pvcName(crawlId, index),
			Namespace: env.Namespace,
			Labels:    labels,
		},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes: []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			Resources: corev1.VolumeResourceRequirements{
				Requests: corev1.ResourceList{
					corev1.ResourceStorage: env.StoragePerPod,
				},
			},
		},
	}
}

// crawlerResources returns the request/limit pair for one crawler pod,
// honoring a per-pod memory override from the memory scale policy.
func crawlerResources(job *btrixv1.CrawlJob, env *Environment, podName string) corev1.ResourceRequirements {
	browsers := int64(env.BrowsersPerPod)
	if browsers < 1 {
		browsers = 1
	}
	memory := env.MemoryBase * browsers
	cpuMillis := env.CPUBaseMillis * browsers

	if info := job.Status.PodStatus[podName]; info != nil && info.NewMemory > memory {
		memory = info.NewMemory
	}
	memLimit := int64(float64(memory) * limitPadding)
	cpuLimit := int64(float64(cpuMillis) * limitPadding)

	return corev1.ResourceRequirements{
		Requests: corev1.ResourceList{
			corev1.ResourceMemory: *resource.NewQuantity(memory, resource.BinarySI),
			corev1.ResourceCPU:    *resource.NewMilliQuantity(cpuMillis, resource.DecimalSI),
		},
		Limits: corev1.ResourceList{
			corev1.ResourceMemory: *resource.NewQuantity(memLimit, resource.BinarySI),
			corev1.ResourceCPU:    *resource.NewMilliQuantity(cpuLimit, resource.DecimalSI),
		},
	}
}

func renderCrawlerPod(job *btrixv1.CrawlJob, env *Environment, index int, labels map[string]string) *corev1.Pod {
	spec := &job.Spec
	name := PodName(spec.Id, index)
	pod := &corev1.Pod{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Pod"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: env.Namespace,
			Labels:    withRole(labels, btrixv1.RoleCrawler),
			Annotations: map[string]string{
				btrixv1.CrawlerIndexAnnotation: strconv.Itoa(index),
			},
		},
		Spec: corev1.PodSpec{
			RestartPolicy:     corev1.RestartPolicyOnFailure,
			PriorityClassName: env.PriorityClass,
			Containers: []corev1.Container{{
				Name:            "crawler",
				Image:           env.CrawlerImage,
				ImagePullPolicy: corev1.PullPolicy(env.ImagePullPolicy),
				Command:         []string{"crawl", "--config", "/tmp/crawl-config.json"},
				EnvFrom: []corev1.EnvFromSource{{
					ConfigMapRef: &corev1.ConfigMapEnvSource{
						LocalObjectReference: corev1.LocalObjectReference{
							Name: configMapName(spec.Id),
						},
					},
				}},
				Env: []corev1.EnvVar{
					{Name: "CRAWLER_INDEX", Value: strconv.Itoa(index)},
					{Name: "NUM_BROWSERS", Value: strconv.Itoa(env.BrowsersPerPod)},
				},
				Resources: crawlerResources(job, env, name),
				VolumeMounts: []corev1.VolumeMount{{
					Name:      "crawl-data",
					MountPath: crawlDataMount,
				}},
			}},
			Volumes: []corev1.Volume{{
				Name: "crawl-data",
				VolumeSource: corev1.VolumeSource{
					PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
						ClaimName: pvcName(spec.Id, index),
					},
				},
			}},
		},
	}
	return pod
}

func renderRedisPod(crawlId string, env *Environment, labels map[string]string) *corev1.Pod {
	return &corev1.Pod{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Pod"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      RedisName(crawlId),
			Namespace: env.Namespace,
			Labels:    withRole(labels, btrixv1.RoleRedis),
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyOnFailure,
			Containers: []corev1.Container{{
				Name:  "redis",
				Image: env.RedisImage,
				Args:  []string{"--appendonly", "yes"},
				Ports: []corev1.ContainerPort{{ContainerPort: redisPort}},
				Resources: corev1.ResourceRequirements{
					Requests: corev1.ResourceList{
						corev1.ResourceMemory: resource.MustParse("200Mi"),
						corev1.ResourceCPU:    resource.MustParse("100m"),
					},
				},
			}},
		},
	}
}

func renderRedisService(crawlId string, env *Environment, labels map[string]string) *corev1.Service {
	return &corev1.Service{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      RedisName(crawlId),
			Namespace: env.Namespace,
			Labels:    withRole(labels, btrixv1.RoleRedis),
		},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{
				btrixv1.CrawlLabel: crawlId,
				btrixv1.RoleLabel:  btrixv1.RoleRedis,
			},
			Ports: []corev1.ServicePort{{
				Port:       redisPort,
				TargetPort: intstr.FromInt(redisPort),
			}},
		},
	}
}

// RenderProfileBrowser produces the single pod for a profile browser
// session, the trivial variant of the crawl renderer.
func RenderProfileBrowser(job *btrixv1.ProfileJob, env *Environment) ([]client.Object, error) {
	spec := &job.Spec
	if spec.Id == "" || spec.OrgId == "" {
		return nil, btrixerrors.NewInvalidCrawlSpec("profile browser id or org is empty")
	}
	if spec.StartUrl == "" {
		return nil, btrixerrors.NewInvalidCrawlSpec(
			fmt.Sprintf("profile browser %s startUrl is empty", spec.Id))
	}
	labels := map[string]string{
		btrixv1.ProfileLabel: spec.Id,
		btrixv1.OrgLabel:     spec.OrgId,
		btrixv1.RoleLabel:    btrixv1.RoleProfile,
	}
	env0 := []corev1.EnvVar{
		{Name: "START_URL", Value: spec.StartUrl},
		{Name: "PROFILE_FILENAME", Value: spec.ProfileFilename},
		{Name: "STORAGE_NAME", Value: spec.StorageName},
	}
	if spec.BaseProfileFilename != "" {
		env0 = append(env0, corev1.EnvVar{Name: "BASE_PROFILE", Value: spec.BaseProfileFilename})
	}
	pod := &corev1.Pod{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Pod"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      fmt.Sprintf("profile-%s", spec.Id),
			Namespace: env.Namespace,
			Labels:    labels,
			Annotations: map[string]string{
				btrixv1.UserIdAnnotation: spec.UserId,
			},
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{{
				Name:            "browser",
				Image:           env.CrawlerImage,
				ImagePullPolicy: corev1.PullPolicy(env.ImagePullPolicy),
				Command:         []string{"create-login-profile", "--interactive"},
				Env:             env0,
				Resources: corev1.ResourceRequirements{
					Requests: corev1.ResourceList{
						corev1.ResourceMemory: *resource.NewQuantity(env.MemoryBase, resource.BinarySI),
						corev1.ResourceCPU:    *resource.NewMilliQuantity(env.CPUBaseMillis, resource.DecimalSI),
					},
				},
			}},
		},
	}
	return []client.Object{pod}, nil
}

// IndexName returns the per-collection replay index pod and service name.
func IndexName(collId string) string {
	return fmt.Sprintf("index-%s", collId)
}

// RenderCollIndex produces the redis pod and service that hold a collection's
// replay page index. The index has no crawler pods; it lives until the
// CollIndex resource is deleted.
func RenderCollIndex(idx *btrixv1.CollIndex, env *Environment) ([]client.Object, error) {
	spec := &idx.Spec
	if spec.Id == "" || spec.OrgId == "" {
		return nil, btrixerrors.NewInvalidCrawlSpec("collection index id or org is empty")
	}
	labels := map[string]string{
		btrixv1.CollectionLabel: spec.Id,
		btrixv1.OrgLabel:        spec.OrgId,
		btrixv1.RoleLabel:       btrixv1.RoleRedis,
	}
	pod := &corev1.Pod{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Pod"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      IndexName(spec.Id),
			Namespace: env.Namespace,
			Labels:    labels,
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyOnFailure,
			Containers: []corev1.Container{{
				Name:  "redis",
				Image: env.RedisImage,
				Args:  []string{"--appendonly", "yes"},
				Ports: []corev1.ContainerPort{{ContainerPort: redisPort}},
				Resources: corev1.ResourceRequirements{
					Requests: corev1.ResourceList{
						corev1.ResourceMemory: resource.MustParse("200Mi"),
						corev1.ResourceCPU:    resource.MustParse("100m"),
					},
				},
			}},
		},
	}
	svc := &corev1.Service{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      IndexName(spec.Id),
			Namespace: env.Namespace,
			Labels:    labels,
		},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{
				btrixv1.CollectionLabel: spec.Id,
				btrixv1.RoleLabel:       btrixv1.RoleRedis,
			},
			Ports: []corev1.ServicePort{{
				Port:       redisPort,
				TargetPort: intstr.FromInt(redisPort),
			}},
		},
	}
	return []client.Object{pod, svc}, nil
}

// IsCrawlerPod reports whether a child pod is one of the crawl's worker pods
// (as opposed to its redis).
func IsCrawlerPod(pod *corev1.Pod) bool {
	return pod.Labels[btrixv1.RoleLabel] == btrixv1.RoleCrawler
}

// CrawlerIndex extracts the ordinal index from a crawler pod name, -1 when
// the name does not match.
func CrawlerIndex(pod *corev1.Pod) int {
	if raw, ok := pod.Annotations[btrixv1.CrawlerIndexAnnotation]; ok {
		if idx, err := strconv.Atoi(raw); err == nil {
			return idx
		}
	}
	i := strings.LastIndex(pod.Name, "-")
	if i < 0 {
		return -1
	}
	idx, err := strconv.Atoi(pod.Name[i+1:])
	if err != nil {
		return -1
	}
	return idx
}
