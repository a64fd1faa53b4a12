/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package operator

import (
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	btrixv1 "github.com/webrecorder/btrix-operator/pkg/apis/btrix/v1"
)

const (
	childKeyPod       = "Pod.v1"
	childKeyConfigMap = "ConfigMap.v1"
	childKeyPVC       = "PersistentVolumeClaim.v1"
	childKeyService   = "Service.v1"

	relatedKeyPodMetrics = "PodMetrics.metrics.k8s.io/v1beta1"
)

// SyncRequest is the meta-controller sync hook envelope: the parent object
// plus all currently observed children, keyed by "Kind.apiVersion" then name.
type SyncRequest struct {
	Parent     json.RawMessage                       `json:"parent"`
	Children   map[string]map[string]json.RawMessage `json:"children"`
	Related    map[string]map[string]json.RawMessage `json:"related"`
	Finalizing bool                                  `json:"finalizing"`
}

// SyncResponse carries the computed status and the full desired-children
// list back to the meta-controller.
type SyncResponse struct {
	Status             interface{}     `json:"status,omitempty"`
	Children           []client.Object `json:"children"`
	ResyncAfterSeconds float64         `json:"resyncAfterSeconds,omitempty"`
	Finalized          bool            `json:"finalized,omitempty"`
}

// ObservedChildren is the typed view of a sync request's children map.
type ObservedChildren struct {
	Pods       map[string]*corev1.Pod
	ConfigMaps map[string]*corev1.ConfigMap
	PVCs       map[string]*corev1.PersistentVolumeClaim
	Services   map[string]*corev1.Service
}

// CrawlerPods returns only the crawl worker pods, excluding the redis pod.
func (o *ObservedChildren) CrawlerPods() []*corev1.Pod {
	var pods []*corev1.Pod
	for _, pod := range o.Pods {
		if pod.Labels[btrixv1.RoleLabel] == btrixv1.RoleCrawler {
			pods = append(pods, pod)
		}
	}
	return pods
}

func decodeInto(raw map[string]json.RawMessage, kind string, decode func(name string, data json.RawMessage) error) error {
	for name, data := range raw {
		if err := decode(name, data); err != nil {
			return fmt.Errorf("decode child %s %s: %w", kind, name, err)
		}
	}
	return nil
}

// DecodeChildren parses the envelope's children into typed objects.
func DecodeChildren(req *SyncRequest) (*ObservedChildren, error) {
	observed := &ObservedChildren{
		Pods:       map[string]*corev1.Pod{},
		ConfigMaps: map[string]*corev1.ConfigMap{},
		PVCs:       map[string]*corev1.PersistentVolumeClaim{},
		Services:   map[string]*corev1.Service{},
	}
	err := decodeInto(req.Children[childKeyPod], "Pod", func(name string, data json.RawMessage) error {
		pod := &corev1.Pod{}
		if err := json.Unmarshal(data, pod); err != nil {
			return err
		}
		observed.Pods[name] = pod
		return nil
	})
	if err != nil {
		return nil, err
	}
	err = decodeInto(req.Children[childKeyConfigMap], "ConfigMap", func(name string, data json.RawMessage) error {
		cm := &corev1.ConfigMap{}
		if err := json.Unmarshal(data, cm); err != nil {
			return err
		}
		observed.ConfigMaps[name] = cm
		return nil
	})
	if err != nil {
		return nil, err
	}
	err = decodeInto(req.Children[childKeyPVC], "PersistentVolumeClaim", func(name string, data json.RawMessage) error {
		pvc := &corev1.PersistentVolumeClaim{}
		if err := json.Unmarshal(data, pvc); err != nil {
			return err
		}
		observed.PVCs[name] = pvc
		return nil
	})
	if err != nil {
		return nil, err
	}
	err = decodeInto(req.Children[childKeyService], "Service", func(name string, data json.RawMessage) error {
		svc := &corev1.Service{}
		if err := json.Unmarshal(data, svc); err != nil {
			return err
		}
		observed.Services[name] = svc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return observed, nil
}

// podMetrics mirrors the metrics.k8s.io PodMetrics shape; only the usage
// quantities are read so the full metrics client is not pulled in.
type podMetrics struct {
	Metadata   metav1.ObjectMeta `json:"metadata"`
	Containers []struct {
		Name  string            `json:"name"`
		Usage map[string]string `json:"usage"`
	} `json:"containers"`
}

// DecodePodMetrics extracts per-pod usage from the related-objects map.
func DecodePodMetrics(req *SyncRequest) map[string]btrixv1.ResourceAmounts {
	usage := map[string]btrixv1.ResourceAmounts{}
	for name, data := range req.Related[relatedKeyPodMetrics] {
		var pm podMetrics
		if err := json.Unmarshal(data, &pm); err != nil {
			continue
		}
		var total btrixv1.ResourceAmounts
		for _, c := range pm.Containers {
			if mem, err := resource.ParseQuantity(c.Usage["memory"]); err == nil {
				total.Memory += mem.Value()
			}
			if cpu, err := resource.ParseQuantity(c.Usage["cpu"]); err == nil {
				total.CPU += cpu.MilliValue()
			}
		}
		usage[name] = total
	}
	return usage
}
