/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func GetLabel(obj metav1.Object, key string) string {
	if obj == nil || len(obj.GetLabels()) == 0 {
		return ""
	}
	return obj.GetLabels()[key]
}

func GetAnnotation(obj metav1.Object, key string) string {
	if obj == nil || len(obj.GetAnnotations()) == 0 {
		return ""
	}
	return obj.GetAnnotations()[key]
}

func SetLabel(obj metav1.Object, key, val string) bool {
	if obj == nil {
		return false
	}
	if obj.GetLabels() == nil {
		obj.SetLabels(make(map[string]string))
	}
	if current, ok := obj.GetLabels()[key]; ok && current == val {
		return false
	}
	obj.GetLabels()[key] = val
	return true
}

func SetAnnotation(obj metav1.Object, key, val string) bool {
	if obj == nil {
		return false
	}
	if obj.GetAnnotations() == nil {
		obj.SetAnnotations(make(map[string]string))
	}
	if current, ok := obj.GetAnnotations()[key]; ok && current == val {
		return false
	}
	obj.GetAnnotations()[key] = val
	return true
}

func RemoveAnnotation(obj metav1.Object, key string) bool {
	if obj == nil {
		return false
	}
	if _, ok := obj.GetAnnotations()[key]; !ok {
		return false
	}
	delete(obj.GetAnnotations(), key)
	return true
}

// CrawlSelector returns the labels every child of the given crawl carries.
func CrawlSelector(crawlId, oid, cid string) map[string]string {
	return map[string]string{
		CrawlLabel:    crawlId,
		OrgLabel:      oid,
		ConfigIdLabel: cid,
	}
}
