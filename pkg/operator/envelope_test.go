/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package operator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeChildren(t *testing.T) {
	req := &SyncRequest{
		Children: map[string]map[string]json.RawMessage{
			childKeyPod: {
				"crawl-c1-0": json.RawMessage(`{"metadata": {"name": "crawl-c1-0", "labels": {"btrix.role": "crawler"}}, "status": {"phase": "Running"}}`),
				"redis-c1":   json.RawMessage(`{"metadata": {"name": "redis-c1", "labels": {"btrix.role": "redis"}}}`),
			},
			childKeyConfigMap: {
				"crawl-config-c1": json.RawMessage(`{"metadata": {"name": "crawl-config-c1"}, "data": {"CRAWL_ID": "c1"}}`),
			},
			childKeyPVC: {
				"crawl-data-c1-0": json.RawMessage(`{"metadata": {"name": "crawl-data-c1-0"}}`),
			},
		},
	}

	observed, err := DecodeChildren(req)
	require.NoError(t, err)
	assert.Len(t, observed.Pods, 2)
	assert.Len(t, observed.ConfigMaps, 1)
	assert.Len(t, observed.PVCs, 1)
	assert.Empty(t, observed.Services)

	crawlers := observed.CrawlerPods()
	require.Len(t, crawlers, 1)
	assert.Equal(t, "crawl-c1-0", crawlers[0].Name)
}

func TestDecodeChildrenMalformed(t *testing.T) {
	req := &SyncRequest{
		Children: map[string]map[string]json.RawMessage{
			childKeyPod: {"bad": json.RawMessage(`{`)},
		},
	}
	_, err := DecodeChildren(req)
	require.Error(t, err)
}

func TestDecodePodMetrics(t *testing.T) {
	req := &SyncRequest{
		Related: map[string]map[string]json.RawMessage{
			relatedKeyPodMetrics: {
				"crawl-c1-0": json.RawMessage(`{
					"metadata": {"name": "crawl-c1-0"},
					"containers": [
						{"name": "crawler", "usage": {"memory": "1Gi", "cpu": "750m"}},
						{"name": "sidecar", "usage": {"memory": "256Mi", "cpu": "250m"}}
					]
				}`),
			},
		},
	}

	usage := DecodePodMetrics(req)
	require.Contains(t, usage, "crawl-c1-0")
	assert.Equal(t, int64(1<<30+256<<20), usage["crawl-c1-0"].Memory)
	assert.Equal(t, int64(1000), usage["crawl-c1-0"].CPU)
}
