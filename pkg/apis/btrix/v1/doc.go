/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

// Package v1 contains API Schema definitions for the btrix.cloud v1 API group
// +kubebuilder:object:generate=true
// +groupName=btrix.cloud
// +k8s:deepcopy-gen=package
package v1
