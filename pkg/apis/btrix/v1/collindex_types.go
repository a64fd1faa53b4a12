/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

type CollIndexSpec struct {
	// Collection id the index serves
	Id string `json:"id"`
	// Owning organization id
	OrgId string `json:"oid"`
}

type CollIndexStatus struct {
	// index pod phase: waiting / running
	State           string       `json:"state,omitempty"`
	LastUpdatedTime *metav1.Time `json:"lastUpdatedTime,omitempty"`
}

// +genclient
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:rbac:groups=btrix.cloud,resources=collindexes,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=btrix.cloud,resources=collindexes/status,verbs=get;update;patch

// CollIndex keeps a per-collection redis index pod alive for replay lookups.
type CollIndex struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   CollIndexSpec   `json:"spec,omitempty"`
	Status CollIndexStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
type CollIndexList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []CollIndex `json:"items"`
}

func init() {
	SchemeBuilder.Register(&CollIndex{}, &CollIndexList{})
}
