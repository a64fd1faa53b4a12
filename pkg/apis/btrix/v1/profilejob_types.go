/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package v1

import (
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

type ProfileJobSpec struct {
	// Browser profile id
	Id string `json:"id"`
	// Owning organization id
	OrgId string `json:"oid"`
	// User that opened the profile browser
	UserId string `json:"userid"`
	// Where the committed profile tarball is written
	ProfileFilename string `json:"profileFilename,omitempty"`
	// Profile to load into the browser before navigation, if any
	BaseProfileFilename string `json:"baseProfileFilename,omitempty"`
	// Initial navigation target
	StartUrl string `json:"startUrl"`
	// The browser pod is torn down once this instant passes without a ping
	ExpireTime *metav1.Time `json:"expireTime,omitempty"`
	// Logical storage reference for the committed profile
	StorageName string `json:"storageName,omitempty"`
	// Crawler release channel used to resolve the image
	CrawlerChannel string `json:"crawlerChannel,omitempty"`
	// Proxy id passed through to the browser
	ProxyId string `json:"proxyId,omitempty"`
}

type ProfileJobStatus struct {
	// browser pod phase: waiting / running / expired
	State           string       `json:"state,omitempty"`
	PodName         string       `json:"podName,omitempty"`
	LastUpdatedTime *metav1.Time `json:"lastUpdatedTime,omitempty"`
}

// +genclient
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:rbac:groups=btrix.cloud,resources=profilejobs,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=btrix.cloud,resources=profilejobs/status,verbs=get;update;patch

type ProfileJob struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   ProfileJobSpec   `json:"spec,omitempty"`
	Status ProfileJobStatus `json:"status,omitempty"`
}

// +kubebuilder:object:root=true
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
type ProfileJobList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []ProfileJob `json:"items"`
}

func init() {
	SchemeBuilder.Register(&ProfileJob{}, &ProfileJobList{})
}

// IsExpired returns true once the profile browser passed its expiry instant.
func (p *ProfileJob) IsExpired(now time.Time) bool {
	if p.Spec.ExpireTime == nil {
		return false
	}
	return now.After(p.Spec.ExpireTime.Time)
}
