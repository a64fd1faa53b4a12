/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package errors

import (
	"fmt"
	"net/http"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const BtrixPrefix = "Btrix."

/*
   5-digit Error Code Convention: [xx][yyy]
   [xx] Business ID (00-99), used to distinguish errors from different components.
   00: General errors
   01: Crawl-related errors
   02: Organization/quota-related errors
   03: Storage-related errors
   [yyy] Error code range (000-999)
*/

// public: 00xxx
const (
	InternalError = BtrixPrefix + "00001"
	BadRequest    = BtrixPrefix + "00002"
	Forbidden     = BtrixPrefix + "00003"
	AlreadyExist  = BtrixPrefix + "00004"
	NotFound      = BtrixPrefix + "00005"
	Unavailable   = BtrixPrefix + "00006"
)

// crawl: 01xxx
const (
	CrawlNotFound     = BtrixPrefix + "01001"
	WorkflowNotFound  = BtrixPrefix + "01002"
	InvalidCrawlSpec  = BtrixPrefix + "01003"
	TooManyCrawls     = BtrixPrefix + "01004"
)

// org/quota: 02xxx
const (
	OrgNotFound          = BtrixPrefix + "02001"
	StorageQuotaReached  = BtrixPrefix + "02002"
	ExecMinutesExhausted = BtrixPrefix + "02003"
	OrgReadOnly          = BtrixPrefix + "02004"
)

// storage: 03xxx
const (
	StorageRefUnknown = BtrixPrefix + "03001"
)

// IsBtrix returns true if the specified error carries a btrix reason code.
func IsBtrix(err error) bool {
	if err == nil {
		return false
	}
	return strings.HasPrefix(string(apierrors.ReasonForError(err)), BtrixPrefix)
}

func IsBadRequest(err error) bool {
	return apierrors.ReasonForError(err) == BadRequest
}

func IsInternal(err error) bool {
	return apierrors.ReasonForError(err) == InternalError
}

func IsAlreadyExist(err error) bool {
	return apierrors.ReasonForError(err) == AlreadyExist
}

func IsNotFound(err error) bool {
	reason := apierrors.ReasonForError(err)
	if reason == NotFound || reason == CrawlNotFound ||
		reason == WorkflowNotFound || reason == OrgNotFound {
		return true
	}
	return false
}

func IsQuota(err error) bool {
	reason := apierrors.ReasonForError(err)
	return reason == StorageQuotaReached || reason == ExecMinutesExhausted
}

// IsRetryable reports whether a failed remote call may succeed on the next
// reconcile. Quota, validation and not-found failures are deterministic;
// everything reaching the network is not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsQuota(err) || IsBadRequest(err) || IsNotFound(err) {
		return false
	}
	reason := apierrors.ReasonForError(err)
	if reason == InvalidCrawlSpec || reason == StorageRefUnknown {
		return false
	}
	return true
}

func IgnoreNotFound(err error) error {
	if err == nil || IsNotFound(err) {
		return nil
	}
	return err
}

func GetErrorCode(err error) string {
	if err == nil || !IsBtrix(err) {
		return ""
	}
	return string(apierrors.ReasonForError(err))
}

func newStatusError(code int32, reason metav1.StatusReason, message string) *apierrors.StatusError {
	return &apierrors.StatusError{ErrStatus: metav1.Status{
		Status:  metav1.StatusFailure,
		Code:    code,
		Reason:  reason,
		Message: message,
	}}
}

func NewBadRequest(message string) *apierrors.StatusError {
	return newStatusError(http.StatusBadRequest, BadRequest, fmt.Sprintf("Bad request. %s", message))
}

func NewInternalError(message string) *apierrors.StatusError {
	return newStatusError(http.StatusInternalServerError, InternalError, fmt.Sprintf("Internal error. %s", message))
}

func NewAlreadyExist(message string) *apierrors.StatusError {
	return newStatusError(http.StatusConflict, AlreadyExist, message)
}

func NewUnavailable(message string) *apierrors.StatusError {
	return newStatusError(http.StatusServiceUnavailable, Unavailable, message)
}

func NewNotFound(kind, name string) *apierrors.StatusError {
	reason := metav1.StatusReason(NotFound)
	switch kind {
	case "Crawl":
		reason = CrawlNotFound
	case "CrawlConfig":
		reason = WorkflowNotFound
	case "Organization":
		reason = OrgNotFound
	}
	err := newStatusError(http.StatusNotFound, reason, fmt.Sprintf("%s %s not found.", kind, name))
	err.ErrStatus.Details = &metav1.StatusDetails{Kind: kind, Name: name}
	return err
}

func NewInvalidCrawlSpec(message string) *apierrors.StatusError {
	return newStatusError(http.StatusBadRequest, InvalidCrawlSpec, message)
}

func NewStorageRefUnknown(name string) *apierrors.StatusError {
	return newStatusError(http.StatusBadRequest, StorageRefUnknown,
		fmt.Sprintf("unknown storage reference %q", name))
}

func NewStorageQuotaReached(oid string) *apierrors.StatusError {
	return newStatusError(http.StatusConflict, StorageQuotaReached,
		fmt.Sprintf("storage quota reached for org %s", oid))
}

func NewExecMinutesExhausted(oid string) *apierrors.StatusError {
	return newStatusError(http.StatusConflict, ExecMinutesExhausted,
		fmt.Sprintf("monthly execution minutes exhausted for org %s", oid))
}

func NewTooManyCrawls(oid string) *apierrors.StatusError {
	err := newStatusError(http.StatusConflict, TooManyCrawls,
		fmt.Sprintf("too many concurrent crawls for org %s", oid))
	err.ErrStatus.Details = &metav1.StatusDetails{
		Causes: []metav1.StatusCause{{
			Type:    "errorDetail",
			Message: "slow_down_too_many_crawls_queued",
		}},
	}
	return err
}

func NewOrgReadOnly(oid string) *apierrors.StatusError {
	return newStatusError(http.StatusForbidden, OrgReadOnly,
		fmt.Sprintf("org %s is read-only", oid))
}
