/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))

	// deterministic failures: retrying cannot change the outcome
	assert.False(t, IsRetryable(NewBadRequest("bad")))
	assert.False(t, IsRetryable(NewStorageQuotaReached("o1")))
	assert.False(t, IsRetryable(NewInvalidCrawlSpec("no seeds")))
	assert.False(t, IsRetryable(NewNotFound("BackgroundJob", "j1")))
	assert.False(t, IsRetryable(NewNotFound("Organization", "o1")))

	// transient failures
	assert.True(t, IsRetryable(NewInternalError("connection reset")))
}
