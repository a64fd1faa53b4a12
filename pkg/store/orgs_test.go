/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestOrg(monthlyMinutes, usedSeconds, extra, gifted int64) *Organization {
	return &Organization{
		Id: "o1",
		Quotas: OrgQuotas{
			MaxExecMinutesPerMonth: monthlyMinutes,
		},
		MonthlyExecSeconds:         map[string]int64{"2026-08": usedSeconds},
		ExtraExecSecondsAvailable:  extra,
		GiftedExecSecondsAvailable: gifted,
	}
}

func TestSplitExecSeconds(t *testing.T) {
	tests := []struct {
		name  string
		org   *Organization
		delta int64
		want  PoolDebit
	}{
		{
			name:  "all fits in monthly",
			org:   newTestOrg(720, 0, 0, 0),
			delta: 120,
			want:  PoolDebit{Monthly: 120},
		},
		{
			name:  "unlimited monthly pool",
			org:   newTestOrg(0, 0, 100, 100),
			delta: 5000,
			want:  PoolDebit{Monthly: 5000},
		},
		{
			name:  "split monthly then extra",
			org:   newTestOrg(1, 30, 100, 0),
			delta: 60,
			want:  PoolDebit{Monthly: 30, Extra: 30},
		},
		{
			name:  "split across all three pools",
			org:   newTestOrg(1, 0, 20, 50),
			delta: 100,
			want:  PoolDebit{Monthly: 60, Extra: 20, Gifted: 20},
		},
		{
			name:  "overflow beyond gifted lands in monthly",
			org:   newTestOrg(1, 60, 10, 10),
			delta: 50,
			want:  PoolDebit{Monthly: 30, Extra: 10, Gifted: 10},
		},
		{
			name:  "zero delta",
			org:   newTestOrg(720, 0, 0, 0),
			delta: 0,
			want:  PoolDebit{},
		},
		{
			name:  "negative delta ignored",
			org:   newTestOrg(720, 0, 0, 0),
			delta: -5,
			want:  PoolDebit{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitExecSeconds(tt.org, "2026-08", tt.delta)
			assert.Equal(t, tt.want, got)
			if tt.delta > 0 {
				// conservation: no second is lost or minted in the split
				assert.Equal(t, tt.delta, got.Total())
			}
		})
	}
}

func TestExecSecondsExhausted(t *testing.T) {
	assert.False(t, newTestOrg(0, 0, 0, 0).ExecSecondsExhausted("2026-08"))
	assert.False(t, newTestOrg(1, 30, 0, 0).ExecSecondsExhausted("2026-08"))
	assert.False(t, newTestOrg(1, 60, 5, 0).ExecSecondsExhausted("2026-08"))
	assert.True(t, newTestOrg(1, 60, 0, 0).ExecSecondsExhausted("2026-08"))
	// a fresh month has a fresh monthly pool
	assert.False(t, newTestOrg(1, 60, 0, 0).ExecSecondsExhausted("2026-09"))
}

func TestStorageQuotaReached(t *testing.T) {
	org := &Organization{BytesStored: 900, Quotas: OrgQuotas{StorageQuota: 1000}}
	assert.False(t, org.StorageQuotaReached(0))
	assert.False(t, org.StorageQuotaReached(100))
	assert.True(t, org.StorageQuotaReached(101))

	unlimited := &Organization{BytesStored: 1 << 40}
	assert.False(t, unlimited.StorageQuotaReached(1<<40))
}

func TestMonthlySecondsRemaining(t *testing.T) {
	org := newTestOrg(2, 90, 0, 0)
	assert.Equal(t, int64(30), org.MonthlySecondsRemaining("2026-08"))
	assert.Equal(t, int64(120), org.MonthlySecondsRemaining("2026-09"))

	over := newTestOrg(1, 100, 0, 0)
	assert.Equal(t, int64(0), over.MonthlySecondsRemaining("2026-08"))

	assert.Equal(t, int64(-1), newTestOrg(0, 0, 0, 0).MonthlySecondsRemaining("2026-08"))
}
