/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package concurrent

import (
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"gotest.tools/assert"
)

func TestExec(t *testing.T) {
	failErr := errors.New("boom")

	tests := []struct {
		name          string
		count         int
		fn            func() error
		expectSuccess int
		expectErr     error
	}{
		{"zero", 0, func() error { return nil }, 0, nil},
		{"null function", 10, nil, 0, nil},
		{"no err", 10, func() error { return nil }, 10, nil},
		{"has err", 10, func() error { return failErr }, 0, failErr},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			success, err := Exec(test.count, test.fn)
			assert.Equal(t, success, test.expectSuccess)
			if test.expectErr == nil {
				assert.NilError(t, err)
			} else {
				assert.ErrorContains(t, err, failErr.Error())
			}
		})
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	var inFlight, peak int64
	pool := NewPool(3)
	for i := 0; i < 30; i++ {
		pool.Submit(func() {
			n := atomic.AddInt64(&inFlight, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
					break
				}
			}
			atomic.AddInt64(&inFlight, -1)
		})
	}
	pool.Wait()
	assert.Equal(t, atomic.LoadInt64(&inFlight), int64(0))
	assert.Assert(t, atomic.LoadInt64(&peak) <= 3)
}
