/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

package operator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	btrixv1 "github.com/webrecorder/btrix-operator/pkg/apis/btrix/v1"
	"github.com/webrecorder/btrix-operator/pkg/store"
)

func TestCronJobDecoratorStampsWorkflowLabel(t *testing.T) {
	st := newFakeState()
	st.workflow = &store.CrawlConfig{Id: "w1", Schedule: "0 3 * * *"}
	d := NewCronJobDecorator(&fakeConfigs{st})

	req := &DecorateRequest{
		Object: json.RawMessage(`{"metadata": {"name": "w1"}}`),
	}
	resp, err := d.Decorate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "w1", resp.Labels[btrixv1.CrawlConfigLabel])
	assert.Empty(t, resp.Annotations[SuspendedAnnotation])
}

func TestCronJobDecoratorSuspendsInactiveWorkflow(t *testing.T) {
	st := newFakeState()
	st.workflow = &store.CrawlConfig{Id: "w1", Schedule: "0 3 * * *", Inactive: true}
	d := NewCronJobDecorator(&fakeConfigs{st})

	req := &DecorateRequest{
		Object: json.RawMessage(`{"metadata": {"name": "w1"}}`),
	}
	resp, err := d.Decorate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "true", resp.Annotations[SuspendedAnnotation])
}

func TestCronJobDecoratorUnknownWorkflow(t *testing.T) {
	st := newFakeState()
	d := NewCronJobDecorator(&fakeConfigs{st})

	req := &DecorateRequest{
		Object: json.RawMessage(`{"metadata": {"name": "missing"}}`),
	}
	resp, err := d.Decorate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "missing", resp.Labels[btrixv1.CrawlConfigLabel])
}
