// Copyright 2026 The KeyBridge Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package at2xt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
		RetryTimeout:      time.Second,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	t.Parallel()

	config := DefaultRetryConfig()

	assert.NotNil(t, config)
	assert.Equal(t, CommandDeliveryRetries, config.MaxAttempts)
	assert.Greater(t, config.InitialBackoff, time.Duration(0))
	assert.GreaterOrEqual(t, config.MaxBackoff, config.InitialBackoff)
	assert.Greater(t, config.BackoffMultiplier, 1.0)
	assert.Greater(t, config.RetryTimeout, time.Duration(0))
}

func TestRetryWithConfig_SucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	calls := 0
	err := RetryWithConfig(context.Background(), fastRetryConfig(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithConfig_RetriesTransient(t *testing.T) {
	t.Parallel()

	calls := 0
	err := RetryWithConfig(context.Background(), fastRetryConfig(), func() error {
		calls++
		if calls < 3 {
			return NewNoAckError("send command")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithConfig_PermanentNotRetried(t *testing.T) {
	t.Parallel()

	permanent := NewBusError(BusAT, "send", errors.New("wire gone"), ErrorTypePermanent)
	calls := 0
	err := RetryWithConfig(context.Background(), fastRetryConfig(), func() error {
		calls++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryWithConfig_ExhaustedReturnsLastError(t *testing.T) {
	t.Parallel()

	calls := 0
	err := RetryWithConfig(context.Background(), fastRetryConfig(), func() error {
		calls++
		return NewNoAckError("send command")
	})
	require.ErrorIs(t, err, ErrNoAck)
	assert.Equal(t, 3, calls)
}

func TestRetryWithConfig_NilConfigUsesDefaults(t *testing.T) {
	t.Parallel()

	calls := 0
	err := RetryWithConfig(context.Background(), nil, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithConfig_ZeroAttemptsRunsOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	cfg := &RetryConfig{MaxAttempts: 0}
	err := RetryWithConfig(context.Background(), cfg, func() error {
		calls++
		return NewNoAckError("send command")
	})
	require.ErrorIs(t, err, ErrNoAck)
	assert.Equal(t, 1, calls)
}

func TestRetryWithConfig_ContextCancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	cfg := &RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2.0,
	}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := RetryWithConfig(ctx, cfg, func() error {
		calls++
		cancel()
		return NewNoAckError("send command")
	})
	require.ErrorIs(t, err, ErrNoAck)
	assert.Equal(t, 1, calls, "cancellation during backoff stops further attempts")
}

func TestNextBackoff_CappedAtMax(t *testing.T) {
	t.Parallel()

	cfg := &RetryConfig{
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        30 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
	b := cfg.InitialBackoff
	b = nextBackoff(b, cfg)
	assert.Equal(t, 20*time.Millisecond, b)
	b = nextBackoff(b, cfg)
	assert.Equal(t, 30*time.Millisecond, b)
	b = nextBackoff(b, cfg)
	assert.Equal(t, 30*time.Millisecond, b)
}
