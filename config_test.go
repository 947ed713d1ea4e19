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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, SamplingEdge, cfg.Sampling)
	assert.Equal(t, 100*time.Microsecond, cfg.RTSClockHold)
	assert.Equal(t, 55*time.Microsecond, cfg.XTClockLow)
	assert.Equal(t, DefaultQueueDepth, cfg.QueueDepth)
	assert.NotNil(t, cfg.Retry)

	// The timer sampling period must resolve individual bits of a 16kHz
	// clock.
	assert.Less(t, cfg.SampleInterval, 32*time.Microsecond)
}

func TestConfig_WithDefaults(t *testing.T) {
	t.Parallel()

	t.Run("nil config", func(t *testing.T) {
		t.Parallel()
		var cfg *Config
		out := cfg.withDefaults()
		require.NotNil(t, out)
		assert.Equal(t, DefaultConfig(), out)
	})

	t.Run("zero fields filled", func(t *testing.T) {
		t.Parallel()
		cfg := &Config{Sampling: SamplingTimer, QueueDepth: 4}
		out := cfg.withDefaults()

		assert.Equal(t, SamplingTimer, out.Sampling)
		assert.Equal(t, 4, out.QueueDepth)
		assert.Equal(t, DefaultConfig().RTSClockHold, out.RTSClockHold)
		assert.Equal(t, DefaultConfig().MaxInhibitWait, out.MaxInhibitWait)
		assert.NotNil(t, out.Retry)
	})

	t.Run("set fields survive", func(t *testing.T) {
		t.Parallel()
		cfg := &Config{XTClockLow: 40 * time.Microsecond}
		out := cfg.withDefaults()
		assert.Equal(t, 40*time.Microsecond, out.XTClockLow)
	})

	t.Run("original is not mutated", func(t *testing.T) {
		t.Parallel()
		cfg := &Config{}
		_ = cfg.withDefaults()
		assert.Equal(t, time.Duration(0), cfg.RTSClockHold)
	})
}

func TestSamplingMode_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "edge", SamplingEdge.String())
	assert.Equal(t, "timer", SamplingTimer.String())
	assert.Equal(t, "unknown", SamplingMode(7).String())
}
