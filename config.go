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

import "time"

// SamplingMode selects how clock transitions on the AT bus are observed.
// The protocol state machines behave identically under either mode.
type SamplingMode int

const (
	// SamplingEdge blocks on hardware edge events from the link.
	SamplingEdge SamplingMode = iota
	// SamplingTimer polls the clock level at a fixed rate and derives
	// edges from level changes. For links that cannot deliver edge
	// events, such as modem-control-line adapters.
	SamplingTimer
)

func (m SamplingMode) String() string {
	switch m {
	case SamplingEdge:
		return "edge"
	case SamplingTimer:
		return "timer"
	default:
		return "unknown"
	}
}

// Config holds converter configuration options.
type Config struct {
	// Sampling selects edge-driven or timer-driven clock observation.
	Sampling SamplingMode

	// SampleInterval is the polling period in SamplingTimer mode. It must
	// be shorter than half the AT clock period or bits are lost.
	SampleInterval time.Duration

	// EdgeWaitTimeout bounds a single edge wait so the sampler can notice
	// cancellation; it is not a protocol timeout.
	EdgeWaitTimeout time.Duration

	// ATInterBitTimeout invalidates an in-progress AT frame when the bus
	// goes silent mid-frame. Treated as a framing fault, not fatal.
	ATInterBitTimeout time.Duration

	// RTSClockHold is how long the clock is held low to request the AT
	// bus before an outbound command. The protocol minimum is 100us.
	RTSClockHold time.Duration

	// RTSDataSetup is the delay between pulling data low and releasing
	// the clock during the request-to-send handshake.
	RTSDataSetup time.Duration

	// CommandAckTimeout bounds the wait for the keyboard to clock out a
	// command and acknowledge it.
	CommandAckTimeout time.Duration

	// LEDSettle is the pause between the set-LEDs command byte and its
	// mask argument.
	LEDSettle time.Duration

	// XTClockLow is how long the XT clock is held low per bit.
	XTClockLow time.Duration

	// XTInterBit is the pause between XT bits with the clock high.
	XTInterBit time.Duration

	// InhibitPoll is how often a suspended XT transmit re-checks the
	// inhibited clock line.
	InhibitPoll time.Duration

	// MaxInhibitWait drops the in-progress XT byte when the host holds
	// the clock low longer than this.
	MaxInhibitWait time.Duration

	// ResetHold is how long the host must hold the XT clock low, with no
	// transmit in progress, to be treated as a reset request.
	ResetHold time.Duration

	// IdlePoll is the dispatch loop's wake-up period when no work is
	// pending, used to notice host reset requests.
	IdlePoll time.Duration

	// QueueDepth is the frame queue capacity.
	QueueDepth int

	// Retry governs bridged command delivery attempts.
	Retry *RetryConfig
}

// DefaultConfig returns the default converter configuration. Timings
// follow the classic bus rates: the AT keyboard clocks at 10-16kHz and
// the XT frame is emitted with a 55us clock-low phase per bit.
func DefaultConfig() *Config {
	return &Config{
		Sampling:          SamplingEdge,
		SampleInterval:    25 * time.Microsecond,
		EdgeWaitTimeout:   50 * time.Millisecond,
		ATInterBitTimeout: 2 * time.Millisecond,
		RTSClockHold:      100 * time.Microsecond,
		RTSDataSetup:      33 * time.Microsecond,
		CommandAckTimeout: 30 * time.Millisecond,
		LEDSettle:         3 * time.Millisecond,
		XTClockLow:        55 * time.Microsecond,
		XTInterBit:        66 * time.Microsecond,
		InhibitPoll:       250 * time.Microsecond,
		MaxInhibitWait:    500 * time.Millisecond,
		ResetHold:         20 * time.Millisecond,
		IdlePoll:          5 * time.Millisecond,
		QueueDepth:        DefaultQueueDepth,
		Retry:             DefaultRetryConfig(),
	}
}

// withDefaults fills zero-valued fields from DefaultConfig so partially
// populated configs behave.
func (c *Config) withDefaults() *Config {
	def := DefaultConfig()
	if c == nil {
		return def
	}
	out := *c
	if out.SampleInterval <= 0 {
		out.SampleInterval = def.SampleInterval
	}
	if out.EdgeWaitTimeout <= 0 {
		out.EdgeWaitTimeout = def.EdgeWaitTimeout
	}
	if out.ATInterBitTimeout <= 0 {
		out.ATInterBitTimeout = def.ATInterBitTimeout
	}
	if out.RTSClockHold <= 0 {
		out.RTSClockHold = def.RTSClockHold
	}
	if out.RTSDataSetup <= 0 {
		out.RTSDataSetup = def.RTSDataSetup
	}
	if out.CommandAckTimeout <= 0 {
		out.CommandAckTimeout = def.CommandAckTimeout
	}
	if out.LEDSettle <= 0 {
		out.LEDSettle = def.LEDSettle
	}
	if out.XTClockLow <= 0 {
		out.XTClockLow = def.XTClockLow
	}
	if out.XTInterBit <= 0 {
		out.XTInterBit = def.XTInterBit
	}
	if out.InhibitPoll <= 0 {
		out.InhibitPoll = def.InhibitPoll
	}
	if out.MaxInhibitWait <= 0 {
		out.MaxInhibitWait = def.MaxInhibitWait
	}
	if out.ResetHold <= 0 {
		out.ResetHold = def.ResetHold
	}
	if out.IdlePoll <= 0 {
		out.IdlePoll = def.IdlePoll
	}
	if out.QueueDepth <= 0 {
		out.QueueDepth = def.QueueDepth
	}
	if out.Retry == nil {
		out.Retry = def.Retry
	}
	return &out
}
