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

package testing

import (
	"context"
	"time"

	at2xt "github.com/KeyBridgeProject/go-at2xt"
	"github.com/KeyBridgeProject/go-at2xt/internal/syncutil"
)

// VirtualHost simulates the XT side: it decodes device-clocked frames
// synchronously as the bridge drives the clock line, and can pull the
// clock low to inhibit transmission or request a reset. Decoding inside
// DriveClock keeps the simulation deterministic; no goroutine races the
// transmitter.
type VirtualHost struct {
	mu syncutil.Mutex

	devClock bool // level the device drives the clock at (released = high)
	devData  bool
	inhibit  bool // host pulling clock low
	busy     bool // host pulling data low

	frameBits []bool
	pulses    int

	received  []byte
	badFrames int

	// InhibitAfterPulses, when armed, asserts inhibit once the current
	// frame has seen this many clock pulses. One-shot.
	inhibitAfterPulses int
	inhibitFor         time.Duration

	closed bool
}

// NewVirtualHost creates a host with both lines released.
func NewVirtualHost() *VirtualHost {
	return &VirtualHost{devClock: true, devData: true}
}

// WaitClockEdge implements at2xt.Link. The bridge never waits for edges
// on the host-facing bus; the wait simply honors its timeout.
func (v *VirtualHost) WaitClockEdge(ctx context.Context, timeout time.Duration) (at2xt.Edge, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		return at2xt.EdgeNone, nil
	case <-ctx.Done():
		return at2xt.EdgeNone, ctx.Err()
	}
}

// ClockLevel implements at2xt.Link. Open collector wire-AND of both
// sides.
func (v *VirtualHost) ClockLevel() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.devClock && !v.inhibit
}

// DataLevel implements at2xt.Link.
func (v *VirtualHost) DataLevel() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.devData && !v.busy
}

// DriveClock implements at2xt.Link. A falling drive latches the data
// line into the host's shift register, mimicking the host adapter
// hardware clocking on the device's edges.
func (v *VirtualHost) DriveClock(level bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return at2xt.ErrLinkClosed
	}
	falling := v.devClock && !level
	v.devClock = level
	if !falling {
		return nil
	}

	v.frameBits = append(v.frameBits, v.devData)
	v.pulses++

	if v.inhibitAfterPulses > 0 && len(v.frameBits) == v.inhibitAfterPulses {
		v.inhibitAfterPulses = 0
		v.inhibit = true
		if v.inhibitFor > 0 {
			d := v.inhibitFor
			time.AfterFunc(d, func() {
				v.mu.Lock()
				v.inhibit = false
				v.mu.Unlock()
			})
		}
	}

	if len(v.frameBits) == 10 {
		v.decodeFrameLocked()
	}
	return nil
}

// decodeFrameLocked turns 10 collected bits into a byte: start bits low
// then high, then 8 data bits LSB-first.
func (v *VirtualHost) decodeFrameLocked() {
	bits := v.frameBits
	v.frameBits = nil
	if bits[0] || !bits[1] {
		v.badFrames++
		return
	}
	var b byte
	for i := 0; i < 8; i++ {
		if bits[i+2] {
			b |= 1 << i
		}
	}
	v.received = append(v.received, b)
}

// DriveData implements at2xt.Link.
func (v *VirtualHost) DriveData(level bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return at2xt.ErrLinkClosed
	}
	v.devData = level
	return nil
}

// ReleaseClock implements at2xt.Link.
func (v *VirtualHost) ReleaseClock() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return at2xt.ErrLinkClosed
	}
	v.devClock = true
	return nil
}

// ReleaseData implements at2xt.Link.
func (v *VirtualHost) ReleaseData() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return at2xt.ErrLinkClosed
	}
	v.devData = true
	return nil
}

// Close implements at2xt.Link.
func (v *VirtualHost) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return nil
}

// Test helper methods

// Inhibit pulls the clock line low, pausing the bridge's transmitter.
func (v *VirtualHost) Inhibit() {
	v.mu.Lock()
	v.inhibit = true
	v.mu.Unlock()
}

// Release lets the clock line float high again.
func (v *VirtualHost) Release() {
	v.mu.Lock()
	v.inhibit = false
	v.mu.Unlock()
}

// SetBusy pulls or releases the data line, the host's "shift register
// full" signal.
func (v *VirtualHost) SetBusy(busy bool) {
	v.mu.Lock()
	v.busy = busy
	v.mu.Unlock()
}

// InhibitMidFrame arms a one-shot inhibit that asserts after the current
// frame has clocked the given number of bits, releasing after d.
func (v *VirtualHost) InhibitMidFrame(afterBits int, d time.Duration) {
	v.mu.Lock()
	v.inhibitAfterPulses = afterBits
	v.inhibitFor = d
	v.mu.Unlock()
}

// Received returns a copy of the decoded bytes.
func (v *VirtualHost) Received() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]byte, len(v.received))
	copy(out, v.received)
	return out
}

// Pulses reports the total number of clock pulses observed.
func (v *VirtualHost) Pulses() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pulses
}

// BadFrames reports frames whose start bits were malformed.
func (v *VirtualHost) BadFrames() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.badFrames
}
