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

// Package testing provides wire-level simulators for both buses the
// bridge sits between. VirtualKeyboard emulates an AT keyboard clocking
// 11-bit frames at the bridge and accepting host commands over the
// request-to-send handshake; VirtualHost emulates an XT host decoding
// the device-clocked frames and exercising clock inhibition.
//
// Both types implement the bridge's Link interface, so the whole
// protocol engine runs against them without hardware.
package testing

import (
	"context"
	"math/bits"
	"time"

	at2xt "github.com/KeyBridgeProject/go-at2xt"
	"github.com/KeyBridgeProject/go-at2xt/internal/syncutil"
)

// wireEvent is one clock transition together with the data level that
// held during it. Delivering level and edge as one unit keeps the
// sampler's DataLevel read consistent with the edge it just observed.
type wireEvent struct {
	edge at2xt.Edge
	data bool
}

// VirtualKeyboard simulates an AT keyboard on the far end of a link.
type VirtualKeyboard struct {
	mu     syncutil.Mutex
	events chan wireEvent

	// wire state as of the last delivered event
	clock bool
	data  bool

	// device-driven line state
	devClockLow bool
	devDataLow  bool
	devData     bool

	// host command reception
	cmdMode bool
	cmdBits []bool

	// Commands records every command byte the bridge delivered.
	Commands []byte

	// AutoAck makes the keyboard answer each command with 0xFA.
	AutoAck bool
	// AutoSelfTest makes the keyboard follow a reset ack with 0xAA.
	AutoSelfTest bool

	closed bool
}

// NewVirtualKeyboard creates a keyboard with both lines idle high.
func NewVirtualKeyboard() *VirtualKeyboard {
	return &VirtualKeyboard{
		events:       make(chan wireEvent, 1024),
		clock:        true,
		data:         true,
		devData:      true,
		AutoAck:      true,
		AutoSelfTest: true,
	}
}

// SendScanCode clocks one scan code byte at the bridge as a full 11-bit
// frame: start, 8 data bits LSB-first, odd parity, stop.
func (v *VirtualKeyboard) SendScanCode(b byte) {
	v.SendRawFrame(b, oddParity(b), true)
}

// SendRawFrame clocks a frame with explicit parity and stop bits, for
// exercising parity and framing error paths.
func (v *VirtualKeyboard) SendRawFrame(b byte, parity, stop bool) {
	levels := make([]bool, 0, 11)
	levels = append(levels, false) // start
	for i := 0; i < 8; i++ {
		levels = append(levels, b&(1<<i) != 0)
	}
	levels = append(levels, parity, stop)
	for _, l := range levels {
		v.pulse(l)
	}
}

// pulse queues one full clock pulse (falling then rising) with the data
// line at the given level.
func (v *VirtualKeyboard) pulse(data bool) {
	v.events <- wireEvent{edge: at2xt.EdgeFalling, data: data}
	v.events <- wireEvent{edge: at2xt.EdgeRising, data: data}
}

// WaitClockEdge implements at2xt.Link.
func (v *VirtualKeyboard) WaitClockEdge(ctx context.Context, timeout time.Duration) (at2xt.Edge, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev, ok := <-v.events:
		if !ok {
			return at2xt.EdgeNone, at2xt.ErrLinkClosed
		}
		v.mu.Lock()
		v.clock = ev.edge == at2xt.EdgeRising
		v.data = ev.data
		v.mu.Unlock()
		return ev.edge, nil
	case <-timer.C:
		return at2xt.EdgeNone, nil
	case <-ctx.Done():
		return at2xt.EdgeNone, ctx.Err()
	}
}

// ClockLevel implements at2xt.Link.
func (v *VirtualKeyboard) ClockLevel() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.clock && !v.devClockLow
}

// DataLevel implements at2xt.Link.
func (v *VirtualKeyboard) DataLevel() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.devDataLow {
		return false
	}
	return v.data
}

// DriveClock implements at2xt.Link.
func (v *VirtualKeyboard) DriveClock(level bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return at2xt.ErrLinkClosed
	}
	v.devClockLow = !level
	return nil
}

// DriveData implements at2xt.Link. In command mode each drive is one
// bit: the keyboard samples the data line once per clock pulse it
// generates, so a drive here answers the pulse just delivered.
func (v *VirtualKeyboard) DriveData(level bool) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return at2xt.ErrLinkClosed
	}
	v.devDataLow = !level
	v.devData = level
	if !v.cmdMode {
		v.mu.Unlock()
		return nil
	}
	v.cmdBits = append(v.cmdBits, level)
	if len(v.cmdBits) < 10 {
		v.mu.Unlock()
		v.pulse(true)
		return nil
	}
	// 8 data + parity + stop collected.
	cmd := v.finishCommandLocked()
	autoAck := v.AutoAck
	autoSelfTest := v.AutoSelfTest
	v.mu.Unlock()

	// Acknowledge: one clock pulse with the keyboard holding data low.
	v.events <- wireEvent{edge: at2xt.EdgeFalling, data: false}
	v.events <- wireEvent{edge: at2xt.EdgeRising, data: true}

	if autoAck {
		v.SendScanCode(0xFA)
		if cmd == 0xFF && autoSelfTest {
			v.SendScanCode(0xAA)
		}
	}
	return nil
}

// finishCommandLocked decodes the collected command bits and records the
// byte. Parity and stop are not enforced; a real keyboard would request
// a resend, which the tests drive explicitly when needed.
func (v *VirtualKeyboard) finishCommandLocked() byte {
	var b byte
	for i := 0; i < 8; i++ {
		if v.cmdBits[i] {
			b |= 1 << i
		}
	}
	v.Commands = append(v.Commands, b)
	v.cmdMode = false
	v.cmdBits = nil
	return b
}

// ReleaseClock implements at2xt.Link. Releasing the clock with the data
// line held low is the request-to-send handshake: the keyboard starts
// clocking the command out of the bridge.
func (v *VirtualKeyboard) ReleaseClock() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return at2xt.ErrLinkClosed
	}
	v.devClockLow = false
	startCmd := v.devDataLow && !v.cmdMode
	if startCmd {
		v.cmdMode = true
		v.cmdBits = nil
	}
	v.mu.Unlock()
	if startCmd {
		v.pulse(true)
	}
	return nil
}

// ReleaseData implements at2xt.Link.
func (v *VirtualKeyboard) ReleaseData() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return at2xt.ErrLinkClosed
	}
	v.devDataLow = false
	v.devData = true
	return nil
}

// Close implements at2xt.Link.
func (v *VirtualKeyboard) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.closed {
		v.closed = true
		close(v.events)
	}
	return nil
}

// ReceivedCommands returns a copy of the command bytes delivered so far.
func (v *VirtualKeyboard) ReceivedCommands() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]byte, len(v.Commands))
	copy(out, v.Commands)
	return out
}

func oddParity(b byte) bool {
	return bits.OnesCount8(b)%2 == 0
}
