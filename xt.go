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
	"time"
)

// XT frame layout: two start bits (low then high) followed by 8 data
// bits LSB-first, all clocked by this device.
const xtFrameBits = 10

// xtShift is the transmit shift register for one XT frame. It survives
// inhibit suspension so a resumed byte continues from the exact bit
// position.
type xtShift struct {
	data   byte
	bit    int
	active bool
}

func (s *xtShift) start(b byte) {
	s.data = b
	s.bit = 0
	s.active = true
}

// level returns the data level for the current bit position.
func (s *xtShift) level() bool {
	switch {
	case s.bit == 0:
		return false
	case s.bit == 1:
		return true
	default:
		return s.data&(1<<(s.bit-2)) != 0
	}
}

// advance moves to the next bit and reports whether the frame is done.
func (s *xtShift) advance() bool {
	s.bit++
	if s.bit >= xtFrameBits {
		s.active = false
		return true
	}
	return false
}

// XTAdapter owns the host-facing bus and is its clock master. The host
// cannot send bytes; its only signals are pulling the clock low
// (inhibit, or reset when held while the bus is idle) and pulling the
// data line low (receive buffer busy).
type XTAdapter struct {
	link     Link
	cfg      *Config
	counters *Counters

	shift    xtShift
	lowSince time.Time
}

func newXTAdapter(link Link, cfg *Config, counters *Counters) *XTAdapter {
	return &XTAdapter{link: link, cfg: cfg, counters: counters}
}

// Inhibited reports whether the host is holding the clock line low.
// Meaningful only between clock pulses, when this device is not driving
// the line low itself.
func (x *XTAdapter) Inhibited() bool {
	return !x.link.ClockLevel()
}

// hostBusy reports whether the host is holding the data line low.
func (x *XTAdapter) hostBusy() bool {
	return !x.link.DataLevel()
}

// Transmit sends one byte toward the host. It is cooperative: the
// goroutine sleeps between bits rather than spinning, and an inhibited
// bus suspends the frame at its current bit position. Bits already sent
// are never re-sent. A host that stays inhibited past MaxInhibitWait
// causes the byte to be dropped and counted, not retried.
func (x *XTAdapter) Transmit(ctx context.Context, b byte) error {
	if !x.shift.active {
		// Wait for both lines free before starting: a low data line
		// means the host's shift register is still full.
		if err := x.waitReady(ctx, true); err != nil {
			if errors.Is(err, ErrInhibitExceeded) {
				x.counters.addInhibitExceeded()
			}
			return err
		}
		x.shift.start(b)
	}

	for {
		if err := ctx.Err(); err != nil {
			x.abort()
			return err
		}
		if err := x.waitReady(ctx, x.shift.bit == 0); err != nil {
			if errors.Is(err, ErrInhibitExceeded) {
				x.counters.addInhibitExceeded()
			}
			x.abort()
			return err
		}
		if err := x.sendBit(x.shift.level()); err != nil {
			x.abort()
			return err
		}
		if x.shift.advance() {
			break
		}
	}

	_ = x.link.ReleaseData()
	_ = x.link.ReleaseClock()
	x.counters.addByteTransmitted()
	return nil
}

// sendBit puts one bit on the wire: data set first, then one clock pulse.
func (x *XTAdapter) sendBit(level bool) error {
	if err := x.link.DriveData(level); err != nil {
		return NewBusError(BusXT, "transmit", err, ErrorTypePermanent)
	}
	if err := x.link.DriveClock(false); err != nil {
		return NewBusError(BusXT, "transmit", err, ErrorTypePermanent)
	}
	time.Sleep(x.cfg.XTClockLow)
	if err := x.link.DriveClock(true); err != nil {
		return NewBusError(BusXT, "transmit", err, ErrorTypePermanent)
	}
	time.Sleep(x.cfg.XTInterBit)
	return nil
}

// waitReady blocks until the host releases the clock line (and, when
// checkData is set, the data line), polling cooperatively. It fails once
// the host has been inhibiting longer than MaxInhibitWait.
func (x *XTAdapter) waitReady(ctx context.Context, checkData bool) error {
	deadline := time.Now().Add(x.cfg.MaxInhibitWait)
	for x.Inhibited() || (checkData && x.hostBusy()) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return NewInhibitExceededError("transmit")
		}
		time.Sleep(x.cfg.InhibitPoll)
	}
	return nil
}

// abort drops the in-progress frame and idles the lines.
func (x *XTAdapter) abort() {
	x.shift.active = false
	_ = x.link.ReleaseData()
	_ = x.link.ReleaseClock()
}

// HostResetRequested reports whether the host has held the clock low for
// the reset threshold while the bus was idle. A shorter pull is plain
// inhibition and is ignored here.
func (x *XTAdapter) HostResetRequested(now time.Time) bool {
	if x.shift.active {
		x.lowSince = time.Time{}
		return false
	}
	if x.link.ClockLevel() {
		x.lowSince = time.Time{}
		return false
	}
	if x.lowSince.IsZero() {
		x.lowSince = now
		return false
	}
	if now.Sub(x.lowSince) >= x.cfg.ResetHold {
		x.lowSince = time.Time{}
		return true
	}
	return false
}
