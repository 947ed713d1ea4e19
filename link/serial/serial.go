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

// Package serial implements the bridge link over a USB serial adapter's
// modem control lines: RTS drives the clock wire, DTR drives the data
// wire, CTS reads the clock back, DSR reads the data back. Each wire
// needs a diode from the output pin so the adapter only pulls the line
// low, with the bus pull-up supplying the high level, and the readback
// pin tied to the wire itself.
//
// Asserting RTS or DTR drives the adapter output to the space level,
// which the diode passes as a low on the wire. Edge detection is by
// polling CTS; this caps usable clock rates well below what GPIO edge
// interrupts handle, which is fine for an AT keyboard at 10-16 kHz only
// when the poll interval is kept tight.
package serial

import (
	"context"
	"fmt"
	"time"

	"go.bug.st/serial"

	at2xt "github.com/KeyBridgeProject/go-at2xt"
	"github.com/KeyBridgeProject/go-at2xt/internal/syncutil"
)

// DefaultPollInterval is the CTS sampling period used by WaitClockEdge
// when none is configured.
const DefaultPollInterval = 10 * time.Microsecond

// Link implements at2xt.Link over modem control lines.
type Link struct {
	mu       syncutil.Mutex
	port     serial.Port
	portName string
	poll     time.Duration

	prevClock    bool
	prevClockSet bool

	closed bool
}

// Option configures a Link.
type Option func(*Link)

// WithPollInterval overrides the CTS sampling period.
func WithPollInterval(d time.Duration) Option {
	return func(l *Link) {
		if d > 0 {
			l.poll = d
		}
	}
}

// New opens the named serial port and releases both lines. The baud rate
// is irrelevant since no data bytes ever move; only the control lines
// are used.
func New(portName string, opts ...Option) (*Link, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: 9600})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	l := &Link{
		port:     port,
		portName: portName,
		poll:     DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := l.ReleaseClock(); err != nil {
		_ = port.Close()
		return nil, err
	}
	if err := l.ReleaseData(); err != nil {
		_ = port.Close()
		return nil, err
	}
	return l, nil
}

// WaitClockEdge implements at2xt.Link by polling CTS until it changes.
func (l *Link) WaitClockEdge(ctx context.Context, timeout time.Duration) (at2xt.Edge, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		level, err := l.readClock()
		if err != nil {
			return at2xt.EdgeNone, err
		}

		l.mu.Lock()
		known := l.prevClockSet
		prev := l.prevClock
		l.prevClock = level
		l.prevClockSet = true
		l.mu.Unlock()

		if known && level != prev {
			if level {
				return at2xt.EdgeRising, nil
			}
			return at2xt.EdgeFalling, nil
		}

		if time.Now().After(deadline) {
			return at2xt.EdgeNone, nil
		}
		select {
		case <-ctx.Done():
			return at2xt.EdgeNone, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Link) readClock() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false, at2xt.ErrLinkClosed
	}
	bits, err := l.port.GetModemStatusBits()
	if err != nil {
		return false, fmt.Errorf("read modem status on %s: %w", l.portName, err)
	}
	return bits.CTS, nil
}

// ClockLevel implements at2xt.Link. Read errors report the line high;
// the state machines treat a stuck-high clock as idle, the safe default.
func (l *Link) ClockLevel() bool {
	level, err := l.readClock()
	if err != nil {
		return true
	}
	return level
}

// DataLevel implements at2xt.Link.
func (l *Link) DataLevel() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return true
	}
	bits, err := l.port.GetModemStatusBits()
	if err != nil {
		return true
	}
	return bits.DSR
}

// DriveClock implements at2xt.Link. RTS asserted pulls the clock wire
// low through the diode.
func (l *Link) DriveClock(level bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return at2xt.ErrLinkClosed
	}
	if err := l.port.SetRTS(!level); err != nil {
		return fmt.Errorf("set RTS on %s: %w", l.portName, err)
	}
	return nil
}

// DriveData implements at2xt.Link.
func (l *Link) DriveData(level bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return at2xt.ErrLinkClosed
	}
	if err := l.port.SetDTR(!level); err != nil {
		return fmt.Errorf("set DTR on %s: %w", l.portName, err)
	}
	return nil
}

// ReleaseClock implements at2xt.Link.
func (l *Link) ReleaseClock() error {
	return l.DriveClock(true)
}

// ReleaseData implements at2xt.Link.
func (l *Link) ReleaseData() error {
	return l.DriveData(true)
}

// Close implements at2xt.Link.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.port.Close(); err != nil {
		return fmt.Errorf("close serial port %s: %w", l.portName, err)
	}
	return nil
}

// String describes the port.
func (l *Link) String() string {
	return fmt.Sprintf("serial(%s)", l.portName)
}
