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

// Package gpio implements the bridge link over a clock+data GPIO pin
// pair using periph.io. Lines are treated as open collector: driving
// low switches the pin to output low, driving high or releasing switches
// it back to an input with the pull-up enabled, so either bus peer can
// pull a line down at any time.
package gpio

import (
	"context"
	"fmt"
	"time"

	at2xt "github.com/KeyBridgeProject/go-at2xt"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Link implements at2xt.Link on two GPIO pins.
type Link struct {
	clk     gpio.PinIO
	dat     gpio.PinIO
	clkName string
	datName string
	closed  bool
}

// New opens a link on the named pins. Pin names are resolved through the
// periph registry ("GPIO17", "P1_11", ...). Both lines start released.
func New(clockPin, dataPin string) (*Link, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	clk := gpioreg.ByName(clockPin)
	if clk == nil {
		return nil, fmt.Errorf("clock pin %q not found", clockPin)
	}
	dat := gpioreg.ByName(dataPin)
	if dat == nil {
		return nil, fmt.Errorf("data pin %q not found", dataPin)
	}

	l := &Link{clk: clk, dat: dat, clkName: clockPin, datName: dataPin}
	if err := l.ReleaseClock(); err != nil {
		return nil, err
	}
	if err := l.ReleaseData(); err != nil {
		return nil, err
	}
	return l, nil
}

// WaitClockEdge implements at2xt.Link. Edge direction is derived from
// the level after the event; periph reports the event without it.
func (l *Link) WaitClockEdge(ctx context.Context, timeout time.Duration) (at2xt.Edge, error) {
	if l.closed {
		return at2xt.EdgeNone, at2xt.ErrLinkClosed
	}
	if err := ctx.Err(); err != nil {
		return at2xt.EdgeNone, err
	}
	if !l.clk.WaitForEdge(timeout) {
		if err := ctx.Err(); err != nil {
			return at2xt.EdgeNone, err
		}
		return at2xt.EdgeNone, nil
	}
	if l.clk.Read() == gpio.Low {
		return at2xt.EdgeFalling, nil
	}
	return at2xt.EdgeRising, nil
}

// ClockLevel implements at2xt.Link.
func (l *Link) ClockLevel() bool {
	return l.clk.Read() == gpio.High
}

// DataLevel implements at2xt.Link.
func (l *Link) DataLevel() bool {
	return l.dat.Read() == gpio.High
}

// DriveClock implements at2xt.Link.
func (l *Link) DriveClock(level bool) error {
	if l.closed {
		return at2xt.ErrLinkClosed
	}
	if level {
		return l.ReleaseClock()
	}
	if err := l.clk.Out(gpio.Low); err != nil {
		return fmt.Errorf("drive clock %s low: %w", l.clkName, err)
	}
	return nil
}

// DriveData implements at2xt.Link.
func (l *Link) DriveData(level bool) error {
	if l.closed {
		return at2xt.ErrLinkClosed
	}
	if level {
		return l.ReleaseData()
	}
	if err := l.dat.Out(gpio.Low); err != nil {
		return fmt.Errorf("drive data %s low: %w", l.datName, err)
	}
	return nil
}

// ReleaseClock implements at2xt.Link. The pin returns to input with
// pull-up and edge reporting armed.
func (l *Link) ReleaseClock() error {
	if l.closed {
		return at2xt.ErrLinkClosed
	}
	if err := l.clk.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return fmt.Errorf("release clock %s: %w", l.clkName, err)
	}
	return nil
}

// ReleaseData implements at2xt.Link.
func (l *Link) ReleaseData() error {
	if l.closed {
		return at2xt.ErrLinkClosed
	}
	if err := l.dat.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return fmt.Errorf("release data %s: %w", l.datName, err)
	}
	return nil
}

// Close implements at2xt.Link.
func (l *Link) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.clk.Halt(); err != nil {
		return fmt.Errorf("halt clock %s: %w", l.clkName, err)
	}
	if err := l.dat.Halt(); err != nil {
		return fmt.Errorf("halt data %s: %w", l.datName, err)
	}
	return nil
}

// String describes the pin pair.
func (l *Link) String() string {
	return fmt.Sprintf("gpio(%s,%s)", l.clkName, l.datName)
}
