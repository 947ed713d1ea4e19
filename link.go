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
	"time"

	"github.com/KeyBridgeProject/go-at2xt/internal/syncutil"
)

// Edge identifies a clock line transition.
type Edge int

const (
	// EdgeNone means no transition occurred before the wait ended.
	EdgeNone Edge = iota
	// EdgeFalling is a high-to-low clock transition. AT data bits are
	// sampled on falling edges.
	EdgeFalling
	// EdgeRising is a low-to-high clock transition.
	EdgeRising
)

func (e Edge) String() string {
	switch e {
	case EdgeFalling:
		return "falling"
	case EdgeRising:
		return "rising"
	default:
		return "none"
	}
}

// Link is one clock+data line pair. Both lines are open collector: a
// side drives a line low or releases it, and a released line floats high
// through its pull-up unless the peer is holding it low. DriveClock(true)
// and DriveData(true) are therefore equivalent to the release calls;
// implementations may express "drive high" as releasing the line.
//
// Level reads return the wire state, not the locally driven state, so a
// peer pulling a released line low is visible to the caller. All
// operations are bounded; none allocates on the hot path.
type Link interface {
	// WaitClockEdge blocks until the clock line transitions, the timeout
	// expires (EdgeNone, nil) or the context is cancelled.
	WaitClockEdge(ctx context.Context, timeout time.Duration) (Edge, error)

	// ClockLevel returns the clock wire level (true = high).
	ClockLevel() bool

	// DataLevel returns the data wire level (true = high).
	DataLevel() bool

	// DriveClock drives the clock line to the given level.
	DriveClock(level bool) error

	// DriveData drives the data line to the given level.
	DriveData(level bool) error

	// ReleaseClock stops driving the clock line, letting it float high.
	ReleaseClock() error

	// ReleaseData stops driving the data line, letting it float high.
	ReleaseData() error

	// Close releases both lines and shuts the link down.
	Close() error
}

// MockLink provides a scripted Link for unit tests. Peer-driven levels
// are set by test helpers; edge events are delivered through an internal
// channel so a test controls exactly when the sampler observes them.
type MockLink struct {
	mu    syncutil.Mutex
	edges chan Edge

	peerClock bool // level the peer holds the clock at (true = released)
	peerData  bool

	ourClock      bool // level we drive the clock at
	ourData       bool
	clockReleased bool
	ourDataDriven bool

	closed bool

	// DriveLog records every DriveClock/DriveData/Release call in order,
	// for asserting waveforms.
	DriveLog []string
}

// NewMockLink creates a mock link with both lines idle high.
func NewMockLink() *MockLink {
	return &MockLink{
		edges:         make(chan Edge, 64),
		peerClock:     true,
		peerData:      true,
		ourClock:      true,
		ourData:       true,
		clockReleased: true,
		ourDataDriven: false,
	}
}

// WaitClockEdge implements Link.
func (m *MockLink) WaitClockEdge(ctx context.Context, timeout time.Duration) (Edge, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return EdgeNone, ErrLinkClosed
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e, ok := <-m.edges:
		if !ok {
			return EdgeNone, ErrLinkClosed
		}
		return e, nil
	case <-timer.C:
		return EdgeNone, nil
	case <-ctx.Done():
		return EdgeNone, ctx.Err()
	}
}

// ClockLevel implements Link. Open collector: the wire is low if either
// side holds it low.
func (m *MockLink) ClockLevel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ours := m.ourClock || m.clockReleased
	return ours && m.peerClock
}

// DataLevel implements Link.
func (m *MockLink) DataLevel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ours := m.ourData || !m.ourDataDriven
	return ours && m.peerData
}

// DriveClock implements Link.
func (m *MockLink) DriveClock(level bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrLinkClosed
	}
	m.ourClock = level
	m.clockReleased = false
	if level {
		m.DriveLog = append(m.DriveLog, "clk=1")
	} else {
		m.DriveLog = append(m.DriveLog, "clk=0")
	}
	return nil
}

// DriveData implements Link.
func (m *MockLink) DriveData(level bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrLinkClosed
	}
	m.ourData = level
	m.ourDataDriven = true
	if level {
		m.DriveLog = append(m.DriveLog, "dat=1")
	} else {
		m.DriveLog = append(m.DriveLog, "dat=0")
	}
	return nil
}

// ReleaseClock implements Link.
func (m *MockLink) ReleaseClock() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrLinkClosed
	}
	m.clockReleased = true
	m.ourClock = true
	m.DriveLog = append(m.DriveLog, "clk=z")
	return nil
}

// ReleaseData implements Link.
func (m *MockLink) ReleaseData() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrLinkClosed
	}
	m.ourDataDriven = false
	m.ourData = true
	m.DriveLog = append(m.DriveLog, "dat=z")
	return nil
}

// Close implements Link.
func (m *MockLink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.edges)
	}
	return nil
}

// Test helper methods

// SetPeerClock sets the level the peer holds the clock line at and queues
// the resulting edge event.
func (m *MockLink) SetPeerClock(level bool) {
	m.mu.Lock()
	if m.peerClock == level || m.closed {
		m.mu.Unlock()
		return
	}
	m.peerClock = level
	m.mu.Unlock()
	if level {
		m.edges <- EdgeRising
	} else {
		m.edges <- EdgeFalling
	}
}

// SetPeerData sets the level the peer holds the data line at.
func (m *MockLink) SetPeerData(level bool) {
	m.mu.Lock()
	m.peerData = level
	m.mu.Unlock()
}

// PulseClock generates one falling then one rising edge with the data
// line at the given level, the way a keyboard clocks out one bit.
func (m *MockLink) PulseClock(dataLevel bool) {
	m.SetPeerData(dataLevel)
	m.SetPeerClock(false)
	m.SetPeerClock(true)
}

// OurData reports the level we are driving the data line at, or true if
// released.
func (m *MockLink) OurData() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ourData || !m.ourDataDriven
}

// ClearDriveLog resets the recorded waveform.
func (m *MockLink) ClearDriveLog() {
	m.mu.Lock()
	m.DriveLog = nil
	m.mu.Unlock()
}
