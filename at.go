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
	"sync/atomic"
	"time"
)

// atRxState enumerates the receive state machine.
type atRxState int

const (
	atRxIdle   atRxState = iota // waiting for a start bit
	atRxData                    // shifting in the 8 data bits
	atRxParity                  // next sample is the parity bit
	atRxStop                    // next sample is the stop bit
)

// atReceiver assembles keyboard-clocked 11-bit AT frames one falling
// edge at a time. Transitions are a pure function of (state, sample), so
// the machine is testable without a link.
type atReceiver struct {
	state    atRxState
	bit      int
	data     byte
	parity   bool
	deadline time.Time
	interBit time.Duration
}

func (r *atReceiver) reset() {
	r.state = atRxIdle
	r.bit = 0
	r.data = 0
}

// sample consumes the data level observed at one falling clock edge.
// done is true when a frame completed on this sample. A non-nil error
// means the in-progress frame was abandoned (framing, parity or
// inter-bit timeout) and the machine has returned to idle; the error is
// diagnostic only, the receiver keeps running.
func (r *atReceiver) sample(level bool, now time.Time) (frame Frame, done bool, err error) {
	if r.state != atRxIdle && now.After(r.deadline) {
		r.reset()
		err = NewTimeoutError(BusAT, "receive")
		// The late sample is still a real edge; fall through and treat
		// it as a candidate start bit.
	}

	switch r.state {
	case atRxIdle:
		if level {
			// Start bit must be low. A high sample here is line noise or
			// the tail of a frame we lost track of.
			if err == nil {
				err = NewFramingError(BusAT, "start bit")
			}
			return Frame{}, false, err
		}
		r.state = atRxData
		r.bit = 0
		r.data = 0

	case atRxData:
		if level {
			r.data |= 1 << r.bit
		}
		r.bit++
		if r.bit == atDataBits {
			r.state = atRxParity
		}

	case atRxParity:
		r.parity = level
		r.state = atRxStop

	case atRxStop:
		data, parity := r.data, r.parity
		r.reset()
		if !level {
			return Frame{}, false, NewFramingError(BusAT, "stop bit")
		}
		f := Frame{Bus: BusAT, Data: data, Parity: parity}
		if !f.CheckParity() {
			return Frame{}, false, NewParityError(BusAT, "receive")
		}
		f.Valid = true
		return f, true, nil
	}

	r.deadline = now.Add(r.interBit)
	return Frame{}, false, err
}

// ATAdapter owns the keyboard-facing bus. Inbound scan codes are
// assembled by the receive machine as the sampler reports falling edges;
// outbound commands take the bus over with the request-to-send handshake
// and are then clocked out by the keyboard itself.
//
// The sampler goroutine is the only caller of OnClockFalling; SendCommand
// runs on the dispatch loop. The two roles hand the bus over through the
// hostMode flag: while it is set, falling edges shift command bits out
// instead of sampling scan code bits in.
type ATAdapter struct {
	link     Link
	cfg      *Config
	counters *Counters
	onFrame  func(Frame)

	rx atReceiver

	hostMode  atomic.Bool
	suspended atomic.Bool
	txShift   uint16
	txBits    int
	ackCh     chan struct{}
}

func newATAdapter(link Link, cfg *Config, counters *Counters, onFrame func(Frame)) *ATAdapter {
	a := &ATAdapter{
		link:     link,
		cfg:      cfg,
		counters: counters,
		onFrame:  onFrame,
		ackCh:    make(chan struct{}, 1),
	}
	a.rx.interBit = cfg.ATInterBitTimeout
	return a
}

// OnClockFalling advances the adapter by one keyboard clock edge. Called
// only from the sampler goroutine; bounded and allocation-free.
func (a *ATAdapter) OnClockFalling(now time.Time) {
	if a.suspended.Load() {
		// Request-to-send handshake in progress: the edge is our own
		// drive on the clock line, not a keyboard bit.
		return
	}
	if a.hostMode.Load() {
		// Any partially received frame is void once the bus direction
		// turned around.
		a.rx.reset()
		a.hostModeEdge()
		return
	}

	f, done, err := a.rx.sample(a.link.DataLevel(), now)
	if err != nil {
		a.countReceiveError(err)
	}
	if done {
		a.counters.addFrameReceived()
		// Hold the keyboard's clock while the frame is handed over so it
		// buffers instead of clocking into a busy receiver.
		_ = a.link.DriveClock(false)
		if a.onFrame != nil {
			a.onFrame(f)
		}
		_ = a.link.ReleaseClock()
	}
}

// hostModeEdge shifts out the next outbound command bit, or detects the
// keyboard's acknowledge once the shift register has drained.
func (a *ATAdapter) hostModeEdge() {
	if a.txBits > 0 {
		bit := a.txShift&1 == 1
		a.txShift >>= 1
		a.txBits--
		_ = a.link.DriveData(bit)
		if a.txBits == 0 {
			// Stop bit is on the wire; release immediately so the
			// keyboard can drive the acknowledge.
			_ = a.link.ReleaseData()
		}
		return
	}

	if !a.link.DataLevel() {
		a.hostMode.Store(false)
		select {
		case a.ackCh <- struct{}{}:
		default:
		}
	}
}

// SendCommand transmits one host-to-keyboard command byte. It performs
// the request-to-send handshake (clock low for the protocol hold time,
// data low, clock released), lets the keyboard clock out 8 data bits,
// odd parity and the stop bit, then waits for the acknowledge edge. A
// missing acknowledge aborts the send with a retryable error.
func (a *ATAdapter) SendCommand(ctx context.Context, b byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// 8 data bits LSB-first, then odd parity, then stop.
	shift := uint16(b)
	if OddParity(b) {
		shift |= 1 << atDataBits
	}
	shift |= 1 << (atDataBits + 1)
	a.txShift = shift
	a.txBits = atDataBits + 2

	// Drain a stale acknowledge from an aborted send.
	select {
	case <-a.ackCh:
	default:
	}

	// Our own clock drive produces edges; keep the sampler away from the
	// receive machine until the keyboard is clocking.
	a.suspended.Store(true)
	if err := a.link.DriveClock(false); err != nil {
		a.suspended.Store(false)
		return NewBusError(BusAT, "request to send", err, ErrorTypePermanent)
	}
	time.Sleep(a.cfg.RTSClockHold)
	if err := a.link.DriveData(false); err != nil {
		a.abortSend()
		return NewBusError(BusAT, "request to send", err, ErrorTypePermanent)
	}
	time.Sleep(a.cfg.RTSDataSetup)

	// Publish the loaded shift register and unsuspend before the release:
	// the keyboard may clock the first bit immediately, and no self-driven
	// edge can arrive while the clock is still held low.
	a.hostMode.Store(true)
	a.suspended.Store(false)
	if err := a.link.ReleaseClock(); err != nil {
		a.abortSend()
		return NewBusError(BusAT, "request to send", err, ErrorTypePermanent)
	}

	timer := time.NewTimer(a.cfg.CommandAckTimeout)
	defer timer.Stop()

	select {
	case <-a.ackCh:
		a.counters.addCommandBridged()
		return nil
	case <-timer.C:
		a.abortSend()
		a.counters.addTimeout()
		return NewNoAckError("send command")
	case <-ctx.Done():
		a.abortSend()
		return ctx.Err()
	}
}

// abortSend returns the bus to idle after a failed command.
func (a *ATAdapter) abortSend() {
	a.hostMode.Store(false)
	a.suspended.Store(false)
	_ = a.link.ReleaseData()
	_ = a.link.ReleaseClock()
}

func (a *ATAdapter) countReceiveError(err error) {
	switch {
	case errors.Is(err, ErrParity):
		a.counters.addParityError()
	case errors.Is(err, ErrTimeout):
		a.counters.addTimeout()
	case errors.Is(err, ErrFraming):
		a.counters.addFramingError()
	}
	Debugf("at receive: %v", err)
}
