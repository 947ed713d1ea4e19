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

// Package at2xt bridges an AT (scan code set 2) keyboard to a host that
// speaks the XT (scan code set 1) protocol. The protocol engine is
// hardware-independent: both buses are reached through the Link
// interface, so the whole bridge runs against simulated links in tests
// and against GPIO pins or a serial adapter's control lines in the
// field.
package at2xt

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

type commandKind int

const (
	cmdSetIndicators commandKind = iota
	cmdResetKeyboard
)

// hostCommand is a host-originated request bridged to the keyboard.
type hostCommand struct {
	kind commandKind
	mask byte
}

// Converter owns both protocol adapters, the frame queue and the
// translator, and drives the dispatch loop. One sampler goroutine plays
// the interrupt role (producing completed frames); the dispatch loop
// consumes them. No other goroutines touch protocol state.
type Converter struct {
	cfg      *Config
	atLink   Link
	xtLink   Link
	at       *ATAdapter
	xt       *XTAdapter
	tr       *Translator
	queue    *frameQueue
	counters Counters

	cmds    chan hostCommand
	wake    chan struct{}
	running atomic.Bool
}

// Option configures a Converter.
type Option func(*Converter)

// WithConfig overrides the default configuration.
func WithConfig(cfg *Config) Option {
	return func(c *Converter) {
		c.cfg = cfg.withDefaults()
	}
}

// New creates a converter between a keyboard on atLink and a host on
// xtLink.
func New(atLink, xtLink Link, opts ...Option) (*Converter, error) {
	if atLink == nil || xtLink == nil {
		return nil, errors.New("both links are required")
	}

	c := &Converter{
		cfg:    DefaultConfig(),
		atLink: atLink,
		xtLink: xtLink,
		cmds:   make(chan hostCommand, commandQueueDepth),
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.queue = newFrameQueue(c.cfg.QueueDepth)
	c.tr = NewTranslator(&c.counters)
	c.at = newATAdapter(atLink, c.cfg, &c.counters, c.enqueueFrame)
	c.xt = newXTAdapter(xtLink, c.cfg, &c.counters)
	return c, nil
}

// enqueueFrame is the sampler-side hand-off from the AT adapter into the
// frame queue. Runs in the sampler goroutine; must not block.
func (c *Converter) enqueueFrame(f Frame) {
	if !c.queue.Push(f) {
		c.counters.addQueueOverflow()
		Debugf("frame queue full, dropped 0x%02X", f.Data)
		return
	}
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Run owns the bridge for the lifetime of the context: it resets the
// keyboard, starts the sampler and then services the dispatch loop until
// the context is cancelled. Protocol errors never end the loop; they are
// recovered locally and counted.
func (c *Converter) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("converter already running")
	}
	defer c.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The sampler must be live before any command can go out: the
	// keyboard clocks command bits through it.
	samplerDone := make(chan error, 1)
	go func() {
		samplerDone <- c.sample(ctx)
	}()

	// Put the keyboard in a known state before forwarding anything.
	c.bridgeKeyboardReset(ctx, false)

	err := c.dispatch(ctx)
	cancel()
	if serr := <-samplerDone; serr != nil && err == nil {
		err = serr
	}
	return err
}

// sample observes AT clock edges and advances the AT adapter, either by
// blocking on link edge events or by polling levels on a fixed tick.
// The adapter's state machine is identical under both modes.
func (c *Converter) sample(ctx context.Context) error {
	if c.cfg.Sampling == SamplingTimer {
		return c.sampleTimer(ctx)
	}
	return c.sampleEdge(ctx)
}

func (c *Converter) sampleEdge(ctx context.Context) error {
	for {
		edge, err := c.atLink.WaitClockEdge(ctx, c.cfg.EdgeWaitTimeout)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		case errors.Is(err, ErrLinkClosed):
			return NewBusError(BusAT, "sample", err, ErrorTypePermanent)
		default:
			// Transient edge-wait failure; the inter-bit timeout cleans
			// up whatever frame the missed edge belonged to.
			Debugf("edge wait: %v", err)
			continue
		}
		if edge == EdgeFalling {
			c.at.OnClockFalling(time.Now())
		}
	}
}

func (c *Converter) sampleTimer(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.SampleInterval)
	defer ticker.Stop()

	prev := c.atLink.ClockLevel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		level := c.atLink.ClockLevel()
		if prev && !level {
			c.at.OnClockFalling(time.Now())
		}
		prev = level
	}
}

// dispatch is the single-threaded cooperative loop: drain one frame,
// service pending host commands, watch for a host reset request, then
// yield until woken.
func (c *Converter) dispatch(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		worked := false

		if f, ok := c.queue.Pop(); ok {
			worked = true
			c.handleFrame(ctx, f)
		}

		select {
		case cmd := <-c.cmds:
			worked = true
			c.serviceCommand(ctx, cmd)
		default:
		}

		if c.xt.HostResetRequested(time.Now()) {
			worked = true
			Debugf("host reset request")
			c.bridgeKeyboardReset(ctx, true)
		}

		if !worked {
			select {
			case <-c.wake:
			case <-time.After(c.cfg.IdlePoll):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// handleFrame translates one received AT frame and forwards the result.
// A transmit failure abandons the remainder of this key's output so a
// dangling extended prefix is never delivered on its own.
func (c *Converter) handleFrame(ctx context.Context, f Frame) {
	for _, b := range c.tr.Translate(f.Data) {
		if err := c.xt.Transmit(ctx, b); err != nil {
			Debugf("xt transmit 0x%02X: %v", b, err)
			return
		}
	}
}

func (c *Converter) serviceCommand(ctx context.Context, cmd hostCommand) {
	switch cmd.kind {
	case cmdSetIndicators:
		if err := c.deliverCommand(ctx, CmdSetLEDs); err != nil {
			return
		}
		time.Sleep(c.cfg.LEDSettle)
		if err := c.deliverCommand(ctx, cmd.mask); err != nil {
			return
		}
		c.tr.setIndicators(cmd.mask)
	case cmdResetKeyboard:
		c.bridgeKeyboardReset(ctx, true)
	}
}

// deliverCommand pushes one command byte at the keyboard with bounded
// retries. Exhausted retries surface as a counted delivery failure; the
// bridge itself keeps running.
func (c *Converter) deliverCommand(ctx context.Context, b byte) error {
	err := RetryWithConfig(ctx, c.cfg.Retry, func() error {
		return c.at.SendCommand(ctx, b)
	})
	if err != nil {
		c.counters.addCommandFailure()
		Debugf("deliver 0x%02X: %v", b, err)
		return fmt.Errorf("%w: %w", ErrCommandDelivery, err)
	}
	return nil
}

// bridgeKeyboardReset sends the AT reset command and clears translation
// state. When the reset was host-requested the self-test byte is
// reported back immediately; the keyboard's own completion byte also
// passes through once it arrives.
func (c *Converter) bridgeKeyboardReset(ctx context.Context, hostRequested bool) {
	_ = c.deliverCommand(ctx, CmdReset)
	c.queue.Flush()
	c.tr.Reset()
	if hostRequested {
		if err := c.xt.Transmit(ctx, KbdSelfTestPass); err != nil {
			Debugf("reset reply: %v", err)
		}
	}
}

// SetIndicators bridges a host set-indicator-state request: the
// corresponding AT set-LEDs command sequence is queued for delivery by
// the dispatch loop.
func (c *Converter) SetIndicators(mask byte) error {
	if !c.running.Load() {
		return ErrConverterStopped
	}
	select {
	case c.cmds <- hostCommand{kind: cmdSetIndicators, mask: mask}:
		return nil
	default:
		return NewBusError(BusAT, "set indicators", ErrCommandQueueFull, ErrorTypeTransient)
	}
}

// ResetKeyboard bridges a host reset request.
func (c *Converter) ResetKeyboard() error {
	if !c.running.Load() {
		return ErrConverterStopped
	}
	select {
	case c.cmds <- hostCommand{kind: cmdResetKeyboard}:
		return nil
	default:
		return NewBusError(BusAT, "reset keyboard", ErrCommandQueueFull, ErrorTypeTransient)
	}
}

// Indicators returns the last indicator mask successfully bridged.
func (c *Converter) Indicators() byte {
	return c.tr.Indicators()
}

// Counters returns a snapshot of the diagnostic counters.
func (c *Converter) Counters() CounterSnapshot {
	return c.counters.Snapshot()
}

// Close releases both links.
func (c *Converter) Close() error {
	atErr := c.atLink.Close()
	xtErr := c.xtLink.Close()
	if atErr != nil {
		return fmt.Errorf("closing at link: %w", atErr)
	}
	if xtErr != nil {
		return fmt.Errorf("closing xt link: %w", xtErr)
	}
	return nil
}
