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

import "sync/atomic"

// Counters is the bridge's only failure surface: every recovered protocol
// error increments a counter and the device keeps running. Fields are
// atomics because the sampler goroutine increments them from the
// interrupt role while the dispatch loop and callers read snapshots.
type Counters struct {
	framesReceived   atomic.Uint64
	bytesTransmitted atomic.Uint64
	commandsBridged  atomic.Uint64

	framingErrors     atomic.Uint64
	parityErrors      atomic.Uint64
	timeouts          atomic.Uint64
	queueOverflows    atomic.Uint64
	unknownScanCodes  atomic.Uint64
	inhibitExceeded   atomic.Uint64
	commandDeliveries atomic.Uint64
}

// CounterSnapshot is a point-in-time copy of the diagnostic counters.
type CounterSnapshot struct {
	FramesReceived   uint64
	BytesTransmitted uint64
	CommandsBridged  uint64

	FramingErrors          uint64
	ParityErrors           uint64
	Timeouts               uint64
	QueueOverflows         uint64
	UnknownScanCodes       uint64
	InhibitExceeded        uint64
	CommandDeliveryFailure uint64
}

// Snapshot returns a consistent-enough copy for inspection. Individual
// fields are read atomically; the set as a whole is not fenced, which is
// fine for diagnostics.
func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		FramesReceived:         c.framesReceived.Load(),
		BytesTransmitted:       c.bytesTransmitted.Load(),
		CommandsBridged:        c.commandsBridged.Load(),
		FramingErrors:          c.framingErrors.Load(),
		ParityErrors:           c.parityErrors.Load(),
		Timeouts:               c.timeouts.Load(),
		QueueOverflows:         c.queueOverflows.Load(),
		UnknownScanCodes:       c.unknownScanCodes.Load(),
		InhibitExceeded:        c.inhibitExceeded.Load(),
		CommandDeliveryFailure: c.commandDeliveries.Load(),
	}
}

func (c *Counters) addFrameReceived()   { c.framesReceived.Add(1) }
func (c *Counters) addByteTransmitted() { c.bytesTransmitted.Add(1) }
func (c *Counters) addCommandBridged()  { c.commandsBridged.Add(1) }

func (c *Counters) addFramingError()    { c.framingErrors.Add(1) }
func (c *Counters) addParityError()     { c.parityErrors.Add(1) }
func (c *Counters) addTimeout()         { c.timeouts.Add(1) }
func (c *Counters) addQueueOverflow()   { c.queueOverflows.Add(1) }
func (c *Counters) addUnknownCode()     { c.unknownScanCodes.Add(1) }
func (c *Counters) addInhibitExceeded() { c.inhibitExceeded.Add(1) }
func (c *Counters) addCommandFailure()  { c.commandDeliveries.Add(1) }
