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

import "math/bits"

// Bus identifies one of the two clock/data line pairs the bridge sits
// between.
type Bus int

const (
	// BusAT is the keyboard-facing bus. The keyboard is clock master for
	// inbound scan codes; the bridge takes the clock over only for the
	// request-to-send phase of outbound commands.
	BusAT Bus = iota
	// BusXT is the host-facing bus. The bridge is clock master; the host
	// can only pull clock low (inhibit/reset) or data low (busy).
	BusXT
)

func (b Bus) String() string {
	switch b {
	case BusAT:
		return "at"
	case BusXT:
		return "xt"
	default:
		return "unknown"
	}
}

// atDataBits is the payload width of an AT frame: start + 8 data bits
// LSB-first + odd parity + stop on the wire.
const atDataBits = 8

// Frame is one completed serial frame. It is created by a receive state
// machine as bits arrive and never mutated after completion.
type Frame struct {
	Bus    Bus
	Data   byte
	Parity bool
	Valid  bool
}

// OddParity returns the parity bit value for b under the AT convention:
// the 8 data bits plus the parity bit always contain an odd number of
// ones.
func OddParity(b byte) bool {
	return bits.OnesCount8(b)%2 == 0
}

// CheckParity reports whether the frame's data and parity bit satisfy
// odd parity.
func (f Frame) CheckParity() bool {
	return f.Parity == OddParity(f.Data)
}
