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

// Translator folds AT scan code set 2 byte sequences into XT set 1
// sequences. It is owned by the dispatch loop; the only state carried
// between calls is which prefixes of the current sequence have been
// seen, plus the last indicator mask written to the keyboard. The mask
// alone is atomic because the converter's public accessor reads it from
// other goroutines.
type Translator struct {
	extendedPending bool
	breakPending    bool
	indicators      atomic.Uint32
	counters        *Counters
}

// NewTranslator creates a translator reporting unknown codes to the
// given counters.
func NewTranslator(counters *Counters) *Translator {
	return &Translator{counters: counters}
}

// Translate consumes one inbound AT byte and returns zero or more XT
// bytes. Prefix bytes (0xE0, 0xF0) produce no output; the data byte that
// follows resolves the whole sequence in a single call. Keyboard
// protocol replies are filtered here: command acknowledgements never
// reach the host, the self-test byte passes through unchanged.
func (t *Translator) Translate(b byte) []byte {
	switch b {
	case ScanExtended:
		t.extendedPending = true
		return nil
	case ScanBreak:
		t.breakPending = true
		return nil
	case KbdAck, KbdResend:
		// Command replies are consumed by the bridging path; they are
		// not key events and must not disturb an in-flight sequence.
		return nil
	case KbdSelfTestPass:
		t.Reset()
		return []byte{KbdSelfTestPass}
	case KbdOverrun, KbdError:
		// The keyboard lost data; any half-seen sequence is unusable.
		t.Reset()
		return nil
	}

	extended := t.extendedPending
	brk := t.breakPending
	t.extendedPending = false
	t.breakPending = false

	if extended && isFakeShift(b) {
		return nil
	}

	var code byte
	if extended {
		code = set2ExtToSet1[b]
	} else {
		code = set2ToSet1[b]
	}
	if code == 0 {
		if t.counters != nil {
			t.counters.addUnknownCode()
		}
		Debugf("translate: unknown set 2 code 0x%02X (extended=%v)", b, extended)
		return nil
	}

	if brk {
		code |= xtBreakBit
	}
	if extended {
		return []byte{ScanExtended, code}
	}
	return []byte{code}
}

// Reset clears any pending prefix state. Called on device reset and on
// protocol-level error recovery; the indicator mask survives because the
// keyboard's LEDs do not change when the bridge recovers.
func (t *Translator) Reset() {
	t.extendedPending = false
	t.breakPending = false
}

// Idle reports whether no partial sequence is pending.
func (t *Translator) Idle() bool {
	return !t.extendedPending && !t.breakPending
}

// Indicators returns the last indicator mask bridged to the keyboard.
func (t *Translator) Indicators() byte {
	return byte(t.indicators.Load())
}

// setIndicators records the mask after a successful set-LEDs bridge.
func (t *Translator) setIndicators(mask byte) {
	t.indicators.Store(uint32(mask))
}

// IndicatorCommand returns the AT command sequence that applies the
// given indicator mask. The two bytes are separate commands: each is
// acknowledged by the keyboard before the next may be sent.
func IndicatorCommand(mask byte) [2]byte {
	return [2]byte{CmdSetLEDs, mask}
}
