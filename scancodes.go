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

// Scan code set 2 prefixes and keyboard protocol bytes.
const (
	// ScanExtended marks the following set 2 byte as a secondary-page
	// key code.
	ScanExtended = 0xE0
	// ScanBreak marks the following set 2 byte as a key release.
	ScanBreak = 0xF0

	// KbdAck is the keyboard's acknowledge of a command byte.
	KbdAck = 0xFA
	// KbdResend asks the host to repeat the last command byte.
	KbdResend = 0xFE
	// KbdSelfTestPass is sent by the keyboard after a successful reset.
	KbdSelfTestPass = 0xAA
	// KbdOverrun signals the keyboard's own buffer overflowed.
	KbdOverrun = 0x00
	// KbdError signals a keyboard-internal failure.
	KbdError = 0xFF

	// CmdSetLEDs is the set-indicators keyboard command; the LED bitmask
	// follows as a second command byte.
	CmdSetLEDs = 0xED
	// CmdReset tells the keyboard to reset and run its self-test.
	CmdReset = 0xFF

	// xtBreakBit turns a set 1 make code into its break code.
	xtBreakBit = 0x80
)

// Indicator bitmask bits for CmdSetLEDs.
const (
	LEDScrollLock = 1 << 0
	LEDNumLock    = 1 << 1
	LEDCapsLock   = 1 << 2
)

// set2ToSet1 maps AT scan code set 2 codes to XT set 1 make codes. A
// zero entry means no translation exists. Immutable for the process
// lifetime.
var set2ToSet1 = [256]byte{
	0x01: 0x43, // F9
	0x03: 0x3F, // F5
	0x04: 0x3D, // F3
	0x05: 0x3B, // F1
	0x06: 0x3C, // F2
	0x07: 0x58, // F12
	0x09: 0x44, // F10
	0x0A: 0x42, // F8
	0x0B: 0x40, // F6
	0x0C: 0x3E, // F4
	0x0D: 0x0F, // Tab
	0x0E: 0x29, // `
	0x11: 0x38, // Left Alt
	0x12: 0x2A, // Left Shift
	0x14: 0x1D, // Left Ctrl
	0x15: 0x10, // Q
	0x16: 0x02, // 1
	0x1A: 0x2C, // Z
	0x1B: 0x1F, // S
	0x1C: 0x1E, // A
	0x1D: 0x11, // W
	0x1E: 0x03, // 2
	0x21: 0x2E, // C
	0x22: 0x2D, // X
	0x23: 0x20, // D
	0x24: 0x12, // E
	0x25: 0x05, // 4
	0x26: 0x04, // 3
	0x29: 0x39, // Space
	0x2A: 0x2F, // V
	0x2B: 0x21, // F
	0x2C: 0x14, // T
	0x2D: 0x13, // R
	0x2E: 0x06, // 5
	0x31: 0x31, // N
	0x32: 0x30, // B
	0x33: 0x23, // H
	0x34: 0x22, // G
	0x35: 0x15, // Y
	0x36: 0x07, // 6
	0x3A: 0x32, // M
	0x3B: 0x24, // J
	0x3C: 0x16, // U
	0x3D: 0x08, // 7
	0x3E: 0x09, // 8
	0x41: 0x33, // ,
	0x42: 0x25, // K
	0x43: 0x17, // I
	0x44: 0x18, // O
	0x45: 0x0B, // 0
	0x46: 0x0A, // 9
	0x49: 0x34, // .
	0x4A: 0x35, // /
	0x4B: 0x26, // L
	0x4C: 0x27, // ;
	0x4D: 0x19, // P
	0x4E: 0x0C, // -
	0x52: 0x28, // '
	0x54: 0x1A, // [
	0x55: 0x0D, // =
	0x58: 0x3A, // Caps Lock
	0x59: 0x36, // Right Shift
	0x5A: 0x1C, // Enter
	0x5B: 0x1B, // ]
	0x5D: 0x2B, // backslash
	0x61: 0x56, // Int'l backslash
	0x66: 0x0E, // Backspace
	0x69: 0x4F, // Keypad 1
	0x6B: 0x4B, // Keypad 4
	0x6C: 0x47, // Keypad 7
	0x70: 0x52, // Keypad 0
	0x71: 0x53, // Keypad .
	0x72: 0x50, // Keypad 2
	0x73: 0x4C, // Keypad 5
	0x74: 0x4D, // Keypad 6
	0x75: 0x48, // Keypad 8
	0x76: 0x01, // Esc
	0x77: 0x45, // Num Lock
	0x78: 0x57, // F11
	0x79: 0x4E, // Keypad +
	0x7A: 0x51, // Keypad 3
	0x7B: 0x4A, // Keypad -
	0x7C: 0x37, // Keypad *
	0x7D: 0x49, // Keypad 9
	0x7E: 0x46, // Scroll Lock
	0x83: 0x41, // F7
}

// set2ExtToSet1 maps 0xE0-prefixed set 2 codes to the set 1 code that
// follows the 0xE0 prefix on the XT side.
var set2ExtToSet1 = [256]byte{
	0x11: 0x38, // Right Alt
	0x14: 0x1D, // Right Ctrl
	0x1F: 0x5B, // Left GUI
	0x27: 0x5C, // Right GUI
	0x2F: 0x5D, // Menu
	0x4A: 0x35, // Keypad /
	0x5A: 0x1C, // Keypad Enter
	0x69: 0x4F, // End
	0x6B: 0x4B, // Left
	0x6C: 0x47, // Home
	0x70: 0x52, // Insert
	0x71: 0x53, // Delete
	0x72: 0x50, // Down
	0x74: 0x4D, // Right
	0x75: 0x48, // Up
	0x7A: 0x51, // Page Down
	0x7C: 0x37, // Print Screen
	0x7D: 0x49, // Page Up
}

// isFakeShift reports whether an extended code is one of the phantom
// shift bytes MF2 keyboards wrap around extended keys. They carry no key
// event and are dropped without counting as unknown.
func isFakeShift(code byte) bool {
	return code == 0x12 || code == 0x59
}
