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

import "time"

// Command delivery retry constants control how persistently a bridged
// host command (set LEDs, reset) is pushed at an unresponsive keyboard
// before the failure is surfaced to the diagnostic counters.
const (
	// CommandDeliveryRetries is the number of delivery attempts per
	// bridged command.
	CommandDeliveryRetries = 3
	// CommandRetryInitialBackoff is the delay after the first failed
	// attempt.
	CommandRetryInitialBackoff = 10 * time.Millisecond
	// CommandRetryMaxBackoff caps the backoff growth.
	CommandRetryMaxBackoff = 100 * time.Millisecond
	// CommandRetryBackoffMultiplier is the exponential backoff factor.
	CommandRetryBackoffMultiplier = 2.0
	// CommandRetryTimeout is the overall deadline for all attempts of
	// one command.
	CommandRetryTimeout = 1 * time.Second
)

// DefaultQueueDepth is the frame queue capacity. Small and fixed so
// worst-case keystroke latency stays bounded; at the keyboard's own
// maximum rate a full queue means the host side has been inhibited for
// tens of milliseconds already.
const DefaultQueueDepth = 16

// commandQueueDepth bounds pending host-originated bridge commands.
const commandQueueDepth = 4
