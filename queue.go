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

// frameQueue is a bounded single-producer/single-consumer ring buffer of
// completed AT frames. The producer is the sampler goroutine, which stands
// in for interrupt context and must never block; the consumer is the
// dispatch loop. Indices are plain atomics rather than a mutex so a push
// can never stall behind a slow pop.
//
// Overflow policy is drop-newest: a push against a full ring discards the
// arriving frame and leaves queued entries untouched. Dropping the oldest
// instead would require the producer to move the consumer index, which
// races with an in-flight pop.
type frameQueue struct {
	buf  []Frame
	head atomic.Uint32 // next slot to pop, owned by the consumer
	tail atomic.Uint32 // next slot to push, owned by the producer
}

// newFrameQueue creates a queue holding up to capacity frames. One slot
// is kept empty to distinguish full from empty.
func newFrameQueue(capacity int) *frameQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &frameQueue{buf: make([]Frame, capacity+1)}
}

// Push appends a frame. It returns false, leaving the queue unchanged,
// when the ring is full. Safe to call concurrently with Pop but not with
// another Push.
func (q *frameQueue) Push(f Frame) bool {
	tail := q.tail.Load()
	next := tail + 1
	if next == uint32(len(q.buf)) {
		next = 0
	}
	if next == q.head.Load() {
		return false
	}
	q.buf[tail] = f
	q.tail.Store(next)
	return true
}

// Pop removes and returns the oldest frame. Safe to call concurrently
// with Push but not with another Pop.
func (q *frameQueue) Pop() (Frame, bool) {
	head := q.head.Load()
	if head == q.tail.Load() {
		return Frame{}, false
	}
	f := q.buf[head]
	head++
	if head == uint32(len(q.buf)) {
		head = 0
	}
	q.head.Store(head)
	return f, true
}

// Len reports the number of queued frames. The value is advisory when
// the producer is running.
func (q *frameQueue) Len() int {
	head := q.head.Load()
	tail := q.tail.Load()
	if tail >= head {
		return int(tail - head)
	}
	return len(q.buf) - int(head-tail)
}

// Flush discards all queued frames from the consumer side.
func (q *frameQueue) Flush() {
	for {
		if _, ok := q.Pop(); !ok {
			return
		}
	}
}

// Cap reports the maximum number of frames the queue can hold.
func (q *frameQueue) Cap() int {
	return len(q.buf) - 1
}
