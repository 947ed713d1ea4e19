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

//go:build linux

package main

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// rtPriority matches what keyboard-latency daemons typically run at:
// above normal kernel threads, below hard interrupt handlers.
const rtPriority = 50

type schedParam struct {
	priority int32
}

// enableRealtime locks all pages into memory and moves the process to
// the SCHED_FIFO class. Page faults or scheduling delays on the sampler
// goroutine show up as missed clock edges, so both matter for reliable
// bit timing on a loaded system.
func enableRealtime() error {
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		return fmt.Errorf("mlockall: %w", err)
	}

	param := schedParam{priority: rtPriority}
	_, _, errno := unix.Syscall(unix.SYS_SCHED_SETSCHEDULER,
		0, // current process
		uintptr(unix.SCHED_FIFO),
		uintptr(unsafe.Pointer(&param)))
	if errno != 0 {
		return fmt.Errorf("sched_setscheduler(SCHED_FIFO, %d): %w", rtPriority, errno)
	}
	return nil
}
