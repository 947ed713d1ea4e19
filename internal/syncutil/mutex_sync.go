//go:build !deadlock

// Package syncutil provides the mutex types used around shared bridge
// state. The default build uses the standard library with zero overhead;
// build with -tags=deadlock to swap in github.com/sasha-s/go-deadlock,
// which helps when a simulated link and the dispatch loop wedge each
// other in a test.
package syncutil

import "sync"

// Mutex wraps sync.Mutex. Build with -tags=deadlock for deadlock detection.
//
//nolint:gocritic // Intentionally embedding sync.Mutex to expose its interface
type Mutex struct {
	sync.Mutex
}

// RWMutex wraps sync.RWMutex. Build with -tags=deadlock for deadlock detection.
//
//nolint:gocritic // Intentionally embedding sync.RWMutex to expose its interface
type RWMutex struct {
	sync.RWMutex
}
