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
	"errors"
	"fmt"
)

// Error categories for protocol recovery and retry logic
var (
	// Frame-level errors - the owning state machine resets and the bus
	// keeps running
	ErrFraming = errors.New("framing error")
	ErrParity  = errors.New("parity error")
	ErrTimeout = errors.New("bus timeout")

	// Queue errors
	ErrQueueOverflow    = errors.New("frame queue overflow")
	ErrCommandQueueFull = errors.New("command queue full")

	// Translation errors
	ErrUnknownScanCode = errors.New("no translation for scan code")

	// Delivery errors
	ErrNoAck           = errors.New("no keyboard acknowledge")
	ErrInhibitExceeded = errors.New("host inhibit exceeded maximum wait")
	ErrCommandDelivery = errors.New("command delivery failed")
	ErrKeyboardSilent  = errors.New("keyboard unresponsive")

	// Lifecycle errors
	ErrLinkClosed       = errors.New("link is closed")
	ErrConverterStopped = errors.New("converter is not running")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// BusError wraps bus-level errors with additional context
type BusError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Bus       Bus       // Bus the operation ran on
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *BusError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Bus, e.Op, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}

// NewBusError creates a bus error with consistent formatting
func NewBusError(bus Bus, op string, err error, errType ErrorType) *BusError {
	return &BusError{
		Bus:       bus,
		Op:        op,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError creates a timeout error for a bus operation
func NewTimeoutError(bus Bus, op string) *BusError {
	return NewBusError(bus, op, ErrTimeout, ErrorTypeTimeout)
}

// NewFramingError creates a framing error (transient)
func NewFramingError(bus Bus, op string) *BusError {
	return NewBusError(bus, op, ErrFraming, ErrorTypeTransient)
}

// NewParityError creates a parity error (transient)
func NewParityError(bus Bus, op string) *BusError {
	return NewBusError(bus, op, ErrParity, ErrorTypeTransient)
}

// NewNoAckError creates a "no keyboard acknowledge" error (timeout)
func NewNoAckError(op string) *BusError {
	return NewBusError(BusAT, op, ErrNoAck, ErrorTypeTimeout)
}

// NewInhibitExceededError creates an inhibit-exceeded error. The byte is
// dropped rather than retried, so the error is permanent.
func NewInhibitExceededError(op string) *BusError {
	return NewBusError(BusXT, op, ErrInhibitExceeded, ErrorTypePermanent)
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var be *BusError
	if errors.As(err, &be) {
		return be.Retryable
	}

	switch {
	case errors.Is(err, ErrTimeout),
		errors.Is(err, ErrNoAck),
		errors.Is(err, ErrFraming),
		errors.Is(err, ErrParity):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the link is gone and the
// dispatch loop should stop entirely. This is distinct from IsRetryable
// which indicates whether a single operation can be retried. Protocol
// errors are never fatal: the device stays live and keeps attempting
// subsequent frames.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrLinkClosed)
}

// GetErrorType determines the error type for retry decisions
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	var be *BusError
	if errors.As(err, &be) {
		return be.Type
	}

	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrNoAck):
		return ErrorTypeTimeout
	case errors.Is(err, ErrFraming), errors.Is(err, ErrParity):
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}
