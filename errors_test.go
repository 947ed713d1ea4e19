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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusError_WrapsAndFormats(t *testing.T) {
	t.Parallel()

	err := NewParityError(BusAT, "receive")
	assert.Equal(t, "at receive: parity error", err.Error())
	require.ErrorIs(t, err, ErrParity)

	var be *BusError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, BusAT, be.Bus)
	assert.Equal(t, ErrorTypeTransient, be.Type)
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"parity", NewParityError(BusAT, "receive"), true},
		{"framing", NewFramingError(BusAT, "start bit"), true},
		{"timeout", NewTimeoutError(BusAT, "receive"), true},
		{"no ack", NewNoAckError("send command"), true},
		{"inhibit exceeded drops the byte", NewInhibitExceededError("transmit"), false},
		{"permanent bus fault", NewBusError(BusXT, "transmit", errors.New("wire gone"), ErrorTypePermanent), false},
		{"bare sentinel parity", ErrParity, true},
		{"bare sentinel no ack", ErrNoAck, true},
		{"wrapped sentinel", fmt.Errorf("context: %w", ErrTimeout), true},
		{"unrelated", errors.New("something else"), false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(NewParityError(BusAT, "receive")))
	assert.True(t, IsFatal(ErrLinkClosed))
	assert.True(t, IsFatal(NewBusError(BusAT, "sample", ErrLinkClosed, ErrorTypePermanent)))
}

func TestGetErrorType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypePermanent},
		{"bus error carries its type", NewNoAckError("send"), ErrorTypeTimeout},
		{"bare timeout sentinel", ErrTimeout, ErrorTypeTimeout},
		{"bare parity sentinel", ErrParity, ErrorTypeTransient},
		{"unknown error", errors.New("other"), ErrorTypePermanent},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, GetErrorType(tt.err))
		})
	}
}
