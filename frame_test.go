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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOddParity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data byte
		want bool
	}{
		{"zero has no ones, parity bit set", 0x00, true},
		{"one bit set, parity bit clear", 0x01, false},
		{"two bits set, parity bit set", 0x03, true},
		{"0x1C has three ones", 0x1C, false},
		{"0xFA has six ones", 0xFA, true},
		{"all ones", 0xFF, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, OddParity(tt.data))
		})
	}
}

func TestFrame_CheckParity(t *testing.T) {
	t.Parallel()

	good := Frame{Bus: BusAT, Data: 0x1C, Parity: OddParity(0x1C)}
	assert.True(t, good.CheckParity())

	bad := Frame{Bus: BusAT, Data: 0x1C, Parity: !OddParity(0x1C)}
	assert.False(t, bad.CheckParity())
}

func TestBus_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "at", BusAT.String())
	assert.Equal(t, "xt", BusXT.String())
	assert.Equal(t, "unknown", Bus(99).String())
}

// clockFrame feeds one complete 11-bit frame into the receiver and
// returns the result of the final (stop bit) sample.
func clockFrame(t *testing.T, r *atReceiver, data byte, parity, stop bool, now time.Time) (Frame, bool, error) {
	t.Helper()

	levels := []bool{false}
	for i := 0; i < 8; i++ {
		levels = append(levels, data&(1<<i) != 0)
	}
	levels = append(levels, parity, stop)

	var (
		f    Frame
		done bool
		err  error
	)
	for i, l := range levels {
		f, done, err = r.sample(l, now.Add(time.Duration(i)*100*time.Microsecond))
		if i < len(levels)-1 {
			require.False(t, done, "frame completed early at bit %d", i)
			require.NoError(t, err)
		}
	}
	return f, done, err
}

func TestATReceiver_GoodFrame(t *testing.T) {
	t.Parallel()

	r := &atReceiver{interBit: 2 * time.Millisecond}
	now := time.Now()

	f, done, err := clockFrame(t, r, 0x1C, OddParity(0x1C), true, now)
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, BusAT, f.Bus)
	assert.Equal(t, byte(0x1C), f.Data)
	assert.True(t, f.Valid)
	assert.Equal(t, atRxIdle, r.state)
}

func TestATReceiver_ParityError(t *testing.T) {
	t.Parallel()

	r := &atReceiver{interBit: 2 * time.Millisecond}
	now := time.Now()

	_, done, err := clockFrame(t, r, 0x1C, !OddParity(0x1C), true, now)
	require.False(t, done)
	require.ErrorIs(t, err, ErrParity)
	assert.Equal(t, atRxIdle, r.state)

	// The receiver recovers: the next frame comes through clean.
	f, done, err := clockFrame(t, r, 0x32, OddParity(0x32), true, now.Add(5*time.Millisecond))
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, byte(0x32), f.Data)
}

func TestATReceiver_FramingErrors(t *testing.T) {
	t.Parallel()

	t.Run("high start bit", func(t *testing.T) {
		t.Parallel()
		r := &atReceiver{interBit: 2 * time.Millisecond}
		_, done, err := r.sample(true, time.Now())
		require.False(t, done)
		require.ErrorIs(t, err, ErrFraming)
		assert.Equal(t, atRxIdle, r.state)
	})

	t.Run("low stop bit", func(t *testing.T) {
		t.Parallel()
		r := &atReceiver{interBit: 2 * time.Millisecond}
		_, done, err := clockFrame(t, r, 0x1C, OddParity(0x1C), false, time.Now())
		require.False(t, done)
		require.ErrorIs(t, err, ErrFraming)
		assert.Equal(t, atRxIdle, r.state)
	})
}

func TestATReceiver_InterBitTimeout(t *testing.T) {
	t.Parallel()

	r := &atReceiver{interBit: 2 * time.Millisecond}
	now := time.Now()

	// Start bit plus three data bits, then the bus goes quiet.
	_, _, err := r.sample(false, now)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, _, err = r.sample(true, now.Add(time.Duration(i+1)*100*time.Microsecond))
		require.NoError(t, err)
	}

	// The next edge arrives far too late: the stale frame is abandoned
	// and the sample counts as a fresh start bit.
	late := now.Add(50 * time.Millisecond)
	_, done, err := r.sample(false, late)
	require.False(t, done)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, atRxData, r.state)

	// Finish the new frame normally from here.
	levels := []bool{false, true, false, false, false, false, false, false}
	data := byte(0x02)
	for i, l := range levels {
		_, _, err = r.sample(l, late.Add(time.Duration(i+1)*100*time.Microsecond))
		require.NoError(t, err)
	}
	f, done, err := func() (Frame, bool, error) {
		ts := late.Add(time.Millisecond)
		_, _, perr := r.sample(OddParity(data), ts)
		require.NoError(t, perr)
		return r.sample(true, ts.Add(100*time.Microsecond))
	}()
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, data, f.Data)
}
