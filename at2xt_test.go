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

package at2xt_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	at2xt "github.com/KeyBridgeProject/go-at2xt"
	sim "github.com/KeyBridgeProject/go-at2xt/internal/testing"
)

const (
	waitFor = 2 * time.Second
	tick    = time.Millisecond
)

// startBridge wires a converter between the two simulators, runs it and
// waits for the startup keyboard reset to complete.
func startBridge(t *testing.T) (*sim.VirtualKeyboard, *sim.VirtualHost, *at2xt.Converter) {
	t.Helper()

	kbd := sim.NewVirtualKeyboard()
	host := sim.NewVirtualHost()

	cfg := at2xt.DefaultConfig()
	cfg.IdlePoll = time.Millisecond
	cfg.ResetHold = 10 * time.Millisecond
	cfg.LEDSettle = time.Millisecond

	conv, err := at2xt.New(kbd, host, at2xt.WithConfig(cfg))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = conv.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		return countByte(kbd.ReceivedCommands(), at2xt.CmdReset) >= 1
	}, waitFor, tick, "startup reset never reached the keyboard")

	// Let the keyboard's reset replies drain before the test drives its
	// own traffic.
	time.Sleep(20 * time.Millisecond)
	return kbd, host, conv
}

func countByte(bs []byte, b byte) int {
	n := 0
	for _, x := range bs {
		if x == b {
			n++
		}
	}
	return n
}

// hostSaw reports whether the host received the wanted byte sequence at
// or after the baseline offset.
func hostSaw(host *sim.VirtualHost, baseline int, want ...byte) func() bool {
	return func() bool {
		got := host.Received()
		if len(got) < baseline {
			return false
		}
		return bytes.Contains(got[baseline:], want)
	}
}

func TestConverter_StartupResetsKeyboard(t *testing.T) {
	t.Parallel()

	kbd, _, conv := startBridge(t)

	// The reset command needs live edge sampling to be clocked out and
	// acknowledged; it must land on the first attempt, with no ack
	// timeouts burned before the sampler was serving.
	assert.GreaterOrEqual(t, countByte(kbd.ReceivedCommands(), at2xt.CmdReset), 1)
	snap := conv.Counters()
	assert.GreaterOrEqual(t, snap.CommandsBridged, uint64(1))
	assert.Equal(t, uint64(0), snap.Timeouts)
	assert.Equal(t, uint64(0), snap.CommandDeliveryFailure)
}

func TestConverter_ForwardsMakeAndBreak(t *testing.T) {
	t.Parallel()

	kbd, host, _ := startBridge(t)
	baseline := len(host.Received())

	kbd.SendScanCode(0x1C)
	require.Eventually(t, hostSaw(host, baseline, 0x1E), waitFor, tick)

	kbd.SendScanCode(0xF0)
	kbd.SendScanCode(0x1C)
	require.Eventually(t, hostSaw(host, baseline, 0x1E, 0x9E), waitFor, tick)

	assert.Zero(t, host.BadFrames())
}

func TestConverter_ForwardsExtendedKey(t *testing.T) {
	t.Parallel()

	kbd, host, _ := startBridge(t)
	baseline := len(host.Received())

	kbd.SendScanCode(0xE0)
	kbd.SendScanCode(0x75)
	require.Eventually(t, hostSaw(host, baseline, 0xE0, 0x48), waitFor, tick)

	kbd.SendScanCode(0xE0)
	kbd.SendScanCode(0xF0)
	kbd.SendScanCode(0x75)
	require.Eventually(t, hostSaw(host, baseline, 0xE0, 0xC8), waitFor, tick)
}

func TestConverter_ParityErrorRecovered(t *testing.T) {
	t.Parallel()

	kbd, host, conv := startBridge(t)
	baseline := len(host.Received())

	// A corrupted frame is dropped and counted; the next clean frame is
	// unaffected.
	kbd.SendRawFrame(0x1C, !at2xt.OddParity(0x1C), true)
	require.Eventually(t, func() bool {
		return conv.Counters().ParityErrors == 1
	}, waitFor, tick)

	kbd.SendScanCode(0x32)
	require.Eventually(t, hostSaw(host, baseline, 0x30), waitFor, tick)

	got := host.Received()[baseline:]
	assert.NotContains(t, got, byte(0x1E), "corrupted key leaked through")
}

func TestConverter_SetIndicatorsBridged(t *testing.T) {
	t.Parallel()

	kbd, _, conv := startBridge(t)

	mask := byte(0x04) // caps lock
	require.NoError(t, conv.SetIndicators(mask))

	require.Eventually(t, func() bool {
		cmds := kbd.ReceivedCommands()
		for i := 0; i+1 < len(cmds); i++ {
			if cmds[i] == at2xt.CmdSetLEDs && cmds[i+1] == mask {
				return true
			}
		}
		return false
	}, waitFor, tick, "set-LEDs sequence never delivered")

	require.Eventually(t, func() bool {
		return conv.Indicators() == mask
	}, waitFor, tick)
}

func TestConverter_HostResetBridged(t *testing.T) {
	t.Parallel()

	kbd, host, _ := startBridge(t)

	// The host holds the clock low past the reset threshold, then lets
	// go; the bridge resets the keyboard and reports the self-test pass.
	host.Inhibit()
	time.AfterFunc(30*time.Millisecond, host.Release)

	require.Eventually(t, func() bool {
		return countByte(kbd.ReceivedCommands(), at2xt.CmdReset) >= 2
	}, waitFor, tick, "reset never bridged to the keyboard")

	require.Eventually(t, func() bool {
		return countByte(host.Received(), at2xt.KbdSelfTestPass) >= 1
	}, waitFor, tick, "self-test pass never reported to the host")
}

func TestConverter_InhibitMidByteResumes(t *testing.T) {
	t.Parallel()

	kbd, host, _ := startBridge(t)
	baseline := len(host.Received())
	pulsesBefore := host.Pulses()

	// Inhibit strikes after the fourth clock pulse of the next frame;
	// the byte must finish with no bits re-sent once the host releases.
	host.InhibitMidFrame(4, 5*time.Millisecond)
	kbd.SendScanCode(0x1C)

	require.Eventually(t, hostSaw(host, baseline, 0x1E), waitFor, tick)
	assert.Equal(t, 10, host.Pulses()-pulsesBefore, "bits were re-sent or dropped")
	assert.Zero(t, host.BadFrames())
}

func TestConverter_NotRunningErrors(t *testing.T) {
	t.Parallel()

	conv, err := at2xt.New(sim.NewVirtualKeyboard(), sim.NewVirtualHost())
	require.NoError(t, err)

	require.ErrorIs(t, conv.SetIndicators(0x02), at2xt.ErrConverterStopped)
	require.ErrorIs(t, conv.ResetKeyboard(), at2xt.ErrConverterStopped)
}

func TestConverter_RejectsNilLinks(t *testing.T) {
	t.Parallel()

	_, err := at2xt.New(nil, nil)
	require.Error(t, err)
}

func TestConverter_RunTwiceFails(t *testing.T) {
	t.Parallel()

	_, _, conv := startBridge(t)
	require.Error(t, conv.Run(context.Background()))
}

func TestConverter_ResetKeyboardAPI(t *testing.T) {
	t.Parallel()

	kbd, _, conv := startBridge(t)

	require.NoError(t, conv.ResetKeyboard())
	require.Eventually(t, func() bool {
		return countByte(kbd.ReceivedCommands(), at2xt.CmdReset) >= 2
	}, waitFor, tick)
}
