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

// at2xt bridges an AT (Set 2) keyboard onto an XT (Set 1) host bus.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	at2xt "github.com/KeyBridgeProject/go-at2xt"
	gpiolink "github.com/KeyBridgeProject/go-at2xt/link/gpio"
	seriallink "github.com/KeyBridgeProject/go-at2xt/link/serial"
)

func main() {
	var cli struct {
		Run runCmd `cmd:"" default:"1" help:"Run the keyboard protocol bridge."`
	}

	ctx := kong.Parse(&cli,
		kong.Name("at2xt"),
		kong.Description("AT to XT keyboard protocol bridge."))
	err := ctx.Run(&kong.Context{})
	ctx.FatalIfErrorf(err)
}

type runCmd struct {
	ATLink   string `name:"at-link" default:"gpio" enum:"gpio,serial" help:"Link driver for the keyboard bus."`
	XTLink   string `name:"xt-link" default:"gpio" enum:"gpio,serial" help:"Link driver for the host bus."`
	ATClock  string `name:"at-clock" default:"GPIO17" help:"Keyboard clock pin or serial port."`
	ATData   string `name:"at-data" default:"GPIO27" help:"Keyboard data pin (ignored for serial links)."`
	XTClock  string `name:"xt-clock" default:"GPIO22" help:"Host clock pin or serial port."`
	XTData   string `name:"xt-data" default:"GPIO23" help:"Host data pin (ignored for serial links)."`
	Timer    bool   `name:"timer" help:"Sample the keyboard clock on a fixed timer instead of edge events."`
	Realtime bool   `name:"realtime" help:"Lock memory and request SCHED_FIFO (needs privileges, Linux only)."`
	Stats    bool   `name:"stats" help:"Print bus counters on shutdown."`
	Debug    bool   `name:"debug" help:"Enable debug output."`
}

func (r *runCmd) Run(_ *kong.Context) error {
	if r.Debug {
		at2xt.SetDebugEnabled(true)
	}
	if r.Realtime {
		if err := enableRealtime(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Realtime setup failed, continuing without: %v\n", err)
		}
	}

	atLink, err := newLink(r.ATLink, r.ATClock, r.ATData)
	if err != nil {
		return fmt.Errorf("failed to open keyboard link: %w", err)
	}
	xtLink, err := newLink(r.XTLink, r.XTClock, r.XTData)
	if err != nil {
		_ = atLink.Close()
		return fmt.Errorf("failed to open host link: %w", err)
	}

	cfg := at2xt.DefaultConfig()
	if r.Timer {
		cfg.Sampling = at2xt.SamplingTimer
	}

	conv, err := at2xt.New(atLink, xtLink, at2xt.WithConfig(cfg))
	if err != nil {
		_ = atLink.Close()
		_ = xtLink.Close()
		return fmt.Errorf("failed to create converter: %w", err)
	}
	defer func() {
		if err := conv.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close converter: %v\n", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	start := time.Now()
	runErr := conv.Run(ctx)

	if r.Stats {
		printStats(conv.Counters(), time.Since(start))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func newLink(driver, clock, data string) (at2xt.Link, error) {
	switch driver {
	case "gpio":
		return gpiolink.New(clock, data)
	case "serial":
		return seriallink.New(clock)
	default:
		return nil, fmt.Errorf("unsupported link driver: %s", driver)
	}
}

func printStats(c at2xt.CounterSnapshot, elapsed time.Duration) {
	fmt.Printf("Uptime:             %s\n", elapsed.Round(time.Second))
	fmt.Printf("Frames received:    %d\n", c.FramesReceived)
	fmt.Printf("Bytes transmitted:  %d\n", c.BytesTransmitted)
	fmt.Printf("Commands bridged:   %d\n", c.CommandsBridged)
	fmt.Printf("Parity errors:      %d\n", c.ParityErrors)
	fmt.Printf("Framing errors:     %d\n", c.FramingErrors)
	fmt.Printf("Receive timeouts:   %d\n", c.Timeouts)
	fmt.Printf("Queue overflows:    %d\n", c.QueueOverflows)
	fmt.Printf("Inhibit exceeded:   %d\n", c.InhibitExceeded)
	fmt.Printf("Unknown scan codes: %d\n", c.UnknownScanCodes)
	fmt.Printf("Command failures:   %d\n", c.CommandDeliveryFailure)
}
