// Package sio implements the SIO command/data-frame state machine: the
// protocol engine described in spec.md §2 and §4.2. It is driven by two
// entry points, RunCycle and OnByte, per spec.md §5; everything outside
// those two calls (GPIO pin driving, UART transport) is an external
// collaborator per spec.md §6.
package sio

import "time"

// UARTWriter is the one-method transport collaborator: emit a single byte.
// Pacing (the caller must not be asked to emit the next byte before the
// stated delay) is enforced by Channel via Sleeper, not by this interface.
type UARTWriter interface {
	WriteByte(b byte) error
}

// CommandLine is the GPIO collaborator for the active-low COMMAND line.
type CommandLine interface {
	// High reports whether the COMMAND line currently reads HIGH (idle).
	High() bool
}

// Sleeper performs the real-time waits spec.md §4.2 and §5 require between
// reply bytes (T2/T4/T5, the 700µs inter-byte gap, and PRO read pacing). Tests supply a Sleeper that records requested durations instead
// of blocking.
type Sleeper interface {
	Sleep(d time.Duration)
}

// Clock supplies wall-clock time for the command-frame and data-frame
// timeouts (spec.md §4.2, §5). Tests supply a fake Clock so timeout
// behavior can be exercised without waiting in real time.
type Clock interface {
	Now() time.Time
}

// RealSleeper sleeps for real; used by production transports.
type RealSleeper struct{}

// Sleep blocks for d.
func (RealSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// RealClock reads the system clock; used by production transports.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }
