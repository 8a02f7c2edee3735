// errors.go

// Copyright (C) 2018  Steve Merrony

// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.

// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package dronecore

import "github.com/pkg/errors"

// Sentinel errors for the taxonomy described in the package design notes.
// Callers should use errors.Is against these rather than matching log text.
var (
	// ErrTransport indicates socket setup or send/receive failure.
	ErrTransport = errors.New("dronecore: transport error")

	// ErrTimeout indicates no frame arrived within the watchdog window.
	ErrTimeout = errors.New("dronecore: connection timed out")

	// ErrFraming indicates a datagram failed the outer-packet magic check
	// or was otherwise too short to be a valid frame.
	ErrFraming = errors.New("dronecore: framing error")

	// ErrCorruptedLog indicates a log-data payload whose first record
	// failed its magic check; the whole payload is discarded.
	ErrCorruptedLog = errors.New("dronecore: corrupted log payload")

	// ErrShortPayload indicates a record decode was given fewer bytes
	// than the record's fixed layout requires.
	ErrShortPayload = errors.New("dronecore: short payload")

	// ErrInvalidGains indicates a PID gain or deadband was negative.
	ErrInvalidGains = errors.New("dronecore: invalid PID gains")

	// ErrNoTarget is not itself a failure - update() with no target set
	// yields idle and no output. Exported for callers who want to
	// distinguish "no target" from a real error in a uniform way.
	ErrNoTarget = errors.New("dronecore: controller has no target")

	// ErrSensorFailure is latched after repeated invalid position samples.
	ErrSensorFailure = errors.New("dronecore: position sensor failure")

	// ErrAlreadyConnected/ErrNotConnected guard facade-level misuse.
	ErrAlreadyConnected = errors.New("dronecore: already connected")
	ErrNotConnected     = errors.New("dronecore: not connected")
)

// errorsWrap attaches the underlying cause to a sentinel so callers can
// still errors.Is against the sentinel while logging the original failure.
func errorsWrap(sentinel error, cause error) error {
	return errors.Wrap(sentinel, cause.Error())
}
