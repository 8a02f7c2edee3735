// heartbeat.go - periodic stick-packet sender (C6)

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

import (
	"math"
	"sync"
	"time"
)

// stickPayloadLen is the packed-axes field (6 bytes, holding 45 of its 48
// bits) plus the 7-byte wall-clock tail.
const stickPayloadLen = 6 + 7

// heartbeat is a pausable periodic timer that builds and sends a stick
// packet from the latest controls at 20 Hz by default. Pausing (rather
// than stopping) lets it survive a disconnect/reconnect cycle without
// leaking its goroutine.
type heartbeat struct {
	t *transport

	mu       sync.Mutex
	period   time.Duration
	controls Controls
	fastMode bool

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	now func() time.Time
}

func newHeartbeat(t *transport, period time.Duration) *heartbeat {
	if period <= 0 {
		period = defaultKeepAlive
	}
	return &heartbeat{t: t, period: period, now: time.Now}
}

// SetControls updates the latest controls snapshot the next tick will send.
func (h *heartbeat) SetControls(c Controls) {
	h.mu.Lock()
	h.controls = c
	h.mu.Unlock()
}

// SetFastMode toggles the single fast-mode bit sent with every stick packet.
func (h *heartbeat) SetFastMode(fast bool) {
	h.mu.Lock()
	h.fastMode = fast
	h.mu.Unlock()
}

// Start arms the ticker. It is a no-op if already running.
func (h *heartbeat) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.stopCh = make(chan struct{})
	h.doneCh = make(chan struct{})
	h.mu.Unlock()

	go h.loop()
}

// Stop cancels the ticker. It is never re-armed by the transport after an
// explicit disconnect; reconnect calls Start again.
func (h *heartbeat) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	stopCh := h.stopCh
	h.mu.Unlock()
	close(stopCh)
	<-h.doneCh
}

func (h *heartbeat) loop() {
	defer close(h.doneCh)
	ticker := time.NewTicker(h.period)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			if h.t.State() != Connected {
				continue
			}
			h.tick()
		}
	}
}

func (h *heartbeat) tick() {
	h.mu.Lock()
	controls := h.controls
	fast := h.fastMode
	h.mu.Unlock()

	pkt := newPacketFromTypeInfo(ptInfoStick, msgSetStick, 0, stickPayloadLen)
	packStickAxes(pkt.payload, controls, fast)
	appendWallClockTail(pkt.payload[6:], h.now())
	h.t.send(pkt)
}

// stickAxisValue clamps v to [-1, 1] and maps it to an 11-bit integer.
func stickAxisValue(v float64) uint16 {
	if v < -1 {
		v = -1
	} else if v > 1 {
		v = 1
	}
	return uint16(1024 + int(math.Round(660*v)))
}

// packStickAxes packs roll, pitch, thrust, yaw (each 11 bits) and the
// fast-mode bit LSB-first into a little-endian 48-bit field (the top 3
// bits are unused padding).
func packStickAxes(dst []byte, c Controls, fastMode bool) {
	var packed uint64
	packed = uint64(stickAxisValue(c.Roll)) & 0x7ff
	packed |= (uint64(stickAxisValue(c.Pitch)) & 0x7ff) << 11
	packed |= (uint64(stickAxisValue(c.Thrust)) & 0x7ff) << 22
	packed |= (uint64(stickAxisValue(c.Yaw)) & 0x7ff) << 33
	if fastMode {
		packed |= 1 << 44
	}
	for i := 0; i < 6; i++ {
		dst[i] = byte(packed >> (8 * uint(i)))
	}
}

// appendWallClockTail writes the 7-byte tail: hour, minute, second, then
// the millisecond value's low and high bytes each stored as a full 16-bit
// little-endian word (a verbatim-preserved quirk: splitting a single byte
// into its own little-endian word wastes a byte on each half).
func appendWallClockTail(dst []byte, now time.Time) {
	dst[0] = byte(now.Hour())
	dst[1] = byte(now.Minute())
	dst[2] = byte(now.Second())
	ms := now.Nanosecond() / 1e6
	lowWord := uint16(ms & 0xff)
	highWord := uint16((ms >> 8) & 0xff)
	dst[3] = byte(lowWord)
	dst[4] = byte(lowWord >> 8)
	dst[5] = byte(highWord)
	dst[6] = byte(highWord >> 8)
}
