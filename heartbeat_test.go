// heartbeat_test.go

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
	"testing"
	"time"
)

func mustParseClock(t *testing.T, hour, min, sec, millis int) time.Time {
	t.Helper()
	return time.Date(2024, time.January, 1, hour, min, sec, millis*int(time.Millisecond), time.UTC)
}

func TestStickAxisValueMapping(t *testing.T) {
	for v := -2.0; v <= 2.0; v += 0.05 {
		got := stickAxisValue(v)
		if got < 364 || got > 1684 {
			t.Fatalf("stickAxisValue(%v) = %d, want in [364, 1684]", v, got)
		}
	}
	if got := stickAxisValue(0); got != 1024 {
		t.Errorf("stickAxisValue(0) = %d, want 1024", got)
	}
	if got := stickAxisValue(-2); got != 364 {
		t.Errorf("stickAxisValue(-2) = %d, want 364 (clamped to -1)", got)
	}
	if got := stickAxisValue(2); got != 1684 {
		t.Errorf("stickAxisValue(2) = %d, want 1684 (clamped to 1)", got)
	}
}

func TestPackStickAxesRoundTrips(t *testing.T) {
	dst := make([]byte, 6)
	c := Controls{Roll: -1, HasRoll: true, Pitch: 0.5, HasPitch: true, Thrust: 1, HasThrust: true, Yaw: -0.25, HasYaw: true}
	packStickAxes(dst, c, true)

	var packed uint64
	for i := 0; i < 6; i++ {
		packed |= uint64(dst[i]) << (8 * uint(i))
	}
	axis1 := uint16(packed & 0x7ff)
	axis2 := uint16((packed >> 11) & 0x7ff)
	axis3 := uint16((packed >> 22) & 0x7ff)
	axis4 := uint16((packed >> 33) & 0x7ff)
	fast := (packed >> 44) & 1

	if axis1 != stickAxisValue(c.Roll) {
		t.Errorf("axis1 (roll) = %d, want %d", axis1, stickAxisValue(c.Roll))
	}
	if axis2 != stickAxisValue(c.Pitch) {
		t.Errorf("axis2 (pitch) = %d, want %d", axis2, stickAxisValue(c.Pitch))
	}
	if axis3 != stickAxisValue(c.Thrust) {
		t.Errorf("axis3 (thrust) = %d, want %d", axis3, stickAxisValue(c.Thrust))
	}
	if axis4 != stickAxisValue(c.Yaw) {
		t.Errorf("axis4 (yaw) = %d, want %d", axis4, stickAxisValue(c.Yaw))
	}
	if fast != 1 {
		t.Errorf("fast mode bit = %d, want 1", fast)
	}
}

func TestAppendWallClockTailRedundantMillisecondWords(t *testing.T) {
	dst := make([]byte, 7)
	now := mustParseClock(t, 13, 45, 9, 300)
	appendWallClockTail(dst, now)

	if dst[0] != 13 || dst[1] != 45 || dst[2] != 9 {
		t.Fatalf("hour/min/sec = %d/%d/%d, want 13/45/9", dst[0], dst[1], dst[2])
	}
	lowWord := uint16(dst[3]) | uint16(dst[4])<<8
	highWord := uint16(dst[5]) | uint16(dst[6])<<8
	if lowWord != uint16(300&0xff) {
		t.Errorf("low word = %d, want %d", lowWord, 300&0xff)
	}
	if highWord != uint16((300>>8)&0xff) {
		t.Errorf("high word = %d, want %d", highWord, (300>>8)&0xff)
	}
}
