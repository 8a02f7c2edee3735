// pid_test.go

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

func TestNewPIDRejectsNegativeGains(t *testing.T) {
	cases := [][4]float64{
		{-1, 0, 0, 0},
		{0, -1, 0, 0},
		{0, 0, -1, 0},
		{0, 0, 0, -1},
	}
	for _, c := range cases {
		if _, err := NewPID(c[0], c[1], c[2], c[3]); err != ErrInvalidGains {
			t.Errorf("gains %v: err = %v, want ErrInvalidGains", c, err)
		}
	}
}

func TestPIDConvergesWithinWindow(t *testing.T) {
	pid, err := NewPID(1, 0, 0, 0.05)
	if err != nil {
		t.Fatalf("NewPID: %v", err)
	}
	// feed the setpoint itself: every error is zero, so the ring buffer's
	// mean must fall within the deadband once it has filled.
	for i := 0; i < defaultConvergenceWindow; i++ {
		pid.Update(1.0, 1.0)
		if i < defaultConvergenceWindow-1 && pid.Converged() {
			t.Errorf("converged too early at sample %d", i)
		}
	}
	if !pid.Converged() {
		t.Error("expected converged after filling the ring buffer with values within the deadband of the setpoint")
	}
}

func TestPIDResetClearsStateKeepsGains(t *testing.T) {
	pid, _ := NewPID(1, 1, 1, 0.1)
	pid.Update(1.0, 0.0)
	pid.Update(1.0, 0.5)
	if pid.IntegralError() == 0 {
		t.Fatal("expected non-zero integral before reset")
	}
	pid.Reset()
	if pid.IntegralError() != 0 || pid.LastError() != 0 || pid.Converged() {
		t.Error("reset did not clear state")
	}
	if pid.kP != 1 || pid.kI != 1 || pid.kD != 1 || pid.deadband != 0.1 {
		t.Error("reset altered gains")
	}
}

// The integral accumulates dE*dt, not e*dt. This test pins that behavior:
// a constant nonzero error (dE == 0 after the first sample) must NOT keep
// growing the integral term, which an e*dt implementation would do.
func TestPIDIntegralAccumulatesChangeInErrorQuirk(t *testing.T) {
	pid, _ := NewPID(0, 1, 0, 0)
	start := time.Unix(0, 0)
	tick := 0
	pid.now = func() time.Time {
		t := start.Add(time.Duration(tick) * time.Second)
		tick++
		return t
	}

	pid.Update(1.0, 0.0) // e = 1, no lastTime yet: integral stays 0
	if pid.IntegralError() != 0 {
		t.Fatalf("integral after first update = %v, want 0", pid.IntegralError())
	}

	pid.Update(1.0, 0.0) // e = 1 again, dE = 0: integral must not move
	if pid.IntegralError() != 0 {
		t.Fatalf("integral after constant error = %v, want 0 (dE*dt quirk)", pid.IntegralError())
	}

	pid.Update(1.0, 0.5) // e = 0.5, dE = -0.5, dt = 1s: integral -= 0.5
	if pid.IntegralError() != -0.5 {
		t.Fatalf("integral = %v, want -0.5", pid.IntegralError())
	}
}
