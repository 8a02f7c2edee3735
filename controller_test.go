// controller_test.go

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

import "testing"

func newTestController(t *testing.T) *Controller {
	t.Helper()
	gains := [4][4]float64{
		{1, 0, 0, 0.05},
		{1, 0, 0, 0.05},
		{1, 0, 0, 0.05},
		{1, 0, 0, 0.05},
	}
	c, err := NewController(gains)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c
}

func TestControllerNoTargetYieldsIdleAndNoOutput(t *testing.T) {
	c := newTestController(t)
	out := c.update(Pose{X: 1, HasX: true})
	if c.State() != StateIdle {
		t.Errorf("state = %v, want StateIdle", c.State())
	}
	if out.HasPitch || out.HasRoll || out.HasThrust || out.HasYaw {
		t.Errorf("expected no output fields set, got %+v", out)
	}
}

func TestControllerSetTargetResetsIntegrals(t *testing.T) {
	c := newTestController(t)
	c.pidX.Update(1.0, 0.0)
	c.pidX.Update(1.0, 0.5)
	c.SetTarget(Pose{X: 1.0, HasX: true})
	if c.pidX.IntegralError() != 0 {
		t.Errorf("integral = %v, want 0 after SetTarget", c.pidX.IntegralError())
	}
}

func TestControllerNilTargetFieldsInvokeNoPID(t *testing.T) {
	c := newTestController(t)
	c.SetTarget(Pose{})
	out := c.update(Pose{X: 1, HasX: true, Y: 1, HasY: true})
	if c.State() != StateRunningCorrecting {
		t.Errorf("state = %v, want StateRunningCorrecting", c.State())
	}
	if out.HasPitch || out.HasRoll || out.HasThrust || out.HasYaw {
		t.Errorf("expected no output fields set when target has no fields, got %+v", out)
	}
}

// Scenario 5 from the end-to-end list: x-axis goTo convergence.
func TestControllerGoToConvergence(t *testing.T) {
	c := newTestController(t)
	c.SetTarget(Pose{X: 1.0, HasX: true})

	samples := []float64{0.0, 0.2, 0.5, 0.9, 0.99, 1.0, 1.0, 1.0, 1.0, 1.0}
	var lastAbsPitch float64 = -1
	convergedAt := -1
	for i, m := range samples {
		out := c.update(Pose{X: m, HasX: true})
		abs := out.Pitch
		if abs < 0 {
			abs = -abs
		}
		if lastAbsPitch >= 0 && abs > lastAbsPitch+1e-9 {
			t.Errorf("sample %d: |pitch| increased (%v -> %v)", i, lastAbsPitch, abs)
		}
		lastAbsPitch = abs
		if c.State() == StateRunningConverged && convergedAt == -1 {
			convergedAt = i
		}
	}
	if convergedAt == -1 {
		t.Fatal("controller never reached StateRunningConverged")
	}
	if convergedAt >= len(samples) {
		t.Errorf("converged at %d, expected within the sample window", convergedAt)
	}
}

func TestControllerSensorFailureResetsAfterThreshold(t *testing.T) {
	c := newTestController(t)
	c.SetTarget(Pose{X: 1.0, HasX: true})

	for i := 0; i < sensorFailureThreshold-1; i++ {
		c.SourcePosition(PositionSample{Valid: PositionValid{X: false, Y: false}})
		if c.State() == StateIdle {
			t.Fatalf("reset fired early at sample %d", i)
		}
	}
	c.SourcePosition(PositionSample{Valid: PositionValid{X: false, Y: false}})
	if c.State() != StateIdle {
		t.Errorf("state = %v, want StateIdle after sensor-failure reset", c.State())
	}
	if c.hasTarget {
		t.Error("expected target cleared after sensor-failure reset")
	}
}

func TestControllerValidSampleClearsFailureCounter(t *testing.T) {
	c := newTestController(t)
	c.SetTarget(Pose{X: 1.0, HasX: true})

	for i := 0; i < sensorFailureThreshold-1; i++ {
		c.SourcePosition(PositionSample{Valid: PositionValid{X: false, Y: false}})
	}
	c.SourcePosition(PositionSample{Pose: Pose{X: 0.5, HasX: true}, Valid: PositionValid{X: true, Y: true}})
	if c.invalidStreak != 0 {
		t.Errorf("invalidStreak = %d, want 0 after a valid sample", c.invalidStreak)
	}
	if c.State() == StateIdle {
		t.Error("a single valid sample should not have reset the controller")
	}
}

func TestControllerResetFromIdleIsNoop(t *testing.T) {
	c := newTestController(t)
	if c.State() != StateIdle {
		t.Fatalf("precondition: state = %v, want StateIdle", c.State())
	}
	c.Reset(ResetTargetCanceled)
	if c.State() != StateIdle {
		t.Errorf("state = %v, want StateIdle (reset from idle must be a no-op)", c.State())
	}
}
