// controller.go - four-axis position controller (C9)

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

import "math"

// sensorFailureThreshold is the number of consecutive invalid position
// samples that latches a SensorFailure reset.
const sensorFailureThreshold = 30

// Pose is (x, y, z, yaw) with every field independently optional. Unset is
// not the same as zero: different sensors supply different axes at
// different rates, so sentinels like NaN would be indistinguishable from a
// real numeric fault.
type Pose struct {
	X, Y, Z, Yaw       float64
	HasX, HasY, HasZ, HasYaw bool
}

// assignNonEmpty copies only the fields set in src into dst, leaving dst's
// other fields untouched.
func (dst *Pose) assignNonEmpty(src Pose) {
	if src.HasX {
		dst.X, dst.HasX = src.X, true
	}
	if src.HasY {
		dst.Y, dst.HasY = src.Y, true
	}
	if src.HasZ {
		dst.Z, dst.HasZ = src.Z, true
	}
	if src.HasYaw {
		dst.Yaw, dst.HasYaw = src.Yaw, true
	}
}

func (p Pose) sub(origin Pose) Pose {
	out := p
	if p.HasX && origin.HasX {
		out.X = p.X - origin.X
	}
	if p.HasY && origin.HasY {
		out.Y = p.Y - origin.Y
	}
	if p.HasZ && origin.HasZ {
		out.Z = p.Z - origin.Z
	}
	if p.HasYaw && origin.HasYaw {
		out.Yaw = p.Yaw - origin.Yaw
	}
	return out
}

// Controls is (roll, pitch, yaw, thrust) with every field independently
// optional, mirroring Pose's sparsity.
type Controls struct {
	Roll, Pitch, Yaw, Thrust         float64
	HasRoll, HasPitch, HasYaw, HasThrust bool
}

func (dst *Controls) assignNonEmpty(src Controls) {
	if src.HasRoll {
		dst.Roll, dst.HasRoll = src.Roll, true
	}
	if src.HasPitch {
		dst.Pitch, dst.HasPitch = src.Pitch, true
	}
	if src.HasYaw {
		dst.Yaw, dst.HasYaw = src.Yaw, true
	}
	if src.HasThrust {
		dst.Thrust, dst.HasThrust = src.Thrust, true
	}
}

// ControllerState is the position controller's state machine.
type ControllerState int

const (
	StateIdle ControllerState = iota
	StateRunningCorrecting
	StateRunningConverged
	StateReset
)

// ResetReason names why the controller most recently entered StateReset.
type ResetReason int

const (
	ResetNone ResetReason = iota
	ResetOriginChanged
	ResetSensorFailure
	ResetTargetCompleted
	ResetTargetCanceled
)

// PositionValid mirrors the isValid bitmap carried by position
// measurements (MVO/VO records); SensorFailure tracking only looks at X/Y.
type PositionValid struct {
	X, Y, Z bool
}

// PositionSample is one measurement delivered to Controller.SourcePosition: a
// sparse pose plus its validity bitmap.
type PositionSample struct {
	Pose  Pose
	Valid PositionValid
}

// Controller owns four named PIDs (x, y, z, yaw) and drives them from
// sparse position/orientation measurements toward a sparse target,
// producing sparse Controls published on OutputChannel. The Drone facade
// does not forward these Controls to its heartbeat sender.
type Controller struct {
	pidX, pidY, pidZ, pidYaw *PID

	origin Pose
	target Pose
	hasTarget bool

	input  Pose
	output Controls

	state       ControllerState
	resetReason ResetReason

	invalidStreak int

	stateCh   *Channel
	outputCh  *Channel
}

// NewController builds a controller with the given per-axis gains and
// deadbands, in x, y, z, yaw order. A negative gain or deadband on any
// axis fails the whole construction with ErrInvalidGains.
func NewController(gains [4][4]float64) (*Controller, error) {
	pids := make([]*PID, 4)
	for i, g := range gains {
		p, err := NewPID(g[0], g[1], g[2], g[3])
		if err != nil {
			return nil, err
		}
		pids[i] = p
	}
	return &Controller{
		pidX: pids[0], pidY: pids[1], pidZ: pids[2], pidYaw: pids[3],
		stateCh:  NewDedupChannel(func(a, b interface{}) bool { return a.(ControllerState) == b.(ControllerState) }),
		outputCh: NewChannel(),
	}, nil
}

// State returns the controller's current state.
func (c *Controller) State() ControllerState { return c.state }

// StateChannel publishes every state transition (deduplicated).
func (c *Controller) StateChannel() *Channel { return c.stateCh }

// OutputChannel publishes every Controls produced by Update.
func (c *Controller) OutputChannel() *Channel { return c.outputCh }

// SourcePosition feeds one position sample into the controller's running
// input, then calls Update and publishes whatever Controls it produced. A
// sample with neither X nor Y valid leaves the input unchanged; after
// sensorFailureThreshold such samples in a row the controller resets with
// ResetSensorFailure instead of updating.
func (c *Controller) SourcePosition(sample PositionSample) {
	if !sample.Valid.X && !sample.Valid.Y {
		c.invalidStreak++
		if c.invalidStreak >= sensorFailureThreshold {
			c.Reset(ResetSensorFailure)
			c.invalidStreak = 0
			return
		}
	} else {
		c.invalidStreak = 0
		pose := sample.Pose.sub(c.origin)
		c.input.assignNonEmpty(pose)
	}
	c.runUpdate()
}

// SourceOrientation feeds a yaw-only measurement.
func (c *Controller) SourceOrientation(yaw float64) {
	pose := Pose{Yaw: yaw, HasYaw: true}.sub(c.origin)
	c.input.assignNonEmpty(pose)
	c.runUpdate()
}

func (c *Controller) runUpdate() {
	out := c.update(c.input)
	c.output.assignNonEmpty(out)
	c.outputCh.Write(c.output)
}

// update implements the per-axis PID dispatch described in the component
// design: x -> pitch, y -> -roll, z -> thrust, yaw -> yaw.
func (c *Controller) update(measured Pose) Controls {
	if !c.hasTarget {
		c.setState(StateIdle)
		return Controls{}
	}
	c.setState(StateRunningCorrecting)

	var out Controls
	invoked := 0
	convergedCount := 0

	if c.target.HasX && measured.HasX && finite(c.target.X) && finite(measured.X) {
		out.Pitch, out.HasPitch = c.pidX.Update(c.target.X, measured.X), true
		invoked++
		if c.pidX.Converged() {
			convergedCount++
		}
	}
	if c.target.HasY && measured.HasY && finite(c.target.Y) && finite(measured.Y) {
		out.Roll, out.HasRoll = -c.pidY.Update(c.target.Y, measured.Y), true
		invoked++
		if c.pidY.Converged() {
			convergedCount++
		}
	}
	if c.target.HasZ && measured.HasZ && finite(c.target.Z) && finite(measured.Z) {
		out.Thrust, out.HasThrust = c.pidZ.Update(c.target.Z, measured.Z), true
		invoked++
		if c.pidZ.Converged() {
			convergedCount++
		}
	}
	if c.target.HasYaw && measured.HasYaw && finite(c.target.Yaw) && finite(measured.Yaw) {
		out.Yaw, out.HasYaw = c.pidYaw.Update(c.target.Yaw, measured.Yaw), true
		invoked++
		if c.pidYaw.Converged() {
			convergedCount++
		}
	}

	if invoked > 0 && convergedCount == invoked {
		c.setState(StateRunningConverged)
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (c *Controller) setState(s ControllerState) {
	c.state = s
	c.stateCh.Write(s)
}

// SetTarget publishes a new target and resets all four PIDs.
func (c *Controller) SetTarget(t Pose) {
	c.target = t
	c.hasTarget = true
	c.pidX.Reset()
	c.pidY.Reset()
	c.pidZ.Reset()
	c.pidYaw.Reset()
}

// SetOrigin resets the whole controller with ResetOriginChanged, then
// assigns the new origin.
func (c *Controller) SetOrigin(o Pose) {
	c.Reset(ResetOriginChanged)
	c.origin = o
}

// SetOriginToCurrentPose uses the controller's latest input as origin.
func (c *Controller) SetOriginToCurrentPose() {
	c.SetOrigin(c.input)
}

// Reset clears target, input, output and all four PIDs, then publishes
// StateReset(reason) followed by StateIdle. Calling Reset while already
// StateIdle is a no-op.
func (c *Controller) Reset(reason ResetReason) {
	if c.state == StateIdle {
		return
	}
	c.target = Pose{}
	c.hasTarget = false
	c.input = Pose{}
	c.output = Controls{}
	c.pidX.Reset()
	c.pidY.Reset()
	c.pidZ.Reset()
	c.pidYaw.Reset()

	c.resetReason = reason
	c.setState(StateReset)
	c.setState(StateIdle)
}
