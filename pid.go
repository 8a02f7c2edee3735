// pid.go - PID with deadband and convergence window (C8)

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

import "time"

// defaultConvergenceWindow is the ring buffer capacity W used to test
// convergence, absent an explicit NewPIDWithWindow.
const defaultConvergenceWindow = 5

// PID is a proportional-integral-derivative controller with a deadband
// that defines convergence. Corrections inside the deadband are not
// clamped to zero.
//
// The integral term deliberately accumulates dE*dt (the change in error
// times dt) rather than e*dt. This is not a bug fix candidate - see the
// package design notes - it is preserved bit-exactly.
type PID struct {
	kP, kI, kD float64
	deadband   float64
	window     int

	haveLastError bool
	lastError     float64
	lastDError    float64
	integralError float64

	haveLastTime bool
	lastTime     time.Time

	ring      []float64
	ringNext  int
	ringFull  bool
	converged bool

	now func() time.Time
}

// NewPID constructs a PID with the given gains and deadband. All of
// kP, kI, kD, and deadband must be >= 0; otherwise NewPID returns
// ErrInvalidGains and a nil controller.
func NewPID(kP, kI, kD, deadband float64) (*PID, error) {
	return newPIDWithWindow(kP, kI, kD, deadband, defaultConvergenceWindow)
}

// NewPIDWithWindow is NewPID with an explicit convergence ring buffer size.
func NewPIDWithWindow(kP, kI, kD, deadband float64, window int) (*PID, error) {
	return newPIDWithWindow(kP, kI, kD, deadband, window)
}

func newPIDWithWindow(kP, kI, kD, deadband float64, window int) (*PID, error) {
	if kP < 0 || kI < 0 || kD < 0 || deadband < 0 {
		return nil, ErrInvalidGains
	}
	if window < 1 {
		window = defaultConvergenceWindow
	}
	return &PID{
		kP: kP, kI: kI, kD: kD,
		deadband: deadband,
		window:   window,
		ring:     make([]float64, window),
		now:      time.Now,
	}, nil
}

// SetGains replaces the gains and deadband, validating them the same way
// as NewPID, and resets the controller.
func (p *PID) SetGains(kP, kI, kD, deadband float64) error {
	if kP < 0 || kI < 0 || kD < 0 || deadband < 0 {
		return ErrInvalidGains
	}
	p.kP, p.kI, p.kD, p.deadband = kP, kI, kD, deadband
	p.Reset()
	return nil
}

// Reset clears error history, integral, and convergence state, but keeps
// gains, deadband, and the ring buffer's capacity.
func (p *PID) Reset() {
	p.haveLastError = false
	p.lastError = 0
	p.lastDError = 0
	p.integralError = 0
	p.haveLastTime = false
	p.lastTime = time.Time{}
	for i := range p.ring {
		p.ring[i] = 0
	}
	p.ringNext = 0
	p.ringFull = false
	p.converged = false
}

// Update computes a new correction from setpoint and measured, advancing
// the controller's internal state (error history, integral, ring buffer).
func (p *PID) Update(setpoint, measured float64) float64 {
	e := setpoint - measured
	p.pushRing(e)

	dE := 0.0
	if p.haveLastError {
		dE = e - p.lastError
	}

	term := p.kP * e

	now := p.now()
	if p.haveLastTime {
		dt := now.Sub(p.lastTime).Seconds()
		if dt > 0 {
			p.integralError += dE * dt
			term += p.kI * p.integralError
			term += p.kD * dE / dt
		}
	}

	p.lastError = e
	p.lastDError = dE
	p.haveLastError = true
	p.lastTime = now
	p.haveLastTime = true

	return term
}

func (p *PID) pushRing(e float64) {
	p.ring[p.ringNext] = e
	p.ringNext++
	if p.ringNext == len(p.ring) {
		p.ringNext = 0
		p.ringFull = true
	}
	if p.ringFull {
		mean := 0.0
		for _, v := range p.ring {
			mean += v
		}
		mean /= float64(len(p.ring))
		p.converged = absFloat(mean) <= p.deadband
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// LastError, LastDError, IntegralError and Converged expose the
// observable state listed in the component design.
func (p *PID) LastError() float64     { return p.lastError }
func (p *PID) LastDError() float64    { return p.lastDError }
func (p *PID) IntegralError() float64 { return p.integralError }
func (p *PID) Converged() bool        { return p.converged }
