// config.go - functional-option configuration surface

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
	"time"

	"github.com/sirupsen/logrus"
)

// axisGains holds a PID's four tunables (kP, kI, kD, deadband).
type axisGains [4]float64

// config collects NewDrone's defaults before construction. There is no
// file- or CLI-based config surface at this level - see the package
// design notes - just the options below.
type config struct {
	log       *logrus.Logger
	keepAlive time.Duration
	timeout   time.Duration
	gains     [4]axisGains // x, y, z, yaw
}

func defaultConfig() config {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	return config{
		log:       log,
		keepAlive: defaultKeepAlive,
		timeout:   defaultWatchdog,
		gains: [4]axisGains{
			{0.5, 0, 0.1, 0.05},
			{0.5, 0, 0.1, 0.05},
			{0.5, 0, 0.1, 0.05},
			{0.8, 0, 0.05, 0.05},
		},
	}
}

// Option configures a Drone at construction time.
type Option func(*config)

// WithLogger replaces the default logrus.Logger.
func WithLogger(l *logrus.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithKeepAlive sets the heartbeat period (default 50ms / 20Hz).
func WithKeepAlive(d time.Duration) Option {
	return func(c *config) { c.keepAlive = d }
}

// WithTimeout sets the watchdog window (default 2s).
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithDeadband overrides the deadband on one of the four controller axes
// ("x", "y", "z", "yaw") without touching its gains.
func WithDeadband(axis string, deadband float64) Option {
	return func(c *config) {
		if i, ok := axisIndex(axis); ok {
			c.gains[i][3] = deadband
		}
	}
}

// WithGains overrides kP, kI, kD, and deadband on one of the four
// controller axes ("x", "y", "z", "yaw").
func WithGains(axis string, kP, kI, kD, deadband float64) Option {
	return func(c *config) {
		if i, ok := axisIndex(axis); ok {
			c.gains[i] = axisGains{kP, kI, kD, deadband}
		}
	}
}

func axisIndex(axis string) (int, bool) {
	switch axis {
	case "x":
		return 0, true
	case "y":
		return 1, true
	case "z":
		return 2, true
	case "yaw":
		return 3, true
	default:
		return 0, false
	}
}
