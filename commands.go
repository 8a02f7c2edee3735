// commands.go - outbound command builders wired to packetTypeInfo bytes (C10)

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

// CalibrationType selects which of the drone's onboard calibration
// routines a calibrate() command starts.
type CalibrationType uint8

const (
	CalibrateIMU CalibrationType = iota
	CalibrateHorizontal
	CalibrateGimbal
)

// TakeOff sends a normal takeoff request.
func (d *Drone) TakeOff() {
	d.transport.send(newPacketFromTypeInfo(ptInfoAltLimit, msgDoTakeoff, 0, 0))
}

// Land sends a normal land request.
func (d *Drone) Land() {
	pkt := newPacketFromTypeInfo(ptInfoAltLimit, msgDoLand, 0, 1)
	pkt.payload[0] = 0
	d.transport.send(pkt)
}

// CancelLanding re-sends the land command mid-landing, which the firmware
// treats as a cancellation of the landing in progress.
func (d *Drone) CancelLanding() {
	pkt := newPacketFromTypeInfo(ptInfoAltLimit, msgDoLand, 0, 1)
	pkt.payload[0] = 0
	d.transport.send(pkt)
}

// Emergency immediately cuts the motors. There is no recovery from this
// short of a physical restart.
func (d *Drone) Emergency() {
	pkt := newPacketFromTypeInfo(ptInfoAltLimit, msgDoLand, 0, 1)
	pkt.payload[0] = 1
	d.transport.send(pkt)
}

// Calibrate starts one of the drone's onboard calibration routines.
// CalibrateIMU requires UI-driven multi-pose prompts the core library does
// not implement; it is a stub that sends the command and returns.
func (d *Drone) Calibrate(kind CalibrationType) {
	pkt := newPacketFromTypeInfo(ptInfoAltLimit, msgDoCalibration, 0, 1)
	pkt.payload[0] = byte(kind)
	d.transport.send(pkt)
}

// SetAltitudeLimit sets the maximum altitude, in metres.
func (d *Drone) SetAltitudeLimit(metres uint8) {
	pkt := newPacketFromTypeInfo(ptInfoAltLimit, msgSetHeightLimit, 0, 1)
	pkt.payload[0] = metres
	d.transport.send(pkt)
}

// SetLowBatteryThreshold sets the battery percentage at which the drone
// initiates an automatic landing.
func (d *Drone) SetLowBatteryThreshold(percent uint8) {
	pkt := newPacketFromTypeInfo(ptInfoAltLimit, msgSetLowBattThresh, 0, 1)
	pkt.payload[0] = percent
	d.transport.send(pkt)
}

// SetAttitudeLimit sets the maximum pitch/roll angle, in degrees.
func (d *Drone) SetAttitudeLimit(degrees uint8) {
	pkt := newPacketFromTypeInfo(ptInfoAltLimit, msgSetAttitude, 0, 1)
	pkt.payload[0] = degrees
	d.transport.send(pkt)
}

// setTimeDate sends the given local time as a 15-byte payload.
func (d *Drone) setTimeDate(t time.Time) {
	pkt := newPacketFromTypeInfo(ptInfoTimeOrAck, msgSetDateTime, 0, 15)
	pl := pkt.payload
	pl[0] = 0
	pl[1], pl[2] = byte(t.Year()), byte(t.Year()>>8)
	pl[3], pl[4] = byte(t.Month()), byte(int(t.Month())>>8)
	pl[5], pl[6] = byte(t.Day()), byte(t.Day()>>8)
	pl[7], pl[8] = byte(t.Hour()), byte(t.Hour()>>8)
	pl[9], pl[10] = byte(t.Minute()), byte(t.Minute()>>8)
	pl[11], pl[12] = byte(t.Second()), byte(t.Second()>>8)
	ms := t.Nanosecond() / 1e6
	pl[13], pl[14] = byte(ms), byte(ms>>8)
	d.transport.send(pkt)
}

// SetTimeDate sends the given local time to the drone. The drone also
// requests this proactively on connect; the facade answers that request
// with the current time automatically.
func (d *Drone) SetTimeDate(t time.Time) {
	d.setTimeDate(t)
}

// ManualSticks cancels any active goTo target and hands direct stick
// control to the caller for this tick.
func (d *Drone) ManualSticks(c Controls, fastMode bool) {
	d.controller.Reset(ResetTargetCanceled)
	d.heartbeat.SetControls(c)
	d.heartbeat.SetFastMode(fastMode)
}

// GoTo sets a sparse position target; nil axes are left unconstrained.
func (d *Drone) GoTo(x, y, z, yaw *float64) {
	t := Pose{}
	if x != nil {
		t.X, t.HasX = *x, true
	}
	if y != nil {
		t.Y, t.HasY = *y, true
	}
	if z != nil {
		t.Z, t.HasZ = *z, true
	}
	if yaw != nil {
		t.Yaw, t.HasYaw = *yaw, true
	}
	d.controller.SetTarget(t)
}

// GoToYaw sets a yaw-only target.
func (d *Drone) GoToYaw(yaw float64) {
	d.controller.SetTarget(Pose{Yaw: yaw, HasYaw: true})
}

// Hover cancels any active target and zeroes the sticks.
func (d *Drone) Hover() {
	d.controller.Reset(ResetTargetCanceled)
	d.heartbeat.SetControls(Controls{
		Roll: 0, HasRoll: true,
		Pitch: 0, HasPitch: true,
		Yaw: 0, HasYaw: true,
		Thrust: 0, HasThrust: true,
	})
}

// SetControllerSource subscribes the position controller to the named
// position ("mvo", "vo") and orientation ("imu") sensor channels.
func (d *Drone) SetControllerSource(posSrc, oriSrc string) {
	d.wireControllerSource(posSrc, oriSrc)
}

// SetControllerGains replaces one axis's gains ("x", "y", "z", "yaw").
func (d *Drone) SetControllerGains(axis string, kP, kI, kD, deadband float64) error {
	var pid *PID
	switch axis {
	case "x":
		pid = d.controller.pidX
	case "y":
		pid = d.controller.pidY
	case "z":
		pid = d.controller.pidZ
	case "yaw":
		pid = d.controller.pidYaw
	default:
		return ErrInvalidGains
	}
	return pid.SetGains(kP, kI, kD, deadband)
}

// SetOrigin sets the controller's origin pose explicitly.
func (d *Drone) SetOrigin(o Pose) {
	d.controller.SetOrigin(o)
}

// SetOriginToVo composes an origin from the latest VO position, the
// latest proximity height, and the latest IMU yaw.
func (d *Drone) SetOriginToVo() {
	origin := Pose{}
	if v, ok := d.voChannel.Last(); ok {
		vo := v.(Vo)
		origin.X, origin.HasX = vo.Position.X, true
		origin.Y, origin.HasY = vo.Position.Y, true
	}
	if v, ok := d.proximityChannel.Last(); ok {
		origin.Z, origin.HasZ = v.(float64), true
	}
	if v, ok := d.imuChannel.Last(); ok {
		imu := v.(Imu)
		_, _, yaw := quatToEulerRad(imu.Orientation)
		origin.Yaw, origin.HasYaw = yaw, true
	}
	d.controller.SetOrigin(origin)
}
