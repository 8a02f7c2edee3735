// drone.go - the public facade wiring C2-C9 together (C10)

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

// Package dronecore implements a host-side client for a consumer
// quadrotor's proprietary UDP control protocol: framed packet codec,
// obfuscated flight-log telemetry stream, a small publish-subscribe
// telemetry bus, and a 4-axis PID position/attitude controller that turns
// telemetry into stick output.
package dronecore

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// FlightState is derived from (flyMode, emSky) on every flight-data packet.
type FlightState int

const (
	FlightUnknown FlightState = iota
	FlightFlying
	FlightHovering
	FlightLanded
	FlightTakingOff
	FlightLanding
)

// Drone is the facade: it owns the transport, heartbeat, controller, and
// every sensor channel, and exposes the command surface in commands.go.
type Drone struct {
	log *logrus.Logger

	transport  *transport
	heartbeat  *heartbeat
	controller *Controller

	FlightDataCh  *Channel
	FlightStateCh *Channel
	WifiCh        *Channel
	LightCh       *Channel
	MvoCh         *Channel
	ImuCh         *Channel
	VoCh          *Channel
	ProximityCh   *Channel

	voChannel        *Channel
	imuChannel       *Channel
	proximityChannel *Channel

	flightState FlightState

	posSubID, oriSubID SubscriptionID
	haveSource         bool
}

// NewDrone constructs a facade for the drone at host:port. It does not
// connect; call Connect to start the handshake.
func NewDrone(host string, port int, opts ...Option) *Drone {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	t := newTransport(host, port, cfg.log)
	t.keepAlive = cfg.keepAlive
	t.watchdog = cfg.timeout

	controller, err := NewController([4][4]float64{cfg.gains[0], cfg.gains[1], cfg.gains[2], cfg.gains[3]})
	if err != nil {
		// the default gains are always valid; an Option supplying a
		// negative gain is a caller error the constructor can only log.
		cfg.log.WithError(err).Error("invalid default controller gains, using zero gains")
		controller, _ = NewController([4][4]float64{})
	}

	d := &Drone{
		log:        cfg.log,
		transport:  t,
		heartbeat:  newHeartbeat(t, cfg.keepAlive),
		controller: controller,

		FlightDataCh:  NewChannel(),
		FlightStateCh: NewDedupChannel(func(a, b interface{}) bool { return a.(FlightState) == b.(FlightState) }),
		WifiCh:        NewDedupChannel(func(a, b interface{}) bool { return a == b }),
		LightCh:       NewDedupChannel(func(a, b interface{}) bool { return a == b }),
		MvoCh:         NewChannel(),
		ImuCh:         NewChannel(),
		VoCh:          NewChannel(),
		ProximityCh:   NewChannel(),
	}
	d.voChannel = d.VoCh
	d.imuChannel = d.ImuCh
	d.proximityChannel = d.ProximityCh

	d.wireHandlers()
	return d
}

func (d *Drone) wireHandlers() {
	d.transport.on(msgFlightStatus, d.handleFlightData)
	d.transport.on(msgWifiStrength, d.handleWifi)
	d.transport.on(msgLightStrength, d.handleLight)
	d.transport.on(msgLogHeader, d.handleLogHeader)
	d.transport.on(msgLogData, d.handleLogData)
	d.transport.on(msgLogConfig, d.handleLogConfig)
	d.transport.on(msgSetDateTime, d.handleTimeRequest)
	d.transport.on(msgDoCalibration, d.handleCalibrateAck)
	d.transport.on(msgDoTakeoff, d.handleTakeoffAck)
	d.transport.on(msgDoLand, d.handleLandAck)
}

// Connect starts the handshake and, on success, the heartbeat.
func (d *Drone) Connect() error {
	if err := d.transport.connect(); err != nil {
		return err
	}
	go d.watchConnectionState()
	return nil
}

// Disconnect tears down the heartbeat, watchdog and socket.
func (d *Drone) Disconnect() {
	d.heartbeat.Stop()
	d.transport.disconnect()
}

// watchConnectionState starts/stops the heartbeat in step with the
// transport's own connection state.
func (d *Drone) watchConnectionState() {
	d.transport.StateChannel().Subscribe(func(v interface{}) {
		switch v.(ConnectionState) {
		case Connected:
			d.heartbeat.Start()
		case Disconnected, TimedOut:
			d.heartbeat.Stop()
		}
	})
}

// ConnectionState returns the transport's current connection state.
func (d *Drone) ConnectionState() ConnectionState { return d.transport.State() }

// FlightState returns the most recently derived flight state.
func (d *Drone) FlightState() FlightState { return d.flightState }

func (d *Drone) handleFlightData(_ uint16, payload []byte) {
	fd, err := decodeFlightData(payload)
	if err != nil {
		d.log.WithError(err).Warn("dropped malformed flight-data packet")
		return
	}
	d.FlightDataCh.Write(fd)
	d.deriveFlightState(fd.FlyMode, fd.EmSky)
}

// deriveFlightState implements the (flyMode, emSky) -> flightState table.
// Combinations not listed leave the current state unchanged.
func (d *Drone) deriveFlightState(flyMode uint8, emSky bool) {
	var next FlightState
	switch {
	case flyMode == 1 && emSky:
		next = FlightFlying
	case flyMode == 6 && emSky:
		next = FlightHovering
	case flyMode == 6 && !emSky:
		next = FlightLanded
	case flyMode == 11 && emSky:
		next = FlightTakingOff
	case flyMode == 12 && emSky:
		next = FlightLanding
	default:
		return
	}
	d.flightState = next
	d.FlightStateCh.Write(next)
}

func (d *Drone) handleWifi(_ uint16, payload []byte) {
	if len(payload) < 2 {
		return
	}
	d.WifiCh.Write(uint8(payload[0]))
}

func (d *Drone) handleLight(_ uint16, payload []byte) {
	if len(payload) < 1 {
		return
	}
	d.LightCh.Write(uint8(payload[0]))
}

// handleLogHeader echoes back a minimal 3-byte acknowledgement carrying
// the first two bytes of the received header.
func (d *Drone) handleLogHeader(_ uint16, payload []byte) {
	if len(payload) < 2 {
		return
	}
	d.transport.send(ackLogHeaderPayload(payload[:2]))
}

func (d *Drone) handleLogConfig(_ uint16, _ []byte) {
	// acknowledged implicitly; the drone does not require a reply.
}

// handleLogData runs the flight-log parser and publishes each decoded
// record onto its matching channel, after applying the canonical-frame
// rotation to vectors, covariances, and the IMU orientation.
func (d *Drone) handleLogData(_ uint16, payload []byte) {
	if len(payload) < 1 {
		return
	}
	records, err := parseLogPayload(payload[1:])
	if err != nil {
		d.log.WithError(err).Warn("corrupted log payload")
		return
	}
	for _, rec := range records {
		switch rec.Kind {
		case LogMvo:
			d.MvoCh.Write(rotateMvo(rec.Mvo))
		case LogImu:
			d.ImuCh.Write(rotateImu(rec.Imu))
		case LogVo:
			d.VoCh.Write(rotateVo(rec.Vo))
		case LogProximity:
			d.ProximityCh.Write(rec.Proximity)
		case LogUnhandled:
			d.log.WithField("recordType", rec.Type).Debug("known-but-unhandled log record")
		case LogUnknown:
			d.log.WithField("recordType", rec.Type).Debug("unknown log record")
		}
	}
}

func (d *Drone) handleTimeRequest(_ uint16, _ []byte) {
	d.setTimeDate(time.Now())
}

func (d *Drone) handleCalibrateAck(_ uint16, _ []byte) {}
func (d *Drone) handleTakeoffAck(_ uint16, _ []byte)   {}
func (d *Drone) handleLandAck(_ uint16, _ []byte)      {}

// rotationX is Rx(pi): rotating the Z-down drone frame into the
// canonical X-forward/Y-left/Z-up library frame flips Y and Z.
var rotationX = Mat3{
	{1, 0, 0},
	{0, -1, 0},
	{0, 0, -1},
}

func rotateVec3(v Vec3) Vec3 {
	return Vec3{X: v.X, Y: -v.Y, Z: -v.Z}
}

// rotateCov applies C' = R C R^T for the constant R = Rx(pi) above; since
// R is diagonal with +-1 entries this reduces to sign flips on the X-Y
// and X-Z terms; the Y-Z term and the diagonal keep their sign.
func rotateCov(c Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			sum := 0.0
			for k := 0; k < 3; k++ {
				for l := 0; l < 3; l++ {
					sum += rotationX[i][k] * c[k][l] * rotationX[j][l]
				}
			}
			out[i][j] = sum
		}
	}
	return out
}

func rotateMvo(m Mvo) Mvo {
	m.Velocity = rotateVec3(m.Velocity)
	m.Position = rotateVec3(m.Position)
	m.PositionCov = rotateCov(m.PositionCov)
	m.VelocityCov = rotateCov(m.VelocityCov)
	return m
}

func rotateVo(v Vo) Vo {
	v.Velocity = rotateVec3(v.Velocity)
	v.Position = rotateVec3(v.Position)
	return v
}

// rotateImu rotates the IMU's vector fields and re-synthesizes its
// orientation quaternion: decompose to roll/pitch/yaw, subtract pi from
// roll, and re-encode.
func rotateImu(imu Imu) Imu {
	imu.Accel = rotateVec3(imu.Accel)
	imu.Gyro = rotateVec3(imu.Gyro)
	imu.Mag = rotateVec3(imu.Mag)

	roll, pitch, yaw := quatToEulerRad(imu.Orientation)
	roll -= math.Pi
	imu.Orientation = eulerToQuat(roll, pitch, yaw)
	return imu
}

// quatToEulerRad extracts (roll, pitch, yaw) in radians from a (w, x, y, z)
// unit quaternion using the standard ZYX Tait-Bryan decomposition.
func quatToEulerRad(q Quat) (roll, pitch, yaw float64) {
	sinrCosp := 2 * (q.W*q.X + q.Y*q.Z)
	cosrCosp := 1 - 2*(q.X*q.X+q.Y*q.Y)
	roll = math.Atan2(sinrCosp, cosrCosp)

	sinp := 2 * (q.W*q.Y - q.Z*q.X)
	switch {
	case sinp >= 1:
		pitch = math.Pi / 2
	case sinp <= -1:
		pitch = -math.Pi / 2
	default:
		pitch = math.Asin(sinp)
	}

	sinyCosp := 2 * (q.W*q.Z + q.X*q.Y)
	cosyCosp := 1 - 2*(q.Y*q.Y+q.Z*q.Z)
	yaw = math.Atan2(sinyCosp, cosyCosp)
	return roll, pitch, yaw
}

// eulerToQuat is the inverse of quatToEulerRad.
func eulerToQuat(roll, pitch, yaw float64) Quat {
	cr, sr := math.Cos(roll*0.5), math.Sin(roll*0.5)
	cp, sp := math.Cos(pitch*0.5), math.Sin(pitch*0.5)
	cy, sy := math.Cos(yaw*0.5), math.Sin(yaw*0.5)

	return Quat{
		W: cr*cp*cy + sr*sp*sy,
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
	}
}

// wireControllerSource subscribes the position controller to the named
// position ("mvo", "vo") and orientation ("imu") channels, replacing any
// prior subscription.
func (d *Drone) wireControllerSource(posSrc, oriSrc string) {
	var posCh *Channel
	switch posSrc {
	case "mvo":
		posCh = d.MvoCh
	case "vo":
		posCh = d.VoCh
	default:
		d.log.WithField("source", posSrc).Warn("unknown position source")
		return
	}

	if d.haveSource {
		d.MvoCh.Unsubscribe(d.posSubID)
		d.VoCh.Unsubscribe(d.posSubID)
		d.ImuCh.Unsubscribe(d.oriSubID)
	}

	d.posSubID = posCh.Subscribe(func(v interface{}) {
		var pos Vec3
		var valid PositionValid
		switch pv := v.(type) {
		case Mvo:
			pos = pv.Position
			valid = PositionValid{X: pv.IsValid.PosX, Y: pv.IsValid.PosY, Z: pv.IsValid.PosZ}
		case Vo:
			pos = pv.Position
			valid = PositionValid{X: pv.IsValid.PosX, Y: pv.IsValid.PosY, Z: pv.IsValid.PosZ}
		}
		d.controller.SourcePosition(PositionSample{
			Pose:  Pose{X: pos.X, HasX: true, Y: pos.Y, HasY: true, Z: pos.Z, HasZ: true},
			Valid: valid,
		})
	})

	switch oriSrc {
	case "imu":
		d.oriSubID = d.ImuCh.Subscribe(func(v interface{}) {
			imu := v.(Imu)
			_, _, yaw := quatToEulerRad(imu.Orientation)
			d.controller.SourceOrientation(yaw)
		})
	default:
		d.log.WithField("source", oriSrc).Warn("unknown orientation source")
	}
	d.haveSource = true
}
