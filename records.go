// records.go - fixed-layout little-endian telemetry record codec (C3)

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
	"encoding/binary"
	"math"
)

func bytesToFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

// Vec3 is a plain 3-axis vector, used both for measurements in the drone's
// native frame and after canonical-frame rotation.
type Vec3 struct {
	X, Y, Z float64
}

// Quat is a unit quaternion orientation, w first as the drone sends it.
type Quat struct {
	W, X, Y, Z float64
}

// Mat3 is a row-major 3x3 matrix, used for the MVO covariance blocks.
type Mat3 [3][3]float64

// flightDataLen is the fixed length of the FlightData record.
const flightDataLen = 24

// FlightData holds one flight-status snapshot as received on msgFlightStatus.
// Not all fields are refreshed at the same rate; callers should treat each
// field as independently stale.
type FlightData struct {
	Height      int16 // decimetres
	NorthSpeed  int16
	EastSpeed   int16
	GroundSpeed int16
	FlyTime     int16

	ImuState        bool
	PressureState   bool
	DownVisualState bool
	PowerState      bool
	BatteryState    bool
	GravityState    bool
	WindState       bool

	ImuCalibrationState int8
	BatteryPercentage   int8
	DroneBatteryLeft    int16
	DroneFlyTimeLeft    int16

	EmSky           bool
	EmGround        bool
	EmOpen          bool
	DroneHover      bool
	OutageRecording bool
	BatteryLow      bool
	BatteryLower    bool
	FactoryMode     bool

	FlyMode                  uint8
	ThrowFlyTimer            int8
	CameraState              uint8
	ElectricalMachineryState uint8

	FrontIn  bool
	FrontOut bool
	FrontLSC bool
	ErrorState bool
}

// decodeFlightData decodes a FlightData record from a message payload.
func decodeFlightData(pl []byte) (fd FlightData, err error) {
	if len(pl) < flightDataLen {
		return fd, ErrShortPayload
	}
	fd.Height = int16(uint16(pl[0]) | uint16(pl[1])<<8)
	fd.NorthSpeed = int16(uint16(pl[2]) | uint16(pl[3])<<8)
	fd.EastSpeed = int16(uint16(pl[4]) | uint16(pl[5])<<8)
	fd.GroundSpeed = int16(uint16(pl[6]) | uint16(pl[7])<<8)
	fd.FlyTime = int16(uint16(pl[8]) | uint16(pl[9])<<8)

	fd.ImuState = pl[10]&(1<<0) != 0
	fd.PressureState = pl[10]&(1<<1) != 0
	fd.DownVisualState = pl[10]&(1<<2) != 0
	fd.PowerState = pl[10]&(1<<3) != 0
	fd.BatteryState = pl[10]&(1<<4) != 0
	fd.GravityState = pl[10]&(1<<5) != 0
	fd.WindState = pl[10]&(1<<7) != 0

	fd.ImuCalibrationState = int8(pl[11])
	fd.BatteryPercentage = int8(pl[12])
	fd.DroneBatteryLeft = int16(uint16(pl[13]) | uint16(pl[14])<<8)
	fd.DroneFlyTimeLeft = int16(uint16(pl[15]) | uint16(pl[16])<<8)

	fd.EmSky = pl[17]&(1<<0) != 0
	fd.EmGround = pl[17]&(1<<1) != 0
	fd.EmOpen = pl[17]&(1<<2) != 0
	fd.DroneHover = pl[17]&(1<<3) != 0
	fd.OutageRecording = pl[17]&(1<<4) != 0
	fd.BatteryLow = pl[17]&(1<<5) != 0
	fd.BatteryLower = pl[17]&(1<<6) != 0
	fd.FactoryMode = pl[17]&(1<<7) != 0

	fd.FlyMode = pl[18]
	fd.ThrowFlyTimer = int8(pl[19])
	fd.CameraState = pl[20]
	fd.ElectricalMachineryState = pl[21]

	fd.FrontIn = pl[22]&(1<<0) != 0
	fd.FrontOut = pl[22]&(1<<1) != 0
	fd.FrontLSC = pl[22]&(1<<2) != 0
	fd.ErrorState = pl[23]&(1<<0) != 0

	return fd, nil
}

// imuRecordLen is the fixed length of the IMU log record payload (108 bytes).
const imuRecordLen = 108

// Imu is one decoded IMU log record, in the drone's native frame.
type Imu struct {
	Accel       Vec3 // inertial-frame acceleration
	Gyro        Vec3 // body-frame angular rate
	Orientation Quat
	Mag         Vec3
	Temperature float64 // degrees C
}

// decodeImu decodes a 108-byte IMU log record. Field offsets follow the
// drone's native layout: longitude/latitude/baromRaw are present on the
// wire but unused by this library (GPS is not part of the canonical pose).
func decodeImu(pl []byte) (imu Imu, err error) {
	if len(pl) < imuRecordLen {
		return imu, ErrShortPayload
	}
	// offsets 0-7 longitude, 8-15 latitude, 16-19 baromRaw: unused here.
	// 20-31: body-frame accel (accelX/Y/Z) - superseded below by the
	// inertial-frame ag* triple per the accel/gyro frame split.
	// 32-43: gyroX/Y/Z (also superseded by body-frame gb* triple).
	// 44-47: baromSmooth: unused.
	imu.Orientation.W = float64(bytesToFloat32(pl[48:52]))
	imu.Orientation.X = float64(bytesToFloat32(pl[52:56]))
	imu.Orientation.Y = float64(bytesToFloat32(pl[56:60]))
	imu.Orientation.Z = float64(bytesToFloat32(pl[60:64]))

	imu.Accel.X = float64(bytesToFloat32(pl[64:68]))
	imu.Accel.Y = float64(bytesToFloat32(pl[68:72]))
	imu.Accel.Z = float64(bytesToFloat32(pl[72:76]))

	// 76-87: velN/velE/velD: unused here.

	imu.Gyro.X = float64(bytesToFloat32(pl[88:92]))
	imu.Gyro.Y = float64(bytesToFloat32(pl[92:96]))
	imu.Gyro.Z = float64(bytesToFloat32(pl[96:100]))

	imu.Mag.X = float64(int16(uint16(pl[100]) | uint16(pl[101])<<8))
	imu.Mag.Y = float64(int16(uint16(pl[102]) | uint16(pl[103])<<8))
	imu.Mag.Z = float64(int16(uint16(pl[104]) | uint16(pl[105])<<8))

	rawTemp := int16(uint16(pl[106]) | uint16(pl[107])<<8)
	imu.Temperature = float64(rawTemp) / 100.0

	return imu, nil
}

// mvoRecordLen is the fixed length of the MVO log record payload (80 bytes).
const mvoRecordLen = 80

// MvoValid carries the record's per-axis validity bitmap, split into the
// velocity and position triples.
type MvoValid struct {
	VelX, VelY, VelZ bool
	PosX, PosY, PosZ bool
}

// Mvo is one decoded multiview-visual-odometry log record, in the drone's
// native frame.
type Mvo struct {
	Velocity       Vec3 // m/s
	Position       Vec3
	PositionCov    Mat3
	VelocityCov    Mat3
	Height         float64
	HeightVariance float64
	IsValid        MvoValid
}

// symmetricFromUpper fills a symmetric 3x3 matrix from the six
// upper-triangle floats, per the mapping
// {[0,0]=c1, [0,1]=c2, [0,2]=c3, [1,1]=c4, [1,2]=c5, [2,2]=c6}.
func symmetricFromUpper(c1, c2, c3, c4, c5, c6 float64) Mat3 {
	var m Mat3
	m[0][0], m[0][1], m[0][2] = c1, c2, c3
	m[1][0], m[1][1], m[1][2] = c2, c4, c5
	m[2][0], m[2][1], m[2][2] = c3, c5, c6
	return m
}

// decodeMvo decodes an 80-byte MVO log record.
func decodeMvo(pl []byte) (mvo Mvo, err error) {
	if len(pl) < mvoRecordLen {
		return mvo, ErrShortPayload
	}
	// offsets 0-1: observation count, unused.
	velX := int16(uint16(pl[2]) | uint16(pl[3])<<8)
	velY := int16(uint16(pl[4]) | uint16(pl[5])<<8)
	velZ := int16(uint16(pl[6]) | uint16(pl[7])<<8)
	mvo.Velocity = Vec3{
		X: float64(velX) / 1000.0,
		Y: float64(velY) / 1000.0,
		Z: float64(velZ) / 1000.0,
	}

	mvo.Position = Vec3{
		X: float64(bytesToFloat32(pl[8:12])),
		Y: float64(bytesToFloat32(pl[12:16])),
		Z: float64(bytesToFloat32(pl[16:20])),
	}

	posCov := [6]float64{}
	for i := 0; i < 6; i++ {
		off := 20 + i*4
		posCov[i] = float64(bytesToFloat32(pl[off : off+4]))
	}
	mvo.PositionCov = symmetricFromUpper(posCov[0], posCov[1], posCov[2], posCov[3], posCov[4], posCov[5])

	velCov := [6]float64{}
	for i := 0; i < 6; i++ {
		off := 44 + i*4
		velCov[i] = float64(bytesToFloat32(pl[off : off+4]))
	}
	mvo.VelocityCov = symmetricFromUpper(velCov[0], velCov[1], velCov[2], velCov[3], velCov[4], velCov[5])

	mvo.Height = float64(bytesToFloat32(pl[68:72]))
	mvo.HeightVariance = float64(bytesToFloat32(pl[72:76]))

	flags := pl[76]
	mvo.IsValid = MvoValid{
		VelX: flags&(1<<0) != 0,
		VelY: flags&(1<<1) != 0,
		VelZ: flags&(1<<2) != 0,
		PosX: flags&(1<<4) != 0,
		PosY: flags&(1<<5) != 0,
		PosZ: flags&(1<<6) != 0,
	}

	return mvo, nil
}

// imuExRecordMinLen is the minimum usable length of an ImuEx (VO) record:
// velocity, position, ultrasonic, RTK position, and the validity/error
// bitmaps. The drone appends further reserved/debug floats the library
// does not interpret; the log parser still advances by the full declared
// record length regardless.
const imuExRecordMinLen = 60

// VoValid and VoError carry the ImuEx record's bitmaps.
type VoValid struct {
	VelX, VelY, VelZ bool
	PosX, PosY, PosZ bool
	UsVel, UsPos     bool
}

type VoError struct {
	VgLarge, GpsYaw, MagYaw, GpsConsist, UsFail, InitOk bool
}

// Vo is one decoded visual(-inertial) odometry log record (ImuEx), in the
// drone's native frame.
type Vo struct {
	Velocity          Vec3
	Position          Vec3
	UltrasonicVel     float64
	UltrasonicDist    float64
	RtkLongitude      float64
	RtkLatitude       float64
	RtkAltitude       float64
	IsValid           VoValid
	Error             VoError
}

// decodeVo decodes an ImuEx (VO) log record.
func decodeVo(pl []byte) (vo Vo, err error) {
	if len(pl) < imuExRecordMinLen {
		return vo, ErrShortPayload
	}
	vo.Velocity = Vec3{
		X: float64(bytesToFloat32(pl[0:4])),
		Y: float64(bytesToFloat32(pl[4:8])),
		Z: float64(bytesToFloat32(pl[8:12])),
	}
	vo.Position = Vec3{
		X: float64(bytesToFloat32(pl[12:16])),
		Y: float64(bytesToFloat32(pl[16:20])),
		Z: float64(bytesToFloat32(pl[20:24])),
	}
	vo.UltrasonicVel = float64(bytesToFloat32(pl[24:28]))
	vo.UltrasonicDist = float64(bytesToFloat32(pl[28:32]))

	vo.RtkLongitude = math.Float64frombits(binary.LittleEndian.Uint64(pl[32:40]))
	vo.RtkLatitude = math.Float64frombits(binary.LittleEndian.Uint64(pl[40:48]))
	vo.RtkAltitude = float64(bytesToFloat32(pl[48:52]))

	validFlags := uint16(pl[52]) | uint16(pl[53])<<8
	vo.IsValid = VoValid{
		VelX: validFlags&(1<<0) != 0,
		VelY: validFlags&(1<<1) != 0,
		VelZ: validFlags&(1<<2) != 0,
		PosX: validFlags&(1<<3) != 0,
		PosY: validFlags&(1<<4) != 0,
		PosZ: validFlags&(1<<5) != 0,
		UsVel: validFlags&(1<<6) != 0,
		UsPos: validFlags&(1<<7) != 0,
	}

	errFlags := uint16(pl[54]) | uint16(pl[55])<<8
	vo.Error = VoError{
		VgLarge:    errFlags&(1<<0) != 0,
		GpsYaw:     errFlags&(1<<1) != 0,
		MagYaw:     errFlags&(1<<2) != 0,
		GpsConsist: errFlags&(1<<3) != 0,
		UsFail:     errFlags&(1<<4) != 0,
		InitOk:     errFlags&(1<<5) != 0,
	}

	return vo, nil
}

// decodeProximity decodes the 2-byte little-endian ultrasonic distance
// record into metres.
func decodeProximity(pl []byte) (metres float64, err error) {
	if len(pl) < 2 {
		return 0, ErrShortPayload
	}
	raw := uint16(pl[0]) | uint16(pl[1])<<8
	return float64(raw) / 1000.0, nil
}
