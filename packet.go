// packet.go - outer frame codec (C2) and message-id catalogue

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

const pktMagic = 0xcc // 204, byte 0 of every framed packet

// preambleSize is sizeof(preamble): magic, 2 size bytes, crc8, typeInfo,
// 2 messageID bytes, 2 sequence bytes.
const preambleSize = 9

// minPktSize is the smallest possible framed packet: preamble + 0 payload + crc16.
const minPktSize = preambleSize + 2

// packet is the internal representation of a framed message to/from the drone.
type packet struct {
	fromDrone     bool // the following 4 fields are packed into a single byte on the wire
	toDrone       bool
	packetType    uint8 // 3-bit
	packetSubtype uint8 // 3-bit
	messageID     uint16
	sequence      uint16
	payload       []byte
}

// packetTypeInfo bytes used by the command builders in commands.go.
const (
	ptInfoAltLimit  = 0x68 // calibrate, takeoff, land, altitude-limit commands
	ptInfoTimeOrAck = 0x50 // time response, log-header ack
	ptInfoStick     = 0x60 // stick/heartbeat packets
)

// 3-bit packetType values, for commands the spec does not pin to a literal
// packetTypeInfo byte.
const (
	ptExtended = 0
	ptGet      = 1
	ptData1    = 2
	ptData2    = 4
	ptSet      = 5
	ptFlip     = 6
)

// message ids (subset recognized by the facade)
const (
	msgDoConnect           = 0x0001
	msgConnected           = 0x0002
	msgQuerySSID           = 0x0011
	msgSetSSID             = 0x0012
	msgQuerySSIDPass       = 0x0013
	msgSetSSIDPass         = 0x0014
	msgQueryWifiRegion     = 0x0015
	msgSetWifiRegion       = 0x0016
	msgWifiStrength        = 0x001a
	msgLightStrength       = 0x0035
	msgError1              = 0x0043
	msgError2              = 0x0044
	msgQueryVersion        = 0x0045
	msgSetDateTime         = 0x0046
	msgSetStick            = 0x0050
	msgDoTakeoff           = 0x0054
	msgDoLand              = 0x0055
	msgFlightStatus        = 0x0056
	msgSetHeightLimit      = 0x0058
	msgDoFlip              = 0x005c
	msgDoThrowTakeoff      = 0x005d
	msgDoPalmLand          = 0x005e
	msgDoSmartVideo        = 0x0080
	msgSmartVideoStatus    = 0x0081
	msgLogHeader           = 0x1050
	msgLogData             = 0x1051
	msgLogConfig           = 0x1052
	msgDoCalibration       = 0x1054
	msgSetLowBattThresh    = 0x1055
	msgQueryHeightLimit    = 0x1056
	msgQueryLowBattThresh  = 0x1057
	msgSetAttitude         = 0x1058
	msgQueryAttitude       = 0x1059
)

// bufferToPacket parses a raw, already magic-checked datagram into a packet.
// It does not verify crc8/crc16; verifyCRC does that, and the transport
// does not call it.
func bufferToPacket(buff []byte) (pkt packet, err error) {
	if len(buff) < minPktSize {
		return pkt, ErrFraming
	}
	if buff[0] != pktMagic {
		return pkt, ErrFraming
	}
	sizeL, sizeH := buff[1], buff[2]
	length := (int(sizeL) | int(sizeH)<<8) >> 3
	if length < preambleSize || length > len(buff) {
		return pkt, ErrFraming
	}

	typeInfo := buff[4]
	pkt.fromDrone = typeInfo&0x80 != 0
	pkt.toDrone = typeInfo&0x40 != 0
	pkt.packetType = (typeInfo >> 3) & 0x07
	pkt.packetSubtype = typeInfo & 0x07
	pkt.messageID = uint16(buff[5]) | uint16(buff[6])<<8
	pkt.sequence = uint16(buff[7]) | uint16(buff[8])<<8

	payloadLen := length - preambleSize - 2
	if payloadLen > 0 {
		pkt.payload = make([]byte, payloadLen)
		copy(pkt.payload, buff[preambleSize:preambleSize+payloadLen])
	}
	return pkt, nil
}

// verifyCRC re-derives the crc8/crc16 of a raw buffer already accepted by
// bufferToPacket and reports whether both match. The drone's own replies
// are not validated this way by default (matching source behaviour and
// open question #4) - callers that want strict validation call this
// explicitly.
func verifyCRC(buff []byte) bool {
	if len(buff) < minPktSize {
		return false
	}
	if calculateCRC8(buff[0:3]) != buff[3] {
		return false
	}
	sizeL, sizeH := buff[1], buff[2]
	length := (int(sizeL) | int(sizeH)<<8) >> 3
	if length > len(buff) {
		return false
	}
	want := calculateCRC16(buff[0 : length-2])
	got := uint16(buff[length-2]) | uint16(buff[length-1])<<8
	return want == got
}

// packetToBuffer encodes pkt into the raw wire format, computing both CRCs.
func packetToBuffer(pkt packet) []byte {
	payloadSize := len(pkt.payload)
	size := minPktSize + payloadSize
	buff := make([]byte, size)

	buff[0] = pktMagic
	buff[1] = byte(size << 3)
	buff[2] = byte(size >> 5)
	buff[3] = calculateCRC8(buff[0:3])

	typeInfo := pkt.packetSubtype + (pkt.packetType << 3)
	if pkt.toDrone {
		typeInfo |= 0x40
	}
	if pkt.fromDrone {
		typeInfo |= 0x80
	}
	buff[4] = typeInfo

	buff[5] = byte(pkt.messageID)
	buff[6] = byte(pkt.messageID >> 8)
	buff[7] = byte(pkt.sequence)
	buff[8] = byte(pkt.sequence >> 8)

	copy(buff[preambleSize:], pkt.payload)

	crc16 := calculateCRC16(buff[0 : preambleSize+payloadSize])
	buff[preambleSize+payloadSize] = byte(crc16)
	buff[preambleSize+payloadSize+1] = byte(crc16 >> 8)

	return buff
}

// newPacket returns a to-drone packet built from a 3-bit packetType.
func newPacket(packetType uint8, messageID uint16, seq uint16, payloadSize int) packet {
	pkt := packet{
		toDrone:    true,
		packetType: packetType,
		messageID:  messageID,
		sequence:   seq,
	}
	if payloadSize > 0 {
		pkt.payload = make([]byte, payloadSize)
	}
	return pkt
}

// newPacketFromTypeInfo builds a to-drone packet from one of the spec's
// literal packetTypeInfo bytes (ptInfoAltLimit, ptInfoTimeOrAck, ptInfoStick)
// rather than its decomposed bitfields.
func newPacketFromTypeInfo(typeInfo byte, messageID uint16, seq uint16, payloadSize int) packet {
	pkt := packet{
		fromDrone:     typeInfo&0x80 != 0,
		toDrone:       typeInfo&0x40 != 0,
		packetType:    (typeInfo >> 3) & 0x07,
		packetSubtype: typeInfo & 0x07,
		messageID:     messageID,
		sequence:      seq,
	}
	if payloadSize > 0 {
		pkt.payload = make([]byte, payloadSize)
	}
	return pkt
}
