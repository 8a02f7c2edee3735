// flog.go - flight-log record stream parser (C4)

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

const logRecordMagic = 0x55

// logRecordHeaderLen is sizeof(LogRecordHeader): magic, 2 length bytes,
// crc8, 2 type bytes, xor key, 3 reserved bytes.
const logRecordHeaderLen = 10

// log record types this library decodes into structured values.
const (
	logRecUSonic = 0x0010
	logRecMvo    = 0x001d
	logRecImu    = 0x0800
	logRecImuEx  = 0x0810
)

// logRecKnownUnhandled lists record types the drone is known to emit but
// this library does not interpret - they are surfaced via LogUnhandled
// rather than falling through to LogUnknown.
var logRecKnownUnhandled = map[uint16]bool{
	0x000c: true, // goTxtOrOsd
	0x03e8: true, // controller
	0x03e9: true, // aircraftCond
	0x03ea: true, // serialApiInputs
	0x06ae: true, // battInfo
	0x08a0: true, // attiMini
	0x2765: true, // nsDataDebug
	0x2766: true, // nsDataComponent
	0x2774: true, // recAirComp
	0x04b0: true, // ctrlVertDbg
	0x04b2: true, // ctrlVertVelDbg
	0x04b3: true, // ctrlVertAccDbg
	0x0514: true, // ctrlHorizDbg
	0x0517: true, // unknown
	0x0518: true, // ctrlHoriz
	0x0519: true, // ctrlHoriz
	0x051a: true, // ctrlHoriz
	0x051b: true, // ctrlHoriz
}

// LogRecordKind discriminates the decoded payload carried by a LogRecord.
type LogRecordKind int

const (
	LogMvo LogRecordKind = iota
	LogImu
	LogVo
	LogProximity
	LogUnhandled
	LogUnknown
)

// LogRecord is one record from the flight-log stream, already de-obfuscated
// and, where the type is understood, decoded. Vector fields are still in
// the drone's native frame; the facade rotates them into the canonical
// frame before publishing (see drone.go).
type LogRecord struct {
	Kind      LogRecordKind
	Type      uint16
	Length    int
	Mvo       Mvo
	Imu       Imu
	Vo        Vo
	Proximity float64
	Raw       []byte // populated for LogUnhandled and LogUnknown
}

// parseLogPayload walks the concatenated, XOR-obfuscated log records
// carried in a log-data message payload. The caller has already dropped
// the leading always-0x00 byte. If the very first record's magic byte
// does not match, the entire payload is discarded and ErrCorruptedLog is
// returned - this mirrors the drone's own recovery behaviour, which
// attempts nothing smarter after that point. (The source also contains a
// dead "recover at +28 bytes" branch after an unconditional return; it is
// intentionally not reproduced here.)
func parseLogPayload(data []byte) ([]LogRecord, error) {
	var records []LogRecord
	cursor := 0

	for cursor < len(data)-2 {
		if cursor+logRecordHeaderLen > len(data) {
			break
		}
		if data[cursor] != logRecordMagic {
			if cursor == 0 {
				return nil, ErrCorruptedLog
			}
			break
		}

		recordLength := int(data[cursor+1]) | int(data[cursor+2])<<8
		recordType := uint16(data[cursor+4]) | uint16(data[cursor+5])<<8
		xorKey := data[cursor+6]

		if recordLength < logRecordHeaderLen+2 || cursor+recordLength > len(data) {
			break
		}

		payloadStart := cursor + logRecordHeaderLen
		payloadEnd := cursor + recordLength - 2
		obfuscated := data[payloadStart:payloadEnd]
		clear := make([]byte, len(obfuscated))
		for i, b := range obfuscated {
			clear[i] = b ^ xorKey
		}

		rec := LogRecord{Type: recordType, Length: recordLength}

		switch recordType {
		case logRecMvo:
			if mvo, err := decodeMvo(clear); err == nil {
				rec.Kind = LogMvo
				rec.Mvo = mvo
			} else {
				rec.Kind = LogUnknown
				rec.Raw = clear
			}
		case logRecImu:
			if imu, err := decodeImu(clear); err == nil {
				rec.Kind = LogImu
				rec.Imu = imu
			} else {
				rec.Kind = LogUnknown
				rec.Raw = clear
			}
		case logRecImuEx:
			if vo, err := decodeVo(clear); err == nil {
				rec.Kind = LogVo
				rec.Vo = vo
			} else {
				rec.Kind = LogUnknown
				rec.Raw = clear
			}
		case logRecUSonic:
			if prox, err := decodeProximity(clear); err == nil {
				rec.Kind = LogProximity
				rec.Proximity = prox
			} else {
				rec.Kind = LogUnknown
				rec.Raw = clear
			}
		default:
			if logRecKnownUnhandled[recordType] {
				rec.Kind = LogUnhandled
			} else {
				rec.Kind = LogUnknown
			}
			rec.Raw = clear
		}

		records = append(records, rec)
		cursor += recordLength
	}

	return records, nil
}

// ackLogHeaderPayload builds the 3-byte acknowledgement for a received log
// header: the echoed first two id bytes under packetTypeInfo 0x50.
func ackLogHeaderPayload(id []byte) packet {
	pkt := newPacketFromTypeInfo(ptInfoTimeOrAck, msgLogHeader, 0, 3)
	pkt.payload[1] = id[0]
	pkt.payload[2] = id[1]
	return pkt
}
