// crc.go - CRC-8 and CRC-16 codecs for the drone's outer frame (C1)

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

// The drone's CRC-8 and CRC-16 are neither standard CRC-8/MAXIM nor
// CRC-16/CCITT in their usual forms: no reflection, no final XOR, and
// firmware-specific seed values. No third-party CRC package in the
// examined ecosystem reproduces this exact variant, so the tables are
// generated once here from the documented polynomial/seed rather than
// hand-copied - a generic crc32-style "verbatim table" would be no more
// bit-exact than generating it, and is easier to get wrong by transcription.
const (
	crc8Poly = 0xd5
	crc8Init = 0x77

	crc16Poly = 0x1021
	crc16Init = 0x3692
)

var crc8Table [256]byte
var crc16Table [256]uint16

func init() {
	for i := 0; i < 256; i++ {
		crc := byte(i)
		for b := 0; b < 8; b++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ crc8Poly
			} else {
				crc <<= 1
			}
		}
		crc8Table[i] = crc
	}

	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for b := 0; b < 8; b++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crc16Poly
			} else {
				crc <<= 1
			}
		}
		crc16Table[i] = crc
	}
}

// calculateCRC8 computes the CRC-8 of buf, seeded with crc8Init.
func calculateCRC8(buf []byte) byte {
	crc := byte(crc8Init)
	for _, b := range buf {
		crc = crc8Table[crc^b]
	}
	return crc
}

// calculateCRC16 computes the CRC-16 of buf, seeded with crc16Init.
func calculateCRC16(buf []byte) uint16 {
	crc := uint16(crc16Init)
	for _, b := range buf {
		crc = (crc << 8) ^ crc16Table[byte(crc>>8)^b]
	}
	return crc
}
