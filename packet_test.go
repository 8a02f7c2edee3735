// packet_test.go

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
	"bytes"
	"testing"
)

func TestPacketRoundTrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		{},
		{0x01},
		bytes.Repeat([]byte{0xab}, 37),
	}
	for _, payload := range payloads {
		pkt := newPacket(ptSet, msgDoTakeoff, 42, len(payload))
		copy(pkt.payload, payload)

		buff := packetToBuffer(pkt)

		if len(buff) != preambleSize+len(payload)+2 {
			t.Fatalf("encoded length = %d, want %d", len(buff), preambleSize+len(payload)+2)
		}
		if buff[0] != pktMagic {
			t.Fatalf("byte 0 = 0x%02x, want 0x%02x", buff[0], pktMagic)
		}
		if buff[3] != calculateCRC8(buff[0:3]) {
			t.Fatalf("byte 3 (crc8) mismatch")
		}
		wantCRC16 := calculateCRC16(buff[0 : len(buff)-2])
		gotCRC16 := uint16(buff[len(buff)-2]) | uint16(buff[len(buff)-1])<<8
		if wantCRC16 != gotCRC16 {
			t.Fatalf("trailing crc16 mismatch: got %04x want %04x", gotCRC16, wantCRC16)
		}

		decoded, err := bufferToPacket(buff)
		if err != nil {
			t.Fatalf("bufferToPacket: %v", err)
		}
		if decoded.messageID != msgDoTakeoff || decoded.sequence != 42 {
			t.Errorf("decoded preamble mismatch: %+v", decoded)
		}
		if len(payload) == 0 {
			if len(decoded.payload) != 0 {
				t.Errorf("expected empty payload, got %v", decoded.payload)
			}
		} else if !bytes.Equal(decoded.payload, payload) {
			t.Errorf("decoded payload = %v, want %v", decoded.payload, payload)
		}
	}
}

func TestSizeFieldCodec(t *testing.T) {
	for l := 11; l <= 2048; l++ {
		sizeL := byte(l << 3)
		sizeH := byte(l >> 5)
		got := (int(sizeL) | int(sizeH)<<8) >> 3
		if got != l {
			t.Fatalf("size field round trip failed for %d: got %d", l, got)
		}
	}
}

func TestBufferToPacketRejectsBadMagic(t *testing.T) {
	buff := make([]byte, minPktSize)
	buff[0] = 0x00
	if _, err := bufferToPacket(buff); err != ErrFraming {
		t.Errorf("expected ErrFraming, got %v", err)
	}
}

func TestBufferToPacketRejectsShort(t *testing.T) {
	if _, err := bufferToPacket([]byte{0xcc, 0x01}); err != ErrFraming {
		t.Errorf("expected ErrFraming, got %v", err)
	}
}

func TestVerifyCRCAcceptsGoodFrame(t *testing.T) {
	pkt := newPacket(ptSet, msgDoLand, 1, 1)
	pkt.payload[0] = 0
	buff := packetToBuffer(pkt)
	if !verifyCRC(buff) {
		t.Error("expected verifyCRC to accept a freshly encoded frame")
	}
	buff[len(buff)-1] ^= 0xff
	if verifyCRC(buff) {
		t.Error("expected verifyCRC to reject a corrupted frame")
	}
}
