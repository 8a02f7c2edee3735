// transport.go - UDP transport, handshake, watchdog, dispatch queue (C5, C5a)

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
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/Workiva/go-datastructures/queue"
	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultDroneAddr    = "192.168.10.1"
	defaultDronePort    = 8889
	defaultKeepAlive    = 50 * time.Millisecond
	defaultWatchdog     = 2000 * time.Millisecond
	dispatchQueueCap    = 128
	readBufferSize      = 4096
)

var defaultStreamPort = uint16(6038)

// ConnectionState is the transport's own connection lifecycle, independent
// of the facade's derived flightState.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	TimedOut
)

// handler is invoked by the dispatcher goroutine for every recognized
// message id, with the packet's message id and payload.
type handler func(messageID uint16, payload []byte)

// transport owns the UDP socket, the handshake, the timeout watchdog, and
// the single dispatcher goroutine that drains the inbound queue.
type transport struct {
	log *logrus.Logger

	host string
	port int

	keepAlive time.Duration
	watchdog  time.Duration

	mu       sync.RWMutex
	conn     *net.UDPConn
	seq      uint16
	state    ConnectionState
	sessionID uuid.UUID

	handlers map[uint16]handler

	inbound *queue.Queue

	stopCh   chan struct{}
	stopOnce sync.Once

	stateCh *Channel
}

func newTransport(host string, port int, log *logrus.Logger) *transport {
	return &transport{
		log:       log,
		host:      host,
		port:      port,
		keepAlive: defaultKeepAlive,
		watchdog:  defaultWatchdog,
		handlers:  make(map[uint16]handler),
		inbound:   queue.New(dispatchQueueCap),
		stopCh:    make(chan struct{}),
		stateCh:   NewDedupChannel(func(a, b interface{}) bool { return a.(ConnectionState) == b.(ConnectionState) }),
	}
}

func (t *transport) on(messageID uint16, h handler) {
	t.handlers[messageID] = h
}

func (t *transport) setState(s ConnectionState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
	t.stateCh.Write(s)
}

func (t *transport) State() ConnectionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *transport) StateChannel() *Channel { return t.stateCh }

// connect dials the drone, starts the receive loop and the dispatcher, and
// drives the handshake/watchdog/reconnect loop on its own goroutine.
func (t *transport) connect() error {
	t.mu.Lock()
	if t.state == Connected || t.state == Connecting {
		t.mu.Unlock()
		return ErrAlreadyConnected
	}
	t.mu.Unlock()

	t.sessionID = uuid.NewV4()
	t.setState(Connecting)

	if err := t.dial(); err != nil {
		t.setState(Disconnected)
		return err
	}

	go t.dispatchLoop()
	go t.receiveLoop()
	go t.reconnectLoop()

	t.sendHandshake()
	return nil
}

func (t *transport) dial() error {
	droneAddr, err := net.ResolveUDPAddr("udp", t.host+":"+strconv.Itoa(t.port))
	if err != nil {
		return errorsWrap(ErrTransport, err)
	}
	conn, err := net.DialUDP("udp", nil, droneAddr)
	if err != nil {
		return errorsWrap(ErrTransport, err)
	}
	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	return nil
}

func (t *transport) sendHandshake() {
	msg := []byte("conn_req:lh")
	msg[9] = byte(defaultStreamPort)
	msg[10] = byte(defaultStreamPort >> 8)
	t.rawSend(msg)
}

// disconnect cancels the watchdog, dispatcher and receive loop, and closes
// the socket. It is the only path back to Disconnected that is not a
// reconnect.
func (t *transport) disconnect() {
	t.stopOnce.Do(func() { close(t.stopCh) })
	t.mu.Lock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.mu.Unlock()
	t.setState(Disconnected)
}

// send frames pkt and writes it to the socket. While disconnected, sends
// are dropped silently per the transport's design.
func (t *transport) send(pkt packet) {
	t.mu.Lock()
	if t.state != Connected && t.state != Connecting {
		t.mu.Unlock()
		return
	}
	t.seq++
	pkt.sequence = t.seq
	t.mu.Unlock()
	t.rawSend(packetToBuffer(pkt))
}

func (t *transport) rawSend(buf []byte) {
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()
	if conn == nil {
		return
	}
	if _, err := conn.Write(buf); err != nil {
		t.log.WithError(err).WithField("session", t.sessionID).Warn("send failed")
	}
}

// receiveLoop reads datagrams and pushes them onto the dispatch queue. It
// is the single producer; dispatchLoop is the single consumer.
func (t *transport) receiveLoop() {
	buff := make([]byte, readBufferSize)
	for {
		select {
		case <-t.stopCh:
			return
		default:
		}
		t.mu.RLock()
		conn := t.conn
		t.mu.RUnlock()
		if conn == nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		conn.SetReadDeadline(time.Now().Add(t.watchdog))
		n, err := conn.Read(buff)
		select {
		case <-t.stopCh:
			return
		default:
		}
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				t.handleTimeout()
				continue
			}
			continue
		}
		datagram := make([]byte, n)
		copy(datagram, buff[:n])
		if err := t.inbound.Put(datagram); err != nil {
			t.log.WithError(err).Warn("dispatch queue rejected datagram")
		}
	}
}

func (t *transport) handleTimeout() {
	t.setState(TimedOut)
	t.mu.Lock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.mu.Unlock()
}

// reconnectLoop watches for TimedOut and re-enters the handshake,
// indefinitely, until disconnect is called.
func (t *transport) reconnectLoop() {
	for {
		select {
		case <-t.stopCh:
			return
		case <-time.After(t.watchdog / 4):
		}
		if t.State() != TimedOut {
			continue
		}
		if err := t.dial(); err != nil {
			continue
		}
		t.setState(Connecting)
		t.sendHandshake()
	}
}

// dispatchLoop is the single consumer draining the inbound queue; it
// decodes frames and invokes handlers, or interprets the handshake/ASCII
// fallbacks.
func (t *transport) dispatchLoop() {
	for {
		items, err := t.inbound.Poll(1, 200*time.Millisecond)
		if err != nil {
			select {
			case <-t.stopCh:
				return
			default:
				continue
			}
		}
		for _, item := range items {
			datagram, ok := item.([]byte)
			if !ok {
				continue
			}
			t.handleDatagram(datagram)
		}
	}
}

func (t *transport) handleDatagram(datagram []byte) {
	if len(datagram) >= 9 && datagram[0] == pktMagic {
		pkt, err := bufferToPacket(datagram)
		if err != nil {
			t.log.WithError(err).Warn("dropped malformed frame")
			return
		}
		h, ok := t.handlers[pkt.messageID]
		if !ok {
			t.log.WithField("messageID", pkt.messageID).Debug("unknown message id")
			return
		}
		h(pkt.messageID, pkt.payload)
		return
	}

	if bytes.HasPrefix(datagram, []byte("conn_ack:")) {
		if t.State() != Connected {
			t.setState(Connected)
		}
		return
	}
	if bytes.HasPrefix(datagram, []byte("unknown command:")) {
		t.log.WithField("datagram", string(datagram)).Warn("drone reported unknown command")
		return
	}
	t.log.WithField("len", len(datagram)).Warn("unrecognized datagram")
}
