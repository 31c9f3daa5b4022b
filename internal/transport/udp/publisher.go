// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	applog "github.com/ismaelmosquera/imrlib-sub001/internal/log"
	"github.com/ismaelmosquera/imrlib-sub001/internal/transport"
)

// DefaultInterval is used when a publisher is created with a non-positive
// interval (~60 Hz).
const DefaultInterval = 16 * time.Millisecond

// headerSize is the fixed packet prefix: sequence, timestamp and count.
const headerSize = 4 + 8 + 2

// ErrShortPacket is returned by ParsePacket for truncated input.
var ErrShortPacket = errors.New("udp: packet too short")

// UDPPublisher periodically fetches spectrum magnitudes from a provider,
// packs them into the binary format below and sends them with a UDPSender.
// It runs in its own goroutine managed by Start and Stop.
type UDPPublisher struct {
	sender   *UDPSender
	provider transport.MagnitudeProvider
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum uint32

	// Reused on every tick.
	magBuffer    []float64
	f32Buffer    []float32
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates a publisher sending the magnitudes of provider
// every interval.
func NewUDPPublisher(interval time.Duration, sender *UDPSender, provider transport.MagnitudeProvider) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("UDPPublisher: magnitude provider cannot be nil")
	}
	bins := provider.Bins()
	if bins <= 0 || bins > math.MaxUint16 {
		return nil, fmt.Errorf("UDPPublisher: %d bins do not fit a packet", bins)
	}

	if interval <= 0 {
		interval = DefaultInterval
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	applog.Infof("UDPPublisher: Initializing (Interval: %s, Bins: %d)", interval, bins)

	return &UDPPublisher{
		sender:       sender,
		provider:     provider,
		interval:     interval,
		magBuffer:    make([]float64, bins),
		f32Buffer:    make([]float32, bins),
		packetBuffer: bytes.NewBuffer(make([]byte, 0, headerSize+4*bins)),
	}, nil
}

// Start begins periodic publishing. Calling Start on a running publisher
// is a no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				applog.Debugf("UDPPublisher: Publisher goroutine received stop signal.")
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to exit and waits for it. It is safe
// to call more than once.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Infof("UDPPublisher: Stopped after %d packets.", p.sequenceNum)
	return nil
}

/*
UDP Packet Structure (BigEndian)

|<---- 4 Bytes ---->|<------ 8 Bytes ------>|<-- 2 Bytes -->|<----- N * 4 Bytes ----->|
+-------------------+-----------------------+---------------+-------------------------+
|  Sequence Number  |       Timestamp       |   Magnitude   |       Magnitudes        |
|      (uint32)     |  (int64, ns epoch)    | Count (uint16)|      (N * float32)      |
+-------------------+-----------------------+---------------+-------------------------+
*/

// Packet is a decoded magnitude packet.
type Packet struct {
	Sequence   uint32
	Timestamp  time.Time
	Magnitudes []float32
}

// buildPacket fetches the latest magnitudes and packs them into the reused
// packet buffer.
func (p *UDPPublisher) buildPacket() ([]byte, error) {
	if err := p.provider.GetMagnitudesInto(p.magBuffer); err != nil {
		return nil, fmt.Errorf("getting magnitudes: %w", err)
	}
	for i, v := range p.magBuffer {
		p.f32Buffer[i] = float32(v)
	}

	p.sequenceNum++
	p.packetBuffer.Reset()

	var header [headerSize]byte
	binary.BigEndian.PutUint32(header[0:4], p.sequenceNum)
	binary.BigEndian.PutUint64(header[4:12], uint64(time.Now().UnixNano()))
	binary.BigEndian.PutUint16(header[12:14], uint16(len(p.f32Buffer)))
	p.packetBuffer.Write(header[:])

	if err := binary.Write(p.packetBuffer, binary.BigEndian, p.f32Buffer); err != nil {
		return nil, fmt.Errorf("packing magnitudes: %w", err)
	}
	return p.packetBuffer.Bytes(), nil
}

// buildAndSendPacket runs on every tick. Failures skip the packet.
func (p *UDPPublisher) buildAndSendPacket() {
	packet, err := p.buildPacket()
	if err != nil {
		applog.Errorf("UDPPublisher: %v", err)
		return
	}
	if err := p.sender.Send(packet); err == nil {
		applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(packet))
	}
}

// ParsePacket decodes a packet produced by UDPPublisher.
func ParsePacket(b []byte) (Packet, error) {
	if len(b) < headerSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(b))
	}
	count := int(binary.BigEndian.Uint16(b[12:14]))
	if len(b) != headerSize+4*count {
		return Packet{}, fmt.Errorf("%w: %d bytes for %d magnitudes", ErrShortPacket, len(b), count)
	}

	pkt := Packet{
		Sequence:   binary.BigEndian.Uint32(b[0:4]),
		Timestamp:  time.Unix(0, int64(binary.BigEndian.Uint64(b[4:12]))),
		Magnitudes: make([]float32, count),
	}
	for i := range pkt.Magnitudes {
		off := headerSize + 4*i
		pkt.Magnitudes[i] = math.Float32frombits(binary.BigEndian.Uint32(b[off : off+4]))
	}
	return pkt, nil
}

// Close stops the publisher.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

// Ensure UDPPublisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*UDPPublisher)(nil)
