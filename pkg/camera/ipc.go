package camera

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"net"
	"os"
	"sync"
	"time"
)

// DefaultSocket is where the sensor process listens for control packets.
const DefaultSocket = "/tmp/sensor-control"

// SocketWait bounds how long Dial waits for the socket to appear.
const SocketWait = 60 * time.Second

// Packet opcodes. Requests and replies share the first byte.
const (
	opState        = 0x01
	opAutoExposure = 0x02
	opAutoWB       = 0x03
	opOneShotWB    = 0x04
	opTally        = 0x05
	opGain         = 0x06
	opShutter      = 0x07
	opFPS          = 0x08
	opEV           = 0x09

	opControls = 0x02
)

// Message is a decoded packet from the sensor process.
type Message interface {
	isMessage()
}

// SensorState is the periodic sensor report.
type SensorState struct {
	AnalogueGain float32
	DigitalGain  float32
	// Exposure is in microseconds.
	Exposure    uint32
	Temperature uint32
}

func (SensorState) isMessage() {}

// Metadata converts the report into frame metadata stamped with at.
func (s SensorState) Metadata(at time.Time) Metadata {
	return Metadata{
		ExposureTime:      float64(s.Exposure),
		AnalogueGain:      float64(s.AnalogueGain),
		SensorTimestamp:   at.UnixNano(),
		ColourTemperature: int(s.Temperature),
	}
}

// ControlState reports which automatic loops are running.
type ControlState struct {
	AutoExposure     bool
	AutoWhiteBalance bool
}

func (ControlState) isMessage() {}

// IPCClient talks to the sensor process over a unixpacket socket.
type IPCClient struct {
	conn *net.UnixConn

	mu     sync.Mutex
	closed bool
}

// Dial connects to the socket at path, waiting up to SocketWait for the
// sensor process to create it.
func Dial(ctx context.Context, path string) (*IPCClient, error) {
	conn, err := dialPacket(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewIPCClient(conn), nil
}

// dialPacket waits for a socket of the sensor process to appear and
// connects to it.
func dialPacket(ctx context.Context, path string) (*net.UnixConn, error) {
	deadline := time.Now().Add(SocketWait)
	for {
		_, err := os.Stat(path)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrNotExist) || time.Now().After(deadline) {
			return nil, fmt.Errorf("camera: socket %s: %w", path, err)
		}
		log.Printf("camera: waiting for socket %s", path)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}

	conn, err := net.DialUnix("unixpacket", nil, &net.UnixAddr{Name: path, Net: "unixpacket"})
	if err != nil {
		return nil, fmt.Errorf("camera: dial %s: %w", path, err)
	}
	return conn, nil
}

// NewIPCClient wraps an established connection.
func NewIPCClient(conn *net.UnixConn) *IPCClient {
	return &IPCClient{conn: conn}
}

func (c *IPCClient) send(op byte, payload any) error {
	var buf bytes.Buffer
	buf.WriteByte(op)
	if payload != nil {
		if err := binary.Write(&buf, binary.LittleEndian, payload); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if _, err := c.conn.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("camera: send 0x%02x: %w", op, err)
	}
	return nil
}

// RequestState asks the sensor process to report its state.
func (c *IPCClient) RequestState() error { return c.send(opState, nil) }

func (c *IPCClient) EnableAutoExposure(enabled bool) error {
	return c.send(opAutoExposure, enabled)
}

func (c *IPCClient) EnableAutoWhiteBalance(enabled bool) error {
	return c.send(opAutoWB, enabled)
}

// OneShotWhiteBalance runs the white balance loop once and holds the
// result.
func (c *IPCClient) OneShotWhiteBalance() error { return c.send(opOneShotWB, nil) }

// SetTally sets the tally light to one of the Tally states.
func (c *IPCClient) SetTally(state byte) error { return c.send(opTally, state) }

func (c *IPCClient) SetGain(db int) error {
	if db < 0 || db > math.MaxUint8 {
		return fmt.Errorf("camera: gain %d dB out of range", db)
	}
	return c.send(opGain, uint8(db))
}

func (c *IPCClient) SetShutter(denominator int) error {
	if denominator <= 0 || denominator > math.MaxUint16 {
		return fmt.Errorf("camera: shutter 1/%d out of range", denominator)
	}
	return c.send(opShutter, uint16(denominator))
}

func (c *IPCClient) SetFPS(fps int) error {
	if fps <= 0 || fps > math.MaxUint8 {
		return fmt.Errorf("camera: %d fps out of range", fps)
	}
	return c.send(opFPS, uint8(fps))
}

func (c *IPCClient) SetExposureValue(ev float64) error {
	return c.send(opEV, float32(ev))
}

func (c *IPCClient) readErr(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return fmt.Errorf("camera: read: %w", err)
}

// DecodeMessage parses one packet.
func DecodeMessage(packet []byte) (Message, error) {
	if len(packet) == 0 {
		return nil, errors.New("camera: empty packet")
	}
	r := bytes.NewReader(packet[1:])
	switch packet[0] {
	case opState:
		var s SensorState
		if err := binary.Read(r, binary.LittleEndian, &s); err != nil {
			return nil, fmt.Errorf("camera: sensor state packet: %w", err)
		}
		return s, nil
	case opControls:
		var s ControlState
		if err := binary.Read(r, binary.LittleEndian, &s); err != nil {
			return nil, fmt.Errorf("camera: controls packet: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("camera: unknown packet 0x%02x", packet[0])
}

// Listen calls fn for every packet until ctx is cancelled or the
// connection fails. Packets that do not decode are logged and skipped.
// The client stays usable for sending after ctx ends.
func (c *IPCClient) Listen(ctx context.Context, fn func(Message)) error {
	stop := context.AfterFunc(ctx, func() { c.conn.SetReadDeadline(time.Now()) })
	defer stop()

	buf := make([]byte, 1024)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return c.readErr(err)
		}
		msg, err := DecodeMessage(buf[:n])
		if err != nil {
			log.Printf("%v", err)
			continue
		}
		fn(msg)
	}
}

func (c *IPCClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
