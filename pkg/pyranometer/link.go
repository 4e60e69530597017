package pyranometer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

// Command frames. Every frame ends with the 0x21 terminator.
var (
	cmdGetVoltage      = []byte{0x55, 0x21}
	cmdReadCalibration = []byte{0x83, 0x21}
	cmdReadSerial      = []byte{0x87, 0x21}
)

const (
	// framedReplyLen is a framing byte followed by a float32.
	framedReplyLen = 5
	// offsetReplyLen is the unframed float32 that follows the multiplier in
	// a calibration reply.
	offsetReplyLen = 4

	SerialSentinel  = 9999
	VoltageSentinel = 9999.0
)

// Calibration holds the per-device constants converting volts to
// µmol m⁻² s⁻¹.
type Calibration struct {
	Offset     float32 `json:"offset"`
	Multiplier float32 `json:"multiplier"`
}

// Link is the request/response channel to one instrument. It never retries;
// callers decide what to do with a failed command.
type Link struct {
	port    string
	baud    int
	timeout time.Duration
	open    Opener
	conn    io.ReadWriteCloser
}

func NewLink(port string, open Opener, baud int, timeout time.Duration) *Link {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	return &Link{port: port, baud: baud, timeout: timeout, open: open}
}

func (l *Link) Port() string { return l.port }

func (l *Link) Connected() bool { return l.conn != nil }

// Connect opens the port if it is not already open.
func (l *Link) Connect() error {
	if l.conn != nil {
		return nil
	}
	conn, err := l.open(l.port, l.baud, l.timeout)
	if err != nil {
		return &ConnectionError{Port: l.port, Err: err}
	}
	l.conn = conn
	return nil
}

// Close releases the port and marks the link not connected.
func (l *Link) Close() error {
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	return err
}

// ReadCalibration returns the multiplier and offset stored on the device.
// On failure the link is marked not connected so the next command reopens
// the port.
func (l *Link) ReadCalibration() (Calibration, error) {
	cal, err := l.readCalibration()
	if err == nil {
		return cal, nil
	}
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return Calibration{}, err
	}
	_ = l.Close()
	return Calibration{}, &ProtocolError{Port: l.port, Op: "read calibration", Err: err}
}

func (l *Link) readCalibration() (Calibration, error) {
	multiplier, err := l.command(cmdReadCalibration)
	if err != nil {
		return Calibration{}, err
	}
	raw, err := readFrame(l.conn, offsetReplyLen)
	if err != nil {
		return Calibration{}, err
	}
	offset, err := DecodeFloat32LE(raw)
	if err != nil {
		return Calibration{}, err
	}
	return Calibration{Offset: offset, Multiplier: multiplier}, nil
}

// ReadSerialNumber returns the device serial number, or SerialSentinel when
// the command fails.
func (l *Link) ReadSerialNumber() int {
	v, err := l.command(cmdReadSerial)
	if err != nil || math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return SerialSentinel
	}
	return int(v)
}

// ReadVoltage returns the sensor output in volts, or VoltageSentinel when
// the command fails.
func (l *Link) ReadVoltage() float64 {
	v, err := l.command(cmdGetVoltage)
	if err != nil {
		return VoltageSentinel
	}
	return float64(v)
}

// command sends cmd and decodes the framed float32 reply.
func (l *Link) command(cmd []byte) (float32, error) {
	if err := l.Connect(); err != nil {
		return 0, err
	}
	if _, err := l.conn.Write(cmd); err != nil {
		return 0, fmt.Errorf("write %#x: %w", cmd[0], err)
	}
	reply, err := readFrame(l.conn, framedReplyLen)
	if err != nil {
		return 0, fmt.Errorf("reply to %#x: %w", cmd[0], err)
	}
	return DecodeFloat32LE(reply[1:])
}

// readFrame reads exactly n bytes. A read that times out without data (0
// bytes, io.EOF on a tty) ends the frame early.
func readFrame(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	got := 0
	for got < n {
		m, err := r.Read(buf[got:])
		got += m
		if got == n {
			break
		}
		if errors.Is(err, io.EOF) || (err == nil && m == 0) {
			return nil, fmt.Errorf("%w: %d of %d bytes", errShortReply, got, n)
		}
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// DecodeFloat32LE decodes a little-endian IEEE-754 single.
func DecodeFloat32LE(b []byte) (float32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("float32 needs 4 bytes, got %d", len(b))
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

func EncodeFloat32LE(v float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return b
}
