package pyranometer

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"
	"time"
)

func TestDecodeFloat32LERoundTrip(t *testing.T) {
	values := []float32{0, 1, -1.5, 2.0, 0.5, 1000, 1e-7, 12345.678, 326086.96, math.MaxFloat32, math.SmallestNonzeroFloat32}
	for _, v := range values {
		got, err := DecodeFloat32LE(EncodeFloat32LE(v))
		if err != nil {
			t.Fatalf("decode %v: %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip %v => %v", v, got)
		}
	}
}

func TestDecodeFloat32LEKnownBytes(t *testing.T) {
	// 2.0 = 0x40000000
	got, err := DecodeFloat32LE([]byte{0x00, 0x00, 0x00, 0x40})
	if err != nil || got != 2.0 {
		t.Fatalf("got %v %v; want 2.0", got, err)
	}
	if _, err := DecodeFloat32LE([]byte{0x00, 0x00, 0x40}); err == nil {
		t.Fatalf("expected error for 3 bytes")
	}
}

func TestReadVoltage(t *testing.T) {
	port := newFakePort().withVoltage(2.0)
	link := NewLink("/dev/ttyACM0", openerFor(port), 0, 0)

	if got := link.ReadVoltage(); got != 2.0 {
		t.Fatalf("voltage: got %v want 2.0", got)
	}
	if !bytes.Equal(port.tx.Bytes(), []byte{0x55, 0x21}) {
		t.Fatalf("sent % x; want 55 21", port.tx.Bytes())
	}
}

func TestReadSerialNumberSentinel(t *testing.T) {
	ioErr := errors.New("input/output error")
	tests := []struct {
		name  string
		setup func(p *fakePort)
		open  func(p *fakePort) Opener
		want  int
	}{
		{"ok", func(p *fakePort) { p.withSerial(12345.9) }, openerFor, 12345},
		{"write error", func(p *fakePort) { p.withSerial(12345); p.writeErr = ioErr }, openerFor, SerialSentinel},
		{"read error", func(p *fakePort) { p.withSerial(12345); p.readErr = ioErr }, openerFor, SerialSentinel},
		{"short reply", func(p *fakePort) { p.replies[cmdReadSerial[0]] = []byte{framingByte, 0x01} }, openerFor, SerialSentinel},
		{"no reply", func(p *fakePort) {}, openerFor, SerialSentinel},
		{"port missing", func(p *fakePort) {}, func(*fakePort) Opener { return failingOpener }, SerialSentinel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := newFakePort()
			tt.setup(port)
			link := NewLink("/dev/ttyACM0", tt.open(port), DefaultBaudRate, DefaultReadTimeout)
			if got := link.ReadSerialNumber(); got != tt.want {
				t.Fatalf("ReadSerialNumber() = %d; want %d", got, tt.want)
			}
		})
	}
}

func TestReadVoltageSentinelOnIOError(t *testing.T) {
	port := newFakePort().withVoltage(1.25)
	port.readErr = errors.New("input/output error")
	link := NewLink("/dev/ttyACM0", openerFor(port), 0, 0)
	if got := link.ReadVoltage(); got != VoltageSentinel {
		t.Fatalf("got %v; want sentinel", got)
	}
	// voltage failures do not drop the connection
	if !link.Connected() {
		t.Fatalf("link should stay connected after a voltage failure")
	}
}

func TestReadCalibration(t *testing.T) {
	port := newFakePort().withCalibration(0.5, 1000)
	link := NewLink("/dev/ttyACM0", openerFor(port), 0, 0)

	cal, err := link.ReadCalibration()
	if err != nil {
		t.Fatalf("read calibration: %v", err)
	}
	if cal.Offset != 0.5 || cal.Multiplier != 1000 {
		t.Fatalf("got %+v; want offset 0.5 multiplier 1000", cal)
	}
	if !bytes.Equal(port.tx.Bytes(), []byte{0x83, 0x21}) {
		t.Fatalf("sent % x; want 83 21", port.tx.Bytes())
	}
}

func TestReadCalibrationShortReplyMarksDisconnected(t *testing.T) {
	port := newFakePort()
	// multiplier frame only, offset never arrives
	port.replies[cmdReadCalibration[0]] = framed(1000)
	link := NewLink("/dev/ttyACM0", openerFor(port), 0, 0)

	_, err := link.ReadCalibration()
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if !errors.Is(err, errShortReply) {
		t.Fatalf("expected short reply cause, got %v", err)
	}
	if link.Connected() || !port.closed {
		t.Fatalf("link should be closed after a protocol error")
	}

	// next command reconnects lazily
	port.withVoltage(3.0)
	if got := link.ReadVoltage(); got != 3.0 {
		t.Fatalf("reconnect voltage: got %v", got)
	}
}

func TestConnectError(t *testing.T) {
	link := NewLink("/dev/ttyACM9", failingOpener, 0, 0)
	err := link.Connect()
	var connErr *ConnectionError
	if !errors.As(err, &connErr) || connErr.Port != "/dev/ttyACM9" {
		t.Fatalf("expected ConnectionError for port, got %v", err)
	}
	if _, err := link.ReadCalibration(); !errors.As(err, &connErr) {
		t.Fatalf("calibration on absent port should report ConnectionError, got %v", err)
	}
}

func TestNewLinkDefaults(t *testing.T) {
	var gotBaud int
	var gotTimeout time.Duration
	link := NewLink("COM4", func(_ string, baud int, timeout time.Duration) (rw io.ReadWriteCloser, err error) {
		gotBaud, gotTimeout = baud, timeout
		return newFakePort(), nil
	}, 0, 0)
	if err := link.Connect(); err != nil {
		t.Fatal(err)
	}
	if gotBaud != 115200 || gotTimeout != 500*time.Millisecond {
		t.Fatalf("opened with %d baud %v timeout", gotBaud, gotTimeout)
	}
}
