package pyranometer

import (
	"fmt"
	"io"
	"time"

	jserial "github.com/jacobsa/go-serial/serial"
	tarm "github.com/tarm/serial"
)

const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 500 * time.Millisecond
)

// Opener opens a serial channel whose reads return after timeout when the
// instrument stays silent.
type Opener func(port string, baud int, timeout time.Duration) (io.ReadWriteCloser, error)

// OpenTermios opens port 8N1 through termios. With MinimumReadSize 0 the
// inter-character timeout becomes a plain read timeout (VMIN=0, VTIME>0).
func OpenTermios(port string, baud int, timeout time.Duration) (io.ReadWriteCloser, error) {
	return jserial.Open(jserial.OpenOptions{
		PortName:              port,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		ParityMode:            jserial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: uint(timeout / time.Millisecond),
	})
}

// OpenTarm opens port with github.com/tarm/serial, which also works on
// Windows COM ports.
func OpenTarm(port string, baud int, timeout time.Duration) (io.ReadWriteCloser, error) {
	p, err := tarm.OpenPort(&tarm.Config{
		Name:        port,
		Baud:        baud,
		ReadTimeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// OpenerFor maps a config serial_driver name to its Opener.
func OpenerFor(driver string) (Opener, error) {
	switch driver {
	case "termios", "":
		return OpenTermios, nil
	case "tarm":
		return OpenTarm, nil
	default:
		return nil, fmt.Errorf("unknown serial driver %q", driver)
	}
}
