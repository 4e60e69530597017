package pyranometer

import (
	"errors"
	"fmt"
)

// errShortReply is returned when the instrument sends fewer bytes than the
// command's reply length before the read timeout.
var errShortReply = errors.New("short reply")

// ConnectionError reports a serial port that could not be opened. The link
// stays disconnected and the next command retries the open.
type ConnectionError struct {
	Port string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError reports an I/O failure or malformed reply during a command.
type ProtocolError struct {
	Port string
	Op   string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s on %s: %v", e.Op, e.Port, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
