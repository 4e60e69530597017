package pyranometer

import (
	"bytes"
	"errors"
	"io"
	"time"
)

const framingByte = 0x06

// fakePort answers command frames with scripted replies.
type fakePort struct {
	replies  map[byte][]byte
	rx       bytes.Buffer
	tx       bytes.Buffer
	writeErr error
	readErr  error
	closed   bool
}

func newFakePort() *fakePort {
	return &fakePort{replies: map[byte][]byte{}}
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.tx.Write(b)
	if r, ok := p.replies[b[0]]; ok {
		p.rx.Write(r)
	}
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}
	return p.rx.Read(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func framed(v float32) []byte {
	return append([]byte{framingByte}, EncodeFloat32LE(v)...)
}

func (p *fakePort) withVoltage(v float32) *fakePort {
	p.replies[cmdGetVoltage[0]] = framed(v)
	return p
}

func (p *fakePort) withSerial(v float32) *fakePort {
	p.replies[cmdReadSerial[0]] = framed(v)
	return p
}

func (p *fakePort) withCalibration(offset, multiplier float32) *fakePort {
	p.replies[cmdReadCalibration[0]] = append(framed(multiplier), EncodeFloat32LE(offset)...)
	return p
}

func openerFor(p *fakePort) Opener {
	return func(string, int, time.Duration) (io.ReadWriteCloser, error) {
		p.closed = false
		return p, nil
	}
}

func failingOpener(string, int, time.Duration) (io.ReadWriteCloser, error) {
	return nil, errors.New("no such file or directory")
}
