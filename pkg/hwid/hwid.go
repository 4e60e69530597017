// Package hwid resolves the board's hardware serial number, which names the
// data directory of every session.
package hwid

import (
	"bufio"
	"errors"
	"os"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// SerialLen is the number of characters of the cpuinfo serial that are kept.
const SerialLen = 16

var ErrSerialUnavailable = errors.New("hardware serial unavailable")

// CPUSerial returns the first SerialLen characters of the "Serial" line in
// the cpuinfo file at path.
func CPUSerial(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", pkgerrors.Wrapf(ErrSerialUnavailable, "open %s: %v", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok || strings.TrimSpace(key) != "Serial" {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			break
		}
		if len(value) > SerialLen {
			value = value[:SerialLen]
		}
		return value, nil
	}
	if err := sc.Err(); err != nil {
		return "", pkgerrors.Wrapf(ErrSerialUnavailable, "read %s: %v", path, err)
	}
	return "", pkgerrors.Wrapf(ErrSerialUnavailable, "no Serial line in %s", path)
}

// DataDir is the directory a board with the given serial writes to.
func DataDir(prefix, serial string) string { return prefix + serial }
