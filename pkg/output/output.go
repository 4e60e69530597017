package output

import "github.com/ericogr/pyrologger/pkg/sensor"

// Output receives the readings of a finished batch.
type Output interface {
	Publish([]sensor.Reading) error
	Close() error
}

// helper constructors are in subpackages
