package sensor

import "context"

// UnavailableDriver stands in for a humidity sensor that could not be set
// up. Every read fails with Err, so sampled points record MissingValue.
type UnavailableDriver struct {
	Err error
}

func (d UnavailableDriver) Read(context.Context) (Climate, error) { return Climate{}, d.Err }

func (d UnavailableDriver) Close() error { return nil }
