// Package record defines the on-disk form of one session's samples. Files
// are BSON documents written once at the end of a sampling run.
package record

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/ericogr/pyrologger/pkg/sampler"
)

const (
	Ext              = ".bson"
	climateSuffix    = "_ht"
	irradianceSuffix = "_pyr"
)

type ClimatePair struct {
	RH float64 `bson:"rh" json:"rh"`
	T  float64 `bson:"t" json:"t"`
}

// ClimateRecord is the content of <doy>_ht.bson.
type ClimateRecord struct {
	Started time.Time     `bson:"started" json:"started"`
	Pairs   []ClimatePair `bson:"pairs" json:"pairs"`
}

// Instrument is one pyranometer's identity, calibration and series.
type Instrument struct {
	Port       string    `bson:"port" json:"port"`
	Serial     int       `bson:"serial" json:"serial"`
	Offset     float32   `bson:"offset" json:"offset"`
	Multiplier float32   `bson:"multiplier" json:"multiplier"`
	Calibrated bool      `bson:"calibrated" json:"calibrated"`
	Irradiance []float64 `bson:"irradiance" json:"irradiance"`
}

// IrradianceRecord is the content of <doy>_pyr.bson.
type IrradianceRecord struct {
	Started     time.Time    `bson:"started" json:"started"`
	Instruments []Instrument `bson:"instruments" json:"instruments"`
}

func ClimateFileName(day string) string    { return day + climateSuffix + Ext }
func IrradianceFileName(day string) string { return day + irradianceSuffix + Ext }

func NewClimateRecord(b sampler.ClimateBatch) ClimateRecord {
	rec := ClimateRecord{Started: b.Started, Pairs: make([]ClimatePair, b.Len())}
	for i := range b.Humidity {
		rec.Pairs[i] = ClimatePair{RH: b.Humidity[i], T: b.Temperature[i]}
	}
	return rec
}

// Write encodes v and writes it to dir/name. A second session on the same
// day replaces the earlier file.
func Write(dir, name string, v interface{}) (string, error) {
	path := filepath.Join(dir, name)
	b, err := bson.Marshal(v)
	if err != nil {
		return path, pkgerrors.Wrapf(err, "encode %s", name)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return path, pkgerrors.Wrap(err, "write record")
	}
	return path, nil
}

func ReadClimate(path string) (ClimateRecord, error) {
	var rec ClimateRecord
	return rec, read(path, &rec)
}

func ReadIrradiance(path string) (IrradianceRecord, error) {
	var rec IrradianceRecord
	return rec, read(path, &rec)
}

func read(path string, v interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return pkgerrors.Wrap(err, "read record")
	}
	if err := bson.Unmarshal(b, v); err != nil {
		return pkgerrors.Wrapf(err, "decode %s", filepath.Base(path))
	}
	return nil
}

// Kind reports which record type a file name belongs to.
func Kind(path string) (string, error) {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, climateSuffix+Ext):
		return "climate", nil
	case strings.HasSuffix(base, irradianceSuffix+Ext):
		return "irradiance", nil
	default:
		return "", fmt.Errorf("unrecognised record file %q", base)
	}
}
