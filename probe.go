package main

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ericogr/pyrologger/pkg/config"
	"github.com/ericogr/pyrologger/pkg/pyranometer"
)

type probeResult struct {
	Port        string                  `json:"port"`
	Connected   bool                    `json:"connected"`
	Serial      int                     `json:"serial"`
	Calibrated  bool                    `json:"calibrated"`
	Calibration pyranometer.Calibration `json:"calibration"`
	Voltage     float64                 `json:"voltage"`
	Error       string                  `json:"error,omitempty"`
}

func newProbeCommand(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Query every configured pyranometer once and print what it reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			open, err := pyranometer.OpenerFor(cfg.Pyranometers.SerialDriver)
			if err != nil {
				return err
			}
			results := make([]probeResult, 0, len(cfg.Pyranometers.Ports))
			for _, port := range cfg.Pyranometers.Ports {
				link := pyranometer.NewLink(port, open, cfg.Pyranometers.BaudRate, cfg.Pyranometers.ReadTimeout())
				results = append(results, probe(link))
				if err := link.Close(); err != nil {
					logrus.WithError(err).WithField("port", port).Warn("close failed")
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}
}

func probe(link *pyranometer.Link) probeResult {
	res := probeResult{Port: link.Port(), Serial: pyranometer.SerialSentinel, Voltage: pyranometer.VoltageSentinel}
	if err := link.Connect(); err != nil {
		res.Error = err.Error()
		return res
	}
	res.Connected = true
	cal, err := link.ReadCalibration()
	if err != nil {
		res.Error = err.Error()
	} else {
		res.Calibration = cal
		res.Calibrated = true
	}
	res.Serial = link.ReadSerialNumber()
	res.Voltage = link.ReadVoltage()
	return res
}
