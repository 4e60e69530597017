package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/ericogr/pyrologger/pkg/record"
)

type inspection struct {
	File      string           `json:"file"`
	Kind      string           `json:"kind"`
	Record    interface{}      `json:"record"`
	Summaries []record.Summary `json:"summaries"`
}

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Print the content and per-series statistics of record files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			for _, path := range args {
				in, err := inspect(path)
				if err != nil {
					return err
				}
				if err := enc.Encode(in); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func inspect(path string) (inspection, error) {
	kind, err := record.Kind(path)
	if err != nil {
		return inspection{}, err
	}
	in := inspection{File: path, Kind: kind}
	switch kind {
	case "climate":
		rec, err := record.ReadClimate(path)
		if err != nil {
			return in, err
		}
		in.Record, in.Summaries = rec, rec.Summaries()
	default:
		rec, err := record.ReadIrradiance(path)
		if err != nil {
			return in, err
		}
		in.Record, in.Summaries = rec, rec.Summaries()
	}
	return in, nil
}
