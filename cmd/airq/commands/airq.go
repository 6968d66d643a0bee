// Copyright (C) 2024 the AirQ project authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"github.com/spf13/cobra"
)

type Info struct {
	Version string `mapstructure:"version" yaml:"version" json:"version"`
	Date    string `mapstructure:"date" yaml:"date" json:"date"`
}

func AirqCmd(info Info) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "airq",
		Short: "Provision AirQ sensor nodes over serial",
		Long: "Airq flashes and configures AirQ indoor air quality sensor nodes.\n\n" +
			"It finds the board's USB serial port, builds and uploads the firmware with\n" +
			"PlatformIO, and pushes a JSON or YAML configuration document to the device\n" +
			"as a sequence of its CLI commands, showing you what the device replies.",
	}

	cmd.AddCommand(
		PortsCmd(),
		SetPortCmd(),
		UploadCmd(),
		ApplyCmd(),
		ProvisionCmd(),
		WatchCmd(),
		MonitorCmd(),
		DoctorCmd(),
		VersionCmd(info),
	)
	return cmd
}
