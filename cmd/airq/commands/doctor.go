// Copyright (C) 2024 the AirQ project authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/airq-project/airq/cmd/airq/directory"
	"github.com/spf13/cobra"
)

func DoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "doctor",
		Short:        "Check that the external tools and configuration are in place",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pio := PioExecutable()
			path, err := exec.LookPath(pio)
			if err != nil {
				return fmt.Errorf("'%s' was not found on the PATH. Install PlatformIO Core "+
					"(https://platformio.org/install/cli) or point %s at it",
					pio, directory.PioPathEnv)
			}
			fmt.Printf("PlatformIO:\t%s\n", path)

			out, err := exec.CommandContext(ctx, pio, "--version").Output()
			if err != nil {
				return fmt.Errorf("'%s --version' failed: %w", pio, err)
			}
			fmt.Printf("Version:\t%s\n", strings.TrimSpace(string(out)))

			configPath, err := directory.GetUserConfigPath()
			if err == nil {
				fmt.Printf("User config:\t%s\n", configPath)
			}
			if port := ConfiguredPort(); port != "" {
				attached := "not attached"
				if PortExists(port) {
					attached = "attached"
				}
				fmt.Printf("Serial port:\t%s (%s)\n", port, attached)
			} else {
				fmt.Printf("Serial port:\tnot set, will auto-select\n")
			}
			return nil
		},
	}
	return cmd
}
