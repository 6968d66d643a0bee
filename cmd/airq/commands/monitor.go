// Copyright (C) 2024 the AirQ project authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func MonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "monitor",
		Short:        "Monitor the serial output of a device",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			port, err := cmd.Flags().GetString("port")
			if err != nil {
				return err
			}
			if port, err = ResolvePort(port); err != nil {
				return err
			}

			baud, err := cmd.Flags().GetInt("baud")
			if err != nil {
				return err
			}
			if baud == 0 {
				baud = DefaultBaud
			}

			fmt.Printf("Starting serial monitor of port '%s' ...\n", port)
			session, err := OpenSession(port, baud, DefaultReadTimeout)
			if err != nil {
				return err
			}
			defer session.Close()

			for {
				select {
				case <-ctx.Done():
					return nil
				default:
				}
				out, err := session.ReadFor(time.Second)
				if out != "" {
					fmt.Print(out)
				}
				if err != nil {
					return err
				}
			}
		},
	}

	cmd.Flags().StringP("port", "p", "", "port to monitor")
	cmd.Flags().Int("baud", 0, "the baud rate for serial monitoring")
	return cmd
}
