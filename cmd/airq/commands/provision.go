// Copyright (C) 2024 the AirQ project authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func ProvisionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "provision <project-dir> <config-file>",
		Short:        "Upload firmware and apply a configuration in one go",
		Long: "Provision runs the full bring-up of a fresh board: build and upload the\n" +
			"firmware with PlatformIO, then push the configuration document over the\n" +
			"same port. If the document has no node_id, one is generated.",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			projectDir, configPath := args[0], args[1]

			opts, err := applyOptionsFromFlags(cmd)
			if err != nil {
				return err
			}

			name, err := cmd.Flags().GetString("name")
			if err != nil {
				return err
			}

			timeout, err := cmd.Flags().GetDuration("timeout")
			if err != nil {
				return err
			}

			environment, err := cmd.Flags().GetString("env")
			if err != nil {
				return err
			}

			// Validate the document before spending minutes on the
			// upload, and before the port is ever opened.
			cfg, err := ParseDeviceConfig(configPath)
			if err != nil {
				return err
			}

			if name == "" && (cfg.NodeID == nil || *cfg.NodeID == "") {
				id := uuid.New()
				name = fmt.Sprintf("airq-%x", id[:4])
			}
			if name != "" {
				cfg.NodeID = &name
			}

			port, err := ResolvePort(opts.Port)
			if err != nil {
				return err
			}
			opts.Port = port

			fmt.Printf("Uploading firmware from '%s' via port '%s' ...\n", projectDir, port)
			err = RunUpload(ctx, UploadOptions{
				Dir:         projectDir,
				Environment: environment,
				Port:        port,
				Timeout:     timeout,
				Sink:        func(line string) { fmt.Println(line) },
			})
			if err != nil {
				return err
			}

			stored, err := storedSerialDefaults()
			if err != nil {
				return err
			}
			opts = opts.withDefaults(stored)

			fmt.Printf("Configuring node '%s' ...\n", *cfg.NodeID)
			if err := ApplyConfig(ctx, cfg, opts); err != nil {
				return err
			}
			fmt.Printf("Device on '%s' provisioned as '%s'.\n", port, *cfg.NodeID)
			return nil
		},
	}

	addApplyFlags(cmd)
	cmd.Flags().String("env", "", "PlatformIO environment to build")
	cmd.Flags().Duration("timeout", DefaultUploadTimeout, "wall-clock limit for the upload")
	cmd.Flags().String("name", "", "node id for the device, generated when the document has none")
	return cmd
}
