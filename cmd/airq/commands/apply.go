// Copyright (C) 2024 the AirQ project authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/airq-project/airq/cmd/airq/directory"
	"github.com/spf13/cobra"
)

// dialogue is the slice of Session the applier drives; tests substitute a
// scripted fake.
type dialogue interface {
	WriteLine(line string) error
	ReadFor(window time.Duration) (string, error)
	Close() error
}

// ApplyOptions carries the dialogue timings and the calibration flags.
type ApplyOptions struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
	ReplyWindow time.Duration
	Settle      time.Duration
	CalLoad     bool
	CalSave     bool
	Sink        LogSink
}

// withDefaults overlays the stored user-config defaults and the built-ins
// onto any zero-valued timing.
func (o ApplyOptions) withDefaults(stored directory.SerialDefaults) ApplyOptions {
	if o.Baud == 0 {
		o.Baud = stored.Baud
	}
	if o.Baud == 0 {
		o.Baud = DefaultBaud
	}
	if o.ReadTimeout == 0 {
		o.ReadTimeout = stored.ReadTimeout
	}
	if o.ReadTimeout == 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.ReplyWindow == 0 {
		o.ReplyWindow = stored.ReplyWindow
	}
	if o.ReplyWindow == 0 {
		o.ReplyWindow = DefaultReplyWindow
	}
	if o.Settle == 0 {
		o.Settle = stored.Settle
	}
	if o.Settle == 0 {
		o.Settle = DefaultSettle
	}
	return o
}

// ApplyConfig opens a session on the selected port and pushes the translated
// command sequence to the device. The session is closed on every exit path.
func ApplyConfig(ctx context.Context, cfg *DeviceConfig, opts ApplyOptions) error {
	session, err := OpenSession(opts.Port, opts.Baud, opts.ReadTimeout)
	if err != nil {
		return err
	}
	defer session.Close()

	return runDialogue(ctx, session, TranslateConfig(cfg, opts.CalLoad, opts.CalSave), opts)
}

// runDialogue drains boot chatter for the settle window, then sends each
// command and waits out its reply window before the next. Replies are
// surfaced to the sink but never interpreted; the device CLI reports its own
// successes and failures in readable text.
func runDialogue(ctx context.Context, session dialogue, cmds []string, opts ApplyOptions) error {
	sink := opts.Sink
	if sink == nil {
		sink = func(string) {}
	}

	chatter, err := session.ReadFor(opts.Settle)
	if chatter != "" {
		sink(chatter)
	}
	if err != nil {
		return err
	}

	for _, cmd := range cmds {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		sink("> " + cmd)
		if err := session.WriteLine(cmd); err != nil {
			return err
		}
		reply, err := session.ReadFor(opts.ReplyWindow)
		if reply != "" {
			sink(reply)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func storedSerialDefaults() (directory.SerialDefaults, error) {
	userCfg, err := directory.GetUserConfig()
	if err != nil {
		return directory.SerialDefaults{}, err
	}
	return directory.GetSerialDefaults(userCfg)
}

// applyConfigFile is the shared apply path: parse and validate the document
// first, only then resolve the port and open the transport.
func applyConfigFile(ctx context.Context, path string, opts ApplyOptions) error {
	cfg, err := ParseDeviceConfig(path)
	if err != nil {
		return err
	}

	port, err := ResolvePort(opts.Port)
	if err != nil {
		return err
	}
	opts.Port = port

	stored, err := storedSerialDefaults()
	if err != nil {
		return err
	}
	opts = opts.withDefaults(stored)

	fmt.Printf("Applying '%s' to device on port '%s' ...\n", path, port)
	if err := ApplyConfig(ctx, cfg, opts); err != nil {
		return err
	}
	fmt.Printf("Done.\n")
	return nil
}

func ApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "apply <config-file>",
		Short:        "Push a configuration document to a device",
		Long: "Apply translates a JSON or YAML configuration document into the device's\n" +
			"CLI commands and sends them over serial, printing whatever the device\n" +
			"replies. The document is validated before the port is opened.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := applyOptionsFromFlags(cmd)
			if err != nil {
				return err
			}
			return applyConfigFile(cmd.Context(), args[0], opts)
		},
	}

	addApplyFlags(cmd)
	return cmd
}

func addApplyFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("port", "p", "", "serial port of the device")
	cmd.Flags().Int("baud", 0, "baud rate for the device dialogue")
	cmd.Flags().Duration("reply-window", 0, "how long to collect a reply after each command")
	cmd.Flags().Duration("settle", 0, "how long to drain boot chatter before the first command")
	cmd.Flags().Bool("cal-load", false, "load stored calibration before saving the config")
	cmd.Flags().Bool("cal-save", false, "save the current calibration")
}

func applyOptionsFromFlags(cmd *cobra.Command) (ApplyOptions, error) {
	var opts ApplyOptions
	var err error
	if opts.Port, err = cmd.Flags().GetString("port"); err != nil {
		return opts, err
	}
	if opts.Baud, err = cmd.Flags().GetInt("baud"); err != nil {
		return opts, err
	}
	if opts.ReplyWindow, err = cmd.Flags().GetDuration("reply-window"); err != nil {
		return opts, err
	}
	if opts.Settle, err = cmd.Flags().GetDuration("settle"); err != nil {
		return opts, err
	}
	if opts.CalLoad, err = cmd.Flags().GetBool("cal-load"); err != nil {
		return opts, err
	}
	if opts.CalSave, err = cmd.Flags().GetBool("cal-save"); err != nil {
		return opts, err
	}
	opts.Sink = func(line string) { fmt.Println(line) }
	return opts, nil
}
