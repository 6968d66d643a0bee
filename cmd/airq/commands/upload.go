// Copyright (C) 2024 the AirQ project authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/airq-project/airq/cmd/airq/directory"
	"github.com/spf13/cobra"
)

const (
	// DefaultUploadTimeout is the wall-clock deadline for one pio run.
	DefaultUploadTimeout = 600 * time.Second
	// uploadPollInterval is how often process liveness is checked.
	uploadPollInterval = 100 * time.Millisecond
)

// LogSink receives live output lines during an upload or a device dialogue.
type LogSink func(line string)

// UploadOptions describes one invocation of the external upload tool.
type UploadOptions struct {
	// Dir is the project directory holding the platformio.ini manifest.
	Dir string
	// Environment selects a named build environment; empty means the
	// manifest's default.
	Environment string
	// Port overrides the tool's own port guess when non-empty.
	Port string
	// Timeout is the wall-clock deadline; zero means DefaultUploadTimeout.
	Timeout time.Duration
	// Sink receives output lines as they arrive; nil discards them.
	Sink LogSink
	// Clock defaults to the system clock.
	Clock Clock
}

// PioExecutable returns the PlatformIO executable to invoke.
func PioExecutable() string {
	if path, ok := os.LookupEnv(directory.PioPathEnv); ok {
		return path
	}
	return "pio"
}

// RunUpload builds and uploads the firmware in opts.Dir by spawning
// `pio run --target upload`. Output is streamed line-by-line to the sink as
// it arrives. If the process has not exited when the deadline passes it is
// killed and an *UploadTimeout carrying the partial output is returned; a
// non-zero natural exit returns *UploadFailed. There are no retries.
func RunUpload(ctx context.Context, opts UploadOptions) error {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultUploadTimeout
	}
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}
	sink := opts.Sink
	if sink == nil {
		sink = func(string) {}
	}

	args := []string{"run", "--target", "upload"}
	if opts.Environment != "" {
		args = append(args, "--environment", opts.Environment)
	}
	if opts.Port != "" {
		args = append(args, "--upload-port", opts.Port)
	}

	cmd := exec.Command(PioExecutable(), args...)
	cmd.Dir = opts.Dir

	// One pipe for both streams keeps lines in arrival order.
	pr, pw, err := os.Pipe()
	if err != nil {
		return err
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return fmt.Errorf("failed to start '%s': %w", PioExecutable(), err)
	}
	// The child holds its own copy of the write end; ours must go so the
	// scanner sees EOF when the child exits.
	pw.Close()

	var output strings.Builder
	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		defer pr.Close()
		scanner := bufio.NewScanner(pr)
		for scanner.Scan() {
			line := scanner.Text()
			output.WriteString(line)
			output.WriteString("\n")
			sink(line)
		}
	}()

	procDone := make(chan error, 1)
	go func() {
		procDone <- cmd.Wait()
	}()

	deadline := clock.Now().Add(timeout)
	for {
		select {
		case err := <-procDone:
			<-scanDone
			return uploadOutcome(err, output.String())
		case <-ctx.Done():
			killUpload(cmd, pr)
			<-procDone
			<-scanDone
			return ctx.Err()
		default:
		}

		if !clock.Now().Before(deadline) {
			killUpload(cmd, pr)
			<-procDone
			<-scanDone
			return &UploadTimeout{Timeout: timeout, Output: output.String()}
		}
		clock.Sleep(uploadPollInterval)
	}
}

// killUpload terminates the tool and closes the read end of the pipe, so the
// output drain cannot be held open by a surviving child of the tool.
func killUpload(cmd *exec.Cmd, pr *os.File) {
	cmd.Process.Kill()
	pr.Close()
}

func uploadOutcome(err error, output string) error {
	if err == nil {
		return nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return &UploadFailed{ExitCode: exitErr.ExitCode(), Output: output}
	}
	return err
}

func UploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "upload <project-dir>",
		Short:        "Build and upload the firmware with PlatformIO",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			port, err := cmd.Flags().GetString("port")
			if err != nil {
				return err
			}
			if port == "" {
				port = ConfiguredPort()
			}

			environment, err := cmd.Flags().GetString("env")
			if err != nil {
				return err
			}

			timeout, err := cmd.Flags().GetDuration("timeout")
			if err != nil {
				return err
			}

			fmt.Printf("Uploading firmware from '%s' ...\n", args[0])
			return RunUpload(ctx, UploadOptions{
				Dir:         args[0],
				Environment: environment,
				Port:        port,
				Timeout:     timeout,
				Sink:        func(line string) { fmt.Println(line) },
			})
		},
	}

	cmd.Flags().StringP("port", "p", "", "serial port to upload via")
	cmd.Flags().String("env", "", "PlatformIO environment to build")
	cmd.Flags().Duration("timeout", DefaultUploadTimeout, "wall-clock limit for the upload")
	return cmd
}
