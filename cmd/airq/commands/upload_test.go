package commands

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/airq-project/airq/cmd/airq/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePio installs a shell script standing in for the upload tool and points
// the tool lookup at it.
func fakePio(t *testing.T, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake upload tool is a shell script")
	}
	path := filepath.Join(t.TempDir(), "pio")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	t.Setenv(directory.PioPathEnv, path)
}

func Test_RunUploadStreamsOutput(t *testing.T) {
	fakePio(t, `echo "Processing airq (platform: espressif32)"
echo "Writing at 0x00010000" 1>&2
echo SUCCESS
exit 0`)

	var lines []string
	err := RunUpload(context.Background(), UploadOptions{
		Dir:  t.TempDir(),
		Sink: func(line string) { lines = append(lines, line) },
	})
	require.NoError(t, err)
	assert.Contains(t, lines, "Processing airq (platform: espressif32)")
	assert.Contains(t, lines, "Writing at 0x00010000")
	assert.Contains(t, lines, "SUCCESS")
}

func Test_RunUploadFailureCarriesExitCodeAndOutput(t *testing.T) {
	fakePio(t, `echo "could not open port"
exit 3`)

	err := RunUpload(context.Background(), UploadOptions{Dir: t.TempDir()})
	var failed *UploadFailed
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 3, failed.ExitCode)
	assert.Contains(t, failed.Output, "could not open port")
}

func Test_RunUploadTimeoutKillsTheTool(t *testing.T) {
	fakePio(t, `echo started
exec sleep 30`)

	started := time.Now()
	err := RunUpload(context.Background(), UploadOptions{
		Dir:     t.TempDir(),
		Timeout: 300 * time.Millisecond,
	})
	var timedOut *UploadTimeout
	require.ErrorAs(t, err, &timedOut)
	assert.Contains(t, timedOut.Output, "started")
	assert.Less(t, time.Since(started), 5*time.Second)
}

func Test_RunUploadCancellationKillsTheTool(t *testing.T) {
	fakePio(t, `echo started
exec sleep 30`)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	started := time.Now()
	err := RunUpload(ctx, UploadOptions{Dir: t.TempDir(), Timeout: time.Minute})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(started), 5*time.Second)
}

func Test_RunUploadArgumentAssembly(t *testing.T) {
	fakePio(t, `echo "args: $@"
exit 0`)

	var lines []string
	err := RunUpload(context.Background(), UploadOptions{
		Dir:         t.TempDir(),
		Environment: "airq-v2",
		Port:        "/dev/ttyUSB0",
		Sink:        func(line string) { lines = append(lines, line) },
	})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "args: run --target upload --environment airq-v2 --upload-port /dev/ttyUSB0", lines[0])
}
