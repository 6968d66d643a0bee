package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/airq-project/airq/cmd/airq/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDialogue records the dialogue the applier drives. Replies are keyed by
// command; the settle drain shows up as the first ReadFor.
type fakeDialogue struct {
	written  []string
	windows  []time.Duration
	replies  map[string]string
	writeErr error
	readErr  error
	lastCmd  string
	closes   int
}

func (f *fakeDialogue) WriteLine(line string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, line)
	f.lastCmd = line
	return nil
}

func (f *fakeDialogue) ReadFor(window time.Duration) (string, error) {
	f.windows = append(f.windows, window)
	if f.readErr != nil {
		return "", f.readErr
	}
	return f.replies[f.lastCmd], nil
}

func (f *fakeDialogue) Close() error {
	f.closes++
	return nil
}

func Test_RunDialogueSendsCommandsInOrder(t *testing.T) {
	fake := &fakeDialogue{replies: map[string]string{"status": "iaq=42"}}
	opts := ApplyOptions{
		Settle:      2 * time.Second,
		ReplyWindow: 1500 * time.Millisecond,
	}
	cmds := []string{"poster", "status", "node A1", "cfg save"}

	var logged []string
	opts.Sink = func(line string) { logged = append(logged, line) }

	require.NoError(t, runDialogue(context.Background(), fake, cmds, opts))
	assert.Equal(t, cmds, fake.written)

	// Settle drain first, then one reply window per command.
	require.Len(t, fake.windows, len(cmds)+1)
	assert.Equal(t, 2*time.Second, fake.windows[0])
	for _, window := range fake.windows[1:] {
		assert.Equal(t, 1500*time.Millisecond, window)
	}

	assert.Contains(t, logged, "> node A1")
	assert.Contains(t, logged, "iaq=42")
}

func Test_RunDialogueStopsOnWriteFault(t *testing.T) {
	fake := &fakeDialogue{writeErr: &TransportError{Op: "write", Port: "p", Err: errors.New("gone")}}
	err := runDialogue(context.Background(), fake, []string{"poster", "status"}, ApplyOptions{})
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Empty(t, fake.written)
}

func Test_RunDialogueStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &fakeDialogue{}
	err := runDialogue(ctx, fake, []string{"poster", "status"}, ApplyOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	// The settle drain ran, but no command was sent after cancellation.
	assert.Empty(t, fake.written)
	assert.Len(t, fake.windows, 1)
}

func Test_ApplyOptionsDefaultOverlay(t *testing.T) {
	// Flag value wins over stored value wins over built-in.
	stored := directory.SerialDefaults{
		Baud:   57600,
		Settle: 3 * time.Second,
	}

	opts := ApplyOptions{ReplyWindow: 500 * time.Millisecond}.withDefaults(stored)
	assert.Equal(t, 57600, opts.Baud)
	assert.Equal(t, DefaultReadTimeout, opts.ReadTimeout)
	assert.Equal(t, 500*time.Millisecond, opts.ReplyWindow)
	assert.Equal(t, 3*time.Second, opts.Settle)

	opts = ApplyOptions{Baud: 9600}.withDefaults(stored)
	assert.Equal(t, 9600, opts.Baud)
}
