package commands

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock only moves when something sleeps or reads, so ReadFor windows
// elapse deterministically without real waiting.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time        { return c.now }
func (c *fakeClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

// fakeTransport scripts read results. Each Read consumes one entry and
// advances the clock by readCost, standing in for the per-read timeout.
type fakeTransport struct {
	clock    *fakeClock
	readCost time.Duration
	reads    []fakeRead
	written  bytes.Buffer
	writeErr error
	closes   int
}

type fakeRead struct {
	data string
	err  error
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	f.clock.now = f.clock.now.Add(f.readCost)
	if len(f.reads) == 0 {
		return 0, nil
	}
	next := f.reads[0]
	f.reads = f.reads[1:]
	return copy(p, next.data), next.err
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return f.written.Write(p)
}

func (f *fakeTransport) Close() error {
	f.closes++
	return nil
}

func newFakeSession(reads ...fakeRead) (*Session, *fakeTransport) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	port := &fakeTransport{
		clock:    clock,
		readCost: 50 * time.Millisecond,
		reads:    reads,
	}
	return &Session{port: port, name: "/dev/ttyUSB0", clock: clock}, port
}

func Test_WriteLineAppendsSingleNewline(t *testing.T) {
	session, port := newFakeSession()
	require.NoError(t, session.WriteLine("status"))
	require.NoError(t, session.WriteLine("thr set co2 1000 2000"))
	assert.Equal(t, "status\nthr set co2 1000 2000\n", port.written.String())
}

func Test_WriteLineFaultIsTransportError(t *testing.T) {
	session, port := newFakeSession()
	port.writeErr = errors.New("device gone")

	err := session.WriteLine("status")
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "write", transportErr.Op)
	assert.Equal(t, "/dev/ttyUSB0", transportErr.Port)
}

func Test_ReadForConcatenatesArrivals(t *testing.T) {
	session, _ := newFakeSession(
		fakeRead{data: "OK "},
		fakeRead{data: ""},
		fakeRead{data: "status: idle\n"},
	)

	out, err := session.ReadFor(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "OK status: idle\n", out)
}

func Test_ReadForSwallowsIdleReads(t *testing.T) {
	// Nothing ever arrives; the window just elapses with no error.
	session, _ := newFakeSession()
	out, err := session.ReadFor(time.Second)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func Test_ReadForSurfacesTransportFaultWithPartialOutput(t *testing.T) {
	session, _ := newFakeSession(
		fakeRead{data: "partial"},
		fakeRead{err: errors.New("device unplugged")},
	)

	out, err := session.ReadFor(time.Second)
	assert.Equal(t, "partial", out)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "read", transportErr.Op)
}

func Test_ReadForRespectsWindow(t *testing.T) {
	// 10 chunks scripted, but a 200ms window at 50ms per read only
	// admits four attempts.
	var reads []fakeRead
	for i := 0; i < 10; i++ {
		reads = append(reads, fakeRead{data: "x"})
	}
	session, port := newFakeSession(reads...)

	out, err := session.ReadFor(200 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "xxxx", out)
	assert.Len(t, port.reads, 6)
}

func Test_CloseIsIdempotent(t *testing.T) {
	session, port := newFakeSession()
	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
	assert.Equal(t, 1, port.closes)
}

func Test_CloseAfterDialogueError(t *testing.T) {
	session, port := newFakeSession(fakeRead{err: errors.New("device unplugged")})

	_, err := session.ReadFor(time.Second)
	require.Error(t, err)
	require.NoError(t, session.Close())
	assert.Equal(t, 1, port.closes)
}
