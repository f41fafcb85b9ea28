package scanner

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nullWriter{}, nil))
}

// fakeSource replays symbols as frames; the paired decode func reads the
// symbol back out of a channel so tests control exactly what each frame
// "contains".
type fakeSource struct {
	openErr error
	frames  chan string
	fail    chan error
	decoded chan string
	closed  bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		frames:  make(chan string, 64),
		fail:    make(chan error, 1),
		decoded: make(chan string, 64),
	}
}

func (f *fakeSource) Open(ctx context.Context) error { return f.openErr }

func (f *fakeSource) Next(ctx context.Context) (image.Image, error) {
	select {
	case err := <-f.fail:
		return nil, err
	case sym := <-f.frames:
		f.decoded <- sym
		return image.NewGray(image.Rect(0, 0, 2, 2)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSource) decodeFunc() DecodeFunc {
	return func(image.Image) (string, bool) {
		sym := <-f.decoded
		return sym, sym != ""
	}
}

func newTestAdapter(src *fakeSource, window time.Duration) *Adapter {
	a := New(Config{Interval: time.Millisecond, DebounceWindow: window}, testLogger())
	a.decode = src.decodeFunc()
	return a
}

func collect(t *testing.T, a *Adapter, n int, timeout time.Duration) []Detection {
	t.Helper()
	var out []Detection
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case d := <-a.Detections():
			out = append(out, d)
		case <-deadline:
			return out
		}
	}
	return out
}

func TestCameraUnavailable(t *testing.T) {
	src := newFakeSource()
	src.openErr = errors.New("device busy")

	a := newTestAdapter(src, time.Second)
	err := a.Start(src)
	require.ErrorIs(t, err, ErrCameraUnavailable)
	assert.Equal(t, StateIdle, a.State())
	assert.Nil(t, a.CaptureStill())
}

func TestStartStopLifecycle(t *testing.T) {
	src := newFakeSource()
	a := newTestAdapter(src, time.Second)

	require.NoError(t, a.Start(src))
	assert.Equal(t, StateActive, a.State())
	assert.ErrorIs(t, a.Start(src), ErrAlreadyActive)

	epoch := a.Epoch()
	a.Stop()
	assert.Equal(t, StateIdle, a.State())
	assert.True(t, src.closed)
	assert.Greater(t, a.Epoch(), epoch)

	// Idempotent.
	a.Stop()
	assert.Equal(t, StateIdle, a.State())
}

func TestDuplicateScanSuppression(t *testing.T) {
	src := newFakeSource()
	a := newTestAdapter(src, 150*time.Millisecond)
	require.NoError(t, a.Start(src))
	defer a.Stop()

	// Two sightings inside the window emit once.
	src.frames <- "4800016641503"
	src.frames <- "4800016641503"

	got := collect(t, a, 2, 100*time.Millisecond)
	require.Len(t, got, 1)
	assert.Equal(t, "4800016641503", got[0].Symbol)

	// After the window the same barcode scans again.
	time.Sleep(200 * time.Millisecond)
	src.frames <- "4800016641503"
	got = collect(t, a, 1, time.Second)
	require.Len(t, got, 1)
}

func TestDistinctSymbolsArriveInOrder(t *testing.T) {
	src := newFakeSource()
	a := newTestAdapter(src, time.Second)
	require.NoError(t, a.Start(src))
	defer a.Stop()

	src.frames <- "111"
	src.frames <- "222"
	src.frames <- "333"

	got := collect(t, a, 3, time.Second)
	require.Len(t, got, 3)
	assert.Equal(t, "111", got[0].Symbol)
	assert.Equal(t, "222", got[1].Symbol)
	assert.Equal(t, "333", got[2].Symbol)
}

func TestCaptureStill(t *testing.T) {
	src := newFakeSource()
	a := newTestAdapter(src, time.Second)

	assert.Nil(t, a.CaptureStill(), "idle adapter has no frame")

	require.NoError(t, a.Start(src))
	defer a.Stop()

	// Feed one frame that decodes to nothing so only lastFrame updates.
	src.frames <- ""
	require.Eventually(t, func() bool {
		return a.CaptureStill() != nil
	}, time.Second, 5*time.Millisecond)

	jpg := a.CaptureStill()
	require.NotEmpty(t, jpg)
	// JPEG SOI marker.
	assert.Equal(t, []byte{0xff, 0xd8}, jpg[:2])
}

func TestFatalFrameErrorReturnsToIdle(t *testing.T) {
	src := newFakeSource()
	a := newTestAdapter(src, time.Second)
	require.NoError(t, a.Start(src))
	epoch := a.Epoch()

	src.fail <- errors.New("stream reset by peer")

	require.Eventually(t, func() bool {
		return a.State() == StateIdle
	}, time.Second, 5*time.Millisecond)
	assert.True(t, src.closed)
	assert.Greater(t, a.Epoch(), epoch)

	// Stop after a failed session is still safe.
	a.Stop()
}

func TestDebouncerWindow(t *testing.T) {
	d := newDebouncer(2 * time.Second)
	now := time.Now()

	assert.True(t, d.accept("S", now))
	assert.False(t, d.accept("S", now.Add(time.Second)))
	assert.True(t, d.accept("S", now.Add(2*time.Second)))
	assert.True(t, d.accept("T", now), "distinct symbols are independent")
}

func TestDebouncerDoesNotExtendOnSuppressedRepeat(t *testing.T) {
	d := newDebouncer(time.Second)
	now := time.Now()

	require.True(t, d.accept("S", now))
	// Continuous sightings inside the window.
	for i := 1; i < 10; i++ {
		d.accept("S", now.Add(time.Duration(i)*100*time.Millisecond))
	}
	assert.True(t, d.accept("S", now.Add(time.Second)), "window anchored at first emit")
}
