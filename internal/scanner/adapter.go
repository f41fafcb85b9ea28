// Package scanner turns a live camera stream into an ordered sequence of
// decoded barcode events.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"
)

// State is the adapter lifecycle. There is no paused state; suspension is a
// full stop and start.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateActive
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	default:
		return "idle"
	}
}

// Detection is one physically distinct scan. Epoch identifies the scan
// session that produced it; consumers discard detections from a session
// that has since been stopped.
type Detection struct {
	Symbol string    `json:"symbol"`
	At     time.Time `json:"at"`
	Epoch  uint64    `json:"-"`
}

// Config tunes the adapter.
type Config struct {
	// Interval between frame analyses. Default 100ms (~10 fps).
	Interval time.Duration
	// DebounceWindow suppresses repeats of the same symbol. Default 2s.
	DebounceWindow time.Duration
	// Formats to decode; see DefaultFormats.
	Formats []string
}

// Adapter owns the decode loop. All exported methods are safe for
// concurrent use.
type Adapter struct {
	mu        sync.Mutex
	state     State
	epoch     uint64
	cancel    context.CancelFunc
	done      chan struct{}
	source    FrameSource
	lastFrame image.Image

	interval   time.Duration
	deb        *debouncer
	decode     DecodeFunc
	detections chan Detection
	logger     *slog.Logger
}

// New constructs an idle adapter.
func New(cfg Config, logger *slog.Logger) *Adapter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	window := cfg.DebounceWindow
	if window <= 0 {
		window = 2 * time.Second
	}
	return &Adapter{
		interval:   interval,
		deb:        newDebouncer(window),
		decode:     NewOneDDecoder(cfg.Formats),
		detections: make(chan Detection, 16),
		logger:     logger,
	}
}

// Detections is the stream of decoded symbols, strictly in detection order.
// The channel persists across scan sessions; filter on Detection.Epoch.
func (a *Adapter) Detections() <-chan Detection {
	return a.detections
}

// State returns the current lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Epoch returns the current session epoch. It advances on every start and
// stop, so a captured value identifies exactly one camera-active lifetime.
func (a *Adapter) Epoch() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.epoch
}

// Start opens the frame source and begins the decode loop. On open failure
// the adapter returns directly to idle and the error wraps
// ErrCameraUnavailable.
func (a *Adapter) Start(src FrameSource) error {
	a.mu.Lock()
	if a.state != StateIdle {
		a.mu.Unlock()
		return ErrAlreadyActive
	}
	a.state = StateStarting
	a.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())

	if err := src.Open(runCtx); err != nil {
		cancel()
		a.mu.Lock()
		a.state = StateIdle
		a.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}

	a.mu.Lock()
	a.epoch++
	epoch := a.epoch
	a.state = StateActive
	a.cancel = cancel
	a.source = src
	a.done = make(chan struct{})
	a.deb.reset()
	a.lastFrame = nil
	done := a.done
	a.mu.Unlock()

	go a.loop(runCtx, src, epoch, done)
	return nil
}

// Stop releases the camera and ends the decode loop. Idempotent.
func (a *Adapter) Stop() {
	a.mu.Lock()
	if a.state == StateIdle {
		a.mu.Unlock()
		return
	}
	cancel := a.cancel
	src := a.source
	done := a.done
	a.toIdleLocked()
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if src != nil {
		_ = src.Close()
	}
	if done != nil {
		<-done
	}
}

// CaptureStill returns the most recent frame encoded as JPEG, or nil when
// the stream is not active.
func (a *Adapter) CaptureStill() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateActive || a.lastFrame == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, a.lastFrame, &jpeg.Options{Quality: 85}); err != nil {
		a.logger.Warn("encode still frame", slog.Any("error", err))
		return nil
	}
	return buf.Bytes()
}

// toIdleLocked resets session state. Epoch advances so in-flight work keyed
// to the old session can be recognized as stale.
func (a *Adapter) toIdleLocked() {
	a.state = StateIdle
	a.epoch++
	a.cancel = nil
	a.source = nil
	a.done = nil
	a.lastFrame = nil
	a.deb.reset()
}

func (a *Adapter) loop(ctx context.Context, src FrameSource, epoch uint64, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		img, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logger.Error("frame source failed, stopping scanner", slog.Any("error", err))
			a.failSession(epoch, src)
			return
		}

		a.mu.Lock()
		if a.epoch != epoch {
			a.mu.Unlock()
			return
		}
		a.lastFrame = img
		a.mu.Unlock()

		symbol, ok := a.decode(img)
		if !ok {
			continue
		}

		now := time.Now()
		a.mu.Lock()
		emit := a.epoch == epoch && a.deb.accept(symbol, now)
		a.mu.Unlock()
		if !emit {
			continue
		}

		select {
		case a.detections <- Detection{Symbol: symbol, At: now, Epoch: epoch}:
		case <-ctx.Done():
			return
		}
	}
}

// failSession transitions to idle after a fatal mid-stream error, unless a
// newer session has already taken over.
func (a *Adapter) failSession(epoch uint64, src FrameSource) {
	a.mu.Lock()
	if a.epoch != epoch || a.state != StateActive {
		a.mu.Unlock()
		return
	}
	cancel := a.cancel
	a.done = nil // this goroutine closes done itself
	a.toIdleLocked()
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = src.Close()
}
