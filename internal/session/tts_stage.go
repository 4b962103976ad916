package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"xiaozhi-go/media"
	"xiaozhi-go/services/tts"
)

// DefaultTTSTimeout bounds a single segment's synthesis call. A segment
// that times out is dropped — its neighbors still play — rather than
// stalling the whole reply.
const DefaultTTSTimeout = 10 * time.Second

// maxConcurrentTTSJobs bounds how many segments synthesize at once. The
// teacher does not reach for an errgroup or semaphore package for this
// kind of pool; a buffered channel used as a semaphore is the idiom
// carried forward here.
const maxConcurrentTTSJobs = 10

// PlaybackItem is one synthesized segment ready for ordered delivery to
// the client, or a record of why it could not be produced.
type PlaybackItem struct {
	TextIndex int
	Text      string
	Frames    []media.OpusFrame
	Duration  time.Duration
	Err       error
}

// ttsResult is the internal completion record a synthesis goroutine
// writes once, whether it succeeded or failed.
type ttsResult struct {
	item PlaybackItem
}

// TTSStage synthesizes segments with bounded parallelism but delivers them
// to Out strictly in submission order: a slow segment blocks delivery of
// everything behind it, even if those later segments finished first. This
// head-of-line behavior is intentional — playback order must match the
// reply's text order.
type TTSStage struct {
	engineMu sync.RWMutex
	engine   tts.Engine

	speak   *speakStatus
	timeout time.Duration

	sem       chan struct{}
	order     chan chan ttsResult
	Out       chan PlaybackItem
	sessionID string
}

// SetEngine swaps the synthesis engine in use, for when a device's
// private config arrives after the session has already started and names
// a different TTS module than the server default.
func (t *TTSStage) SetEngine(engine tts.Engine) {
	t.engineMu.Lock()
	defer t.engineMu.Unlock()
	t.engine = engine
}

func (t *TTSStage) currentEngine() tts.Engine {
	t.engineMu.RLock()
	defer t.engineMu.RUnlock()
	return t.engine
}

// NewTTSStage creates a TTS stage bound to one session's engine and
// barge-in flag, draining completed segments onto Out in order.
func NewTTSStage(ctx context.Context, sessionID string, engine tts.Engine, speak *speakStatus, timeout time.Duration) *TTSStage {
	if timeout <= 0 {
		timeout = DefaultTTSTimeout
	}
	stage := &TTSStage{
		engine:    engine,
		speak:     speak,
		timeout:   timeout,
		sem:       make(chan struct{}, maxConcurrentTTSJobs),
		order:     make(chan chan ttsResult, 256),
		Out:       make(chan PlaybackItem, 256),
		sessionID: sessionID,
	}
	go stage.deliverLoop(ctx)
	return stage
}

// Submit queues a segment for synthesis. It never blocks on synthesis
// itself — only on the (generously buffered) ordering queue, so the
// dialog engine can keep streaming while TTS catches up.
func (t *TTSStage) Submit(ctx context.Context, seg Segment) {
	resultCh := make(chan ttsResult, 1)

	select {
	case t.order <- resultCh:
	case <-ctx.Done():
		return
	}

	go t.synthesize(ctx, seg, resultCh)
}

func (t *TTSStage) synthesize(ctx context.Context, seg Segment, resultCh chan<- ttsResult) {
	select {
	case t.sem <- struct{}{}:
	case <-ctx.Done():
		resultCh <- ttsResult{item: PlaybackItem{TextIndex: seg.TextIndex, Text: seg.Text, Err: ctx.Err()}}
		return
	}
	defer func() { <-t.sem }()

	if t.speak.Aborted() {
		resultCh <- ttsResult{item: PlaybackItem{TextIndex: seg.TextIndex, Text: seg.Text, Err: context.Canceled}}
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	engine := t.currentEngine()
	path, err := engine.ToTTS(jobCtx, seg.Text, tts.DefaultOptions())
	if err != nil {
		if jobCtx.Err() != nil {
			err = fmt.Errorf("%w: %v", ErrTTSTimeout, err)
		}
		slog.Warn("tts segment failed", "text_index", seg.TextIndex, "error", err)
		resultCh <- ttsResult{item: PlaybackItem{TextIndex: seg.TextIndex, Text: seg.Text, Err: err}}
		return
	}
	defer engine.DeleteAudioFile(path)

	frames, duration, err := engine.AudioToOpusData(path)
	if err != nil {
		slog.Warn("tts framing failed", "text_index", seg.TextIndex, "error", err)
		resultCh <- ttsResult{item: PlaybackItem{TextIndex: seg.TextIndex, Text: seg.Text, Err: err}}
		return
	}

	t.speak.ObserveSegment(seg.TextIndex)
	resultCh <- ttsResult{item: PlaybackItem{
		TextIndex: seg.TextIndex,
		Text:      seg.Text,
		Frames:    frames,
		Duration:  duration,
	}}
}

// deliverLoop drains completed jobs in submission order and forwards them
// to Out, polling for context cancellation every second so a teardown
// does not have to wait on a job that will never complete.
func (t *TTSStage) deliverLoop(ctx context.Context) {
	defer close(t.Out)
	for {
		select {
		case resultCh, ok := <-t.order:
			if !ok {
				return
			}
			t.awaitAndForward(ctx, resultCh)
		case <-ctx.Done():
			return
		}
	}
}

func (t *TTSStage) awaitAndForward(ctx context.Context, resultCh chan ttsResult) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case result := <-resultCh:
			select {
			case t.Out <- result.item:
			case <-ctx.Done():
			}
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
