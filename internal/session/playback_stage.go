package session

import (
	"context"
	"log/slog"
	"time"
)

// FrameSender is the outbound half of a device connection: JSON control
// frames and binary audio frames. cmd/server supplies the concrete
// websocket-backed implementation; the playback stage only needs this
// much of it, which keeps the session package free of any transport
// import.
type FrameSender interface {
	SendJSON(v interface{}) error
	SendBinary(data []byte) error
}

// PlaybackStage drains synthesized segments in order and streams their
// frames to the device, pacing each frame by its nominal duration so the
// client's jitter buffer does not run dry or overflow. It is the only
// place that writes audio to the connection, so ordering falls out of
// simply reading In in sequence.
type PlaybackStage struct {
	sender    FrameSender
	speak     *speakStatus
	sessionID string
	In        <-chan PlaybackItem
}

// NewPlaybackStage wires a playback stage to the TTS stage's output.
func NewPlaybackStage(sender FrameSender, speak *speakStatus, sessionID string, in <-chan PlaybackItem) *PlaybackStage {
	return &PlaybackStage{sender: sender, speak: speak, sessionID: sessionID, In: in}
}

// Run streams frames until In closes or ctx is canceled. In is the TTS
// stage's Out, which closes only when that stage's context ends, so Run
// lasts for the whole session rather than one reply. It emits one stop
// frame when it returns; no stop frame is sent between replies.
func (p *PlaybackStage) Run(ctx context.Context) {
	defer p.sendStop()

	for {
		select {
		case item, ok := <-p.In:
			if !ok {
				return
			}
			p.playItem(ctx, item)
		case <-ctx.Done():
			return
		}
	}
}

func (p *PlaybackStage) playItem(ctx context.Context, item PlaybackItem) {
	if p.speak.Aborted() {
		return
	}
	if item.Err != nil {
		slog.Warn("skipping playback of failed segment", "text_index", item.TextIndex, "error", item.Err)
		return
	}

	if err := p.sender.SendJSON(newTTSStartFrame(p.sessionID, item.TextIndex, item.Text)); err != nil {
		slog.Warn("failed to send tts start frame", "error", err)
		return
	}

	for _, frame := range item.Frames {
		if p.speak.Aborted() {
			return
		}
		if err := p.sender.SendBinary(frame.Data); err != nil {
			slog.Warn("failed to send audio frame", "error", err)
			return
		}

		select {
		case <-time.After(frame.Duration):
		case <-ctx.Done():
			return
		}
	}
}

func (p *PlaybackStage) sendStop() {
	if err := p.sender.SendJSON(newTTSStopFrame(p.sessionID)); err != nil {
		slog.Warn("failed to send tts stop frame", "error", err)
	}
}
