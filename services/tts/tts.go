// Package tts is the externalized speech-synthesis collaborator. Unlike a
// typical streaming TTS client, the contract here is artifact-based: ToTTS
// renders a full segment to a file on disk and hands back its path, and
// AudioToOpusData chunks that file into wire-ready frames afterward. This
// mirrors the source system's synthesize-then-transcode pipeline, where a
// single temp file is reused for both playback framing and diagnostics.
package tts

import (
	"context"
	"time"

	"xiaozhi-go/media"
)

// Voice describes one synthesis voice offered by an Engine.
type Voice struct {
	ID       string
	Name     string
	Gender   string
	Language string
}

// Options configures a single ToTTS call.
type Options struct {
	Voice    string
	Language string
	Speed    float64
}

// DefaultOptions returns a neutral-speed synthesis configuration.
func DefaultOptions() *Options {
	return &Options{Speed: 1.0}
}

// Engine is the text-to-speech service interface the TTS stage drives.
// Every call operates on one already-segmented piece of text (see the
// dialog engine's sentence splitter); the engine is not responsible for
// further segmentation.
type Engine interface {
	// ToTTS synthesizes text and writes the result to a temp file,
	// returning its path. The caller owns the file and must eventually
	// call DeleteAudioFile once it has been framed and sent.
	ToTTS(ctx context.Context, text string, opts *Options) (artifactPath string, err error)

	// AudioToOpusData reads the artifact at path and slices it into
	// fixed-duration frames ready for the playback stage. It does not
	// delete the file.
	AudioToOpusData(path string) (frames []media.OpusFrame, duration time.Duration, err error)

	// DeleteAudioFile removes a previously returned artifact. Returns
	// false if the file was already gone, which is not an error: cleanup
	// is best-effort and idempotent.
	DeleteAudioFile(path string) bool

	Voices() []Voice
	Name() string
	Version() string
}

// BaseEngine provides the metadata/voice bookkeeping shared by concrete
// Engine implementations.
type BaseEngine struct {
	name    string
	version string
	voices  []Voice
}

// NewBaseEngine creates a base engine carrying static metadata.
func NewBaseEngine(name, version string, voices []Voice) *BaseEngine {
	return &BaseEngine{name: name, version: version, voices: voices}
}

func (b *BaseEngine) Name() string      { return b.name }
func (b *BaseEngine) Version() string   { return b.version }
func (b *BaseEngine) Voices() []Voice   { return b.voices }
