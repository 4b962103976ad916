// Package asr is the externalized speech-recognition collaborator. The
// session controller never talks to a microphone or a VAD directly; it
// hands the already-VAD-gated utterance buffer to a Recognizer and waits
// for one final transcript, matching the source system's turn-based ASR
// call rather than an incremental/partial-result stream.
package asr

import (
	"context"
	"time"

	"xiaozhi-go/media"
)

// Result is a single recognition outcome for one utterance.
type Result struct {
	Text       string
	Confidence float64
	Language   string
	IsFinal    bool
}

// Recognizer is the speech-to-text service interface the session controller
// needs.
type Recognizer interface {
	// Recognize transcribes one complete utterance buffer.
	Recognize(ctx context.Context, audio *media.AudioFrame) (*Result, error)

	SupportedLanguages() []string
	Name() string
	Version() string
}

// MinUtteranceDuration is the shortest audio span worth sending to a
// recognizer; shorter buffers are almost always VAD noise rather than
// speech and recognizers may reject them outright.
const MinUtteranceDuration = 100 * time.Millisecond

// BaseRecognizer provides the metadata bookkeeping shared by concrete
// Recognizer implementations.
type BaseRecognizer struct {
	name      string
	version   string
	languages []string
}

// NewBaseRecognizer creates a base recognizer carrying static metadata.
func NewBaseRecognizer(name, version string, languages []string) *BaseRecognizer {
	return &BaseRecognizer{name: name, version: version, languages: languages}
}

func (b *BaseRecognizer) Name() string                { return b.name }
func (b *BaseRecognizer) Version() string             { return b.version }
func (b *BaseRecognizer) SupportedLanguages() []string { return b.languages }
