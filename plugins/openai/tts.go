package openai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"xiaozhi-go/media"
	"xiaozhi-go/pkg/audio/wav"
	"xiaozhi-go/services/tts"

	openai "github.com/sashabaranov/go-openai"
)

const openaiTTSSampleRate = 24000

// Engine implements tts.Engine against the OpenAI speech API. It writes
// each synthesized segment to its own temp WAV file rather than returning
// audio in memory, so the rest of the pipeline can treat every engine the
// same way regardless of whether it streams or batches.
type Engine struct {
	*tts.BaseEngine
	client *openai.Client
	model  openai.SpeechModel
}

// NewEngine creates an OpenAI-backed TTS engine.
func NewEngine(apiKey string) *Engine {
	voices := []tts.Voice{
		{ID: "alloy", Name: "Alloy", Gender: "neutral", Language: "en"},
		{ID: "echo", Name: "Echo", Gender: "male", Language: "en"},
		{ID: "fable", Name: "Fable", Gender: "neutral", Language: "en"},
		{ID: "onyx", Name: "Onyx", Gender: "male", Language: "en"},
		{ID: "nova", Name: "Nova", Gender: "female", Language: "en"},
		{ID: "shimmer", Name: "Shimmer", Gender: "female", Language: "en"},
	}

	return &Engine{
		BaseEngine: tts.NewBaseEngine("openai-tts", "1.0", voices),
		client:     openai.NewClient(apiKey),
		model:      openai.TTSModel1HD,
	}
}

// ToTTS synthesizes text to a temp WAV file and returns its path.
func (e *Engine) ToTTS(ctx context.Context, text string, opts *tts.Options) (string, error) {
	if opts == nil {
		opts = tts.DefaultOptions()
	}
	voice := opts.Voice
	if voice == "" {
		voice = "alloy"
	}

	req := openai.CreateSpeechRequest{
		Model:          e.model,
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: "pcm",
		Speed:          opts.Speed,
	}
	if req.Speed == 0 {
		req.Speed = 1.0
	}

	start := time.Now()
	resp, err := e.client.CreateSpeech(ctx, req)
	if err != nil {
		return "", fmt.Errorf("tts: openai synthesis: %w", err)
	}
	defer resp.Close()

	pcm, err := io.ReadAll(resp)
	if err != nil {
		return "", fmt.Errorf("tts: read openai response: %w", err)
	}

	file, err := os.CreateTemp("", "xiaozhi-tts-*.wav")
	if err != nil {
		return "", fmt.Errorf("tts: create artifact: %w", err)
	}
	path := file.Name()
	file.Close()

	writer, err := wav.NewWriter(path, openaiTTSSampleRate, 1, 16)
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("tts: open artifact writer: %w", err)
	}
	if err := writer.WritePCM(pcm); err != nil {
		writer.Close()
		os.Remove(path)
		return "", fmt.Errorf("tts: write artifact: %w", err)
	}
	if err := writer.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("tts: finalize artifact: %w", err)
	}

	slog.Debug("tts synthesis complete", "bytes", len(pcm), "elapsed", time.Since(start))
	return path, nil
}

// AudioToOpusData reads a synthesized artifact and chunks it into
// fixed-duration frames. Frame duration matches the source system's 60ms
// opus frame; actual opus compression is a codec-layer concern (Non-goal),
// so these frames still carry raw PCM bytes ready for that layer.
func (e *Engine) AudioToOpusData(path string) ([]media.OpusFrame, time.Duration, error) {
	reader, err := wav.NewReader(path)
	if err != nil {
		return nil, 0, fmt.Errorf("tts: open artifact for framing: %w", err)
	}
	defer reader.Close()

	frames, err := reader.ReadFrames(60 * time.Millisecond)
	if err != nil {
		return nil, 0, fmt.Errorf("tts: frame artifact: %w", err)
	}

	total := time.Duration(len(frames)) * 60 * time.Millisecond
	return frames, total, nil
}

// DeleteAudioFile removes a synthesized artifact. Missing files are not an
// error: cleanup may race a previous delete during barge-in.
func (e *Engine) DeleteAudioFile(path string) bool {
	if path == "" {
		return false
	}
	err := os.Remove(path)
	return err == nil
}
