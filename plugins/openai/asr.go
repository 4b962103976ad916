package openai

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"xiaozhi-go/media"
	"xiaozhi-go/services/asr"

	openai "github.com/sashabaranov/go-openai"
)

// WhisperASR implements asr.Recognizer against OpenAI's Whisper
// transcription API. Recognition is whole-utterance: the session
// controller hands it the full VAD-delimited buffer once speech has ended,
// matching how Whisper itself works best (no true partial-result stream).
type WhisperASR struct {
	*asr.BaseRecognizer
	client *openai.Client
	model  string
}

// NewWhisperASR creates a new Whisper-backed recognizer.
func NewWhisperASR(apiKey string) *WhisperASR {
	supportedLangs := []string{
		"en", "zh", "de", "es", "ru", "ko", "fr", "ja", "pt", "tr", "pl", "ca", "nl",
		"ar", "sv", "it", "id", "hi", "fi", "vi", "he", "uk", "el", "ms", "cs", "ro",
	}
	return &WhisperASR{
		BaseRecognizer: asr.NewBaseRecognizer("whisper", "1.0.0", supportedLangs),
		client:         openai.NewClient(apiKey),
		model:          openai.Whisper1,
	}
}

// Recognize transcribes one utterance buffer via the Whisper API.
func (w *WhisperASR) Recognize(ctx context.Context, audio *media.AudioFrame) (*asr.Result, error) {
	if audio.IsEmpty() || audio.Duration < asr.MinUtteranceDuration {
		return &asr.Result{IsFinal: true}, nil
	}

	wavData, err := wrapPCMAsWAV(audio)
	if err != nil {
		return nil, fmt.Errorf("asr: wrap pcm as wav: %w", err)
	}

	req := openai.AudioRequest{
		Model:    w.model,
		Format:   openai.AudioResponseFormatJSON,
		Reader:   bytes.NewReader(wavData),
		FilePath: "audio.wav",
	}

	resp, err := w.client.CreateTranscription(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("asr: whisper transcription: %w", err)
	}

	confidence := 0.95
	if len(resp.Segments) > 0 {
		total := 0.0
		for _, seg := range resp.Segments {
			total += 1.0 - seg.NoSpeechProb
		}
		confidence = total / float64(len(resp.Segments))
	}

	return &asr.Result{
		Text:       resp.Text,
		Confidence: confidence,
		Language:   resp.Language,
		IsFinal:    true,
	}, nil
}

// wrapPCMAsWAV prepends a minimal RIFF/WAVE header to a raw PCM audio
// frame so it can be uploaded as a regular .wav file.
func wrapPCMAsWAV(audio *media.AudioFrame) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("RIFF")
	if err := binary.Write(&buf, binary.LittleEndian, uint32(36+len(audio.Data))); err != nil {
		return nil, err
	}
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	if err := binary.Write(&buf, binary.LittleEndian, uint32(16)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint16(1)); err != nil { // PCM
		return nil, err
	}
	numChannels := uint16(audio.Format.Channels)
	if err := binary.Write(&buf, binary.LittleEndian, numChannels); err != nil {
		return nil, err
	}
	sampleRate := uint32(audio.Format.SampleRate)
	if err := binary.Write(&buf, binary.LittleEndian, sampleRate); err != nil {
		return nil, err
	}
	bitsPerSample := uint16(audio.Format.BitsPerSample)
	byteRate := sampleRate * uint32(numChannels) * uint32(bitsPerSample) / 8
	if err := binary.Write(&buf, binary.LittleEndian, byteRate); err != nil {
		return nil, err
	}
	blockAlign := numChannels * bitsPerSample / 8
	if err := binary.Write(&buf, binary.LittleEndian, blockAlign); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, bitsPerSample); err != nil {
		return nil, err
	}

	buf.WriteString("data")
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(audio.Data))); err != nil {
		return nil, err
	}
	buf.Write(audio.Data)

	return buf.Bytes(), nil
}
