package session

import (
	"context"
	"testing"
	"time"

	"github.com/matryer/is"

	"xiaozhi-go/internal/config"
	"xiaozhi-go/media"
	"xiaozhi-go/services/llm"
	"xiaozhi-go/services/vad"
)

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.CloseConnectionNoVoiceTime = time.Hour // idle watcher never fires mid-test
	cfg.ExitCommands = []string{"再见"}
	cfg.Xiaozhi = map[string]interface{}{"greeting": "你好"}
	return cfg
}

func TestSessionEndToEndUtteranceProducesSpokenReply(t *testing.T) {
	is := is.New(t)

	fakeModel := newFakeLLM([]llm.ChatCompletionChunk{
		{Delta: llm.MessageDelta{Content: "你好呀。"}},
	})
	vadDetector := newFakeVAD(
		&vad.Event{Type: vad.EventSpeechStart},
		&vad.Event{Type: vad.EventSpeechEnd},
	)
	asrRecognizer := newFakeASR("你好")
	mem := &fakeMemory{}

	collab := Collaborators{
		VAD:    vadDetector,
		ASR:    asrRecognizer,
		LLM:    fakeModel,
		TTS:    newFakeTTS(),
		Memory: mem,
	}

	sender := &fakeSender{}
	sess, err := NewSession(context.Background(), newTestConfig(), sender, fakeAuthenticator{}, nil, collab, nil, nil, nil)
	is.NoErr(err)
	defer sess.Close(nil)

	speechStartFrame := media.NewAudioFrame(make([]byte, 4000), media.AudioFormat16kHz16BitMono)
	speechEndFrame := media.NewAudioFrame(make([]byte, 320), media.AudioFormat16kHz16BitMono)

	is.NoErr(sess.HandleAudioFrame(speechStartFrame))
	is.NoErr(sess.HandleAudioFrame(speechEndFrame))

	// finishUtterance runs in its own goroutine; give it a moment.
	deadline := time.After(time.Second)
	for {
		found := false
		for _, f := range sender.jsonFrames() {
			if _, ok := f.(STTFrame); ok {
				found = true
			}
		}
		if found {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for stt frame")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestSessionExitCommandClosesSession(t *testing.T) {
	is := is.New(t)

	asrRecognizer := newFakeASR("再见")
	vadDetector := newFakeVAD(
		&vad.Event{Type: vad.EventSpeechStart},
		&vad.Event{Type: vad.EventSpeechEnd},
	)

	collab := Collaborators{
		VAD: vadDetector,
		ASR: asrRecognizer,
		TTS: newFakeTTS(),
	}

	sender := &fakeSender{}
	sess, err := NewSession(context.Background(), newTestConfig(), sender, fakeAuthenticator{}, nil, collab, nil, nil, nil)
	is.NoErr(err)
	defer sess.Close(nil)

	startFrame := media.NewAudioFrame(make([]byte, 4000), media.AudioFormat16kHz16BitMono)
	endFrame := media.NewAudioFrame(make([]byte, 320), media.AudioFormat16kHz16BitMono)
	is.NoErr(sess.HandleAudioFrame(startFrame))
	is.NoErr(sess.HandleAudioFrame(endFrame))

	select {
	case <-sess.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not close after exit command")
	}
}
