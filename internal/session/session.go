// Package session implements the per-connection controller: the state
// machine that turns a device's raw audio and control frames into a
// spoken reply, coordinating VAD, ASR, the dialog engine, TTS and
// playback for the lifetime of one websocket connection.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"xiaozhi-go/internal/auth"
	"xiaozhi-go/internal/config"
	"xiaozhi-go/internal/metrics"
	"xiaozhi-go/media"
	"xiaozhi-go/services/asr"
	"xiaozhi-go/services/intent"
	"xiaozhi-go/services/llm"
	"xiaozhi-go/services/memory"
	"xiaozhi-go/services/tools"
	"xiaozhi-go/services/tts"
	"xiaozhi-go/services/vad"
)

// Collaborators bundles the externalized services a session needs.
// Remote may be nil when a device's config has no tool server configured.
type Collaborators struct {
	VAD    vad.Detector
	ASR    asr.Recognizer
	LLM    llm.LLM
	TTS    tts.Engine
	Memory memory.Store
	Intent intent.Classifier
	Tools  *tools.ToolRegistry
	Remote *tools.RemoteManager
}

// Session is one device's connection, from authentication to teardown.
type Session struct {
	ID       string
	DeviceID string
	ClientID string

	cfg          *config.Config
	sender       FrameSender
	deviceClient *config.DeviceConfigClient
	rebuild      RebuildFunc

	mu     sync.Mutex
	collab Collaborators

	dialogue *Dialogue
	speak    *speakStatus
	ttsStage *TTSStage
	playback *PlaybackStage
	engine   *DialogEngine
	idle     *IdleTimeoutWatcher

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	audioMu      sync.Mutex
	userSpeaking bool
	utteranceBuf []byte
	audioFormat  media.AudioFormat
}

// NewSession authenticates the connection, sends the welcome frame, and
// starts the TTS/playback/idle-timeout machinery. The caller still owns
// the underlying websocket connection — Session only reads frames handed
// to it via HandleAudioFrame and writes through sender.
func NewSession(parentCtx context.Context, cfg *config.Config, sender FrameSender, authn auth.Authenticator, deviceClient *config.DeviceConfigClient, collab Collaborators, rebuild RebuildFunc, headers http.Header, query map[string][]string) (*Session, error) {
	claims, err := authn.Authenticate(headers, query)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(parentCtx)
	id := uuid.New().String()

	dialogue := NewDialogue("")
	speak := newSpeakStatus()

	s := &Session{
		ID:           id,
		DeviceID:     claims.DeviceID,
		ClientID:     claims.ClientID,
		cfg:          cfg,
		sender:       sender,
		deviceClient: deviceClient,
		rebuild:      rebuild,
		collab:       collab,
		dialogue:     dialogue,
		speak:        speak,
		ctx:          ctx,
		cancel:       cancel,
		audioFormat:  media.AudioFormat16kHz16BitMono,
	}

	s.ttsStage = NewTTSStage(ctx, id, collab.TTS, speak, DefaultTTSTimeout)
	s.playback = NewPlaybackStage(sender, speak, id, s.ttsStage.Out)
	s.engine = s.newDialogEngineLocked()
	s.idle = NewIdleTimeoutWatcher(cfg.CloseConnectionNoVoiceTime, func() {
		s.Close(ErrIdleTimeout)
	})

	go s.playback.Run(ctx)

	if err := sender.SendJSON(WelcomeFrame{Type: "hello", Welcome: cfg.WelcomeObject(id)}); err != nil {
		cancel()
		return nil, fmt.Errorf("session: send welcome frame: %w", err)
	}

	if collab.Remote != nil {
		if err := collab.Remote.InitializeServers(ctx); err != nil {
			slog.Warn("remote tool discovery failed", "session", id, "error", err)
		}
	}
	if collab.Memory != nil {
		if err := collab.Memory.InitMemory(ctx, claims.DeviceID, collab.LLM); err != nil {
			slog.Warn("memory init failed", "session", id, "error", err)
		}
	}

	metrics.ActiveSessions.Inc()
	go s.loadPrivateConfig(ctx)

	return s, nil
}

// newDialogEngineLocked builds a DialogEngine from the current
// collaborator set. Called with mu held, or during construction before
// any other goroutine can see s.
func (s *Session) newDialogEngineLocked() *DialogEngine {
	return NewDialogEngine(s.ID, s.collab.LLM, s.collab.Tools, s.collab.Remote, s.collab.Memory, s.dialogue, s.speak, s.ttsStage)
}

// HandleAudioFrame feeds one inbound PCM frame through VAD, buffering the
// active utterance and kicking off recognition once VAD reports its end.
// A speech-start event is also the barge-in signal: it aborts whatever
// reply is currently being synthesized or played back.
func (s *Session) HandleAudioFrame(frame *media.AudioFrame) error {
	s.idle.Reset()

	s.mu.Lock()
	detector := s.collab.VAD
	s.mu.Unlock()
	if detector == nil {
		return nil
	}

	event, err := detector.Detect(s.ctx, frame)
	if err != nil {
		return fmt.Errorf("session: vad detect: %w", err)
	}

	s.audioMu.Lock()
	if event != nil {
		switch event.Type {
		case vad.EventSpeechStart:
			s.speak.Abort()
			s.userSpeaking = true
			s.utteranceBuf = s.utteranceBuf[:0]
		case vad.EventSpeechEnd:
			s.userSpeaking = false
			buf := make([]byte, len(s.utteranceBuf))
			copy(buf, s.utteranceBuf)
			s.utteranceBuf = s.utteranceBuf[:0]
			s.audioMu.Unlock()
			go s.finishUtterance(buf)
			return nil
		}
	}
	if s.userSpeaking {
		s.utteranceBuf = append(s.utteranceBuf, frame.Data...)
	}
	s.audioMu.Unlock()

	return nil
}

// finishUtterance recognizes a completed utterance buffer and, unless it
// names an exit command, hands the transcript to the dialog engine.
func (s *Session) finishUtterance(buf []byte) {
	utterance := media.NewAudioFrame(buf, s.audioFormat)
	if utterance.Duration < asr.MinUtteranceDuration {
		return
	}

	s.mu.Lock()
	recognizer := s.collab.ASR
	s.mu.Unlock()
	if recognizer == nil {
		return
	}

	result, err := recognizer.Recognize(s.ctx, utterance)
	if err != nil {
		slog.Warn("recognition failed", "session", s.ID, "error", err)
		return
	}
	text := strings.TrimSpace(result.Text)
	if text == "" {
		return
	}

	if err := s.sender.SendJSON(STTFrame{Type: "stt", Text: text}); err != nil {
		slog.Warn("failed to send stt frame", "session", s.ID, "error", err)
	}

	if s.isExitCommand(text) {
		s.Close(nil)
		return
	}

	s.mu.Lock()
	classifier := s.collab.Intent
	s.mu.Unlock()

	mode := intent.ModeNoIntent
	if classifier != nil {
		mode = classifier.Mode()
	}

	switch mode {
	case intent.ModeFunctionCall:
		// Classification happens inline as part of chat: the model sees
		// the tool definitions and decides for itself.
		if err := s.engine.Chat(s.ctx, text, true); err != nil {
			slog.Warn("dialog round failed", "session", s.ID, "error", err)
		}

	case intent.ModeIntentLLM:
		classification, err := classifier.Classify(s.ctx, text)
		if err != nil {
			slog.Warn("intent classification failed", "session", s.ID, "error", err)
			if err := s.engine.Chat(s.ctx, text, false); err != nil {
				slog.Warn("dialog round failed", "session", s.ID, "error", err)
			}
			return
		}
		if classification.Intent == "" {
			if err := s.engine.Chat(s.ctx, text, false); err != nil {
				slog.Warn("dialog round failed", "session", s.ID, "error", err)
			}
			return
		}
		if err := s.engine.ChatIntent(s.ctx, text, classification); err != nil {
			slog.Warn("intent dialog round failed", "session", s.ID, "error", err)
		}

	default: // nointent
		if err := s.engine.Chat(s.ctx, text, false); err != nil {
			slog.Warn("dialog round failed", "session", s.ID, "error", err)
		}
	}
}

// isExitCommand reports whether text matches one of the configured exit
// phrases exactly, case-insensitively.
func (s *Session) isExitCommand(text string) bool {
	for _, cmd := range s.cfg.ExitCommands {
		if strings.EqualFold(text, cmd) {
			return true
		}
	}
	return false
}

// Close tears the session down exactly once. reason is nil for a normal
// client-initiated close; a non-nil reason (ErrIdleTimeout, for example)
// is recorded in the teardown metric. The underlying connection is not
// closed here — the caller (cmd/server) does that once Close returns.
func (s *Session) Close(reason error) {
	s.closeOnce.Do(func() {
		s.idle.Stop()

		s.mu.Lock()
		remote := s.collab.Remote
		memStore := s.collab.Memory
		s.mu.Unlock()

		if remote != nil {
			if err := remote.CleanupAll(context.Background()); err != nil {
				slog.Warn("remote tool cleanup failed", "session", s.ID, "error", err)
			}
		}

		s.cancel()

		if memStore != nil {
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := memStore.SaveMemory(saveCtx, s.dialogue.Messages()); err != nil {
				slog.Warn("memory save failed", "session", s.ID, "error", err)
			}
			cancel()
		}

		label := "client"
		if reason == ErrIdleTimeout {
			label = "idle_timeout"
		} else if reason != nil {
			label = "error"
		}
		metrics.ActiveSessions.Dec()
		metrics.SessionsTotal.WithLabelValues(label).Inc()
	})
}

// Done is closed once the session's context is canceled, for callers that
// need to know when to stop reading from the connection.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}
