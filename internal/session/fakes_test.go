package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"xiaozhi-go/internal/auth"
	"xiaozhi-go/media"
	"xiaozhi-go/services/asr"
	"xiaozhi-go/services/llm"
	"xiaozhi-go/services/memory"
	"xiaozhi-go/services/tts"
	"xiaozhi-go/services/vad"
)

// fakeAuthenticator always succeeds with a fixed device identity.
type fakeAuthenticator struct{}

func (fakeAuthenticator) Authenticate(http.Header, map[string][]string) (auth.DeviceClaims, error) {
	return auth.DeviceClaims{DeviceID: "device-1", ClientID: "client-1"}, nil
}

// fakeChatStream replays a fixed slice of chunks, then io.EOF.
type fakeChatStream struct {
	chunks []llm.ChatCompletionChunk
	pos    int
}

func (s *fakeChatStream) Recv() (*llm.ChatCompletionChunk, error) {
	if s.pos >= len(s.chunks) {
		return nil, io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return &chunk, nil
}

func (s *fakeChatStream) Close() error { return nil }

// fakeLLM returns one scripted stream per call, in order; calling it more
// times than scripted responses exist returns an error naming the call
// number, which surfaces as a clear test failure rather than a panic.
type fakeLLM struct {
	*llm.BaseLLM
	mu            sync.Mutex
	responses     [][]llm.ChatCompletionChunk
	calls         int
	lastMessages  []llm.Message
	lastToolsSent []llm.Tool
}

func newFakeLLM(responses ...[]llm.ChatCompletionChunk) *fakeLLM {
	return &fakeLLM{BaseLLM: llm.NewBaseLLM("fake", "test"), responses: responses}
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (*llm.ChatCompletion, error) {
	return &llm.ChatCompletion{Message: llm.Message{Role: llm.RoleAssistant, Content: "none"}}, nil
}

func (f *fakeLLM) ChatStream(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (llm.ChatStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMessages = messages
	if opts != nil {
		f.lastToolsSent = opts.Tools
	}
	if f.calls >= len(f.responses) {
		return nil, fmt.Errorf("fakeLLM: no scripted response for call %d", f.calls)
	}
	chunks := f.responses[f.calls]
	f.calls++
	return &fakeChatStream{chunks: chunks}, nil
}

// fakeTTS turns every segment into one short silent frame instantly,
// except when delayFor names a segment to stall on, used to exercise the
// TTS stage's timeout path.
type fakeTTS struct {
	*tts.BaseEngine
	delayFor  string
	delayTime time.Duration
}

func newFakeTTS() *fakeTTS {
	return &fakeTTS{BaseEngine: tts.NewBaseEngine("fake-tts", "test", nil)}
}

func (f *fakeTTS) ToTTS(ctx context.Context, text string, opts *tts.Options) (string, error) {
	if f.delayFor != "" && text == f.delayFor {
		select {
		case <-time.After(f.delayTime):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "fake://" + text, nil
}

func (f *fakeTTS) AudioToOpusData(path string) ([]media.OpusFrame, time.Duration, error) {
	frame := media.OpusFrame{Data: []byte("pcm"), Duration: time.Millisecond, Sequence: 0}
	return []media.OpusFrame{frame}, time.Millisecond, nil
}

func (f *fakeTTS) DeleteAudioFile(path string) bool { return true }

// fakeSender records every frame sent to it.
type fakeSender struct {
	mu     sync.Mutex
	json   []interface{}
	binary [][]byte
}

func (s *fakeSender) SendJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.json = append(s.json, v)
	return nil
}

func (s *fakeSender) SendBinary(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.binary = append(s.binary, data)
	return nil
}

func (s *fakeSender) jsonFrames() []interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]interface{}, len(s.json))
	copy(out, s.json)
	return out
}

// fakeVAD emits a scripted sequence of events, one per Detect call, then
// nil events forever after the script is exhausted.
type fakeVAD struct {
	*vad.BaseDetector
	events []*vad.Event
	pos    int
}

func newFakeVAD(events ...*vad.Event) *fakeVAD {
	return &fakeVAD{BaseDetector: vad.NewBaseDetector("fake-vad", "test"), events: events}
}

func (f *fakeVAD) Detect(ctx context.Context, frame *media.AudioFrame) (*vad.Event, error) {
	if f.pos >= len(f.events) {
		return nil, nil
	}
	ev := f.events[f.pos]
	f.pos++
	return ev, nil
}

// fakeASR always returns the same transcript, regardless of the audio it
// is handed.
type fakeASR struct {
	*asr.BaseRecognizer
	text string
}

func newFakeASR(text string) *fakeASR {
	return &fakeASR{BaseRecognizer: asr.NewBaseRecognizer("fake-asr", "test", []string{"zh"}), text: text}
}

func (f *fakeASR) Recognize(ctx context.Context, audio *media.AudioFrame) (*asr.Result, error) {
	return &asr.Result{Text: f.text, Confidence: 1.0, IsFinal: true}, nil
}

// fakeMemory records whatever SaveMemory is called with and returns a
// fixed summary string from QueryMemory.
type fakeMemory struct {
	mu      sync.Mutex
	saved   []llm.Message
	summary string
}

func (m *fakeMemory) InitMemory(ctx context.Context, deviceID string, _ llm.LLM) error { return nil }
func (m *fakeMemory) QueryMemory(ctx context.Context, query string) (string, error) {
	return m.summary, nil
}
func (m *fakeMemory) SaveMemory(ctx context.Context, messages []llm.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, messages...)
	return nil
}

var _ memory.Store = (*fakeMemory)(nil)
