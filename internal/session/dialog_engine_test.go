package session

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/matryer/is"

	"xiaozhi-go/services/llm"
	"xiaozhi-go/services/tools"
)

func newTestEngine(model llm.LLM, registry *tools.ToolRegistry) (*DialogEngine, *TTSStage, *speakStatus) {
	speak := newSpeakStatus()
	ttsStage := NewTTSStage(context.Background(), "test-session", newFakeTTS(), speak, DefaultTTSTimeout)
	dialogue := NewDialogue("")
	engine := NewDialogEngine("test-session", model, registry, nil, nil, dialogue, speak, ttsStage)
	return engine, ttsStage, speak
}

func newTestEngineWithMemory(model llm.LLM, registry *tools.ToolRegistry, mem *fakeMemory) (*DialogEngine, *TTSStage, *speakStatus) {
	speak := newSpeakStatus()
	ttsStage := NewTTSStage(context.Background(), "test-session", newFakeTTS(), speak, DefaultTTSTimeout)
	dialogue := NewDialogue("you are xiaozhi")
	engine := NewDialogEngine("test-session", model, registry, nil, mem, dialogue, speak, ttsStage)
	return engine, ttsStage, speak
}

func drainPlayback(t *testing.T, stage *TTSStage, n int) []PlaybackItem {
	t.Helper()
	items := make([]PlaybackItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, <-stage.Out)
	}
	return items
}

func TestDialogEngineChatPlainReplySegmentsToTTS(t *testing.T) {
	is := is.New(t)

	model := newFakeLLM([]llm.ChatCompletionChunk{
		{Delta: llm.MessageDelta{Content: "你好。"}},
		{Delta: llm.MessageDelta{Content: "今天天气不错。"}},
	})
	engine, stage, _ := newTestEngine(model, nil)

	err := engine.Chat(context.Background(), "你好", false)
	is.NoErr(err)

	items := drainPlayback(t, stage, 2)
	is.Equal(items[0].Text, "你好")
	is.Equal(items[1].Text, "今天天气不错")
}

func TestDialogEngineChatQueriesMemoryAndPrependsSummary(t *testing.T) {
	is := is.New(t)

	model := newFakeLLM([]llm.ChatCompletionChunk{
		{Delta: llm.MessageDelta{Content: "好的。"}},
	})
	mem := &fakeMemory{summary: "用户喜欢猫"}
	engine, stage, _ := newTestEngineWithMemory(model, nil, mem)

	err := engine.Chat(context.Background(), "你好", false)
	is.NoErr(err)
	drainPlayback(t, stage, 1)

	is.True(len(model.lastMessages) >= 3) // persona system + memory system + user
	is.Equal(model.lastMessages[0].Role, llm.RoleSystem)
	is.Equal(model.lastMessages[0].Content, "you are xiaozhi")
	is.Equal(model.lastMessages[1].Role, llm.RoleSystem)
	is.True(strings.Contains(model.lastMessages[1].Content, "用户喜欢猫"))
	is.True(len(model.lastToolsSent) == 0) // toolsEnabled was false
}

func TestDialogEngineChatAdvertisesToolsOnlyWhenEnabled(t *testing.T) {
	is := is.New(t)

	model := newFakeLLM([]llm.ChatCompletionChunk{
		{Delta: llm.MessageDelta{Content: "好的。"}},
	})
	registry := tools.NewToolRegistry()
	is.NoErr(registry.Register(&fakeTool{name: "get_weather", result: []byte("sunny")}))
	engine, stage, _ := newTestEngine(model, registry)

	err := engine.Chat(context.Background(), "你好", true)
	is.NoErr(err)
	drainPlayback(t, stage, 1)

	is.Equal(len(model.lastToolsSent), 1)
	is.Equal(model.lastToolsSent[0].Function.Name, "get_weather")
}

func TestDialogEngineDispatchesStructuredToolCall(t *testing.T) {
	is := is.New(t)

	model := newFakeLLM(
		[]llm.ChatCompletionChunk{
			{Delta: llm.MessageDelta{ToolCalls: []llm.ToolCall{
				{ID: "call1", Type: "function", Function: llm.Function{Name: "get_weather", Arguments: `{"city":"beijing"}`}},
			}}},
		},
		[]llm.ChatCompletionChunk{
			{Delta: llm.MessageDelta{Content: "北京今天晴。"}},
		},
	)

	registry := tools.NewToolRegistry()
	is.NoErr(registry.Register(&fakeTool{
		name:   "get_weather",
		result: []byte("sunny"),
	}))

	engine, stage, _ := newTestEngine(model, registry)

	err := engine.Chat(context.Background(), "北京天气怎么样", true)
	is.NoErr(err)

	items := drainPlayback(t, stage, 1)
	is.Equal(items[0].Text, "北京今天晴")
}

func TestDialogEngineDispatchesInlineToolCall(t *testing.T) {
	is := is.New(t)

	inline := `<tool_call>{"name":"get_weather","arguments":{"city":"beijing"}}</tool_call>`
	model := newFakeLLM(
		[]llm.ChatCompletionChunk{
			{Delta: llm.MessageDelta{Content: inline}},
		},
		[]llm.ChatCompletionChunk{
			{Delta: llm.MessageDelta{Content: "北京今天晴。"}},
		},
	)

	registry := tools.NewToolRegistry()
	is.NoErr(registry.Register(&fakeTool{name: "get_weather", result: []byte("sunny")}))

	engine, stage, _ := newTestEngine(model, registry)

	err := engine.Chat(context.Background(), "北京天气怎么样", true)
	is.NoErr(err)

	items := drainPlayback(t, stage, 1)
	is.Equal(items[0].Text, "北京今天晴")
}

func TestDialogEngineToolNotFoundSpeaksApology(t *testing.T) {
	is := is.New(t)

	model := newFakeLLM([]llm.ChatCompletionChunk{
		{Delta: llm.MessageDelta{ToolCalls: []llm.ToolCall{
			{ID: "call1", Type: "function", Function: llm.Function{Name: "unknown_tool", Arguments: "{}"}},
		}}},
	})

	registry := tools.NewToolRegistry()
	engine, stage, _ := newTestEngine(model, registry)

	err := engine.Chat(context.Background(), "do something", true)
	is.NoErr(err)

	items := drainPlayback(t, stage, 1)
	is.True(items[0].Text != "")
}

func TestExtractInlineToolCall(t *testing.T) {
	is := is.New(t)

	content := `好的。<tool_call>{"name":"get_weather","arguments":{"city":"beijing"}}</tool_call>`
	call, remainder, ok := extractInlineToolCall(content)
	is.True(ok)
	is.Equal(call.Name, "get_weather")
	is.Equal(remainder, "好的。")

	var args map[string]string
	is.NoErr(json.Unmarshal(call.Arguments, &args))
	is.Equal(args["city"], "beijing")
}

// fakeTool is a minimal tools.FunctionTool for dialog-engine tests.
type fakeTool struct {
	name   string
	result []byte
}

func (f *fakeTool) Name() string                   { return f.name }
func (f *fakeTool) Description() string            { return "test tool" }
func (f *fakeTool) Schema() map[string]interface{} { return map[string]interface{}{} }
func (f *fakeTool) Call(ctx context.Context, args []byte) ([]byte, error) {
	return f.result, nil
}
