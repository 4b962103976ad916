package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"xiaozhi-go/services/intent"
	"xiaozhi-go/services/llm"
	"xiaozhi-go/services/memory"
	"xiaozhi-go/services/tools"
)

// maxToolCallDepth bounds how many times a single user turn may re-enter
// the LLM on the back of a tool call before chatRound gives up. The
// source system has no such bound; a misbehaving model that always
// answers with another tool call would otherwise spin forever.
const maxToolCallDepth = 4

// DialogEngine drives one connection's conversation: it streams the LLM's
// reply, segments it for TTS as it arrives, and re-enters the LLM when a
// tool call needs a follow-up turn. One DialogEngine exists per session
// and is only ever driven by that session's single inbound-message
// goroutine.
type DialogEngine struct {
	model    llm.LLM
	registry *tools.ToolRegistry
	remote   *tools.RemoteManager
	memory   memory.Store

	dialogue *Dialogue
	speak    *speakStatus
	tts      *TTSStage

	sessionID string
}

// NewDialogEngine wires an engine to its collaborators. remote and mem may
// be nil when a device's config has no tool server or memory module
// configured.
func NewDialogEngine(sessionID string, model llm.LLM, registry *tools.ToolRegistry, remote *tools.RemoteManager, mem memory.Store, dialogue *Dialogue, speak *speakStatus, tts *TTSStage) *DialogEngine {
	return &DialogEngine{
		sessionID: sessionID,
		model:     model,
		registry:  registry,
		remote:    remote,
		memory:    mem,
		dialogue:  dialogue,
		speak:     speak,
		tts:       tts,
	}
}

// Chat is the entry point for a new user turn: it records the utterance,
// retrieves a memory summary, resets barge-in state, and streams a reply —
// re-entering the LLM as many times as tool calls require. toolsEnabled
// selects whether this turn advertises tool definitions to the model at
// all (the session controller decides this from the configured Intent
// mode: only the function_call mode lets the model itself drive tool
// calling).
func (e *DialogEngine) Chat(ctx context.Context, utterance string, toolsEnabled bool) error {
	e.speak.BeginReply()
	e.dialogue.AddUser(utterance)
	memorySummary := e.queryMemory(ctx, utterance)
	return e.chatRound(ctx, 0, toolsEnabled, memorySummary)
}

// ChatIntent handles an utterance the Intent component has already
// classified (the intent_llm mode's secondary-LLM path): rather than
// asking the main chat LLM to decide, it invokes the classified intent
// directly as a tool call and routes the result the same way any other
// tool result is routed.
func (e *DialogEngine) ChatIntent(ctx context.Context, utterance string, classification intent.Classification) error {
	e.speak.BeginReply()
	e.dialogue.AddUser(utterance)
	memorySummary := e.queryMemory(ctx, utterance)

	args, err := json.Marshal(classification.Args)
	if err != nil {
		return fmt.Errorf("session: marshal intent args: %w", err)
	}

	synthetic := llm.ToolCall{
		ID:   "intent-classified",
		Type: "function",
		Function: llm.Function{
			Name:      classification.Intent,
			Arguments: string(args),
		},
	}
	e.dialogue.AddToolCalls([]llm.ToolCall{synthetic})

	result, err := e.invokeTool(ctx, classification.Intent, args)
	if err != nil && result.Action == tools.ActionNotFound {
		slog.Info("classified intent named an unknown tool", "tool", classification.Intent)
	}
	return e.handleToolResult(ctx, 0, false, memorySummary, synthetic.ID, classification.Intent, result)
}

// queryMemory retrieves the memory summary for utterance, synchronously,
// before the LLM is invoked (§4.2's common contract). A query failure is
// logged and treated as no memory context rather than failing the turn.
func (e *DialogEngine) queryMemory(ctx context.Context, utterance string) string {
	if e.memory == nil {
		return ""
	}
	summary, err := e.memory.QueryMemory(ctx, utterance)
	if err != nil {
		slog.Warn("memory query failed", "session", e.sessionID, "error", err)
		return ""
	}
	return summary
}

// chatRound issues one LLM streaming call and handles whatever it
// produces: plain text gets segmented straight to TTS, tool calls get
// dispatched and may recurse into another round. toolsEnabled and
// memorySummary are threaded through recursive re-entry so a tool-call
// follow-up round still sees the same memory context and tool-advertising
// decision as the turn that started it.
func (e *DialogEngine) chatRound(ctx context.Context, depth int, toolsEnabled bool, memorySummary string) error {
	if depth > maxToolCallDepth {
		return ErrRecursionLimitExceeded
	}

	opts := llm.DefaultChatOptions()
	if toolsEnabled {
		opts.Tools = e.toolDefinitions()
	}

	messages := e.dialogue.MessagesWithMemory(memorySummary)
	stream, err := e.model.ChatStream(ctx, messages, opts)
	if err != nil {
		return fmt.Errorf("session: chat stream: %w", err)
	}
	defer stream.Close()

	seg := newSegmenter()
	var content string
	var toolCalls []llm.ToolCall

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("session: chat stream recv: %w", err)
		}
		if chunk == nil {
			break
		}

		if len(chunk.Delta.ToolCalls) > 0 {
			for _, d := range chunk.Delta.ToolCalls {
				// A delta without an ID continues the call before it:
				// providers stream a call's arguments in fragments.
				if d.ID == "" && len(toolCalls) > 0 {
					last := &toolCalls[len(toolCalls)-1]
					last.Function.Name += d.Function.Name
					last.Function.Arguments += d.Function.Arguments
					continue
				}
				toolCalls = append(toolCalls, d)
			}
			continue
		}

		if chunk.Delta.Content == "" {
			continue
		}
		content += chunk.Delta.Content

		if e.speak.Aborted() {
			return nil
		}

		for _, s := range seg.Feed(chunk.Delta.Content) {
			e.submitSegment(ctx, s)
		}
	}

	if len(toolCalls) > 0 {
		return e.dispatchToolCalls(ctx, depth, toolsEnabled, memorySummary, toolCalls)
	}

	if call, remainder, ok := extractInlineToolCall(content); ok {
		content = remainder
		return e.dispatchInlineToolCall(ctx, depth, toolsEnabled, memorySummary, call)
	}

	for _, s := range seg.Flush() {
		e.submitSegment(ctx, s)
	}
	e.dialogue.AddAssistant(content)
	return nil
}

// dispatchToolCalls runs every structured tool call the model emitted in
// one turn and hands the (only ever first, in practice) result to the
// tool-result handler. The source system's models emit at most one tool
// call per turn; supporting more than one here costs nothing.
func (e *DialogEngine) dispatchToolCalls(ctx context.Context, depth int, toolsEnabled bool, memorySummary string, calls []llm.ToolCall) error {
	e.dialogue.AddToolCalls(calls)

	for _, call := range calls {
		result, err := e.invokeTool(ctx, call.Function.Name, []byte(call.Function.Arguments))
		if err != nil && result.Action == tools.ActionNotFound {
			slog.Info("tool call named an unknown tool", "tool", call.Function.Name)
		}
		if herr := e.handleToolResult(ctx, depth, toolsEnabled, memorySummary, call.ID, call.Function.Name, result); herr != nil {
			return herr
		}
	}
	return nil
}

// dispatchInlineToolCall handles a <tool_call> block embedded in plain
// streamed text rather than delivered as a structured delta.
func (e *DialogEngine) dispatchInlineToolCall(ctx context.Context, depth int, toolsEnabled bool, memorySummary string, call inlineToolCall) error {
	synthetic := llm.ToolCall{
		ID:   fmt.Sprintf("inline-%d", depth),
		Type: "function",
		Function: llm.Function{
			Name:      call.Name,
			Arguments: string(call.Arguments),
		},
	}
	e.dialogue.AddToolCalls([]llm.ToolCall{synthetic})

	result, err := e.invokeTool(ctx, call.Name, call.Arguments)
	if err != nil && result.Action == tools.ActionNotFound {
		slog.Info("inline tool call named an unknown tool", "tool", call.Name)
	}
	return e.handleToolResult(ctx, depth, toolsEnabled, memorySummary, synthetic.ID, call.Name, result)
}

// speakText segments a complete string (not a stream) straight to TTS —
// used for fixed apologies and ActionResponse replies that never flow
// through the normal streaming path.
func (e *DialogEngine) speakText(ctx context.Context, text string) {
	seg := newSegmenter()
	for _, s := range seg.Feed(text) {
		e.submitSegment(ctx, s)
	}
	for _, s := range seg.Flush() {
		e.submitSegment(ctx, s)
	}
}

func (e *DialogEngine) submitSegment(ctx context.Context, s Segment) {
	if e.tts == nil {
		return
	}
	e.tts.Submit(ctx, s)
}

// toolDefinitions advertises the locally registered tools to the LLM.
// Remote tools are invoked opportunistically by name but are not
// advertised here: RemoteManager only knows names, not JSON schemas, so
// there is nothing truthful to put in a Tool definition for them.
func (e *DialogEngine) toolDefinitions() []llm.Tool {
	if e.registry == nil {
		return nil
	}
	list := e.registry.List()
	defs := make([]llm.Tool, 0, len(list))
	for _, tool := range list {
		defs = append(defs, llm.Tool{
			Type: "function",
			Function: llm.ToolFunc{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Schema(),
			},
		})
	}
	return defs
}
