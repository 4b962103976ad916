package session

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"xiaozhi-go/services/tools"
)

// inlineToolCallPattern matches a function call the LLM emitted as plain
// text rather than through structured tool_calls deltas — some prompts
// and some smaller models fall back to this even when told not to.
var inlineToolCallPattern = regexp.MustCompile(`<tool_call>\s*(\{.*?\})\s*</tool_call>`)

type inlineToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// extractInlineToolCall looks for a <tool_call>{...}</tool_call> block in
// streamed content and, if found, returns the call it names along with the
// content with that block removed.
func extractInlineToolCall(content string) (inlineToolCall, string, bool) {
	match := inlineToolCallPattern.FindStringSubmatch(content)
	if match == nil {
		return inlineToolCall{}, content, false
	}

	var call inlineToolCall
	if err := json.Unmarshal([]byte(match[1]), &call); err != nil {
		return inlineToolCall{}, content, false
	}

	remainder := inlineToolCallPattern.ReplaceAllString(content, "")
	return call, remainder, true
}

// apologyFor is the fixed reply spoken when a tool cannot be found or
// fails outright, rather than re-entering the LLM for an explanation it
// has no real information to give.
func apologyFor(toolName string) string {
	return fmt.Sprintf("抱歉，%s 暂时无法使用，请稍后再试。", toolName)
}

// invokeTool resolves name against the local registry first, then the
// remote manager, and executes it. The local registry always wins when a
// name is registered in both places.
func (e *DialogEngine) invokeTool(ctx context.Context, name string, args []byte) (tools.Result, error) {
	if tool, ok := e.registry.Lookup(name); ok {
		raw, err := tool.Call(ctx, args)
		if err != nil {
			return tools.Result{Action: tools.ActionError, Result: err.Error()}, nil
		}
		return tools.Result{Action: tools.ActionReqLLM, Result: string(raw)}, nil
	}

	if e.remote != nil {
		return e.remote.ExecuteTool(ctx, name, args)
	}

	return tools.Result{Action: tools.ActionNotFound}, fmt.Errorf("%w: %s", tools.ErrToolNotFound, name)
}

// handleToolResult decides how a tool invocation's outcome continues the
// dialog (§4.2.1): speak it directly, feed it back to the LLM for a final
// reply, or fall back to a fixed apology.
func (e *DialogEngine) handleToolResult(ctx context.Context, depth int, toolsEnabled bool, memorySummary string, toolCallID, toolName string, result tools.Result) error {
	switch result.Action {
	case tools.ActionResponse:
		e.dialogue.AddToolResult(toolCallID, toolName, result.Result)
		e.dialogue.AddAssistant(result.Response)
		e.speakText(ctx, result.Response)
		return nil

	case tools.ActionReqLLM:
		e.dialogue.AddToolResult(toolCallID, toolName, result.Result)
		return e.chatRound(ctx, depth+1, toolsEnabled, memorySummary)

	case tools.ActionNotFound:
		text := apologyFor(toolName)
		e.dialogue.AddToolResult(toolCallID, toolName, "tool not found")
		e.dialogue.AddAssistant(text)
		e.speakText(ctx, text)
		return nil

	case tools.ActionError:
		text := apologyFor(toolName)
		e.dialogue.AddToolResult(toolCallID, toolName, result.Result)
		e.dialogue.AddAssistant(text)
		e.speakText(ctx, text)
		return nil

	default:
		return fmt.Errorf("session: unrecognized tool action %v", result.Action)
	}
}
