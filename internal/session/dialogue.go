package session

import (
	"sync"

	"xiaozhi-go/services/llm"
)

// Dialogue is the per-connection role-tagged message log. It is
// single-writer: only the dialog engine goroutine appends to or reads it
// over the life of a connection. The mutex exists only because the
// session controller's teardown path (SaveMemory) and the dialog engine
// goroutine can briefly overlap right at shutdown.
type Dialogue struct {
	mu       sync.Mutex
	messages []llm.Message
}

// NewDialogue creates an empty dialogue, optionally seeded with a system
// prompt.
func NewDialogue(systemPrompt string) *Dialogue {
	d := &Dialogue{}
	if systemPrompt != "" {
		d.messages = append(d.messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	return d
}

// UpdateSystemPrompt replaces the system message in place, or inserts one
// at the front if none exists yet. The source system updates its system
// message this way on every private-config change rather than re-seeding
// the whole dialogue.
func (d *Dialogue) UpdateSystemPrompt(prompt string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.messages {
		if d.messages[i].Role == llm.RoleSystem {
			d.messages[i].Content = prompt
			return
		}
	}
	d.messages = append([]llm.Message{{Role: llm.RoleSystem, Content: prompt}}, d.messages...)
}

// AddUser appends a user turn.
func (d *Dialogue) AddUser(content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, llm.Message{Role: llm.RoleUser, Content: content})
}

// AddAssistant appends an assistant turn.
func (d *Dialogue) AddAssistant(content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, llm.Message{Role: llm.RoleAssistant, Content: content})
}

// AddToolCalls appends an assistant turn carrying tool calls but no
// content, as OpenAI-style chat APIs require.
func (d *Dialogue) AddToolCalls(toolCalls []llm.ToolCall) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, llm.Message{Role: llm.RoleAssistant, ToolCalls: toolCalls})
}

// AddToolResult appends a tool-result turn, tagged with the call it
// answers.
func (d *Dialogue) AddToolResult(toolCallID, name, content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, llm.Message{
		Role:       llm.RoleTool,
		Name:       name,
		Content:    content,
		ToolCallID: toolCallID,
	})
}

// Messages returns a copy of the current message log, safe for the caller
// to hand to an LLM request without risking a concurrent append.
func (d *Dialogue) Messages() []llm.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]llm.Message, len(d.messages))
	copy(out, d.messages)
	return out
}

// MessagesWithMemory returns the message log with memorySummary prepended
// as additional system context, just after the persona system message (or
// at the very front if there is none). It never mutates the stored log:
// the memory summary is per-call context for this one LLM request, not a
// turn in the conversation that should be persisted or saved back.
func (d *Dialogue) MessagesWithMemory(memorySummary string) []llm.Message {
	messages := d.Messages()
	if memorySummary == "" {
		return messages
	}

	memoryMsg := llm.Message{Role: llm.RoleSystem, Content: "Relevant memory:\n" + memorySummary}
	if len(messages) > 0 && messages[0].Role == llm.RoleSystem {
		out := make([]llm.Message, 0, len(messages)+1)
		out = append(out, messages[0], memoryMsg)
		out = append(out, messages[1:]...)
		return out
	}
	return append([]llm.Message{memoryMsg}, messages...)
}
