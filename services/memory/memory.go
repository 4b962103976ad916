// Package memory is the externalized long-term memory collaborator: a
// rolling per-device summary plus recent turns, consulted before a reply
// and appended to at teardown. The dialog engine never reads or writes
// conversation history directly; it only goes through Store.
package memory

import (
	"context"

	"xiaozhi-go/services/llm"
)

// Store is the memory service interface the dialogue log needs.
type Store interface {
	// InitMemory prepares the store for a device, optionally using llm to
	// summarize rather than just concatenate history.
	InitMemory(ctx context.Context, deviceID string, llm llm.LLM) error

	// QueryMemory returns a short context string relevant to query, or ""
	// if nothing is stored yet.
	QueryMemory(ctx context.Context, query string) (string, error)

	// SaveMemory persists the dialogue's turns. Called once, at teardown,
	// after the session's context is canceled, with a snapshot of the
	// dialogue; a dialog round still finishing at that moment may add
	// turns that the snapshot does not include.
	SaveMemory(ctx context.Context, messages []llm.Message) error
}
