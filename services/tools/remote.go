package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// RemoteManager proxies tool execution to other processes over NATS
// request-reply, one subject per tool name ("tools.<name>"). It is the
// externalized counterpart to ToolRegistry for tools that are too heavy,
// too sandboxed, or too frequently redeployed to link into this process —
// a remote weather lookup or a smart-home bridge, for example.
type RemoteManager struct {
	nc      *nats.Conn
	timeout time.Duration

	mu    sync.RWMutex
	names map[string]struct{}
}

// NewRemoteManager wraps an already-connected NATS client. The caller owns
// the connection's lifetime; CleanupAll does not close nc.
func NewRemoteManager(nc *nats.Conn, timeout time.Duration) *RemoteManager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteManager{nc: nc, timeout: timeout, names: make(map[string]struct{})}
}

// remoteToolRequest/remoteToolResponse are the wire shapes exchanged over
// the tools.<name> subject.
type remoteToolRequest struct {
	Arguments json.RawMessage `json:"arguments"`
}

type remoteToolResponse struct {
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// InitializeServers discovers which remote tools are currently reachable by
// probing the registry subject "tools.registry.list". A worker that never
// announces itself there simply never becomes callable; this is advisory
// bookkeeping, not a hard dependency of ExecuteTool.
func (m *RemoteManager) InitializeServers(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	timeout := m.timeout
	if ok {
		timeout = time.Until(deadline)
	}

	msg, err := m.nc.Request("tools.registry.list", nil, timeout)
	if err != nil {
		// No registry responding is not fatal: remote tools are opportunistic.
		return nil
	}

	var names []string
	if err := json.Unmarshal(msg.Data, &names); err != nil {
		return fmt.Errorf("tools: decode registry response: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range names {
		m.names[name] = struct{}{}
	}
	return nil
}

// IsMCPTool reports whether name was discovered as a remote tool.
func (m *RemoteManager) IsMCPTool(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.names[name]
	return ok
}

// ExecuteTool calls a remote tool over its request-reply subject and waits
// for the reply or ctx's deadline, whichever comes first.
func (m *RemoteManager) ExecuteTool(ctx context.Context, name string, args []byte) (Result, error) {
	req := remoteToolRequest{Arguments: args}
	payload, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("tools: marshal remote request: %w", err)
	}

	msg, err := m.nc.RequestWithContext(ctx, fmt.Sprintf("tools.%s", name), payload)
	if err != nil {
		if err == nats.ErrNoResponders {
			return Result{Action: ActionNotFound}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
		}
		return Result{Action: ActionError}, fmt.Errorf("tools: remote call %s: %w", name, err)
	}

	var resp remoteToolResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		// A malformed reply is still something the model can react to — tell
		// it the call failed rather than dropping straight to a fixed apology.
		return Result{Action: ActionReqLLM, Result: fmt.Sprintf("tool %s returned an unreadable response", name)}, nil
	}
	if resp.Error != "" {
		return Result{Action: ActionError, Result: resp.Error}, nil
	}

	return Result{Action: ActionReqLLM, Result: resp.Result}, nil
}

// CleanupAll drops all discovered remote tool names. Called during session
// teardown, before the underlying NATS connection (owned by the caller) is
// closed.
func (m *RemoteManager) CleanupAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names = make(map[string]struct{})
	return nil
}
