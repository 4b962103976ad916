package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"xiaozhi-go/services/llm"
)

const (
	summaryKeyPrefix = "xiaozhi:memory:summary:"
	turnsKeyPrefix   = "xiaozhi:memory:turns:"
	maxStoredTurns   = 20
)

// RedisStore implements Store on top of Redis: a STRING key holding the
// rolling summary and a capped LIST key holding the most recent raw turns.
type RedisStore struct {
	client   *redis.Client
	deviceID string
}

// NewRedisStore creates a store bound to one redis client. InitMemory binds
// it to a specific device.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// InitMemory binds the store to deviceID. llm is accepted for interface
// symmetry with summarizing implementations; RedisStore does not
// summarize, it just windows the most recent turns.
func (s *RedisStore) InitMemory(ctx context.Context, deviceID string, _ llm.LLM) error {
	if deviceID == "" {
		return fmt.Errorf("memory: device id required")
	}
	s.deviceID = deviceID
	return nil
}

// QueryMemory returns the stored summary, concatenated with the most
// recent turns, for use as extra dialogue context.
func (s *RedisStore) QueryMemory(ctx context.Context, query string) (string, error) {
	if s.deviceID == "" {
		return "", nil
	}

	summary, err := s.client.Get(ctx, summaryKeyPrefix+s.deviceID).Result()
	if err != nil && err != redis.Nil {
		return "", fmt.Errorf("memory: fetch summary: %w", err)
	}

	turns, err := s.client.LRange(ctx, turnsKeyPrefix+s.deviceID, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return "", fmt.Errorf("memory: fetch turns: %w", err)
	}

	out := summary
	for _, raw := range turns {
		var msg llm.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil || msg.Content == "" || msg.Role == llm.RoleSystem {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += string(msg.Role) + ": " + msg.Content
	}
	return out, nil
}

// SaveMemory appends the dialogue's messages as the new recent-turns
// window, trimmed to maxStoredTurns.
func (s *RedisStore) SaveMemory(ctx context.Context, messages []llm.Message) error {
	if s.deviceID == "" {
		return fmt.Errorf("memory: store not initialized for a device")
	}

	key := turnsKeyPrefix + s.deviceID
	pipe := s.client.TxPipeline()
	for _, msg := range messages {
		encoded, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("memory: encode turn: %w", err)
		}
		pipe.RPush(ctx, key, encoded)
	}
	pipe.LTrim(ctx, key, -maxStoredTurns, -1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("memory: save turns: %w", err)
	}
	return nil
}
