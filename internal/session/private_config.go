package session

import (
	"context"
	"errors"
	"log/slog"

	"xiaozhi-go/internal/config"
)

// RebuildFunc constructs a fresh Collaborators set and system prompt from
// a device's private config overlay. internal/factory supplies the
// concrete implementation (cmd/server passes Factory.Rebuild in), since
// only it knows how to turn a configured module type into a live plugin
// instance — the session package itself never imports a concrete plugin.
type RebuildFunc func(ctx context.Context, private *config.PrivateConfig) (Collaborators, string, error)

// loadPrivateConfig fetches the device's private config overlay in the
// background so the session can start talking immediately on server
// defaults and switch onto the device's own modules as soon as they are
// ready, rather than blocking the welcome frame on a config-service round
// trip.
func (s *Session) loadPrivateConfig(ctx context.Context) {
	if s.deviceClient == nil {
		return
	}

	private, err := s.deviceClient.Fetch(ctx, s.DeviceID)
	if err != nil {
		var needsBind *config.ErrDeviceNeedsBinding
		if errors.As(err, &needsBind) {
			if sendErr := s.sender.SendJSON(BindFrame{Type: "bind", BindCode: needsBind.BindCode}); sendErr != nil {
				slog.Warn("failed to send bind frame", "session", s.ID, "error", sendErr)
			}
			return
		}
		if errors.Is(err, config.ErrDeviceNotFound) {
			slog.Info("device has no private config, using server defaults", "session", s.ID)
			return
		}
		slog.Warn("private config fetch failed, using server defaults", "session", s.ID, "error", err)
		return
	}

	if s.rebuild == nil {
		return
	}

	collab, systemPrompt, err := s.rebuild(ctx, private)
	if err != nil {
		slog.Warn("rebuilding collaborators from private config failed", "session", s.ID, "error", err)
		return
	}

	s.mu.Lock()
	s.collab = collab
	s.engine = s.newDialogEngineLocked()
	s.mu.Unlock()

	if collab.TTS != nil {
		s.ttsStage.SetEngine(collab.TTS)
	}

	if systemPrompt != "" {
		s.dialogue.UpdateSystemPrompt(systemPrompt)
	}
}
