package main

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"xiaozhi-go/internal/auth"
	"xiaozhi-go/internal/config"
	"xiaozhi-go/internal/factory"
	"xiaozhi-go/internal/session"
	"xiaozhi-go/media"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// deviceHandler upgrades one HTTP request to a persistent device
// connection, authenticates it, and runs its session until the
// connection closes or the server shuts down.
type deviceHandler struct {
	cfg          *config.Config
	authn        auth.Authenticator
	deviceClient *config.DeviceConfigClient
	factory      *factory.Factory
	registry     *session.Registry
	defaultCollab session.Collaborators
}

func (h *deviceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	sender := newWSConn(conn)

	sess, err := session.NewSession(r.Context(), h.cfg, sender, h.authn, h.deviceClient, h.defaultCollab, h.factory.Rebuild(h.cfg), r.Header, r.URL.Query())
	if err != nil {
		slog.Warn("session setup failed", "error", err, "remote", r.RemoteAddr)
		conn.Close()
		return
	}
	h.registry.Add(sess)

	slog.Info("session started", "session", sess.ID, "device", sess.DeviceID)
	h.readLoop(conn, sess)
}

// readLoop pumps inbound frames to the session until the socket closes.
// Binary frames carry raw 16kHz/16-bit/mono PCM, matching the device
// firmware's uplink format; text frames are accepted but currently
// unused by any session operation.
func (h *deviceHandler) readLoop(conn *websocket.Conn, sess *session.Session) {
	defer func() {
		sess.Close(nil)
		conn.Close()
		slog.Info("session ended", "session", sess.ID)
	}()

	for {
		select {
		case <-sess.Done():
			return
		default:
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			frame := media.NewAudioFrame(data, media.AudioFormat16kHz16BitMono)
			if err := sess.HandleAudioFrame(frame); err != nil {
				slog.Warn("audio frame handling failed", "session", sess.ID, "error", err)
			}
		case websocket.TextMessage:
			slog.Debug("ignoring text frame", "session", sess.ID, "bytes", len(data))
		}
	}
}
