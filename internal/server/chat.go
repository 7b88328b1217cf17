package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"

	"github.com/ziadkadry99/medicrypt/internal/chat"
)

// Raw HTML in replies is dropped; only markdown is rendered.
var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("github"),
		),
	),
)

// chatRequest is the incoming WebSocket message format.
type chatRequest struct {
	Type    string `json:"type"` // "message"
	Content string `json:"content"`
}

// chatResponse is the outgoing WebSocket message format.
type chatResponse struct {
	Type      string `json:"type"` // "response", "error" or "closed"
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
	HTML      string `json:"html,omitempty"`
}

// handleWebSocket runs one chat session for the lifetime of the connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade")
		return
	}
	defer conn.Close()

	if s.newSession == nil {
		s.send(conn, chatResponse{Type: "error", Content: "chat is not configured"})
		return
	}
	sess, err := s.newSession()
	if err != nil {
		s.log.WithError(err).Error("opening chat session")
		s.send(conn, chatResponse{Type: "error", Content: "failed to open session"})
		return
	}
	defer sess.Close()
	log := s.log.WithField("session_id", sess.ID())

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("websocket read")
			}
			return
		}

		var req chatRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.send(conn, chatResponse{Type: "error", SessionID: sess.ID(), Content: "invalid message format"})
			continue
		}
		if req.Type != "message" {
			s.send(conn, chatResponse{Type: "error", SessionID: sess.ID(), Content: "unknown message type: " + req.Type})
			continue
		}
		text := strings.TrimSpace(req.Content)
		if text == "" {
			s.send(conn, chatResponse{Type: "error", SessionID: sess.ID(), Content: "content is required"})
			continue
		}

		if chat.IsExit(text) {
			s.send(conn, chatResponse{Type: "closed", SessionID: sess.ID(), Content: "Exiting chat."})
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
				time.Now().Add(time.Second))
			return
		}

		reply, err := sess.HandleTurn(r.Context(), text)
		if err != nil {
			content := "turn failed"
			if errors.Is(err, chat.ErrCompletionFailed) {
				content = "the assistant is unavailable, please try again"
			}
			log.WithError(err).Warn("chat turn failed")
			s.send(conn, chatResponse{Type: "error", SessionID: sess.ID(), Content: content})
			continue
		}

		s.send(conn, chatResponse{
			Type:      "response",
			SessionID: sess.ID(),
			Content:   reply,
			HTML:      renderMarkdown(reply),
		})
	}
}

func (s *Server) send(conn *websocket.Conn, resp chatResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		s.log.WithError(err).Warn("websocket write")
	}
}

// renderMarkdown converts a reply to HTML. It returns "" on failure; the
// plain content is always sent as well.
func renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return ""
	}
	return buf.String()
}
