package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"

	"github.com/calassist/calassist/chat"
	"github.com/calassist/calassist/core"
	"github.com/calassist/calassist/runner"
)

// Frame is the outbound wire format. Type mirrors runner event types plus
// "error" for run-level failures.
type Frame struct {
	Type    string         `json:"type"`
	RunID   string         `json:"run_id,omitempty"`
	Message *core.Message  `json:"message,omitempty"`
	Speaker string         `json:"speaker,omitempty"`
	Text    string         `json:"text,omitempty"`
	Status  core.RunStatus `json:"status,omitempty"`
}

// FrameError marks a run-level failure frame.
const FrameError = "error"

// inboundFrame is the optional JSON envelope for user utterances. Bare text
// frames are accepted as well.
type inboundFrame struct {
	Text string `json:"text"`
}

func decodeInbound(data []byte) string {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err == nil && frame.Text != "" {
		return frame.Text
	}
	return string(data)
}

func frameFromEvent(ev runner.Event) Frame {
	return Frame{
		Type:    string(ev.Type),
		RunID:   ev.RunID,
		Message: ev.Message,
		Speaker: ev.Speaker,
		Text:    ev.Text,
		Status:  ev.Status,
	}
}

// handleWS upgrades the connection and owns one session for its lifetime.
// Disconnect cancels any in-flight run and discards the session.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{s.opts.AllowedOrigin},
	})
	if err != nil {
		s.opts.Logger.Warn("server.ws.accept_failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "session ended")

	user := r.URL.Query().Get("user")
	if user == "" {
		user = core.HumanSpeaker
	}
	sess := core.NewSession(user, s.opts.Mode, s.opts.Supersede)
	s.sessions.add(sess)
	defer s.sessions.remove(sess.ID)
	s.opts.Logger.Info("server.ws.connected", "session_id", sess.ID, "user", user)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Single writer goroutine serializes all outbound frames.
	outbound := make(chan Frame, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		// After a failed write the connection is dead; keep draining so the
		// pumps never block on a full channel during teardown.
		var dead bool
		for frame := range outbound {
			if dead {
				continue
			}
			data, err := json.Marshal(frame)
			if err != nil {
				s.opts.Logger.Error("server.ws.encode_failed", "error", err)
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				s.opts.Logger.Debug("server.ws.write_failed", "error", err)
				dead = true
			}
		}
	}()

	var pumps sync.WaitGroup
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			s.opts.Logger.Info("server.ws.disconnected", "session_id", sess.ID)
			break
		}
		text := strings.TrimSpace(decodeInbound(data))
		if text == "" {
			continue
		}

		// Supersede happens inside Run: any in-flight run is cancelled and
		// awaited before the new one starts.
		runID, events, errs, err := s.runner.Run(ctx, sess, text)
		if err != nil {
			outbound <- Frame{
				Type: FrameError,
				Text: chat.ErrorMarker + " " + err.Error(),
			}
			continue
		}

		pumps.Add(1)
		go func() {
			defer pumps.Done()
			s.pump(runID, events, errs, outbound)
		}()
	}

	// Disconnect terminates the session immediately.
	if done := sess.CancelActive(); done != nil {
		<-done
	}
	pumps.Wait()
	close(outbound)
	<-writerDone
}

// pump forwards one run's events and errors until both channels close.
func (s *Server) pump(runID string, events <-chan runner.Event, errs <-chan error, outbound chan<- Frame) {
	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			outbound <- frameFromEvent(ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			outbound <- Frame{
				Type:  FrameError,
				RunID: runID,
				Text:  chat.ErrorMarker + " " + err.Error(),
			}
		}
	}
}
