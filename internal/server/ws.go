package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/eliasvob/readsync/internal/orchestrator"
	"github.com/eliasvob/readsync/internal/playback"
	"github.com/eliasvob/readsync/pkg/timing"
)

// syncCommand is a client-to-server message on the sync feed.
type syncCommand struct {
	Type string `json:"type"` // load, position, offset, start, stop

	// load fields
	AudioURL string `json:"audioUrl,omitempty"`
	OwnerID  string `json:"ownerId,omitempty"`
	Text     string `json:"text,omitempty"`
	Language string `json:"language,omitempty"`

	// position / offset payload
	Seconds float64 `json:"seconds,omitempty"`
}

// syncEvent is a server-to-client message on the sync feed.
type syncEvent struct {
	Type string `json:"type"` // timings, highlight, error

	Timings    *timing.Set `json:"timings,omitempty"`
	ItemIndex  int         `json:"itemIndex"`
	TokenIndex int         `json:"tokenIndex"`
	Generation uint64      `json:"generation"`

	Error string `json:"error,omitempty"`
}

// handleSync runs one live reading session over a WebSocket. The client
// drives it with commands (load a narration, report playback position,
// adjust the offset, start/stop tracking) and receives highlight events plus
// a fresh timing snapshot whenever better timing data replaces the current
// set.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	s.metrics.ActiveSessions.Add(ctx, 1)
	defer s.metrics.ActiveSessions.Add(ctx, -1)

	var opts []playback.Option
	if s.pollInterval > 0 {
		opts = append(opts, playback.WithPollInterval(s.pollInterval))
	}
	sess := orchestrator.NewSession(s.offsets, opts...)
	defer sess.Close()

	go s.forwardUpdates(ctx, conn, sess)

	for {
		var cmd syncCommand
		if err := wsjson.Read(ctx, conn, &cmd); err != nil {
			// Normal closure or dropped client either way.
			return
		}
		if err := s.applyCommand(ctx, conn, sess, cmd); err != nil {
			return
		}
	}
}

// applyCommand executes one client command. A returned error ends the
// session.
func (s *Server) applyCommand(ctx context.Context, conn *websocket.Conn, sess *orchestrator.Session, cmd syncCommand) error {
	switch cmd.Type {
	case "load":
		if cmd.AudioURL == "" || cmd.OwnerID == "" || cmd.Text == "" {
			return wsjson.Write(ctx, conn, syncEvent{Type: "error", Error: "load requires audioUrl, ownerId and text"})
		}
		if err := s.orch.Prepare(ctx, sess, orchestrator.PrepareRequest{
			AudioURL: cmd.AudioURL,
			OwnerID:  cmd.OwnerID,
			Text:     cmd.Text,
			Language: cmd.Language,
		}); err != nil {
			return wsjson.Write(ctx, conn, syncEvent{Type: "error", Error: "narration load failed"})
		}
		set, _ := sess.Current()
		return wsjson.Write(ctx, conn, syncEvent{
			Type:       "timings",
			Timings:    set,
			Generation: sess.Synchronizer().Generation(),
		})

	case "position":
		sess.ReportPosition(time.Duration(cmd.Seconds * float64(time.Second)))
		return nil

	case "offset":
		if err := sess.SetOffset(cmd.Seconds); err != nil {
			slog.Warn("offset persist failed", "error", err)
		}
		return nil

	case "start":
		sess.Synchronizer().Start(ctx)
		return nil

	case "stop":
		sess.Synchronizer().Stop()
		return nil

	default:
		return wsjson.Write(ctx, conn, syncEvent{Type: "error", Error: "unknown command type"})
	}
}

// forwardUpdates streams highlight changes to the client. When the timing
// generation moves (a better timing set was swapped in mid-session), the new
// snapshot is sent before the highlight that refers to it.
func (s *Server) forwardUpdates(ctx context.Context, conn *websocket.Conn, sess *orchestrator.Session) {
	var lastGen uint64
	updates := sess.Synchronizer().Updates()
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates:
			if u.Generation != lastGen {
				lastGen = u.Generation
				set, _ := sess.Current()
				if err := wsjson.Write(ctx, conn, syncEvent{
					Type:       "timings",
					Timings:    set,
					Generation: u.Generation,
				}); err != nil {
					return
				}
			}
			if err := wsjson.Write(ctx, conn, syncEvent{
				Type:       "highlight",
				ItemIndex:  u.ItemIndex,
				TokenIndex: u.TokenIndex,
				Generation: u.Generation,
			}); err != nil {
				return
			}
		}
	}
}
