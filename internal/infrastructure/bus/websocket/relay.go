package websocket

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/riskibarqy/point-farm/internal/domain/broadcast"
	"github.com/riskibarqy/point-farm/internal/platform/logging"
	"github.com/riskibarqy/point-farm/internal/platform/wire"
	"github.com/sourcegraph/conc"
)

const relayOutboxSize = 256

// Relay fans frames out between the participants of each session. It
// rejects frames whose sender does not match the connected participant.
type Relay struct {
	mu       sync.Mutex
	sessions map[string]map[string]*relayConn
	logger   *logging.Logger
	opts     *websocket.AcceptOptions
}

type relayConn struct {
	participantID string
	conn          *websocket.Conn
	outbox        chan []byte
	done          chan struct{}
	once          sync.Once
}

func (c *relayConn) stop() {
	c.once.Do(func() { close(c.done) })
}

func NewRelay(logger *logging.Logger, opts *websocket.AcceptOptions) *Relay {
	if logger == nil {
		logger = logging.Default()
	}
	return &Relay{
		sessions: make(map[string]map[string]*relayConn),
		logger:   logger.Named("relay"),
		opts:     opts,
	}
}

// ServeHTTP upgrades the request. The session id comes from the
// {sessionID} path value and the participant from the query string.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	sessionID := strings.TrimSpace(req.PathValue("sessionID"))
	participantID := strings.TrimSpace(req.URL.Query().Get(participantQueryKey))
	if sessionID == "" || participantID == "" {
		http.Error(w, "session and participant are required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, req, r.opts)
	if err != nil {
		r.logger.ErrorContext(req.Context(), "failed to accept relay connection", "error", err)
		return
	}

	rc := &relayConn{
		participantID: participantID,
		conn:          conn,
		outbox:        make(chan []byte, relayOutboxSize),
		done:          make(chan struct{}),
	}
	if !r.register(sessionID, rc) {
		_ = conn.Close(websocket.StatusPolicyViolation, "participant already connected")
		return
	}
	logger := r.logger.With("session_id", sessionID, "participant_id", participantID)
	logger.InfoContext(req.Context(), "participant connected")

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()

	var wg conc.WaitGroup
	wg.Go(func() { r.writeLoop(ctx, rc) })
	wg.Go(func() {
		defer rc.stop()
		r.readLoop(ctx, sessionID, rc, logger)
	})
	<-rc.done
	cancel()
	wg.Wait()

	r.unregister(sessionID, rc)
	_ = conn.Close(websocket.StatusNormalClosure, "")
	logger.InfoContext(req.Context(), "participant disconnected")

	left, err := wire.Encode(broadcast.Envelope{
		Kind:     broadcast.KindPlayerLeft,
		SenderID: participantID,
		SentAt:   time.Now().UTC(),
		Payload:  broadcast.PlayerLeft{PlayerID: participantID},
	})
	if err == nil {
		r.fanOut(sessionID, participantID, left)
	}
}

// Participants lists the ids connected to sessionID.
func (r *Relay) Participants(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sessions[sessionID]))
	for id := range r.sessions[sessionID] {
		out = append(out, id)
	}
	return out
}

func (r *Relay) readLoop(ctx context.Context, sessionID string, rc *relayConn, logger *logging.Logger) {
	for {
		_, data, err := rc.conn.Read(ctx)
		if err != nil {
			return
		}
		env, err := wire.Decode(data)
		if err != nil {
			logger.WarnContext(ctx, "dropping undecodable frame", "error", err)
			continue
		}
		if env.SenderID != rc.participantID {
			logger.WarnContext(ctx, "dropping frame with foreign sender", "sender_id", env.SenderID)
			continue
		}
		r.fanOut(sessionID, rc.participantID, data)
	}
}

func (r *Relay) writeLoop(ctx context.Context, rc *relayConn) {
	defer rc.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-rc.done:
			return
		case data := <-rc.outbox:
			if err := rc.conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
	}
}

func (r *Relay) fanOut(sessionID, from string, data []byte) {
	r.mu.Lock()
	targets := make([]*relayConn, 0, len(r.sessions[sessionID]))
	for id, rc := range r.sessions[sessionID] {
		if id != from {
			targets = append(targets, rc)
		}
	}
	r.mu.Unlock()

	for _, rc := range targets {
		select {
		case rc.outbox <- data:
		case <-rc.done:
		default:
			r.logger.Warn("participant outbox full, disconnecting", "session_id", sessionID, "participant_id", rc.participantID)
			rc.stop()
		}
	}
}

func (r *Relay) register(sessionID string, rc *relayConn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns, ok := r.sessions[sessionID]
	if !ok {
		conns = make(map[string]*relayConn)
		r.sessions[sessionID] = conns
	}
	if _, exists := conns[rc.participantID]; exists {
		return false
	}
	conns[rc.participantID] = rc
	return true
}

func (r *Relay) unregister(sessionID string, rc *relayConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := r.sessions[sessionID]
	if conns[rc.participantID] == rc {
		delete(conns, rc.participantID)
	}
	if len(conns) == 0 {
		delete(r.sessions, sessionID)
	}
}
