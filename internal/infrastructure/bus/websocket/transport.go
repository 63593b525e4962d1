package websocket

import (
	"context"
	"net/url"
	"sync/atomic"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/coder/websocket"
	"github.com/riskibarqy/point-farm/internal/domain/broadcast"
	"github.com/riskibarqy/point-farm/internal/platform/logging"
	"github.com/riskibarqy/point-farm/internal/platform/wire"
	"github.com/sourcegraph/conc"
)

const (
	participantQueryKey = "participant"
	defaultWriteTimeout = 5 * time.Second
	defaultInboxSize    = 256
)

// Transport is a session participant connected to a Relay.
type Transport struct {
	conn         *websocket.Conn
	inbox        chan broadcast.Envelope
	cancel       context.CancelFunc
	readers      conc.WaitGroup
	closed       atomic.Bool
	writeTimeout time.Duration
	logger       *logging.Logger
}

// Dial connects participantID to the relay at relayURL.
func Dial(ctx context.Context, relayURL, participantID string, logger *logging.Logger) (*Transport, error) {
	if logger == nil {
		logger = logging.Default()
	}
	u, err := url.Parse(relayURL)
	if err != nil {
		return nil, crerr.Wrapf(err, "parse relay url %q", relayURL)
	}
	q := u.Query()
	q.Set(participantQueryKey, participantID)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, crerr.Wrapf(err, "dial relay %s", u.Redacted())
	}
	return newTransport(conn, logger.Named("bus.websocket").With("participant_id", participantID)), nil
}

func newTransport(conn *websocket.Conn, logger *logging.Logger) *Transport {
	readCtx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		conn:         conn,
		inbox:        make(chan broadcast.Envelope, defaultInboxSize),
		cancel:       cancel,
		writeTimeout: defaultWriteTimeout,
		logger:       logger,
	}
	t.readers.Go(func() { t.readLoop(readCtx) })
	return t
}

func (t *Transport) Send(ctx context.Context, env broadcast.Envelope) error {
	if t.closed.Load() {
		return broadcast.ErrTransportClosed
	}
	data, err := wire.Encode(env)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, t.writeTimeout)
	defer cancel()
	if err := t.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return crerr.Wrapf(err, "write %s envelope", env.Kind)
	}
	return nil
}

func (t *Transport) Receive() <-chan broadcast.Envelope {
	return t.inbox
}

func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := t.conn.Close(websocket.StatusNormalClosure, "participant left")
	t.cancel()
	t.readers.Wait()
	if err != nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		return crerr.Wrap(err, "close relay connection")
	}
	return nil
}

func (t *Transport) readLoop(ctx context.Context) {
	defer close(t.inbox)
	for {
		_, data, err := t.conn.Read(ctx)
		if err != nil {
			if !t.closed.Load() {
				t.logger.Warn("relay connection lost", "error", err)
			}
			return
		}
		env, err := wire.Decode(data)
		if err != nil {
			t.logger.Warn("dropping undecodable frame", "error", err)
			continue
		}
		select {
		case t.inbox <- env:
		case <-ctx.Done():
			return
		}
	}
}
