package usecase

import (
	"context"

	"github.com/riskibarqy/point-farm/internal/domain/broadcast"
)

// Broadcaster publishes a message to every other session participant.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg broadcast.Message) error
}

type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(context.Context, broadcast.Message) error { return nil }

func broadcasterOrNoop(b Broadcaster) Broadcaster {
	if b == nil {
		return noopBroadcaster{}
	}
	return b
}
