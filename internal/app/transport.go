package app

import (
	"context"
	"fmt"

	"github.com/riskibarqy/point-farm/internal/config"
	"github.com/riskibarqy/point-farm/internal/domain/broadcast"
	busmemory "github.com/riskibarqy/point-farm/internal/infrastructure/bus/memory"
	"github.com/riskibarqy/point-farm/internal/infrastructure/bus/websocket"
	"github.com/riskibarqy/point-farm/internal/platform/logging"
)

const memoryHubBuffer = 256

func newTransport(ctx context.Context, cfg config.Config, playerID string, logger *logging.Logger) (broadcast.Transport, error) {
	switch cfg.BusDriver {
	case config.BusDriverWebsocket:
		t, err := websocket.Dial(ctx, cfg.BusURL, playerID, logger)
		if err != nil {
			return nil, fmt.Errorf("connect session bus: %w", err)
		}
		logger.Info("session bus connected", "driver", cfg.BusDriver)
		return t, nil
	default:
		ep, err := busmemory.NewHub(memoryHubBuffer, logger).Connect(playerID)
		if err != nil {
			return nil, fmt.Errorf("connect memory hub: %w", err)
		}
		return ep, nil
	}
}
