package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/riskibarqy/point-farm/internal/config"
	"github.com/riskibarqy/point-farm/internal/domain/affiliate"
	"github.com/riskibarqy/point-farm/internal/domain/market"
	"github.com/riskibarqy/point-farm/internal/platform/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	return config.Config{
		AppEnv:               config.EnvDev,
		ServiceName:          "point-farm",
		HTTPAddr:             ":0",
		ReadTimeout:          time.Second,
		WriteTimeout:         time.Second,
		SessionID:            "s-1",
		PlayerName:           "Tester",
		GameMode:             market.ModeSolo,
		GameTickRate:         60,
		GameTimeLimit:        time.Minute,
		GameNotificationTTL:  3 * time.Second,
		GameAdReward:         10,
		GameAdCooldown:       time.Second,
		MarketInitialDelay:   time.Second,
		MarketRecalcInterval: 3 * time.Second,
		BusDriver:            config.BusDriverMemory,
		RelayEnabled:         true,
		CacheTTL:             time.Second,
		ArchiveWorkers:       2,
		MarketParams:         market.DefaultParams(),
		AffiliateRewardRate:  affiliate.DefaultRewardRate,
	}
}

func TestNew_MemoryStack(t *testing.T) {
	cfg := testConfig()
	a, err := New(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	require.NoError(t, a.Session.Join(context.Background()))
	assert.NotEmpty(t, a.Session.Game().LocalPlayerID())

	rec := httptest.NewRecorder()
	a.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/state", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"phase":"INITIAL"`)
}

func TestNew_RequiresHTTPAddr(t *testing.T) {
	cfg := testConfig()
	cfg.HTTPAddr = " "
	_, err := New(context.Background(), cfg, logging.NewNop())
	require.Error(t, err)
}
