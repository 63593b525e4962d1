package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/riskibarqy/point-farm/internal/domain/market"
	"github.com/riskibarqy/point-farm/internal/platform/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulate_RunsToRanking(t *testing.T) {
	for _, mode := range []market.Mode{market.ModeShared, market.ModeSolo} {
		t.Run(string(mode), func(t *testing.T) {
			standings, err := simulate(t.Context(), options{
				players:  3,
				mode:     string(mode),
				duration: 20 * time.Second,
				tickRate: 10,
				seed:     7,
			}, logging.NewNop())
			require.NoError(t, err)
			require.Len(t, standings, 3)

			for i, s := range standings {
				assert.Positive(t, s.FinalPoints, s.PlayerID)
				if i > 0 {
					assert.GreaterOrEqual(t, standings[i-1].FinalPoints, s.FinalPoints)
					assert.GreaterOrEqual(t, s.Rank, standings[i-1].Rank)
				}
			}
			assert.Equal(t, 1, standings[0].Rank)
		})
	}
}

func TestSimulate_RejectsBadOptions(t *testing.T) {
	_, err := simulate(context.Background(), options{players: 0, mode: "multi", duration: time.Second, tickRate: 10}, logging.NewNop())
	require.Error(t, err)

	_, err = simulate(context.Background(), options{players: 2, mode: "arcade", duration: time.Second, tickRate: 10}, logging.NewNop())
	require.Error(t, err)
}

func TestPrintStandings(t *testing.T) {
	standings, err := simulate(t.Context(), options{players: 2, mode: "ranking", duration: 5 * time.Second, tickRate: 10, seed: 1}, logging.NewNop())
	require.NoError(t, err)

	var buf bytes.Buffer
	printStandings(&buf, standings)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "RANK"))
	assert.Contains(t, buf.String(), "bot-01")
	assert.Contains(t, buf.String(), "bot-02")
}
