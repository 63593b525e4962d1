package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/riskibarqy/point-farm/internal/domain/market"
	"github.com/riskibarqy/point-farm/internal/domain/result"
	busmemory "github.com/riskibarqy/point-farm/internal/infrastructure/bus/memory"
	"github.com/riskibarqy/point-farm/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/point-farm/internal/platform/id"
	"github.com/riskibarqy/point-farm/internal/platform/logging"
	"github.com/riskibarqy/point-farm/internal/platform/random"
	"github.com/riskibarqy/point-farm/internal/usecase"
	"github.com/sourcegraph/conc/pool"
)

type options struct {
	players  int
	mode     string
	duration time.Duration
	tickRate int
	seed     uint64
	logLevel string
}

func main() {
	var opts options
	flag.IntVar(&opts.players, "players", 4, "number of scripted players")
	flag.StringVar(&opts.mode, "mode", string(market.ModeShared), "market mode: multi or ranking")
	flag.DurationVar(&opts.duration, "duration", 90*time.Second, "simulated game length")
	flag.IntVar(&opts.tickRate, "tick-rate", 20, "simulated frames per second")
	flag.Uint64Var(&opts.seed, "seed", 1, "seed for bot decisions and the solo market")
	flag.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	flag.Parse()

	logger := logging.NewJSON(logging.ParseLevel(opts.logLevel)).Named("simulate")
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	standings, err := simulate(ctx, opts, logger)
	if err != nil {
		logger.Error("simulation failed", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	printStandings(os.Stdout, standings)
}

// simulate runs every bot in lockstep, one frame at a time, until all
// sessions have settled. It returns the first player's final leaderboard.
func simulate(ctx context.Context, opts options, logger *logging.Logger) ([]result.Standing, error) {
	if opts.players < 1 {
		return nil, fmt.Errorf("players must be > 0")
	}
	mode, err := market.ParseMode(opts.mode)
	if err != nil {
		return nil, err
	}

	settings := usecase.DefaultGameSettings()
	settings.Mode = mode
	settings.TickRate = opts.tickRate
	settings.TimeLimitFrames = usecase.FramesFor(opts.duration, opts.tickRate)
	settings.NotificationTTLFrames = usecase.FramesFor(3*time.Second, opts.tickRate)
	settings.AdCooldownFrames = usecase.FramesFor(time.Second, opts.tickRate)
	settings.MarketInitialDelayFrames = usecase.FramesFor(time.Second, opts.tickRate)
	settings.MarketIntervalFrames = usecase.FramesFor(3*time.Second, opts.tickRate)
	settings.RosterSyncFrames = usecase.FramesFor(time.Second, opts.tickRate)
	settings.MarketSeed = opts.seed

	hub := busmemory.NewHub(1024, logger)
	bots := make([]*bot, 0, opts.players)
	defer func() {
		for _, b := range bots {
			_ = b.session.Close(context.WithoutCancel(ctx))
		}
	}()

	for i := 0; i < opts.players; i++ {
		name := fmt.Sprintf("bot-%02d", i+1)
		endpoint, err := hub.Connect(name)
		if err != nil {
			return nil, err
		}
		session, err := usecase.NewSession(usecase.SessionConfig{
			SessionID:  "simulation",
			PlayerID:   name,
			PlayerName: name,
		}, usecase.SessionDeps{
			Settings:      settings,
			LedgerRepo:    memory.NewLedgerRepository(),
			AffiliateRepo: memory.NewAffiliateRepository(),
			ResultRepo:    memory.NewResultRepository(),
			Transport:     endpoint,
			IDs:           id.NewSequenceGenerator(name),
			Logger:        logger,
		})
		if err != nil {
			_ = endpoint.Close()
			return nil, err
		}
		bots = append(bots, &bot{
			name:     name,
			session:  session,
			endpoint: endpoint,
			rng:      random.NewSeeded(opts.seed + uint64(i)),
			shared:   make(map[string]bool),
			logger:   logger.With("player_id", name),
		})
	}

	for _, b := range bots {
		if err := b.session.Join(ctx); err != nil {
			return nil, fmt.Errorf("%s join: %w", b.name, err)
		}
	}

	// A couple of frames past the limit lets settlement and the final score
	// broadcasts land on every peer.
	maxFrames := settings.TimeLimitFrames + 2*int64(opts.tickRate)
	for frame := int64(0); frame < maxFrames && !allEnded(bots); frame++ {
		p := pool.New().WithContext(ctx).WithCancelOnError()
		for _, b := range bots {
			p.Go(b.frame)
		}
		if err := p.Wait(); err != nil {
			return nil, err
		}
	}
	for _, b := range bots {
		b.drain(ctx)
	}
	if !allEnded(bots) {
		return nil, fmt.Errorf("simulation did not reach the end of the game")
	}

	var standings []result.Standing
	err = bots[0].session.Do(ctx, func(ctx context.Context) error {
		var err error
		standings, err = bots[0].session.Ranking().Leaderboard(ctx)
		return err
	})
	return standings, err
}

func allEnded(bots []*bot) bool {
	for _, b := range bots {
		select {
		case <-b.session.Ended():
		default:
			return false
		}
	}
	return true
}

func printStandings(w io.Writer, standings []result.Standing) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPLAYER\tPOINTS")
	for _, s := range standings {
		fmt.Fprintf(tw, "%d\t%s\t%d\n", s.Rank, s.PlayerName, s.FinalPoints)
	}
	_ = tw.Flush()
}
