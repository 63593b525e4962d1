package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/riskibarqy/point-farm/internal/config"
	"github.com/riskibarqy/point-farm/internal/domain/result"
	"github.com/riskibarqy/point-farm/internal/infrastructure/bus/websocket"
	"github.com/riskibarqy/point-farm/internal/interfaces/httpapi"
	"github.com/riskibarqy/point-farm/internal/platform/cache"
	"github.com/riskibarqy/point-farm/internal/platform/id"
	"github.com/riskibarqy/point-farm/internal/platform/logging"
	"github.com/riskibarqy/point-farm/internal/platform/resilience"
	"github.com/riskibarqy/point-farm/internal/usecase"
	"github.com/sourcegraph/conc"
)

// App hosts one game instance and its HTTP surface.
type App struct {
	Session *usecase.Session
	Server  *http.Server

	repos  repositories
	logger *logging.Logger
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	ids := id.NewUUIDGenerator()
	playerID := cfg.PlayerID
	if playerID == "" {
		generated, err := ids.NewID()
		if err != nil {
			return nil, fmt.Errorf("generate player id: %w", err)
		}
		playerID = generated
	}

	repos, err := newRepositories(cfg, logger)
	if err != nil {
		return nil, err
	}

	transport, err := newTransport(ctx, cfg, playerID, logger)
	if err != nil {
		_ = repos.close()
		return nil, err
	}

	session, err := usecase.NewSession(usecase.SessionConfig{
		SessionID:  cfg.SessionID,
		PlayerID:   playerID,
		PlayerName: cfg.PlayerName,
	}, usecase.SessionDeps{
		Settings:         cfg.GameSettings(),
		LedgerRepo:       repos.ledger,
		AffiliateRepo:    repos.affiliate,
		ResultRepo:       repos.results,
		LeaderboardCache: cache.NewStore[[]result.Standing](cfg.CacheTTL),
		Breaker:          resilience.NewCircuitBreakerFromConfig(cfg.ArchiveCircuit),
		ArchiveWorkers:   cfg.ArchiveWorkers,
		Transport:        transport,
		IDs:              ids,
		Logger:           logger,
	})
	if err != nil {
		_ = transport.Close()
		_ = repos.close()
		return nil, fmt.Errorf("create session: %w", err)
	}

	var relay http.Handler
	if cfg.RelayEnabled {
		relay = websocket.NewRelay(logger, nil)
	}

	handler := httpapi.NewHandler(session, logger)
	router := httpapi.NewRouter(handler, relay, logger, cfg.CORSAllowedOrigins)

	return &App{
		Session: session,
		Server: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		repos:  repos,
		logger: logger.Named("app"),
	}, nil
}

// Run joins the session and serves HTTP until ctx is done or the server
// fails. The session keeps running after the game ends so the final
// state stays readable.
func (a *App) Run(ctx context.Context) error {
	if err := a.Session.Join(ctx); err != nil {
		return fmt.Errorf("join session: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg         conc.WaitGroup
		serveErr   error
		sessionErr error
	)
	wg.Go(func() {
		defer cancel()
		a.logger.Info("http server starting", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("serve http: %w", err)
		}
	})
	wg.Go(func() {
		if err := a.Session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			sessionErr = fmt.Errorf("run session: %w", err)
		}
	})
	wg.Go(func() {
		select {
		case <-a.Session.Ended():
			a.logger.Info("game ended", "session_id", a.Session.ID())
		case <-ctx.Done():
		}
	})
	wg.Go(func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), a.Server.WriteTimeout)
		defer done()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown failed", "error", err)
		}
	})
	wg.Wait()

	return errors.Join(serveErr, sessionErr)
}

// Close leaves the session and releases the archive database.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.Session.Close(ctx), a.repos.close())
}
