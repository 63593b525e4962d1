package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/riskibarqy/point-farm/internal/domain/affiliate"
	"github.com/riskibarqy/point-farm/internal/domain/broadcast"
	"github.com/riskibarqy/point-farm/internal/domain/catalog"
	"github.com/riskibarqy/point-farm/internal/domain/ledger"
	"github.com/riskibarqy/point-farm/internal/domain/market"
	"github.com/riskibarqy/point-farm/internal/domain/phase"
	"github.com/riskibarqy/point-farm/internal/domain/player"
	"github.com/riskibarqy/point-farm/internal/domain/result"
	"github.com/riskibarqy/point-farm/internal/domain/task"
	"github.com/riskibarqy/point-farm/internal/platform/cache"
	"github.com/riskibarqy/point-farm/internal/platform/eventbus"
	"github.com/riskibarqy/point-farm/internal/platform/id"
	"github.com/riskibarqy/point-farm/internal/platform/logging"
	"github.com/riskibarqy/point-farm/internal/platform/random"
	"github.com/riskibarqy/point-farm/internal/platform/resilience"
	"github.com/riskibarqy/point-farm/internal/platform/scheduler"
)

var errSessionClosed = fmt.Errorf("%w: session closed", ErrInvalidState)

// SessionConfig identifies the local participant.
type SessionConfig struct {
	SessionID  string
	PlayerID   string
	PlayerName string
	Avatar     string
}

// SessionDeps are the stores and ports a session is built from. Nil
// optional fields fall back to defaults.
type SessionDeps struct {
	Settings         GameSettings
	Catalog          *catalog.Catalog
	Tasks            *task.Registry
	Rules            *phase.Rules
	LedgerRepo       ledger.Repository
	AffiliateRepo    affiliate.Repository
	ResultRepo       result.Repository
	LeaderboardCache *cache.Store[[]result.Standing]
	Breaker          *resilience.CircuitBreaker
	ArchiveWorkers   int
	Transport        broadcast.Transport
	IDs              id.Generator
	Logger           *logging.Logger
}

// Collaborators are the callbacks presentation code uses. Every write goes
// through the ledger or the shop.
type Collaborators struct {
	CheckCurrentPoints func() int64
	DeductPoints       func(ctx context.Context, amount int64, reason string) error
	ItemPurchased      func(ctx context.Context, itemID string) error
	CheckOwnership     func(itemID string) bool
	GetRemainingTime   func() int64
	IsTimelineUnlocked func() bool
}

// Session is one participant's game instance. All state changes run one at
// a time under a single lock; outbound messages are queued while the lock
// is held and flushed afterwards in sequence order.
type Session struct {
	cfg       SessionConfig
	catalog   *catalog.Catalog
	transport broadcast.Transport
	logger    *logging.Logger

	game       *GameContext
	ledger     *PointLedger
	phases     *PhaseMachine
	market     *MarketManager
	tasks      *TaskService
	shop       *ShopService
	affiliate  *AffiliateTimeline
	settlement *SettlementService
	ranking    *RankingService

	mu       sync.Mutex
	joined   bool
	archived bool
	closed   bool
	lastSeen map[string]uint64

	outMu     sync.Mutex
	outbox    []broadcast.Envelope
	seq       uint64
	lastScore *int64

	sendMu sync.Mutex

	ended     chan struct{}
	endedOnce sync.Once
}

func NewSession(cfg SessionConfig, deps SessionDeps) (*Session, error) {
	cfg.SessionID = strings.TrimSpace(cfg.SessionID)
	cfg.PlayerID = strings.TrimSpace(cfg.PlayerID)
	cfg.PlayerName = strings.TrimSpace(cfg.PlayerName)
	if cfg.SessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	if cfg.PlayerID == "" || cfg.PlayerID == player.ActiveInstanceID {
		return nil, fmt.Errorf("%w: player id is required", ErrInvalidInput)
	}
	if err := deps.Settings.Validate(); err != nil {
		return nil, err
	}
	if deps.LedgerRepo == nil || deps.AffiliateRepo == nil {
		return nil, fmt.Errorf("%w: ledger and affiliate repositories are required", ErrInvalidInput)
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.With("session_id", cfg.SessionID, "player_id", cfg.PlayerID)

	c := deps.Catalog
	if c == nil {
		c = catalog.Default()
	}
	registry := deps.Tasks
	if registry == nil {
		registry = task.DefaultRegistry()
	}
	rules := phase.DefaultRules()
	if deps.Rules != nil {
		rules = *deps.Rules
	}
	ids := deps.IDs
	if ids == nil {
		ids = id.NewUUIDGenerator()
	}

	s := &Session{
		cfg:       cfg,
		catalog:   c,
		transport: deps.Transport,
		logger:    logger.Named("session"),
		lastSeen:  make(map[string]uint64),
		ended:     make(chan struct{}),
	}

	s.game = NewGameContext(deps.Settings, eventbus.New(), scheduler.New(), logger)
	s.game.SetScoreSink(s)
	s.ledger = NewPointLedger(s.game, deps.LedgerRepo, ids, logger)
	s.phases = NewPhaseMachine(s.game, rules, logger)

	switch deps.Settings.Mode {
	case market.ModeSolo:
		s.market = NewSoloMarket(s.game, c, random.NewSeeded(deps.Settings.MarketSeed), logger)
	default:
		rng, err := random.NewAuthority()
		if err != nil {
			return nil, fmt.Errorf("create authority random source: %w", err)
		}
		s.market = NewSharedMarket(s.game, c, rng, s, logger)
	}

	s.tasks = NewTaskService(s.game, s.ledger, s.phases, registry, s, logger)
	s.shop = NewShopService(s.game, s.ledger, s.market, s.phases, s.tasks, c, logger)
	s.affiliate = NewAffiliateTimeline(AffiliateTimelineDeps{
		Game:        s.game,
		Ledger:      s.ledger,
		Market:      s.market,
		Phases:      s.phases,
		Tasks:       s.tasks,
		Catalog:     c,
		Repo:        deps.AffiliateRepo,
		IDs:         ids,
		Broadcaster: s,
		Logger:      logger,
	})
	s.settlement = NewSettlementService(s.game, s.ledger, s.phases, c, logger)
	s.ranking = NewRankingService(RankingServiceDeps{
		SessionID:  cfg.SessionID,
		Game:       s.game,
		Settlement: s.settlement,
		Repo:       deps.ResultRepo,
		Cache:      deps.LeaderboardCache,
		Breaker:    deps.Breaker,
		Workers:    deps.ArchiveWorkers,
		Logger:     logger,
	})
	return s, nil
}

func (s *Session) ID() string                     { return s.cfg.SessionID }
func (s *Session) Game() *GameContext             { return s.game }
func (s *Session) Ledger() *PointLedger           { return s.ledger }
func (s *Session) Phases() *PhaseMachine          { return s.phases }
func (s *Session) Market() *MarketManager         { return s.market }
func (s *Session) Tasks() *TaskService            { return s.tasks }
func (s *Session) Shop() *ShopService             { return s.shop }
func (s *Session) Affiliate() *AffiliateTimeline  { return s.affiliate }
func (s *Session) Settlement() *SettlementService { return s.settlement }
func (s *Session) Ranking() *RankingService       { return s.ranking }

// Ended is closed once settlement has run and standings were archived.
func (s *Session) Ended() <-chan struct{} {
	return s.ended
}

// Do runs fn with exclusive access to the session state.
func (s *Session) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errSessionClosed
	}
	err := fn(ctx)
	s.sendMu.Lock()
	s.mu.Unlock()

	s.flush(ctx)
	s.sendMu.Unlock()
	return err
}

// Join puts the local player into the roster, starts the market and
// announces the player to the session.
func (s *Session) Join(ctx context.Context) error {
	return s.Do(ctx, func(ctx context.Context) error {
		if s.joined {
			return nil
		}
		me, err := s.game.AssignLocalID(s.cfg.PlayerID, player.Profile{Name: s.cfg.PlayerName, Avatar: s.cfg.Avatar})
		if err != nil {
			return err
		}
		s.joined = true
		s.market.Start()
		s.logger.InfoContext(ctx, "joined session", "mode", string(s.market.Mode()))
		return s.Broadcast(ctx, playerJoinedFrom(me))
	})
}

// Step advances the game by one frame.
func (s *Session) Step(ctx context.Context) error {
	return s.Do(ctx, s.step)
}

func (s *Session) step(ctx context.Context) error {
	if s.game.Paused() || s.game.Phase() == phase.Ended {
		return nil
	}

	s.game.Scheduler().Advance()
	s.game.DecrementRemainingFrame()

	if s.game.Phase() == phase.Settlement && !s.settlement.Done() {
		if _, err := s.settlement.Settle(ctx); err != nil {
			return fmt.Errorf("settle: %w", err)
		}
	}
	if s.game.Phase() == phase.Ended && !s.archived {
		s.archived = true
		s.market.Stop()
		if s.ranking.repo != nil {
			if _, err := s.ranking.Archive(ctx); err != nil {
				s.logger.WarnContext(ctx, "archive standings failed", "error", err)
			}
		}
		s.endedOnce.Do(func() { close(s.ended) })
	}
	return nil
}

// HandleEnvelope applies one inbound message. Echoes of the local player's
// own messages and already seen sequence numbers are dropped.
func (s *Session) HandleEnvelope(ctx context.Context, env broadcast.Envelope) error {
	return s.Do(ctx, func(ctx context.Context) error {
		return s.handle(ctx, env)
	})
}

func (s *Session) handle(ctx context.Context, env broadcast.Envelope) error {
	if env.SenderID == "" || env.Payload == nil {
		return fmt.Errorf("%w: envelope without sender or payload", ErrInvalidInput)
	}
	if env.SenderID == s.game.LocalPlayerID() {
		return nil
	}
	if env.Seq != 0 {
		if env.Seq <= s.lastSeen[env.SenderID] {
			s.logger.DebugContext(ctx, "duplicate envelope dropped", "sender_id", env.SenderID, "seq", env.Seq)
			return nil
		}
		s.lastSeen[env.SenderID] = env.Seq
	}

	switch msg := env.Payload.(type) {
	case broadcast.ScoreUpdate:
		return s.applyScore(env.SenderID, msg)
	case broadcast.ProfileUpdate:
		return s.tasks.ApplyRemoteProfile(env.SenderID, msg)
	case broadcast.PriceUpdate:
		return s.market.ApplyPriceUpdate(ctx, env.SenderID, msg)
	case broadcast.AffiliatePostShared:
		return s.affiliate.ApplyRemotePost(ctx, env.SenderID, msg)
	case broadcast.AffiliatePurchase:
		return s.affiliate.ApplyRemotePurchase(ctx, env.SenderID, msg)
	case broadcast.PlayerJoined:
		return s.applyJoined(ctx, env.SenderID, msg)
	case broadcast.TaskCompletion:
		return s.tasks.ApplyRemoteTaskCompletion(env.SenderID, msg)
	case broadcast.PlayerLeft:
		if env.SenderID != msg.PlayerID {
			return fmt.Errorf("%w: sender=%s player=%s", ErrForeignRecord, env.SenderID, msg.PlayerID)
		}
		s.game.RemovePlayer(msg.PlayerID)
		delete(s.lastSeen, msg.PlayerID)
		return nil
	default:
		return fmt.Errorf("%w: %s", broadcast.ErrUnknownKind, env.Kind)
	}
}

func (s *Session) applyScore(senderID string, msg broadcast.ScoreUpdate) error {
	if senderID != msg.PlayerID {
		return fmt.Errorf("%w: sender=%s player=%s", ErrForeignRecord, senderID, msg.PlayerID)
	}
	remote, ok := s.game.Player(msg.PlayerID)
	if !ok {
		return fmt.Errorf("%w: player=%s", ErrNotFound, msg.PlayerID)
	}
	if remote.Points == msg.Score {
		return nil
	}
	remote.Points = msg.Score
	return s.game.ApplyRemotePlayer(remote)
}

func (s *Session) applyJoined(ctx context.Context, senderID string, msg broadcast.PlayerJoined) error {
	if senderID != msg.PlayerID {
		return fmt.Errorf("%w: sender=%s player=%s", ErrForeignRecord, senderID, msg.PlayerID)
	}

	remote := player.New(msg.PlayerID, player.Profile{Name: msg.Profile.Name, Avatar: msg.Profile.Avatar}, msg.JoinedAt)
	remote.Points = msg.Points
	remote.LastActiveAt = msg.LastActiveAt
	for _, owned := range msg.OwnedItems {
		item, err := s.catalog.Lookup(owned.ItemID)
		if err != nil {
			s.logger.WarnContext(ctx, "unknown item in joined player inventory", "item_id", owned.ItemID, "player_id", msg.PlayerID)
			continue
		}
		remote.OwnedItems = append(remote.OwnedItems, player.OwnedItem{Item: item, PurchasedAt: owned.PurchasedAt})
	}

	added, err := s.game.AddPlayer(remote)
	if err != nil {
		return err
	}
	if !added {
		return s.game.ApplyRemotePlayer(remote)
	}

	s.logger.InfoContext(ctx, "player joined", "remote_id", msg.PlayerID, "authority_id", s.game.AuthorityID())
	if !s.joined {
		return nil
	}
	// Introduce ourselves so the newcomer mirrors us too.
	return s.Broadcast(ctx, playerJoinedFrom(s.game.CurrentPlayer()))
}

// Broadcast queues msg for every other participant. It is a no-op without
// a transport.
func (s *Session) Broadcast(_ context.Context, msg broadcast.Message) error {
	if s.transport == nil || msg == nil {
		return nil
	}
	sender := s.game.LocalPlayerID()
	if sender == player.ActiveInstanceID {
		return nil
	}

	s.outMu.Lock()
	defer s.outMu.Unlock()
	s.seq++
	s.outbox = append(s.outbox, broadcast.Envelope{
		Kind:     msg.Kind(),
		SenderID: sender,
		Seq:      s.seq,
		SentAt:   s.game.Now(),
		Payload:  msg,
	})
	return nil
}

// PublishScore broadcasts the local balance when it changed.
func (s *Session) PublishScore(playerID string, score int64) {
	s.outMu.Lock()
	unchanged := s.lastScore != nil && *s.lastScore == score
	if !unchanged {
		s.lastScore = &score
	}
	s.outMu.Unlock()

	if unchanged || playerID == player.ActiveInstanceID {
		return
	}
	_ = s.Broadcast(context.Background(), broadcast.ScoreUpdate{PlayerID: playerID, Score: score})
}

func (s *Session) flush(ctx context.Context) {
	s.outMu.Lock()
	pending := s.outbox
	s.outbox = nil
	s.outMu.Unlock()

	for _, env := range pending {
		if err := s.transport.Send(ctx, env); err != nil {
			s.logger.WarnContext(ctx, "send envelope failed",
				"kind", string(env.Kind),
				"seq", env.Seq,
				"error", err,
			)
		}
	}
}

// Run drives the session at the configured tick rate and applies inbound
// messages until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(s.game.Settings().TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var inbound <-chan broadcast.Envelope
	if s.transport != nil {
		inbound = s.transport.Receive()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Step(ctx); err != nil {
				if errors.Is(err, errSessionClosed) {
					return nil
				}
				s.logger.WarnContext(ctx, "step failed", "error", err)
			}
		case env, ok := <-inbound:
			if !ok {
				s.logger.WarnContext(ctx, "transport closed, continuing offline")
				inbound = nil
				continue
			}
			if err := s.HandleEnvelope(ctx, env); err != nil {
				s.logger.WarnContext(ctx, "inbound message rejected",
					"kind", string(env.Kind),
					"sender_id", env.SenderID,
					"error", err,
				)
			}
		}
	}
}

// Close announces departure, cancels timers and releases the transport.
func (s *Session) Close(ctx context.Context) error {
	err := s.Do(ctx, func(ctx context.Context) error {
		s.market.Stop()
		if s.joined {
			return s.Broadcast(ctx, broadcast.PlayerLeft{PlayerID: s.game.LocalPlayerID()})
		}
		return nil
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.phases.Close()
	s.ranking.Close()
	s.game.Close()
	s.mu.Unlock()

	if s.transport != nil {
		err = errors.Join(err, s.transport.Close())
	}
	return err
}

// Collaborators exposes the presentation callbacks.
func (s *Session) Collaborators() Collaborators {
	return Collaborators{
		CheckCurrentPoints: func() int64 {
			return s.game.CurrentPlayer().Points
		},
		DeductPoints: func(ctx context.Context, amount int64, reason string) error {
			return s.Do(ctx, func(ctx context.Context) error {
				_, err := s.ledger.Deduct(ctx, amount, ledger.SourceShop, reason)
				return err
			})
		},
		ItemPurchased: func(ctx context.Context, itemID string) error {
			return s.Do(ctx, func(ctx context.Context) error {
				_, err := s.shop.Purchase(ctx, itemID)
				return err
			})
		},
		CheckOwnership: func(itemID string) bool {
			return s.game.CurrentPlayer().Owns(itemID)
		},
		GetRemainingTime: func() int64 {
			return s.game.RemainingSeconds()
		},
		IsTimelineUnlocked: func() bool {
			return s.phases.IsUnlocked(phase.FeatureTimeline)
		},
	}
}

func playerJoinedFrom(p player.Player) broadcast.PlayerJoined {
	owned := make([]broadcast.OwnedItem, 0, len(p.OwnedItems))
	for _, item := range p.OwnedItems {
		owned = append(owned, broadcast.OwnedItem{ItemID: item.Item.ID, PurchasedAt: item.PurchasedAt})
	}
	return broadcast.PlayerJoined{
		PlayerID:     p.ID,
		Profile:      broadcast.Profile{Name: p.Profile.Name, Avatar: p.Profile.Avatar},
		Points:       p.Points,
		OwnedItems:   owned,
		JoinedAt:     p.JoinedAt,
		LastActiveAt: p.LastActiveAt,
	}
}
