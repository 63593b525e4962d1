package usecase

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/riskibarqy/point-farm/internal/domain/phase"
	"github.com/riskibarqy/point-farm/internal/domain/player"
	"github.com/riskibarqy/point-farm/internal/domain/task"
	"github.com/riskibarqy/point-farm/internal/platform/eventbus"
	"github.com/riskibarqy/point-farm/internal/platform/logging"
	"github.com/riskibarqy/point-farm/internal/platform/scheduler"
)

const (
	EventPlayerUpdated       eventbus.Topic = "playerUpdated"
	EventPhaseChanged        eventbus.Topic = "phaseChanged"
	EventTimeUpdated         eventbus.Topic = "timeUpdated"
	EventTimeEnded           eventbus.Topic = "timeEnded"
	EventTaskAchieved        eventbus.Topic = "taskAchieved"
	EventNotificationAdded   eventbus.Topic = "notificationAdded"
	EventNotificationRemoved eventbus.Topic = "notificationRemoved"
	EventPauseChanged        eventbus.Topic = "pauseChanged"
)

type PlayerUpdatedEvent struct {
	Player   player.Player
	Previous player.Player
	Local    bool
}

type PhaseChangedEvent struct {
	From   phase.Phase
	To     phase.Phase
	Forced bool
}

type TimeUpdatedEvent struct {
	RemainingFrames  int64
	RemainingSeconds int64
}

type TimeEndedEvent struct{}

type TaskAchievedEvent struct {
	PlayerID string
	Task     task.Definition
}

type Notification struct {
	ID           uint64
	Message      string
	CreatedFrame int64
}

type PauseChangedEvent struct {
	Paused bool
}

// ScoreSink receives the local player's balance after every local update.
type ScoreSink interface {
	PublishScore(playerID string, score int64)
}

// GameContext holds the local player, the mirrored roster, the phase and
// the countdown. Only the local record is writable through
// UpdateCurrentPlayer; remote records are replaced from inbound messages.
type GameContext struct {
	mu       sync.RWMutex
	settings GameSettings
	bus      *eventbus.Bus
	sched    *scheduler.Scheduler
	logger   *logging.Logger
	now      func() time.Time

	localID         string
	joinedFrame     int64
	heardPeer       bool
	players         map[string]player.Player
	phase           phase.Phase
	remainingFrames int64
	timeEnded       bool
	paused          bool

	notifications  []Notification
	notificationID uint64
	scoreSink      ScoreSink
}

func NewGameContext(settings GameSettings, bus *eventbus.Bus, sched *scheduler.Scheduler, logger *logging.Logger) *GameContext {
	if logger == nil {
		logger = logging.Default()
	}
	if bus == nil {
		bus = eventbus.New()
	}
	if sched == nil {
		sched = scheduler.New()
	}

	g := &GameContext{
		settings:        settings,
		bus:             bus,
		sched:           sched,
		logger:          logger.Named("game"),
		now:             time.Now,
		localID:         player.ActiveInstanceID,
		players:         make(map[string]player.Player),
		phase:           phase.Initial,
		remainingFrames: settings.TimeLimitFrames,
	}
	g.players[g.localID] = player.New(g.localID, player.Profile{}, g.now())
	return g
}

func (g *GameContext) Settings() GameSettings {
	return g.settings
}

func (g *GameContext) Scheduler() *scheduler.Scheduler {
	return g.sched
}

func (g *GameContext) Now() time.Time {
	return g.now()
}

func (g *GameContext) SetScoreSink(sink ScoreSink) {
	g.mu.Lock()
	g.scoreSink = sink
	g.mu.Unlock()
}

func (g *GameContext) Subscribe(topic eventbus.Topic, h eventbus.Handler) func() {
	return g.bus.Subscribe(topic, h)
}

func (g *GameContext) LocalPlayerID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.localID
}

// AssignLocalID re-keys the local record from the placeholder id to the id
// the session assigned.
func (g *GameContext) AssignLocalID(id string, profile player.Profile) (player.Player, error) {
	if id == "" || id == player.ActiveInstanceID {
		return player.Player{}, fmt.Errorf("%w: player id is required", ErrInvalidInput)
	}

	g.mu.Lock()
	if _, taken := g.players[id]; taken && id != g.localID {
		g.mu.Unlock()
		return player.Player{}, fmt.Errorf("%w: player id %s already in roster", ErrInvalidState, id)
	}
	previous := g.players[g.localID]
	current := previous.Clone()
	delete(g.players, g.localID)
	current.ID = id
	current.Profile = profile
	current.JoinedAt = g.now()
	current.LastActiveAt = current.JoinedAt
	g.localID = id
	g.joinedFrame = g.sched.Frame()
	g.players[id] = current
	g.mu.Unlock()

	g.bus.Publish(EventPlayerUpdated, PlayerUpdatedEvent{Player: current.Clone(), Previous: previous, Local: true})
	return current.Clone(), nil
}

func (g *GameContext) CurrentPlayer() player.Player {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.players[g.localID].Clone()
}

func (g *GameContext) Player(id string) (player.Player, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.players[id]
	if !ok {
		return player.Player{}, false
	}
	return p.Clone(), true
}

// Players returns the roster ordered by join time.
func (g *GameContext) Players() []player.Player {
	g.mu.RLock()
	out := make([]player.Player, 0, len(g.players))
	for _, p := range g.players {
		out = append(out, p.Clone())
	}
	g.mu.RUnlock()

	sortByJoin(out)
	return out
}

// AuthorityID is the earliest joined participant, ties broken by id.
func (g *GameContext) AuthorityID() string {
	roster := g.Players()
	if len(roster) == 0 {
		return ""
	}
	return roster[0].ID
}

// UpdateCurrentPlayer replaces the local record and republishes its score.
func (g *GameContext) UpdateCurrentPlayer(next player.Player) error {
	g.mu.Lock()
	if next.ID != g.localID {
		g.mu.Unlock()
		return fmt.Errorf("%w: local=%s got=%s", ErrForeignRecord, g.localID, next.ID)
	}
	previous := g.players[g.localID]
	next = next.Clone()
	next.LastActiveAt = g.now()
	g.players[next.ID] = next
	sink := g.scoreSink
	g.mu.Unlock()

	g.bus.Publish(EventPlayerUpdated, PlayerUpdatedEvent{Player: next.Clone(), Previous: previous, Local: true})
	if sink != nil {
		sink.PublishScore(next.ID, next.Points)
	}
	return nil
}

// ApplyRemotePlayer upserts a mirrored record. The local record cannot be
// overwritten this way.
func (g *GameContext) ApplyRemotePlayer(p player.Player) error {
	if p.ID == "" {
		return fmt.Errorf("%w: player id is required", ErrInvalidInput)
	}

	g.mu.Lock()
	if p.ID == g.localID {
		g.mu.Unlock()
		return fmt.Errorf("%w: remote update for local player %s", ErrForeignRecord, p.ID)
	}
	previous := g.players[p.ID]
	g.players[p.ID] = p.Clone()
	g.mu.Unlock()

	g.bus.Publish(EventPlayerUpdated, PlayerUpdatedEvent{Player: p.Clone(), Previous: previous, Local: false})
	return nil
}

// AddPlayer mirrors a remote participant. It reports false when the id is
// already known.
func (g *GameContext) AddPlayer(p player.Player) (bool, error) {
	if p.ID == "" {
		return false, fmt.Errorf("%w: player id is required", ErrInvalidInput)
	}

	g.mu.Lock()
	if _, exists := g.players[p.ID]; exists {
		g.mu.Unlock()
		return false, nil
	}
	g.players[p.ID] = p.Clone()
	g.heardPeer = true
	g.mu.Unlock()

	g.bus.Publish(EventPlayerUpdated, PlayerUpdatedEvent{Player: p.Clone(), Local: false})
	return true, nil
}

// RosterSynced reports whether the roster is complete enough to elect an
// authority from: another participant has been heard from, or the sync
// window passed after joining without anyone announcing themselves.
func (g *GameContext) RosterSynced() bool {
	g.mu.RLock()
	heard, joinedAt := g.heardPeer, g.joinedFrame
	g.mu.RUnlock()
	if heard {
		return true
	}
	return g.sched.Frame()-joinedAt >= g.settings.RosterSyncFrames
}

func (g *GameContext) RemovePlayer(id string) bool {
	g.mu.Lock()
	if id == g.localID {
		g.mu.Unlock()
		return false
	}
	previous, exists := g.players[id]
	delete(g.players, id)
	g.mu.Unlock()

	if exists {
		g.logger.Info("player left", "player_id", id)
		g.bus.Publish(EventPlayerUpdated, PlayerUpdatedEvent{Previous: previous, Local: false})
	}
	return exists
}

func (g *GameContext) Phase() phase.Phase {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.phase
}

// SetPhase moves the phase forward. Setting the current phase again is a
// no-op; moving backwards fails.
func (g *GameContext) SetPhase(next phase.Phase, forced bool) error {
	g.mu.Lock()
	current := g.phase
	if next == current {
		g.mu.Unlock()
		return nil
	}
	if next < current {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", phase.ErrRegression, current, next)
	}
	g.phase = next
	g.mu.Unlock()

	g.logger.Info("phase changed", "from", current.String(), "to", next.String(), "forced", forced)
	g.bus.Publish(EventPhaseChanged, PhaseChangedEvent{From: current, To: next, Forced: forced})
	return nil
}

// OverridePhase sets the phase without the monotonic check. It exists for
// debugging and tests only.
func (g *GameContext) OverridePhase(p phase.Phase) {
	g.mu.Lock()
	current := g.phase
	g.phase = p
	g.mu.Unlock()

	g.logger.Warn("phase overridden", "from", current.String(), "to", p.String())
	g.bus.Publish(EventPhaseChanged, PhaseChangedEvent{From: current, To: p, Forced: true})
}

func (g *GameContext) RemainingFrames() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.remainingFrames
}

func (g *GameContext) RemainingSeconds() int64 {
	return g.secondsFor(g.RemainingFrames())
}

func (g *GameContext) TotalFrames() int64 {
	return g.settings.TimeLimitFrames
}

// DecrementRemainingFrame consumes one frame of game time and reports
// whether time remains. timeEnded is published exactly once, on the frame
// that reaches zero.
func (g *GameContext) DecrementRemainingFrame() bool {
	g.mu.Lock()
	if g.remainingFrames <= 0 {
		g.mu.Unlock()
		return false
	}
	beforeSeconds := g.secondsFor(g.remainingFrames)
	g.remainingFrames--
	remaining := g.remainingFrames
	ended := false
	if remaining == 0 && !g.timeEnded {
		g.timeEnded = true
		ended = true
	}
	g.mu.Unlock()

	afterSeconds := g.secondsFor(remaining)
	if afterSeconds != beforeSeconds || remaining == 0 {
		g.bus.Publish(EventTimeUpdated, TimeUpdatedEvent{RemainingFrames: remaining, RemainingSeconds: afterSeconds})
	}
	if ended {
		g.logger.Info("time ended")
		g.bus.Publish(EventTimeEnded, TimeEndedEvent{})
	}
	return remaining > 0
}

func (g *GameContext) secondsFor(frames int64) int64 {
	if g.settings.TickRate <= 0 || frames <= 0 {
		return 0
	}
	rate := int64(g.settings.TickRate)
	return (frames + rate - 1) / rate
}

func (g *GameContext) Paused() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.paused
}

func (g *GameContext) SetPaused(paused bool) {
	g.mu.Lock()
	changed := g.paused != paused
	g.paused = paused
	g.mu.Unlock()

	if changed {
		g.bus.Publish(EventPauseChanged, PauseChangedEvent{Paused: paused})
	}
}

// Notify queues a transient message that is dismissed after the configured
// number of frames.
func (g *GameContext) Notify(message string) Notification {
	g.mu.Lock()
	g.notificationID++
	n := Notification{ID: g.notificationID, Message: message, CreatedFrame: g.sched.Frame()}
	g.notifications = append(g.notifications, n)
	g.mu.Unlock()

	g.bus.Publish(EventNotificationAdded, n)
	if ttl := g.settings.NotificationTTLFrames; ttl > 0 {
		g.sched.After(ttl, func() { g.DismissNotification(n.ID) })
	}
	return n
}

func (g *GameContext) DismissNotification(id uint64) bool {
	g.mu.Lock()
	var removed *Notification
	for i, n := range g.notifications {
		if n.ID == id {
			removed = &n
			g.notifications = append(g.notifications[:i:i], g.notifications[i+1:]...)
			break
		}
	}
	g.mu.Unlock()

	if removed == nil {
		return false
	}
	g.bus.Publish(EventNotificationRemoved, *removed)
	return true
}

func (g *GameContext) Notifications() []Notification {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Notification(nil), g.notifications...)
}

// Close drops every subscription and pending callback.
func (g *GameContext) Close() {
	g.sched.CancelAll()
	g.bus.Clear()
}

func sortByJoin(players []player.Player) {
	sort.SliceStable(players, func(i, j int) bool {
		if !players[i].JoinedAt.Equal(players[j].JoinedAt) {
			return players[i].JoinedAt.Before(players[j].JoinedAt)
		}
		return players[i].ID < players[j].ID
	})
}
