package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/riskibarqy/point-farm/internal/domain/broadcast"
	"github.com/riskibarqy/point-farm/internal/domain/ledger"
	"github.com/riskibarqy/point-farm/internal/domain/phase"
	"github.com/riskibarqy/point-farm/internal/domain/player"
	"github.com/riskibarqy/point-farm/internal/domain/task"
	"github.com/riskibarqy/point-farm/internal/platform/logging"
)

const maxProfileNameLength = 32

// TaskStatus is a task definition with the local player's progress.
type TaskStatus struct {
	Definition task.Definition
	Completed  bool
}

// TaskService handles one-time tasks, ad clicks and profile edits.
type TaskService struct {
	game        *GameContext
	ledger      *PointLedger
	phases      *PhaseMachine
	registry    *task.Registry
	broadcaster Broadcaster
	logger      *logging.Logger

	mu          sync.Mutex
	lastAdFrame int64
	adClicked   bool
}

func NewTaskService(game *GameContext, pointLedger *PointLedger, phases *PhaseMachine, registry *task.Registry, broadcaster Broadcaster, logger *logging.Logger) *TaskService {
	if logger == nil {
		logger = logging.Default()
	}
	return &TaskService{
		game:        game,
		ledger:      pointLedger,
		phases:      phases,
		registry:    registry,
		broadcaster: broadcasterOrNoop(broadcaster),
		logger:      logger.Named("tasks"),
	}
}

func (s *TaskService) Tasks() []TaskStatus {
	current := s.game.CurrentPlayer()
	defs := s.registry.All()
	out := make([]TaskStatus, 0, len(defs))
	for _, def := range defs {
		out = append(out, TaskStatus{Definition: def, Completed: current.HasCompleted(def.ID)})
	}
	return out
}

// CompleteTask marks a task done and pays its reward once. The profile task
// is available from the start; every other task needs the tasks feature.
func (s *TaskService) CompleteTask(ctx context.Context, id task.ID) (player.Player, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.TaskService.CompleteTask")
	defer span.End()

	if id != task.Profile {
		if err := s.phases.Require(phase.FeatureTasks); err != nil {
			return player.Player{}, err
		}
	}
	return s.complete(ctx, id)
}

func (s *TaskService) complete(ctx context.Context, id task.ID) (player.Player, error) {
	if s.game.Phase() >= phase.Settlement {
		return player.Player{}, fmt.Errorf("%w: task %s", ErrGameOver, id)
	}
	def, err := s.registry.Lookup(id)
	if err != nil {
		return player.Player{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	current := s.game.CurrentPlayer()
	if current.HasCompleted(id) {
		return player.Player{}, fmt.Errorf("%w: %s", task.ErrAlreadyCompleted, id)
	}
	if err := s.game.UpdateCurrentPlayer(current.WithTaskCompleted(id, s.game.Now())); err != nil {
		return player.Player{}, fmt.Errorf("mark task completed: %w", err)
	}

	updated, err := s.ledger.Award(ctx, def.Reward, ledger.SourceTask, "task: "+def.Name)
	if err != nil {
		if rollbackErr := s.game.UpdateCurrentPlayer(current); rollbackErr != nil {
			s.logger.ErrorContext(ctx, "roll back task completion failed", "task_id", string(id), "error", rollbackErr)
		}
		return player.Player{}, fmt.Errorf("award task reward: %w", err)
	}

	s.game.bus.Publish(EventTaskAchieved, TaskAchievedEvent{PlayerID: updated.ID, Task: def})
	if err := s.broadcaster.Broadcast(ctx, broadcast.TaskCompletion{PlayerID: updated.ID, TaskID: string(id)}); err != nil {
		s.logger.WarnContext(ctx, "broadcast task completion failed", "task_id", string(id), "error", err)
	}
	return updated, nil
}

// completeOnce completes id unless it is already done.
func (s *TaskService) completeOnce(ctx context.Context, id task.ID) {
	if s.game.CurrentPlayer().HasCompleted(id) {
		return
	}
	if _, err := s.complete(ctx, id); err != nil && !errors.Is(err, task.ErrAlreadyCompleted) {
		s.logger.WarnContext(ctx, "auto-complete task failed", "task_id", string(id), "error", err)
	}
}

// ClickAd pays the ad reward, subject to a per-instance cooldown.
func (s *TaskService) ClickAd(ctx context.Context) (player.Player, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.TaskService.ClickAd")
	defer span.End()

	if err := s.phases.Require(phase.FeatureAds); err != nil {
		return player.Player{}, err
	}
	if s.game.Phase() >= phase.Settlement {
		return player.Player{}, ErrGameOver
	}

	frame := s.game.Scheduler().Frame()
	cooldown := s.game.Settings().AdCooldownFrames
	s.mu.Lock()
	if s.adClicked && frame-s.lastAdFrame < cooldown {
		wait := cooldown - (frame - s.lastAdFrame)
		s.mu.Unlock()
		return player.Player{}, fmt.Errorf("%w: %d frames left", ErrAdCooldown, wait)
	}
	s.adClicked = true
	s.lastAdFrame = frame
	s.mu.Unlock()

	if _, err := s.ledger.Award(ctx, s.game.Settings().AdReward, ledger.SourceAd, "ad click"); err != nil {
		return player.Player{}, err
	}
	s.completeOnce(ctx, task.FirstAd)
	return s.game.CurrentPlayer(), nil
}

// UpdateProfile sets the local name and avatar and completes the profile
// task the first time.
func (s *TaskService) UpdateProfile(ctx context.Context, name, avatar string) (player.Player, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.TaskService.UpdateProfile")
	defer span.End()

	name = strings.TrimSpace(name)
	avatar = strings.TrimSpace(avatar)
	if name == "" {
		return player.Player{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len([]rune(name)) > maxProfileNameLength {
		return player.Player{}, fmt.Errorf("%w: name must be at most %d characters", ErrInvalidInput, maxProfileNameLength)
	}

	current := s.game.CurrentPlayer()
	current.Profile = player.Profile{Name: name, Avatar: avatar}
	if err := s.game.UpdateCurrentPlayer(current); err != nil {
		return player.Player{}, fmt.Errorf("update profile: %w", err)
	}
	if err := s.broadcaster.Broadcast(ctx, broadcast.ProfileUpdate{PlayerID: current.ID, Name: name, Avatar: avatar}); err != nil {
		s.logger.WarnContext(ctx, "broadcast profile failed", "error", err)
	}

	if s.game.Phase() < phase.Settlement {
		s.completeOnce(ctx, task.Profile)
	}
	return s.game.CurrentPlayer(), nil
}

// ApplyRemoteProfile mirrors another participant's profile.
func (s *TaskService) ApplyRemoteProfile(senderID string, msg broadcast.ProfileUpdate) error {
	if senderID != msg.PlayerID {
		return fmt.Errorf("%w: sender=%s player=%s", ErrForeignRecord, senderID, msg.PlayerID)
	}
	remote, ok := s.game.Player(msg.PlayerID)
	if !ok {
		return fmt.Errorf("%w: player=%s", ErrNotFound, msg.PlayerID)
	}
	remote.Profile = player.Profile{Name: msg.Name, Avatar: msg.Avatar}
	return s.game.ApplyRemotePlayer(remote)
}

// ApplyRemoteTaskCompletion mirrors another participant's task progress.
func (s *TaskService) ApplyRemoteTaskCompletion(senderID string, msg broadcast.TaskCompletion) error {
	if senderID != msg.PlayerID {
		return fmt.Errorf("%w: sender=%s player=%s", ErrForeignRecord, senderID, msg.PlayerID)
	}
	def, err := s.registry.Lookup(task.ID(msg.TaskID))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	remote, ok := s.game.Player(msg.PlayerID)
	if !ok {
		return fmt.Errorf("%w: player=%s", ErrNotFound, msg.PlayerID)
	}
	if remote.HasCompleted(def.ID) {
		return nil
	}
	if err := s.game.ApplyRemotePlayer(remote.WithTaskCompleted(def.ID, s.game.Now())); err != nil {
		return err
	}
	s.game.bus.Publish(EventTaskAchieved, TaskAchievedEvent{PlayerID: msg.PlayerID, Task: def})
	return nil
}
