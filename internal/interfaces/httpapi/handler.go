package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/riskibarqy/point-farm/internal/domain/affiliate"
	"github.com/riskibarqy/point-farm/internal/domain/ledger"
	"github.com/riskibarqy/point-farm/internal/domain/phase"
	"github.com/riskibarqy/point-farm/internal/domain/player"
	"github.com/riskibarqy/point-farm/internal/domain/result"
	"github.com/riskibarqy/point-farm/internal/domain/task"
	"github.com/riskibarqy/point-farm/internal/platform/logging"
	"github.com/riskibarqy/point-farm/internal/usecase"
)

var allFeatures = []phase.Feature{phase.FeatureTasks, phase.FeatureAds, phase.FeatureShop, phase.FeatureTimeline}

// Handler serves the local player's view of one session. Every call runs
// through Session.Do so HTTP requests never race the frame loop.
type Handler struct {
	session   *usecase.Session
	logger    *logging.Logger
	validator *validator.Validate
}

func NewHandler(session *usecase.Session, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		session:   session,
		logger:    logger.Named("httpapi"),
		validator: validator.New(),
	}
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

func (h *Handler) decodeRequest(ctx context.Context, r *http.Request, dst any) error {
	decoder := jsoniter.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: request body is required", usecase.ErrInvalidInput)
		}
		return fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}
	return h.validateRequest(ctx, dst)
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetState")
	defer span.End()

	var out stateDTO
	err := h.session.Do(ctx, func(ctx context.Context) error {
		game := h.session.Game()
		unlocked := make([]string, 0, len(allFeatures))
		for _, f := range allFeatures {
			if h.session.Phases().IsUnlocked(f) {
				unlocked = append(unlocked, string(f))
			}
		}
		statuses := h.session.Tasks().Tasks()
		tasks := make([]taskDTO, 0, len(statuses))
		for _, status := range statuses {
			tasks = append(tasks, taskToDTO(status))
		}
		notes := game.Notifications()
		notifications := make([]notificationDTO, 0, len(notes))
		for _, n := range notes {
			notifications = append(notifications, notificationDTO{ID: n.ID, Message: n.Message})
		}

		out = stateDTO{
			SessionID:        h.session.ID(),
			Mode:             string(h.session.Market().Mode()),
			Phase:            game.Phase().String(),
			RemainingSeconds: game.RemainingSeconds(),
			RemainingFrames:  game.RemainingFrames(),
			Paused:           game.Paused(),
			IsAuthority:      h.session.Market().IsAuthority(),
			UnlockedFeatures: unlocked,
			Player:           playerToDTO(ctx, game.CurrentPlayer()),
			Tasks:            tasks,
			Notifications:    notifications,
		}
		return nil
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, out)
}

func (h *Handler) ListPrices(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListPrices")
	defer span.End()

	var items []usecase.ShopItem
	err := h.session.Do(ctx, func(ctx context.Context) error {
		items = h.session.Shop().Items(ctx)
		return nil
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	out := make([]priceDTO, 0, len(items))
	for _, item := range items {
		out = append(out, shopItemToDTO(item))
	}
	writeSuccess(ctx, w, http.StatusOK, out)
}

func (h *Handler) PurchaseItem(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.PurchaseItem")
	defer span.End()

	var req purchaseItemRequest
	if err := h.decodeRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	var updated player.Player
	err := h.session.Do(ctx, func(ctx context.Context) error {
		var err error
		updated, err = h.session.Shop().Purchase(ctx, req.ItemID)
		return err
	})
	if err != nil {
		h.logger.WarnContext(ctx, "purchase item failed", "item_id", req.ItemID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, playerToDTO(ctx, updated))
}

func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CompleteTask")
	defer span.End()

	taskID := strings.TrimSpace(r.PathValue("taskID"))
	var updated player.Player
	err := h.session.Do(ctx, func(ctx context.Context) error {
		var err error
		updated, err = h.session.Tasks().CompleteTask(ctx, task.ID(taskID))
		return err
	})
	if err != nil {
		h.logger.WarnContext(ctx, "complete task failed", "task_id", taskID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, playerToDTO(ctx, updated))
}

func (h *Handler) ClickAd(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ClickAd")
	defer span.End()

	var updated player.Player
	err := h.session.Do(ctx, func(ctx context.Context) error {
		var err error
		updated, err = h.session.Tasks().ClickAd(ctx)
		return err
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, playerToDTO(ctx, updated))
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.UpdateProfile")
	defer span.End()

	var req updateProfileRequest
	if err := h.decodeRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	var updated player.Player
	err := h.session.Do(ctx, func(ctx context.Context) error {
		var err error
		updated, err = h.session.Tasks().UpdateProfile(ctx, req.Name, req.Avatar)
		return err
	})
	if err != nil {
		h.logger.WarnContext(ctx, "update profile failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, playerToDTO(ctx, updated))
}

func (h *Handler) ListTimeline(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListTimeline")
	defer span.End()

	var posts []affiliate.SharedPost
	err := h.session.Do(ctx, func(ctx context.Context) error {
		var err error
		posts, err = h.session.Affiliate().Posts(ctx)
		return err
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	out := make([]postDTO, 0, len(posts))
	for _, post := range posts {
		out = append(out, postToDTO(post))
	}
	writeSuccess(ctx, w, http.StatusOK, out)
}

func (h *Handler) SharePost(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SharePost")
	defer span.End()

	var req sharePostRequest
	if err := h.decodeRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	var post affiliate.SharedPost
	err := h.session.Do(ctx, func(ctx context.Context) error {
		var err error
		post, err = h.session.Affiliate().Share(ctx, req.ItemID)
		return err
	})
	if err != nil {
		h.logger.WarnContext(ctx, "share post failed", "item_id", req.ItemID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, postToDTO(post))
}

func (h *Handler) PurchasePost(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.PurchasePost")
	defer span.End()

	postID := strings.TrimSpace(r.PathValue("postID"))
	var purchase affiliate.Purchase
	err := h.session.Do(ctx, func(ctx context.Context) error {
		var err error
		purchase, err = h.session.Affiliate().Purchase(ctx, postID)
		return err
	})
	if err != nil {
		h.logger.WarnContext(ctx, "purchase post failed", "post_id", postID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, affiliatePurchaseToDTO(purchase))
}

func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetLedger")
	defer span.End()

	var out ledgerDTO
	err := h.session.Do(ctx, func(ctx context.Context) error {
		txs, err := h.session.Ledger().Transactions(ctx, "")
		if err != nil {
			return err
		}
		items := make([]transactionDTO, 0, len(txs))
		for _, tx := range txs {
			items = append(items, transactionToDTO(tx))
		}
		out = ledgerDTO{
			PlayerID:     h.session.Game().LocalPlayerID(),
			Balance:      ledger.Sum(txs),
			Transactions: items,
		}
		return nil
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, out)
}

func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetLeaderboard")
	defer span.End()

	var standings []result.Standing
	err := h.session.Do(ctx, func(ctx context.Context) error {
		var err error
		standings, err = h.session.Ranking().Leaderboard(ctx)
		return err
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	out := make([]standingDTO, 0, len(standings))
	for _, row := range standings {
		out = append(out, standingToDTO(row))
	}
	writeSuccess(ctx, w, http.StatusOK, out)
}

func (h *Handler) PreviewSettlement(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.PreviewSettlement")
	defer span.End()

	var out settlementDTO
	err := h.session.Do(ctx, func(context.Context) error {
		if summary, done := h.session.Settlement().Result(); done {
			out = settlementToDTO(summary, true)
			return nil
		}
		out = settlementToDTO(h.session.Settlement().Preview(), false)
		return nil
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, out)
}

func (h *Handler) SetPause(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SetPause")
	defer span.End()

	var req setPauseRequest
	if err := h.decodeRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	err := h.session.Do(ctx, func(context.Context) error {
		h.session.Game().SetPaused(*req.Paused)
		return nil
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]bool{"paused": *req.Paused})
}
