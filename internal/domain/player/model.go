package player

import (
	"time"

	"github.com/riskibarqy/point-farm/internal/domain/catalog"
	"github.com/riskibarqy/point-farm/internal/domain/task"
)

// ActiveInstanceID keys the local record until the session assigns a
// participant id.
const ActiveInstanceID = "__active__"

type Profile struct {
	Name   string
	Avatar string
}

type OwnedItem struct {
	Item        catalog.Item
	PurchasedAt time.Time
}

type TaskProgress struct {
	Completed   bool
	CompletedAt time.Time
}

// Player is a participant record. Records are values: callers replace a
// record wholesale instead of mutating a shared one.
type Player struct {
	ID           string
	Profile      Profile
	Points       int64
	OwnedItems   []OwnedItem
	TaskProgress map[task.ID]TaskProgress
	JoinedAt     time.Time
	LastActiveAt time.Time
	// PreSettlementItemCount is set once settlement has cleared the inventory.
	PreSettlementItemCount *int
}

func New(id string, profile Profile, joinedAt time.Time) Player {
	return Player{
		ID:           id,
		Profile:      profile,
		TaskProgress: make(map[task.ID]TaskProgress),
		JoinedAt:     joinedAt,
		LastActiveAt: joinedAt,
	}
}

func (p Player) Clone() Player {
	out := p
	out.OwnedItems = append([]OwnedItem(nil), p.OwnedItems...)
	out.TaskProgress = make(map[task.ID]TaskProgress, len(p.TaskProgress))
	for id, progress := range p.TaskProgress {
		out.TaskProgress[id] = progress
	}
	if p.PreSettlementItemCount != nil {
		count := *p.PreSettlementItemCount
		out.PreSettlementItemCount = &count
	}
	return out
}

func (p Player) Owns(itemID string) bool {
	for _, owned := range p.OwnedItems {
		if owned.Item.ID == itemID {
			return true
		}
	}
	return false
}

func (p Player) HasCompleted(id task.ID) bool {
	return p.TaskProgress[id].Completed
}

// ItemCount reports the inventory size, including items already liquidated
// by settlement.
func (p Player) ItemCount() int {
	if p.PreSettlementItemCount != nil {
		return *p.PreSettlementItemCount
	}
	return len(p.OwnedItems)
}

func (p Player) WithItem(item catalog.Item, at time.Time) Player {
	out := p.Clone()
	out.OwnedItems = append(out.OwnedItems, OwnedItem{Item: item, PurchasedAt: at})
	out.LastActiveAt = at
	return out
}

func (p Player) WithTaskCompleted(id task.ID, at time.Time) Player {
	out := p.Clone()
	out.TaskProgress[id] = TaskProgress{Completed: true, CompletedAt: at}
	out.LastActiveAt = at
	return out
}

// Liquidated clears the inventory while remembering how many items it held.
func (p Player) Liquidated() Player {
	out := p.Clone()
	count := len(out.OwnedItems)
	out.PreSettlementItemCount = &count
	out.OwnedItems = nil
	return out
}
