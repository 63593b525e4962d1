package task

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTask      = errors.New("unknown task")
	ErrAlreadyCompleted = errors.New("task already completed")
)

// ID identifies a completable task.
type ID string

const (
	Profile       ID = "profile"
	FirstAd       ID = "first_ad"
	FirstPurchase ID = "first_purchase"
	FirstShare    ID = "first_share"
	Survey        ID = "survey"
)

// Definition describes a task and its one-time point reward.
type Definition struct {
	ID          ID
	Name        string
	Description string
	Reward      int64
}

// Registry is an immutable set of task definitions.
type Registry struct {
	order []ID
	byID  map[ID]Definition
}

func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{byID: make(map[ID]Definition, len(defs))}
	for _, def := range defs {
		if def.ID == "" {
			return nil, fmt.Errorf("task id is required")
		}
		if def.Reward <= 0 {
			return nil, fmt.Errorf("task reward must be greater than zero: %s", def.ID)
		}
		if _, exists := r.byID[def.ID]; exists {
			return nil, fmt.Errorf("duplicate task: %s", def.ID)
		}
		r.order = append(r.order, def.ID)
		r.byID[def.ID] = def
	}
	return r, nil
}

func (r *Registry) Lookup(id ID) (Definition, error) {
	def, ok := r.byID[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return def, nil
}

func (r *Registry) All() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

func DefaultDefinitions() []Definition {
	return []Definition{
		{ID: Profile, Name: "Set up your profile", Description: "Choose a name and an avatar.", Reward: 50},
		{ID: FirstAd, Name: "Watch an ad", Description: "Click your first advertisement.", Reward: 30},
		{ID: FirstPurchase, Name: "First purchase", Description: "Buy any item from the shop.", Reward: 50},
		{ID: FirstShare, Name: "Share on the timeline", Description: "Share an owned item as an affiliate post.", Reward: 40},
		{ID: Survey, Name: "Answer the survey", Description: "Fill in the sponsor survey.", Reward: 100},
	}
}

func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultDefinitions())
	if err != nil {
		panic(fmt.Sprintf("default task registry is invalid: %v", err))
	}
	return r
}
