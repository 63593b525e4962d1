package phase

import (
	"errors"
	"fmt"

	"github.com/riskibarqy/point-farm/internal/domain/player"
	"github.com/riskibarqy/point-farm/internal/domain/task"
)

var (
	ErrRegression    = errors.New("phase cannot move backwards")
	ErrFeatureLocked = errors.New("feature is locked in the current phase")
)

// Phase is the game progression stage. Values are totally ordered.
type Phase int

const (
	Initial Phase = iota
	Basic
	Shopping
	Advanced
	Settlement
	Ended
)

var names = map[Phase]string{
	Initial:    "INITIAL",
	Basic:      "BASIC",
	Shopping:   "SHOPPING",
	Advanced:   "ADVANCED",
	Settlement: "SETTLEMENT",
	Ended:      "ENDED",
}

func (p Phase) String() string {
	if name, ok := names[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE(%d)", int(p))
}

func (p Phase) Next() (Phase, bool) {
	if p >= Ended {
		return p, false
	}
	return p + 1, true
}

func Parse(v string) (Phase, error) {
	for p, name := range names {
		if name == v {
			return p, nil
		}
	}
	return Initial, fmt.Errorf("unknown phase %q", v)
}

// Feature is a capability unlocked by reaching a phase.
type Feature string

const (
	FeatureTasks    Feature = "tasks"
	FeatureAds      Feature = "ads"
	FeatureShop     Feature = "shop"
	FeatureTimeline Feature = "timeline"
)

// Snapshot is the state a transition condition is evaluated against.
type Snapshot struct {
	Player             player.Player
	RemainingFrames    int64
	SettlementComplete bool
}

// Condition gates entry into a phase. All configured parts must hold.
type Condition struct {
	RequiredTasks []task.ID
	MinPoints     int64
	Custom        func(Snapshot) bool
}

func (c Condition) Satisfied(s Snapshot) bool {
	for _, id := range c.RequiredTasks {
		if !s.Player.HasCompleted(id) {
			return false
		}
	}
	if c.MinPoints > 0 && s.Player.Points < c.MinPoints {
		return false
	}
	if c.Custom != nil && !c.Custom(s) {
		return false
	}
	return true
}

// Transition describes entry into Target.
type Transition struct {
	Target       Phase
	Condition    Condition
	Unlocks      []Feature
	Notification string
}

// Rules maps each phase to the transition that enters it.
type Rules struct {
	transitions map[Phase]Transition
}

func NewRules(transitions []Transition) Rules {
	r := Rules{transitions: make(map[Phase]Transition, len(transitions))}
	for _, t := range transitions {
		r.transitions[t.Target] = t
	}
	return r
}

func (r Rules) Into(target Phase) (Transition, bool) {
	t, ok := r.transitions[target]
	return t, ok
}

// UnlockedAt lists every feature available once current has been reached.
func (r Rules) UnlockedAt(current Phase) map[Feature]struct{} {
	out := make(map[Feature]struct{})
	for target, t := range r.transitions {
		if target > current {
			continue
		}
		for _, f := range t.Unlocks {
			out[f] = struct{}{}
		}
	}
	return out
}

func DefaultRules() Rules {
	return NewRules([]Transition{
		{
			Target:       Basic,
			Condition:    Condition{RequiredTasks: []task.ID{task.Profile}},
			Unlocks:      []Feature{FeatureTasks, FeatureAds},
			Notification: "Ads and tasks unlocked",
		},
		{
			Target:       Shopping,
			Condition:    Condition{RequiredTasks: []task.ID{task.FirstAd}, MinPoints: 100},
			Unlocks:      []Feature{FeatureShop},
			Notification: "The shop is open",
		},
		{
			Target:       Advanced,
			Condition:    Condition{RequiredTasks: []task.ID{task.FirstPurchase}},
			Unlocks:      []Feature{FeatureTimeline},
			Notification: "Timeline unlocked: share items to earn affiliate rewards",
		},
		{
			Target: Settlement,
			Condition: Condition{Custom: func(s Snapshot) bool {
				return s.RemainingFrames <= 0
			}},
			Notification: "Time is up: settling your collection",
		},
		{
			Target: Ended,
			Condition: Condition{Custom: func(s Snapshot) bool {
				return s.SettlementComplete
			}},
			Notification: "Game over",
		},
	})
}
