// Package dragdrop turns pointer-drag events into graph operations.
//
// A drag moves through Idle -> Dragging -> ReorderPending | ReparentPending and, on drop,
// either applies a sibling reorder straight away or parks in AwaitingChoice until the
// caller picks Move or Copy. Illegal targets are never offered: hovering one leaves the
// coordinator in Dragging and dropping there returns it to Idle without touching the graph.
package dragdrop

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/engine"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/logging"
)

var (
	ErrNotDraggable      = errors.New("item is not draggable")
	ErrDragInProgress    = errors.New("another drag is in progress")
	ErrNoDrag            = errors.New("no drag in progress")
	ErrNotAwaitingChoice = errors.New("no drop is awaiting a choice")
)

// State is the coordinator's position in the drag state machine.
type State int

const (
	Idle State = iota
	Dragging
	ReorderPending
	ReparentPending
	AwaitingChoice
)

func (s State) String() string {
	switch s {
	case Dragging:
		return "dragging"
	case ReorderPending:
		return "reorder-pending"
	case ReparentPending:
		return "reparent-pending"
	case AwaitingChoice:
		return "awaiting-choice"
	default:
		return "idle"
	}
}

// Choice resolves an AwaitingChoice drop.
type Choice int

const (
	ChoiceMove Choice = iota
	ChoiceCopy
)

func (c Choice) String() string {
	if c == ChoiceCopy {
		return "copy"
	}
	return "move"
}

// Action reports what a drop or resolution did.
type Action int

const (
	ActionNone Action = iota // back to Idle, graph untouched
	ActionIgnored
	ActionReordered
	ActionAwaitingChoice
	ActionMoved
	ActionCopied
)

func (a Action) String() string {
	return [...]string{"none", "ignored", "reordered", "awaiting-choice", "moved", "copied"}[a]
}

// Result describes the effect of Drop or Resolve.
type Result struct {
	Action  Action
	Outcome engine.Outcome
	NewID   string // set for ActionCopied
}

// Snapshot is a read-only view of the coordinator state for the UI layer.
type Snapshot struct {
	State    State
	ItemID   string
	TargetID string
	Position engine.Position
}

// Graph is the subset of the engine the coordinator drives.
type Graph interface {
	Get(id string) (content.Item, error)
	ReorderSibling(ctx context.Context, id, anchorID string, pos engine.Position) (engine.Outcome, error)
	Move(ctx context.Context, id, newParentID string) (engine.Outcome, error)
	DuplicateSubtree(ctx context.Context, id, targetParentID string) (string, error)
}

// Coordinator tracks at most one drag at a time. It is safe for concurrent use.
type Coordinator struct {
	graph Graph
	log   *zap.Logger

	mu     sync.Mutex
	state  State
	item   string
	target string
	pos    engine.Position
}

// New creates an idle coordinator over g. A nil logger means no logging.
func New(g Graph, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{graph: g, log: log}
}

// Snapshot returns the current state
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{State: c.state, ItemID: c.item, TargetID: c.target, Position: c.pos}
}

// BeginDrag starts dragging id. Objectives cannot be dragged.
func (c *Coordinator) BeginDrag(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return fmt.Errorf("%w: dragging %s", ErrDragInProgress, c.item)
	}
	it, err := c.graph.Get(id)
	if err != nil {
		return err
	}
	if it.Type == content.TypeObjective {
		return fmt.Errorf("%w: %s is an objective", ErrNotDraggable, id)
	}
	c.state, c.item, c.target = Dragging, id, ""
	return nil
}

// HoverBetween offers a slot next to anchorID. It reports whether the slot is a legal
// reorder target; an illegal one clears the candidate.
func (c *Coordinator) HoverBetween(anchorID string, pos engine.Position) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireHovering(); err != nil {
		return false, err
	}
	if c.classify(anchorID) != ActionReordered {
		c.clearCandidate()
		return false, nil
	}
	c.state, c.target, c.pos = ReorderPending, anchorID, pos
	return true, nil
}

// HoverContainer offers parentID as a new parent. It reports whether the container is a
// legal reparent target; an illegal one clears the candidate.
func (c *Coordinator) HoverContainer(parentID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireHovering(); err != nil {
		return false, err
	}
	if c.classify(parentID) != ActionAwaitingChoice {
		c.clearCandidate()
		return false, nil
	}
	c.state, c.target, c.pos = ReparentPending, parentID, engine.Before
	return true, nil
}

// Leave clears the candidate when the pointer leaves a drop target.
func (c *Coordinator) Leave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ReorderPending || c.state == ReparentPending {
		c.clearCandidate()
	}
}

// Drop ends the drag of itemID over the current candidate. Drops for any other item are
// ignored and leave the state as is. The target is re-checked against the graph at drop
// time, since it may have changed while hovering.
func (c *Coordinator) Drop(ctx context.Context, itemID string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	log := logging.FromContext(ctx, c.log).With(zap.String("item", itemID))

	if c.state == Idle || c.state == AwaitingChoice || itemID != c.item {
		log.Debug("drop ignored", zap.Stringer("state", c.state), zap.String("dragging", c.item))
		return Result{Action: ActionIgnored}, nil
	}

	target, pos, state := c.target, c.pos, c.state
	switch {
	case state == ReorderPending && c.classify(target) == ActionReordered:
		c.reset()
		out, err := c.graph.ReorderSibling(ctx, itemID, target, pos)
		if err != nil {
			return Result{}, err
		}
		log.Debug("drop reordered", zap.String("anchor", target), zap.Stringer("position", pos), zap.Stringer("outcome", out))
		return Result{Action: ActionReordered, Outcome: out}, nil
	case state == ReparentPending && c.classify(target) == ActionAwaitingChoice:
		c.state = AwaitingChoice
		log.Debug("drop awaiting choice", zap.String("target", target))
		return Result{Action: ActionAwaitingChoice}, nil
	}
	c.reset()
	log.Debug("drop discarded", zap.String("target", target))
	return Result{Action: ActionNone}, nil
}

// Resolve applies the user's choice to a drop that is AwaitingChoice and returns to Idle.
func (c *Coordinator) Resolve(ctx context.Context, choice Choice) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != AwaitingChoice {
		return Result{}, ErrNotAwaitingChoice
	}
	item, target := c.item, c.target
	c.reset()
	log := logging.FromContext(ctx, c.log).With(zap.String("item", item), zap.String("target", target), zap.Stringer("choice", choice))

	switch choice {
	case ChoiceMove:
		out, err := c.graph.Move(ctx, item, target)
		if err != nil {
			return Result{}, err
		}
		log.Info("drop resolved")
		return Result{Action: ActionMoved, Outcome: out}, nil
	case ChoiceCopy:
		newID, err := c.graph.DuplicateSubtree(ctx, item, target)
		if err != nil {
			return Result{}, err
		}
		log.Info("drop resolved", zap.String("copy", newID))
		return Result{Action: ActionCopied, Outcome: engine.OutcomeChanged, NewID: newID}, nil
	default:
		return Result{}, fmt.Errorf("unknown choice %d", int(choice))
	}
}

// Cancel abandons any drag or pending choice without touching the graph.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *Coordinator) requireHovering() error {
	switch c.state {
	case Dragging, ReorderPending, ReparentPending:
		return nil
	}
	return ErrNoDrag
}

// classify decides what dropping the dragged item on target would do: a reorder when both
// have the same type and share a parent, a confirmable reparent when target is of the
// expected parent type and not already a parent, otherwise nothing.
func (c *Coordinator) classify(target string) Action {
	if target == "" || target == c.item {
		return ActionNone
	}
	it, err := c.graph.Get(c.item)
	if err != nil {
		return ActionNone
	}
	tt, err := c.graph.Get(target)
	if err != nil {
		return ActionNone
	}
	if it.Type == tt.Type {
		if sharesParent(it.ParentIDs, tt.ParentIDs) {
			return ActionReordered
		}
		return ActionNone
	}
	if pt, ok := content.ExpectedParentType(it.Type); ok && pt == tt.Type && !contains(it.ParentIDs, target) {
		return ActionAwaitingChoice
	}
	return ActionNone
}

func (c *Coordinator) clearCandidate() {
	c.state, c.target = Dragging, ""
}

func (c *Coordinator) reset() {
	c.state, c.item, c.target, c.pos = Idle, "", "", engine.Before
}

func sharesParent(a, b []string) bool {
	for _, p := range a {
		if contains(b, p) {
			return true
		}
	}
	return false
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
