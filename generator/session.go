package generator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aether_architect/uitree"
)

// Session holds the generation context and the edit history for one brief.
// Generation passes and edits are serialized: while a pass is running every
// edit fails with ErrBusy, and the live preview is the only state that
// changes.
type Session struct {
	ID    string
	Brief Brief

	agent *Agent

	mu      sync.Mutex
	phase   Phase
	plan    *Plan
	preview *uitree.Node
	history uitree.History
	turns   []Turn
}

// NewSession creates a session with no plan and no tree yet.
func NewSession(id string, brief Brief, agent *Agent) *Session {
	return &Session{
		ID:    id,
		Brief: brief,
		agent: agent,
		phase: PhaseIdle,
	}
}

// RestoreSession reopens a saved session: tree seeds the edit history and
// plan, when present, lets the session regenerate and refine as before.
func RestoreSession(id string, brief Brief, agent *Agent, tree *uitree.Node, plan *Plan) *Session {
	s := NewSession(id, brief, agent)
	s.plan = plan.Clone()
	s.history.Reset(tree)
	return s
}

// Propose runs the whole pipeline: PRD, design system, then a tree pass
// built from both. The settled tree replaces the whole edit history and
// the plan replaces the previous one.
func (s *Session) Propose(ctx context.Context, onPreview PreviewFunc) (*uitree.Node, error) {
	if err := s.begin(PhasePlanning); err != nil {
		return nil, err
	}
	plan, err := s.draftPlan(ctx)
	if err != nil {
		return s.settle(nil, nil, err, ActionGenerate, "")
	}
	s.setPhase(PhaseBuilding)
	tree, err := s.agent.BuildTree(ctx, BuildTreePrompt(s.Brief, plan), s.previewer(onPreview))
	return s.settle(tree, plan, err, ActionGenerate, "")
}

// Regenerate runs a fresh tree pass from the existing plan. Like Propose it
// resets the edit history.
func (s *Session) Regenerate(ctx context.Context, onPreview PreviewFunc) (*uitree.Node, error) {
	if err := s.begin(PhaseBuilding); err != nil {
		return nil, err
	}
	plan := s.Plan()
	if plan == nil {
		s.finish()
		return nil, ErrNoPlan
	}
	tree, err := s.agent.BuildTree(ctx, BuildTreePrompt(s.Brief, plan), s.previewer(onPreview))
	return s.settle(tree, plan, err, ActionRegenerate, "")
}

// Refine regenerates the current tree according to request. The settled
// tree is pushed on the history, so a refinement can be undone.
func (s *Session) Refine(ctx context.Context, request string, onPreview PreviewFunc) (*uitree.Node, error) {
	if err := s.begin(PhaseRefining); err != nil {
		return nil, err
	}
	s.mu.Lock()
	current := s.history.Current()
	plan := s.plan.Clone()
	history := append([]Turn(nil), s.turns...)
	s.mu.Unlock()
	if current == nil {
		s.finish()
		return nil, ErrNoTree
	}

	prompt := BuildRefinePrompt(s.Brief, plan, current, request, history)
	tree, err := s.agent.BuildTree(ctx, prompt, s.previewer(onPreview))
	return s.settle(tree, plan, err, ActionRefine, request)
}

func (s *Session) draftPlan(ctx context.Context) (*Plan, error) {
	prd, err := s.agent.DraftPRD(ctx, s.Brief)
	if err != nil {
		return nil, err
	}
	s.setPhase(PhaseDesigning)
	design, err := s.agent.DraftDesign(ctx, s.Brief, prd)
	if err != nil {
		return nil, err
	}
	return &Plan{PRD: prd, Design: design}, nil
}

// Plan returns a copy of the session's PRD and design system, or nil.
func (s *Session) Plan() *Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan.Clone()
}

// Patch applies f to the node with the given id and records the result.
func (s *Session) Patch(id string, f uitree.Fields) (*uitree.Node, error) {
	return s.edit(func(cur *uitree.Node) (*uitree.Node, error) {
		if uitree.Find(cur, id) == nil {
			return nil, fmt.Errorf("%w: node %q not found", ErrRejected, id)
		}
		return uitree.Patch(cur, id, f), nil
	})
}

// SetTextTransform replaces the text-transform style token of a node.
func (s *Session) SetTextTransform(id, transform string) (*uitree.Node, error) {
	return s.edit(func(cur *uitree.Node) (*uitree.Node, error) {
		n := uitree.Find(cur, id)
		if n == nil {
			return nil, fmt.Errorf("%w: node %q not found", ErrRejected, id)
		}
		styles, err := uitree.SetTextTransform(n.StyleTokens, transform)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRejected, err)
		}
		return uitree.Patch(cur, id, uitree.Fields{StyleTokens: &styles}), nil
	})
}

// Move relocates a subtree and records the result.
func (s *Session) Move(draggedID, targetID string, pos uitree.Position) (*uitree.Node, error) {
	return s.edit(func(cur *uitree.Node) (*uitree.Node, error) {
		next := uitree.Move(cur, draggedID, targetID, pos)
		if next == cur {
			return nil, fmt.Errorf("%w: cannot move %q %s %q", ErrRejected, draggedID, pos, targetID)
		}
		return next, nil
	})
}

// Drop completes a drag gesture: the pointer offset within the target's
// rendered height selects the zone, and the zone selects the move.
func (s *Session) Drop(draggedID, targetID string, height, offsetY float64) (*uitree.Node, uitree.Zone, error) {
	var zone uitree.Zone
	tree, err := s.edit(func(cur *uitree.Node) (*uitree.Node, error) {
		zone = uitree.ClassifyNode(uitree.Find(cur, targetID), height, offsetY)
		pos, ok := zone.Position()
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a drop zone", ErrRejected, targetID)
		}
		next := uitree.Move(cur, draggedID, targetID, pos)
		if next == cur {
			return nil, fmt.Errorf("%w: cannot move %q %s %q", ErrRejected, draggedID, pos, targetID)
		}
		return next, nil
	})
	return tree, zone, err
}

// Undo steps back in the edit history. It reports whether anything changed.
func (s *Session) Undo() (*uitree.Node, bool, error) {
	return s.step((*uitree.History).Undo)
}

// Redo steps forward in the edit history. It reports whether anything
// changed.
func (s *Session) Redo() (*uitree.Node, bool, error) {
	return s.step((*uitree.History).Redo)
}

// Current returns the tree under the history cursor, or nil.
func (s *Session) Current() *uitree.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Current()
}

// Preview returns the latest live tree of the running pass, or the current
// tree when no pass is running.
func (s *Session) Preview() *uitree.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseIdle && s.preview != nil {
		return s.preview.Clone()
	}
	return s.history.Current()
}

// State is a read-only view of a session.
type State struct {
	ID         string       `json:"session_id"`
	Brief      Brief        `json:"brief"`
	Plan       *Plan        `json:"plan,omitempty"`
	Tree       *uitree.Node `json:"tree,omitempty"`
	Generating bool         `json:"generating"`
	Phase      Phase        `json:"phase"`
	CanUndo    bool         `json:"can_undo"`
	CanRedo    bool         `json:"can_redo"`
	Revision   int          `json:"revision"`
	Revisions  int          `json:"revisions"`
	History    []Turn       `json:"history"`
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		ID:         s.ID,
		Brief:      s.Brief,
		Plan:       s.plan.Clone(),
		Tree:       s.history.Current(),
		Generating: s.phase != PhaseIdle,
		Phase:      s.phase,
		CanUndo:    s.history.CanUndo(),
		CanRedo:    s.history.CanRedo(),
		Revision:   s.history.Cursor(),
		Revisions:  s.history.Len(),
		History:    append([]Turn(nil), s.turns...),
	}
}

func (s *Session) begin(phase Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseIdle {
		return ErrBusy
	}
	s.phase = phase
	s.preview = nil
	return nil
}

func (s *Session) setPhase(phase Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
}

func (s *Session) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseIdle
	s.preview = nil
}

func (s *Session) previewer(onPreview PreviewFunc) PreviewFunc {
	return func(tree *uitree.Node) {
		s.mu.Lock()
		s.preview = tree.Clone()
		s.mu.Unlock()
		if onPreview != nil {
			onPreview(tree)
		}
	}
}

// settle ends a pass. A failed pass leaves plan, history and turns
// untouched.
func (s *Session) settle(tree *uitree.Node, plan *Plan, err error, action, comment string) (*uitree.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseIdle
	s.preview = nil
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	s.plan = plan
	if action == ActionRefine {
		s.history.Push(tree)
	} else {
		s.history.Reset(tree)
	}
	s.turns = append(s.turns, Turn{
		Action:    action,
		Comment:   comment,
		Summary:   Summarize(tree),
		CreatedAt: time.Now(),
	})
	return tree.Clone(), nil
}

func (s *Session) edit(fn func(cur *uitree.Node) (*uitree.Node, error)) (*uitree.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseIdle {
		return nil, ErrBusy
	}
	cur := s.history.Current()
	if cur == nil {
		return nil, ErrNoTree
	}
	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	s.history.Push(next)
	return next.Clone(), nil
}

func (s *Session) step(move func(*uitree.History) bool) (*uitree.Node, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseIdle {
		return nil, false, ErrBusy
	}
	if s.history.Len() == 0 {
		return nil, false, ErrNoTree
	}
	moved := move(&s.history)
	return s.history.Current(), moved, nil
}

// Turns returns the generation log.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.turns...)
}
