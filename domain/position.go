package domain

import "fmt"

// OrderedItem is the engine's view of one sibling: its id and its currently
// recorded position.
type OrderedItem struct {
	ID       string
	Position int
}

// Shift instructs a caller to persist a new position for one sibling.
type Shift struct {
	ID       string
	Position int
}

// ReorderPlan is the set of row updates that realises a move. Shifts cover
// the displaced siblings only; the moving entity's own write is Final.
type ReorderPlan struct {
	Shifts []Shift
	Final  Shift
}

// Empty reports whether the plan changes nothing.
func (p ReorderPlan) Empty() bool {
	return len(p.Shifts) == 0 && p.Final.ID == ""
}

// PlanMove computes the renumbering for moving one sibling to toPosition.
// fromPosition must equal the sibling's currently recorded position. Positions
// stay dense: moving forward shifts the crossed siblings down by one, moving
// backward shifts them up by one.
func PlanMove(siblings []OrderedItem, movingID string, fromPosition, toPosition int) (ReorderPlan, error) {
	current, ok := findSibling(siblings, movingID)
	if !ok {
		return ReorderPlan{}, fmt.Errorf("sibling %s: %w", movingID, ErrNotFound)
	}
	if current.Position != fromPosition {
		return ReorderPlan{}, fmt.Errorf("sibling %s recorded at %d, not %d: %w", movingID, current.Position, fromPosition, ErrInvalidInput)
	}
	if toPosition < 0 || toPosition >= len(siblings) {
		return ReorderPlan{}, fmt.Errorf("target %d with %d siblings: %w", toPosition, len(siblings), ErrPositionOutOfRange)
	}
	if fromPosition == toPosition {
		return ReorderPlan{}, nil
	}

	plan := ReorderPlan{Final: Shift{ID: movingID, Position: toPosition}}
	for _, s := range siblings {
		if s.ID == movingID {
			continue
		}
		switch {
		case fromPosition < toPosition && s.Position > fromPosition && s.Position <= toPosition:
			plan.Shifts = append(plan.Shifts, Shift{ID: s.ID, Position: s.Position - 1})
		case fromPosition > toPosition && s.Position >= toPosition && s.Position < fromPosition:
			plan.Shifts = append(plan.Shifts, Shift{ID: s.ID, Position: s.Position + 1})
		}
	}
	return plan, nil
}

// PlanInsert resolves the position for a new sibling. With no requested
// position the entity is appended after the current maximum. A requested
// position shifts every sibling at or after it up by one.
func PlanInsert(siblings []OrderedItem, requested *int) (int, []Shift) {
	if requested == nil {
		max := -1
		for _, s := range siblings {
			if s.Position > max {
				max = s.Position
			}
		}
		return max + 1, nil
	}

	at := *requested
	if at < 0 {
		at = 0
	}
	if at > len(siblings) {
		at = len(siblings)
	}
	var shifts []Shift
	for _, s := range siblings {
		if s.Position >= at {
			shifts = append(shifts, Shift{ID: s.ID, Position: s.Position + 1})
		}
	}
	return at, shifts
}

// PlanDelete computes the compensating shifts after removing one sibling:
// everything past the removed position moves down by one.
func PlanDelete(siblings []OrderedItem, removedID string) ([]Shift, error) {
	removed, ok := findSibling(siblings, removedID)
	if !ok {
		return nil, fmt.Errorf("sibling %s: %w", removedID, ErrNotFound)
	}
	var shifts []Shift
	for _, s := range siblings {
		if s.ID == removedID {
			continue
		}
		if s.Position > removed.Position {
			shifts = append(shifts, Shift{ID: s.ID, Position: s.Position - 1})
		}
	}
	return shifts, nil
}

// ClampPosition forces p into the valid target range for a sibling set of
// size n. Mutation paths clamp uniformly rather than rejecting.
func ClampPosition(p, n int) int {
	if p < 0 {
		return 0
	}
	if n > 0 && p > n-1 {
		return n - 1
	}
	return p
}

func findSibling(siblings []OrderedItem, id string) (OrderedItem, bool) {
	for _, s := range siblings {
		if s.ID == id {
			return s, true
		}
	}
	return OrderedItem{}, false
}
