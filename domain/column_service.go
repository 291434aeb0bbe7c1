package domain

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ColumnStorage defines the row-level persistence the column handler needs.
// Only per-row atomic updates are assumed; there is no multi-row transaction.
type ColumnStorage interface {
	ListColumns(ctx context.Context, channelID string) ([]Column, error)
	InsertColumn(ctx context.Context, col Column) error
	SetColumnPosition(ctx context.Context, channelID, columnID string, position int) error
	DeleteColumn(ctx context.Context, channelID, columnID string) error
}

// ColumnService owns position mutation for columns. After any call returns
// success the channel's columns hold positions {0..n-1} with no gaps.
type ColumnService struct{ st ColumnStorage }

func NewColumnService(st ColumnStorage) ColumnService { return ColumnService{st: st} }

// CreateColumnInput carries the client-supplied attributes for a new column.
type CreateColumnInput struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Position *int   `json:"position,omitempty"`
}

// Create resolves the new column's position, shifting existing siblings up
// first so a concurrent reader never observes a duplicate slot, then writes
// the column itself.
func (s ColumnService) Create(ctx context.Context, channelID string, in CreateColumnInput) (Column, error) {
	if in.Name == "" {
		return Column{}, fmt.Errorf("column name is required: %w", ErrInvalidInput)
	}
	siblings, err := s.st.ListColumns(ctx, channelID)
	if err != nil {
		return Column{}, err
	}
	pos, shifts := PlanInsert(columnItems(siblings), in.Position)
	for _, sh := range shifts {
		if err := s.st.SetColumnPosition(ctx, channelID, sh.ID, sh.Position); err != nil {
			return Column{}, err
		}
	}
	now := time.Now().UTC()
	col := Column{
		ID:        in.ID,
		ChannelID: channelID,
		Name:      in.Name,
		Position:  pos,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if col.ID == "" {
		col.ID = uuid.NewString()
	}
	if err := s.st.InsertColumn(ctx, col); err != nil {
		return Column{}, err
	}
	return col, nil
}

// Reorder moves one column to toPosition and renumbers the crossed siblings.
// The target is clamped into the sibling range. Returns the full renumbered
// column list in order.
func (s ColumnService) Reorder(ctx context.Context, channelID, columnID string, toPosition int) ([]Column, error) {
	siblings, err := s.st.ListColumns(ctx, channelID)
	if err != nil {
		return nil, err
	}
	moving, ok := findColumn(siblings, columnID)
	if !ok {
		return nil, fmt.Errorf("column %s: %w", columnID, ErrNotFound)
	}
	toPosition = ClampPosition(toPosition, len(siblings))
	plan, err := PlanMove(columnItems(siblings), columnID, moving.Position, toPosition)
	if err != nil {
		return nil, err
	}
	if plan.Empty() {
		return sortColumns(siblings), nil
	}
	for _, sh := range plan.Shifts {
		if err := s.st.SetColumnPosition(ctx, channelID, sh.ID, sh.Position); err != nil {
			return nil, err
		}
	}
	if err := s.st.SetColumnPosition(ctx, channelID, plan.Final.ID, plan.Final.Position); err != nil {
		return nil, err
	}
	return sortColumns(applyColumnPlan(siblings, plan)), nil
}

// Delete removes the column and closes the gap it leaves behind.
func (s ColumnService) Delete(ctx context.Context, channelID, columnID string) error {
	siblings, err := s.st.ListColumns(ctx, channelID)
	if err != nil {
		return err
	}
	shifts, err := PlanDelete(columnItems(siblings), columnID)
	if err != nil {
		return err
	}
	if err := s.st.DeleteColumn(ctx, channelID, columnID); err != nil {
		return err
	}
	for _, sh := range shifts {
		if err := s.st.SetColumnPosition(ctx, channelID, sh.ID, sh.Position); err != nil {
			return err
		}
	}
	return nil
}

func columnItems(cols []Column) []OrderedItem {
	items := make([]OrderedItem, len(cols))
	for i, c := range cols {
		items[i] = OrderedItem{ID: c.ID, Position: c.Position}
	}
	return items
}

func findColumn(cols []Column, id string) (Column, bool) {
	for _, c := range cols {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

func applyColumnPlan(cols []Column, plan ReorderPlan) []Column {
	out := make([]Column, len(cols))
	copy(out, cols)
	for i := range out {
		for _, sh := range plan.Shifts {
			if out[i].ID == sh.ID {
				out[i].Position = sh.Position
			}
		}
		if out[i].ID == plan.Final.ID {
			out[i].Position = plan.Final.Position
		}
	}
	return out
}

func sortColumns(cols []Column) []Column {
	out := make([]Column, len(cols))
	copy(out, cols)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}
