package domain

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// TaskStorage defines the row-level persistence the task handler needs.
// Tasks are stored per channel; the sibling set is the subset sharing one
// parent scope (a card, or the channel itself for unlinked tasks).
type TaskStorage interface {
	GetCard(ctx context.Context, channelID, cardID string) (*Card, error)
	ListTasks(ctx context.Context, channelID, scope string) ([]Task, error)
	GetTask(ctx context.Context, channelID, taskID string) (*Task, error)
	InsertTask(ctx context.Context, task Task) error
	SetTaskPosition(ctx context.Context, channelID, taskID string, position int) error
	DeleteTask(ctx context.Context, channelID, taskID string) error
}

// TaskService owns position mutation for tasks.
type TaskService struct{ st TaskStorage }

func NewTaskService(st TaskStorage) TaskService { return TaskService{st: st} }

// CreateTaskInput carries the client-supplied attributes for a new task. An
// empty CardID parents the task directly to the channel.
type CreateTaskInput struct {
	ID       string `json:"id,omitempty"`
	CardID   string `json:"cardId,omitempty"`
	Title    string `json:"title"`
	Position *int   `json:"position,omitempty"`
}

// Create places a new task in its parent scope, shifting siblings first.
// When CardID is set the card must belong to the claimed channel.
func (s TaskService) Create(ctx context.Context, channelID string, in CreateTaskInput) (Task, error) {
	if in.Title == "" {
		return Task{}, fmt.Errorf("task title is required: %w", ErrInvalidInput)
	}
	if in.CardID != "" {
		card, err := s.st.GetCard(ctx, channelID, in.CardID)
		if err != nil {
			return Task{}, err
		}
		if card == nil || card.ChannelID != channelID {
			return Task{}, fmt.Errorf("card %s in channel %s: %w", in.CardID, channelID, ErrNotFound)
		}
	}
	scope := in.CardID
	if scope == "" {
		scope = channelID
	}
	siblings, err := s.st.ListTasks(ctx, channelID, scope)
	if err != nil {
		return Task{}, err
	}
	pos, shifts := PlanInsert(taskItems(siblings), in.Position)
	for _, sh := range shifts {
		if err := s.st.SetTaskPosition(ctx, channelID, sh.ID, sh.Position); err != nil {
			return Task{}, err
		}
	}
	now := time.Now().UTC()
	task := Task{
		ID:        in.ID,
		ChannelID: channelID,
		CardID:    in.CardID,
		Title:     in.Title,
		Position:  pos,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if err := s.st.InsertTask(ctx, task); err != nil {
		return Task{}, err
	}
	return task, nil
}

// Reorder moves a task within its parent scope and returns the renumbered
// sibling list.
func (s TaskService) Reorder(ctx context.Context, channelID, taskID string, toPosition int) ([]Task, error) {
	task, err := s.st.GetTask(ctx, channelID, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	siblings, err := s.st.ListTasks(ctx, channelID, task.ParentScope())
	if err != nil {
		return nil, err
	}
	toPosition = ClampPosition(toPosition, len(siblings))
	plan, err := PlanMove(taskItems(siblings), taskID, task.Position, toPosition)
	if err != nil {
		return nil, err
	}
	if plan.Empty() {
		return sortTasks(siblings), nil
	}
	for _, sh := range plan.Shifts {
		if err := s.st.SetTaskPosition(ctx, channelID, sh.ID, sh.Position); err != nil {
			return nil, err
		}
	}
	if err := s.st.SetTaskPosition(ctx, channelID, plan.Final.ID, plan.Final.Position); err != nil {
		return nil, err
	}
	return sortTasks(applyTaskPlan(siblings, plan)), nil
}

// Delete removes the task and closes the gap in its parent scope.
func (s TaskService) Delete(ctx context.Context, channelID, taskID string) error {
	task, err := s.st.GetTask(ctx, channelID, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	siblings, err := s.st.ListTasks(ctx, channelID, task.ParentScope())
	if err != nil {
		return err
	}
	shifts, err := PlanDelete(taskItems(siblings), taskID)
	if err != nil {
		return err
	}
	if err := s.st.DeleteTask(ctx, channelID, taskID); err != nil {
		return err
	}
	for _, sh := range shifts {
		if err := s.st.SetTaskPosition(ctx, channelID, sh.ID, sh.Position); err != nil {
			return err
		}
	}
	return nil
}

func taskItems(tasks []Task) []OrderedItem {
	items := make([]OrderedItem, len(tasks))
	for i, t := range tasks {
		items[i] = OrderedItem{ID: t.ID, Position: t.Position}
	}
	return items
}

func applyTaskPlan(tasks []Task, plan ReorderPlan) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
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

func sortTasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}
