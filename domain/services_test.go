package domain

import (
	"context"
	"errors"
	"testing"
)

// fakeBoardStore backs all three services with in-memory rows, mimicking the
// row-atomic table storage: every position write lands individually.
type fakeBoardStore struct {
	columns map[string]Column
	cards   map[string]Card
	tasks   map[string]Task

	failSetPosition bool
}

func newFakeBoardStore() *fakeBoardStore {
	return &fakeBoardStore{
		columns: make(map[string]Column),
		cards:   make(map[string]Card),
		tasks:   make(map[string]Task),
	}
}

var errStorageDown = errors.New("storage down")

func (f *fakeBoardStore) ListColumns(_ context.Context, channelID string) ([]Column, error) {
	var out []Column
	for _, c := range f.columns {
		if c.ChannelID == channelID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeBoardStore) InsertColumn(_ context.Context, col Column) error {
	f.columns[col.ID] = col
	return nil
}

func (f *fakeBoardStore) SetColumnPosition(_ context.Context, channelID, columnID string, position int) error {
	if f.failSetPosition {
		return errStorageDown
	}
	c, ok := f.columns[columnID]
	if !ok || c.ChannelID != channelID {
		return ErrNotFound
	}
	c.Position = position
	f.columns[columnID] = c
	return nil
}

func (f *fakeBoardStore) DeleteColumn(_ context.Context, channelID, columnID string) error {
	c, ok := f.columns[columnID]
	if !ok || c.ChannelID != channelID {
		return ErrNotFound
	}
	delete(f.columns, columnID)
	return nil
}

func (f *fakeBoardStore) GetColumn(_ context.Context, channelID, columnID string) (*Column, error) {
	c, ok := f.columns[columnID]
	if !ok || c.ChannelID != channelID {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeBoardStore) ListCards(_ context.Context, channelID, columnID string) ([]Card, error) {
	var out []Card
	for _, c := range f.cards {
		if c.ChannelID == channelID && c.ColumnID == columnID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeBoardStore) InsertCard(_ context.Context, card Card) error {
	f.cards[card.ID] = card
	return nil
}

func (f *fakeBoardStore) SetCardPosition(_ context.Context, channelID, cardID string, position int) error {
	c, ok := f.cards[cardID]
	if !ok || c.ChannelID != channelID {
		return ErrNotFound
	}
	c.Position = position
	f.cards[cardID] = c
	return nil
}

func (f *fakeBoardStore) DeleteCard(_ context.Context, channelID, cardID string) error {
	c, ok := f.cards[cardID]
	if !ok || c.ChannelID != channelID {
		return ErrNotFound
	}
	delete(f.cards, cardID)
	return nil
}

func (f *fakeBoardStore) GetCard(_ context.Context, channelID, cardID string) (*Card, error) {
	c, ok := f.cards[cardID]
	if !ok || c.ChannelID != channelID {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeBoardStore) ListTasks(_ context.Context, channelID, scope string) ([]Task, error) {
	var out []Task
	for _, tk := range f.tasks {
		if tk.ChannelID == channelID && tk.ParentScope() == scope {
			out = append(out, tk)
		}
	}
	return out, nil
}

func (f *fakeBoardStore) GetTask(_ context.Context, channelID, taskID string) (*Task, error) {
	tk, ok := f.tasks[taskID]
	if !ok || tk.ChannelID != channelID {
		return nil, nil
	}
	return &tk, nil
}

func (f *fakeBoardStore) InsertTask(_ context.Context, task Task) error {
	f.tasks[task.ID] = task
	return nil
}

func (f *fakeBoardStore) SetTaskPosition(_ context.Context, channelID, taskID string, position int) error {
	tk, ok := f.tasks[taskID]
	if !ok || tk.ChannelID != channelID {
		return ErrNotFound
	}
	tk.Position = position
	f.tasks[taskID] = tk
	return nil
}

func (f *fakeBoardStore) DeleteTask(_ context.Context, channelID, taskID string) error {
	tk, ok := f.tasks[taskID]
	if !ok || tk.ChannelID != channelID {
		return ErrNotFound
	}
	delete(f.tasks, taskID)
	return nil
}

func (f *fakeBoardStore) columnPositions(channelID string) map[string]int {
	out := make(map[string]int)
	for _, c := range f.columns {
		if c.ChannelID == channelID {
			out[c.ID] = c.Position
		}
	}
	return out
}

func intPtr(v int) *int { return &v }

func seedColumns(t *testing.T, f *fakeBoardStore, channelID string, names ...string) []Column {
	t.Helper()
	out := make([]Column, len(names))
	for i, n := range names {
		col := Column{ID: n, ChannelID: channelID, Name: n, Position: i}
		f.columns[col.ID] = col
		out[i] = col
	}
	return out
}

func TestColumnServiceCreateAppends(t *testing.T) {
	store := newFakeBoardStore()
	seedColumns(t, store, "ch1", "todo", "doing")
	svc := NewColumnService(store)

	col, err := svc.Create(context.Background(), "ch1", CreateColumnInput{Name: "done"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if col.Position != 2 {
		t.Fatalf("got position %d, want 2", col.Position)
	}
	if col.ID == "" {
		t.Fatal("expected a generated id")
	}
	assertDense(t, store.columnPositions("ch1"))
}

func TestColumnServiceCreateAtPositionShiftsSiblings(t *testing.T) {
	store := newFakeBoardStore()
	seedColumns(t, store, "ch1", "todo", "doing", "done")
	svc := NewColumnService(store)

	col, err := svc.Create(context.Background(), "ch1", CreateColumnInput{ID: "review", Name: "review", Position: intPtr(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if col.Position != 1 {
		t.Fatalf("got position %d, want 1", col.Position)
	}
	want := map[string]int{"todo": 0, "review": 1, "doing": 2, "done": 3}
	got := store.columnPositions("ch1")
	for id, p := range want {
		if got[id] != p {
			t.Errorf("%s at %d, want %d", id, got[id], p)
		}
	}
	assertDense(t, got)
}

func TestColumnServiceCreateRequiresName(t *testing.T) {
	svc := NewColumnService(newFakeBoardStore())

	_, err := svc.Create(context.Background(), "ch1", CreateColumnInput{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
}

func TestColumnServiceReorder(t *testing.T) {
	store := newFakeBoardStore()
	seedColumns(t, store, "ch1", "A", "B", "C", "D")
	svc := NewColumnService(store)

	cols, err := svc.Reorder(context.Background(), "ch1", "A", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantOrder := []string{"B", "C", "A", "D"}
	for i, id := range wantOrder {
		if cols[i].ID != id || cols[i].Position != i {
			t.Errorf("slot %d: got %s@%d, want %s@%d", i, cols[i].ID, cols[i].Position, id, i)
		}
	}
	assertDense(t, store.columnPositions("ch1"))
}

func TestColumnServiceReorderClampsTarget(t *testing.T) {
	store := newFakeBoardStore()
	seedColumns(t, store, "ch1", "A", "B", "C")
	svc := NewColumnService(store)

	cols, err := svc.Reorder(context.Background(), "ch1", "A", 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cols[len(cols)-1].ID != "A" {
		t.Fatalf("A not at tail after clamped move: %+v", cols)
	}
	if _, err := svc.Reorder(context.Background(), "ch1", "A", -3); err != nil {
		t.Fatalf("negative target must clamp, got %v", err)
	}
	if store.columnPositions("ch1")["A"] != 0 {
		t.Fatal("A not at head after clamped negative move")
	}
}

func TestColumnServiceReorderUnknownColumn(t *testing.T) {
	store := newFakeBoardStore()
	seedColumns(t, store, "ch1", "A")
	svc := NewColumnService(store)

	_, err := svc.Reorder(context.Background(), "ch1", "ghost", 0)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestColumnServiceDeleteClosesGap(t *testing.T) {
	store := newFakeBoardStore()
	seedColumns(t, store, "ch1", "A", "B", "C")
	svc := NewColumnService(store)

	if err := svc.Delete(context.Background(), "ch1", "B"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := store.columnPositions("ch1")
	if got["A"] != 0 || got["C"] != 1 {
		t.Fatalf("got %v, want A@0 C@1", got)
	}
	if _, ok := store.columns["B"]; ok {
		t.Fatal("B still present")
	}
}

func TestCardServiceCreateChecksColumnOwnership(t *testing.T) {
	store := newFakeBoardStore()
	store.columns["col1"] = Column{ID: "col1", ChannelID: "other", Name: "todo"}
	svc := NewCardService(store)

	_, err := svc.Create(context.Background(), "ch1", "col1", CreateCardInput{Title: "t"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound for foreign column", err)
	}
}

func TestCardServiceCreateAndReorder(t *testing.T) {
	store := newFakeBoardStore()
	store.columns["col1"] = Column{ID: "col1", ChannelID: "ch1", Name: "todo"}
	svc := NewCardService(store)

	for _, title := range []string{"one", "two", "three"} {
		if _, err := svc.Create(context.Background(), "ch1", "col1", CreateCardInput{ID: title, Title: title}); err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
	}
	cards, err := svc.Reorder(context.Background(), "ch1", "col1", "three", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantOrder := []string{"three", "one", "two"}
	for i, id := range wantOrder {
		if cards[i].ID != id || cards[i].Position != i {
			t.Errorf("slot %d: got %s@%d, want %s@%d", i, cards[i].ID, cards[i].Position, id, i)
		}
	}
}

func TestCardServiceDelete(t *testing.T) {
	store := newFakeBoardStore()
	store.columns["col1"] = Column{ID: "col1", ChannelID: "ch1", Name: "todo"}
	store.cards["a"] = Card{ID: "a", ChannelID: "ch1", ColumnID: "col1", Title: "a", Position: 0}
	store.cards["b"] = Card{ID: "b", ChannelID: "ch1", ColumnID: "col1", Title: "b", Position: 1}
	svc := NewCardService(store)

	if err := svc.Delete(context.Background(), "ch1", "col1", "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.cards["b"].Position; got != 0 {
		t.Fatalf("b at %d, want 0", got)
	}
}

func TestTaskServiceScopesSiblingsByParent(t *testing.T) {
	store := newFakeBoardStore()
	store.cards["card1"] = Card{ID: "card1", ChannelID: "ch1", ColumnID: "col1", Title: "c"}
	svc := NewTaskService(store)

	// Two tasks under the card, one directly under the channel.
	if _, err := svc.Create(context.Background(), "ch1", CreateTaskInput{ID: "t1", CardID: "card1", Title: "t1"}); err != nil {
		t.Fatalf("create t1: %v", err)
	}
	if _, err := svc.Create(context.Background(), "ch1", CreateTaskInput{ID: "t2", CardID: "card1", Title: "t2"}); err != nil {
		t.Fatalf("create t2: %v", err)
	}
	loose, err := svc.Create(context.Background(), "ch1", CreateTaskInput{ID: "t3", Title: "t3"})
	if err != nil {
		t.Fatalf("create t3: %v", err)
	}
	if loose.Position != 0 {
		t.Fatalf("channel-scoped task at %d, want 0 in its own scope", loose.Position)
	}
	if store.tasks["t2"].Position != 1 {
		t.Fatalf("t2 at %d, want 1", store.tasks["t2"].Position)
	}

	tasks, err := svc.Reorder(context.Background(), "ch1", "t2", 0)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != "t2" || tasks[1].ID != "t1" {
		t.Fatalf("got %+v, want [t2 t1] within the card scope", tasks)
	}
	if store.tasks["t3"].Position != 0 {
		t.Fatal("reorder leaked into the channel scope")
	}
}

func TestTaskServiceCreateRejectsForeignCard(t *testing.T) {
	store := newFakeBoardStore()
	store.cards["card1"] = Card{ID: "card1", ChannelID: "other", ColumnID: "col1", Title: "c"}
	svc := NewTaskService(store)

	_, err := svc.Create(context.Background(), "ch1", CreateTaskInput{CardID: "card1", Title: "t"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestTaskServiceDeleteUnknownTask(t *testing.T) {
	svc := NewTaskService(newFakeBoardStore())

	err := svc.Delete(context.Background(), "ch1", "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestColumnServiceCreatePropagatesStorageError(t *testing.T) {
	store := newFakeBoardStore()
	seedColumns(t, store, "ch1", "A", "B")
	store.failSetPosition = true
	svc := NewColumnService(store)

	_, err := svc.Create(context.Background(), "ch1", CreateColumnInput{Name: "new", Position: intPtr(0)})
	if !errors.Is(err, errStorageDown) {
		t.Fatalf("got %v, want storage error surfaced", err)
	}
}
