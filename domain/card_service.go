package domain

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// CardStorage defines the row-level persistence the card handler needs.
type CardStorage interface {
	GetColumn(ctx context.Context, channelID, columnID string) (*Column, error)
	ListCards(ctx context.Context, channelID, columnID string) ([]Card, error)
	InsertCard(ctx context.Context, card Card) error
	SetCardPosition(ctx context.Context, channelID, cardID string, position int) error
	DeleteCard(ctx context.Context, channelID, cardID string) error
}

// CardService owns position mutation for cards within one column.
type CardService struct{ st CardStorage }

func NewCardService(st CardStorage) CardService { return CardService{st: st} }

// CreateCardInput carries the client-supplied attributes for a new card.
type CreateCardInput struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Notes    string `json:"notes,omitempty"`
	Position *int   `json:"position,omitempty"`
}

// Create places a new card in the column, shifting siblings first. The column
// must belong to the claimed channel.
func (s CardService) Create(ctx context.Context, channelID, columnID string, in CreateCardInput) (Card, error) {
	if in.Title == "" {
		return Card{}, fmt.Errorf("card title is required: %w", ErrInvalidInput)
	}
	if err := s.checkColumn(ctx, channelID, columnID); err != nil {
		return Card{}, err
	}
	siblings, err := s.st.ListCards(ctx, channelID, columnID)
	if err != nil {
		return Card{}, err
	}
	pos, shifts := PlanInsert(cardItems(siblings), in.Position)
	for _, sh := range shifts {
		if err := s.st.SetCardPosition(ctx, channelID, sh.ID, sh.Position); err != nil {
			return Card{}, err
		}
	}
	now := time.Now().UTC()
	card := Card{
		ID:        in.ID,
		ChannelID: channelID,
		ColumnID:  columnID,
		Title:     in.Title,
		Notes:     in.Notes,
		Position:  pos,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	if err := s.st.InsertCard(ctx, card); err != nil {
		return Card{}, err
	}
	return card, nil
}

// Reorder moves a card within its column and returns the renumbered list.
func (s CardService) Reorder(ctx context.Context, channelID, columnID, cardID string, toPosition int) ([]Card, error) {
	if err := s.checkColumn(ctx, channelID, columnID); err != nil {
		return nil, err
	}
	siblings, err := s.st.ListCards(ctx, channelID, columnID)
	if err != nil {
		return nil, err
	}
	moving, ok := findCard(siblings, cardID)
	if !ok {
		return nil, fmt.Errorf("card %s: %w", cardID, ErrNotFound)
	}
	toPosition = ClampPosition(toPosition, len(siblings))
	plan, err := PlanMove(cardItems(siblings), cardID, moving.Position, toPosition)
	if err != nil {
		return nil, err
	}
	if plan.Empty() {
		return sortCards(siblings), nil
	}
	for _, sh := range plan.Shifts {
		if err := s.st.SetCardPosition(ctx, channelID, sh.ID, sh.Position); err != nil {
			return nil, err
		}
	}
	if err := s.st.SetCardPosition(ctx, channelID, plan.Final.ID, plan.Final.Position); err != nil {
		return nil, err
	}
	return sortCards(applyCardPlan(siblings, plan)), nil
}

// Delete removes the card and closes the gap.
func (s CardService) Delete(ctx context.Context, channelID, columnID, cardID string) error {
	if err := s.checkColumn(ctx, channelID, columnID); err != nil {
		return err
	}
	siblings, err := s.st.ListCards(ctx, channelID, columnID)
	if err != nil {
		return err
	}
	shifts, err := PlanDelete(cardItems(siblings), cardID)
	if err != nil {
		return err
	}
	if err := s.st.DeleteCard(ctx, channelID, cardID); err != nil {
		return err
	}
	for _, sh := range shifts {
		if err := s.st.SetCardPosition(ctx, channelID, sh.ID, sh.Position); err != nil {
			return err
		}
	}
	return nil
}

func (s CardService) checkColumn(ctx context.Context, channelID, columnID string) error {
	col, err := s.st.GetColumn(ctx, channelID, columnID)
	if err != nil {
		return err
	}
	if col == nil || col.ChannelID != channelID {
		return fmt.Errorf("column %s in channel %s: %w", columnID, channelID, ErrNotFound)
	}
	return nil
}

func cardItems(cards []Card) []OrderedItem {
	items := make([]OrderedItem, len(cards))
	for i, c := range cards {
		items[i] = OrderedItem{ID: c.ID, Position: c.Position}
	}
	return items
}

func findCard(cards []Card, id string) (Card, bool) {
	for _, c := range cards {
		if c.ID == id {
			return c, true
		}
	}
	return Card{}, false
}

func applyCardPlan(cards []Card, plan ReorderPlan) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)
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

func sortCards(cards []Card) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}
