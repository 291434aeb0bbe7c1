package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"board-api/domain"
)

// TableNames configures the six tables the service reads and writes.
type TableNames struct {
	Channels string
	Shares   string
	Users    string
	Columns  string
	Cards    string
	Tasks    string
}

// Storage provides row-level access to the board tables. Table storage gives
// per-row atomic updates only; position shifts are applied as sequential row
// writes.
type Storage struct {
	channels *aztables.Client
	shares   *aztables.Client
	users    *aztables.Client
	columns  *aztables.Client
	cards    *aztables.Client
	tasks    *aztables.Client
}

// New creates a Storage instance from the given connection string.
func New(connStr string, tables TableNames) (*Storage, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Storage{
		channels: svc.NewClient(tables.Channels),
		shares:   svc.NewClient(tables.Shares),
		users:    svc.NewClient(tables.Users),
		columns:  svc.NewClient(tables.Columns),
		cards:    svc.NewClient(tables.Cards),
		tasks:    svc.NewClient(tables.Tasks),
	}, nil
}

type channelEntity struct {
	aztables.Entity
	OwnerID   string `json:"OwnerId"`
	Name      string `json:"Name"`
	Public    bool   `json:"Public"`
	CreatedAt string `json:"CreatedAt,omitempty"`
	UpdatedAt string `json:"UpdatedAt,omitempty"`
}

type shareEntity struct {
	aztables.Entity
	UserID   string `json:"UserId,omitempty"`
	Email    string `json:"Email,omitempty"`
	Role     string `json:"Role"`
	Accepted bool   `json:"Accepted"`
}

type userEntity struct {
	aztables.Entity
	Name      string `json:"Name"`
	Email     string `json:"Email,omitempty"`
	AvatarURL string `json:"AvatarUrl,omitempty"`
}

type columnEntity struct {
	aztables.Entity
	Name      string `json:"Name"`
	Position  int    `json:"Position"`
	CreatedAt string `json:"CreatedAt,omitempty"`
	UpdatedAt string `json:"UpdatedAt,omitempty"`
}

type cardEntity struct {
	aztables.Entity
	ColumnID  string `json:"ColumnId"`
	Title     string `json:"Title"`
	Notes     string `json:"Notes,omitempty"`
	Position  int    `json:"Position"`
	CreatedAt string `json:"CreatedAt,omitempty"`
	UpdatedAt string `json:"UpdatedAt,omitempty"`
}

type taskEntity struct {
	aztables.Entity
	Scope     string `json:"Scope"`
	CardID    string `json:"CardId,omitempty"`
	Title     string `json:"Title"`
	Done      bool   `json:"Done"`
	Position  int    `json:"Position"`
	CreatedAt string `json:"CreatedAt,omitempty"`
	UpdatedAt string `json:"UpdatedAt,omitempty"`
}

type positionUpdate struct {
	aztables.Entity
	Position  int    `json:"Position"`
	UpdatedAt string `json:"UpdatedAt"`
}

// GetChannel returns the channel row, or nil when it does not exist.
func (s *Storage) GetChannel(ctx context.Context, channelID string) (*domain.Channel, error) {
	resp, err := s.channels.GetEntity(ctx, channelID, channelID, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var ent channelEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	return &domain.Channel{
		ID:        ent.RowKey,
		OwnerID:   ent.OwnerID,
		Name:      ent.Name,
		Public:    ent.Public,
		CreatedAt: parseTime(ent.CreatedAt),
		UpdatedAt: parseTime(ent.UpdatedAt),
	}, nil
}

// ListShares returns every share row for the channel.
func (s *Storage) ListShares(ctx context.Context, channelID string) ([]domain.Share, error) {
	filter := partitionFilter(channelID)
	pager := s.shares.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	shares := []domain.Share{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent shareEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			shares = append(shares, domain.Share{
				ChannelID: ent.PartitionKey,
				UserID:    ent.UserID,
				Email:     ent.Email,
				Role:      domain.Role(ent.Role),
				Accepted:  ent.Accepted,
			})
		}
	}
	return shares, nil
}

// GetUser returns the user profile row, or nil when it does not exist.
func (s *Storage) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	resp, err := s.users.GetEntity(ctx, userID, userID, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var ent userEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	return &domain.User{
		ID:        ent.RowKey,
		Name:      ent.Name,
		Email:     ent.Email,
		AvatarURL: ent.AvatarURL,
	}, nil
}

// ListColumns returns the channel's columns ordered by position. Table
// storage cannot order by property, so rows are sorted after the scan.
func (s *Storage) ListColumns(ctx context.Context, channelID string) ([]domain.Column, error) {
	filter := partitionFilter(channelID)
	pager := s.columns.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	cols := []domain.Column{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent columnEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			cols = append(cols, columnFromEntity(ent))
		}
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Position < cols[j].Position })
	return cols, nil
}

// GetColumn returns one column row, or nil when it does not exist in the
// channel.
func (s *Storage) GetColumn(ctx context.Context, channelID, columnID string) (*domain.Column, error) {
	resp, err := s.columns.GetEntity(ctx, channelID, columnID, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var ent columnEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	col := columnFromEntity(ent)
	return &col, nil
}

// InsertColumn writes a new column row.
func (s *Storage) InsertColumn(ctx context.Context, col domain.Column) error {
	ent := columnEntity{
		Entity:    aztables.Entity{PartitionKey: col.ChannelID, RowKey: col.ID},
		Name:      col.Name,
		Position:  col.Position,
		CreatedAt: formatTime(col.CreatedAt),
		UpdatedAt: formatTime(col.UpdatedAt),
	}
	data, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.columns.AddEntity(ctx, data, nil)
	return err
}

// SetColumnPosition updates a single column's position as one atomic row
// merge.
func (s *Storage) SetColumnPosition(ctx context.Context, channelID, columnID string, position int) error {
	return s.setPosition(ctx, s.columns, channelID, columnID, position)
}

// DeleteColumn removes the column row.
func (s *Storage) DeleteColumn(ctx context.Context, channelID, columnID string) error {
	_, err := s.columns.DeleteEntity(ctx, channelID, columnID, nil)
	if isNotFound(err) {
		return fmt.Errorf("column %s: %w", columnID, domain.ErrNotFound)
	}
	return err
}

// ListCards returns the cards of one column ordered by position. Cards are
// partitioned by channel with the column as a property.
func (s *Storage) ListCards(ctx context.Context, channelID, columnID string) ([]domain.Card, error) {
	filter := partitionFilter(channelID) + " and ColumnId eq '" + sanitize(columnID) + "'"
	pager := s.cards.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	cards := []domain.Card{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent cardEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			cards = append(cards, cardFromEntity(ent))
		}
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Position < cards[j].Position })
	return cards, nil
}

// GetCard returns one card row, or nil when it does not exist in the channel.
func (s *Storage) GetCard(ctx context.Context, channelID, cardID string) (*domain.Card, error) {
	resp, err := s.cards.GetEntity(ctx, channelID, cardID, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var ent cardEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	card := cardFromEntity(ent)
	return &card, nil
}

// InsertCard writes a new card row.
func (s *Storage) InsertCard(ctx context.Context, card domain.Card) error {
	ent := cardEntity{
		Entity:    aztables.Entity{PartitionKey: card.ChannelID, RowKey: card.ID},
		ColumnID:  card.ColumnID,
		Title:     card.Title,
		Notes:     card.Notes,
		Position:  card.Position,
		CreatedAt: formatTime(card.CreatedAt),
		UpdatedAt: formatTime(card.UpdatedAt),
	}
	data, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.cards.AddEntity(ctx, data, nil)
	return err
}

// SetCardPosition updates a single card's position as one atomic row merge.
func (s *Storage) SetCardPosition(ctx context.Context, channelID, cardID string, position int) error {
	return s.setPosition(ctx, s.cards, channelID, cardID, position)
}

// DeleteCard removes the card row.
func (s *Storage) DeleteCard(ctx context.Context, channelID, cardID string) error {
	_, err := s.cards.DeleteEntity(ctx, channelID, cardID, nil)
	if isNotFound(err) {
		return fmt.Errorf("card %s: %w", cardID, domain.ErrNotFound)
	}
	return err
}

// ListTasks returns the tasks in one parent scope ordered by position.
func (s *Storage) ListTasks(ctx context.Context, channelID, scope string) ([]domain.Task, error) {
	filter := partitionFilter(channelID) + " and Scope eq '" + sanitize(scope) + "'"
	pager := s.tasks.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			tasks = append(tasks, taskFromEntity(ent))
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Position < tasks[j].Position })
	return tasks, nil
}

// GetTask returns one task row, or nil when it does not exist in the channel.
func (s *Storage) GetTask(ctx context.Context, channelID, taskID string) (*domain.Task, error) {
	resp, err := s.tasks.GetEntity(ctx, channelID, taskID, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var ent taskEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	task := taskFromEntity(ent)
	return &task, nil
}

// InsertTask writes a new task row.
func (s *Storage) InsertTask(ctx context.Context, task domain.Task) error {
	ent := taskEntity{
		Entity:    aztables.Entity{PartitionKey: task.ChannelID, RowKey: task.ID},
		Scope:     task.ParentScope(),
		CardID:    task.CardID,
		Title:     task.Title,
		Done:      task.Done,
		Position:  task.Position,
		CreatedAt: formatTime(task.CreatedAt),
		UpdatedAt: formatTime(task.UpdatedAt),
	}
	data, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.tasks.AddEntity(ctx, data, nil)
	return err
}

// SetTaskPosition updates a single task's position as one atomic row merge.
func (s *Storage) SetTaskPosition(ctx context.Context, channelID, taskID string, position int) error {
	return s.setPosition(ctx, s.tasks, channelID, taskID, position)
}

// DeleteTask removes the task row.
func (s *Storage) DeleteTask(ctx context.Context, channelID, taskID string) error {
	_, err := s.tasks.DeleteEntity(ctx, channelID, taskID, nil)
	if isNotFound(err) {
		return fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}
	return err
}

func (s *Storage) setPosition(ctx context.Context, table *aztables.Client, pk, rk string, position int) error {
	upd := positionUpdate{
		Entity:    aztables.Entity{PartitionKey: pk, RowKey: rk},
		Position:  position,
		UpdatedAt: formatTime(time.Now().UTC()),
	}
	data, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	_, err = table.UpdateEntity(ctx, data, &aztables.UpdateEntityOptions{UpdateMode: aztables.UpdateModeMerge})
	if isNotFound(err) {
		return fmt.Errorf("row %s/%s: %w", pk, rk, domain.ErrNotFound)
	}
	return err
}

func columnFromEntity(ent columnEntity) domain.Column {
	return domain.Column{
		ID:        ent.RowKey,
		ChannelID: ent.PartitionKey,
		Name:      ent.Name,
		Position:  ent.Position,
		CreatedAt: parseTime(ent.CreatedAt),
		UpdatedAt: parseTime(ent.UpdatedAt),
	}
}

func cardFromEntity(ent cardEntity) domain.Card {
	return domain.Card{
		ID:        ent.RowKey,
		ChannelID: ent.PartitionKey,
		ColumnID:  ent.ColumnID,
		Title:     ent.Title,
		Notes:     ent.Notes,
		Position:  ent.Position,
		CreatedAt: parseTime(ent.CreatedAt),
		UpdatedAt: parseTime(ent.UpdatedAt),
	}
}

func taskFromEntity(ent taskEntity) domain.Task {
	return domain.Task{
		ID:        ent.RowKey,
		ChannelID: ent.PartitionKey,
		CardID:    ent.CardID,
		Title:     ent.Title,
		Done:      ent.Done,
		Position:  ent.Position,
		CreatedAt: parseTime(ent.CreatedAt),
		UpdatedAt: parseTime(ent.UpdatedAt),
	}
}

func partitionFilter(pk string) string {
	return "PartitionKey eq '" + sanitize(pk) + "'"
}

// sanitize doubles single quotes per the OData literal escaping rules.
func sanitize(v string) string {
	out := make([]byte, 0, len(v))
	for i := 0; i < len(v); i++ {
		if v[i] == '\'' {
			out = append(out, '\'', '\'')
			continue
		}
		out = append(out, v[i])
	}
	return string(out)
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}

func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
