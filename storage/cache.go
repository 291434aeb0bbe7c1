package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"board-api/domain"
)

type backend interface {
	ListColumns(ctx context.Context, channelID string) ([]domain.Column, error)
	ListCards(ctx context.Context, channelID, columnID string) ([]domain.Card, error)
	ListTasks(ctx context.Context, channelID, scope string) ([]domain.Task, error)

	InsertColumn(ctx context.Context, col domain.Column) error
	SetColumnPosition(ctx context.Context, channelID, columnID string, position int) error
	DeleteColumn(ctx context.Context, channelID, columnID string) error
	InsertCard(ctx context.Context, card domain.Card) error
	SetCardPosition(ctx context.Context, channelID, cardID string, position int) error
	DeleteCard(ctx context.Context, channelID, cardID string) error
	InsertTask(ctx context.Context, task domain.Task) error
	SetTaskPosition(ctx context.Context, channelID, taskID string, position int) error
	DeleteTask(ctx context.Context, channelID, taskID string) error
}

// Cache wraps a Storage instance with redis-backed caching of ordered
// sibling lists. Any mutation inside a channel evicts every sibling list of
// that channel: shift writes touch rows the mutation's own scope key would
// not cover.
type Cache struct {
	*Storage
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided redis client
// and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	c := &Cache{base: base, redis: client, ttl: ttl}
	if s, ok := base.(*Storage); ok {
		c.Storage = s
	}
	return c
}

func (c *Cache) ListColumns(ctx context.Context, channelID string) ([]domain.Column, error) {
	key := columnsCacheKey(channelID)
	var cols []domain.Column
	if c.loadList(ctx, key, &cols) {
		return cols, nil
	}
	cols, err := c.base.ListColumns(ctx, channelID)
	if err != nil {
		return nil, err
	}
	c.storeList(ctx, key, cols)
	return cols, nil
}

func (c *Cache) ListCards(ctx context.Context, channelID, columnID string) ([]domain.Card, error) {
	key := cardsCacheKey(channelID, columnID)
	var cards []domain.Card
	if c.loadList(ctx, key, &cards) {
		return cards, nil
	}
	cards, err := c.base.ListCards(ctx, channelID, columnID)
	if err != nil {
		return nil, err
	}
	c.storeList(ctx, key, cards)
	return cards, nil
}

func (c *Cache) ListTasks(ctx context.Context, channelID, scope string) ([]domain.Task, error) {
	key := tasksCacheKey(channelID, scope)
	var tasks []domain.Task
	if c.loadList(ctx, key, &tasks) {
		return tasks, nil
	}
	tasks, err := c.base.ListTasks(ctx, channelID, scope)
	if err != nil {
		return nil, err
	}
	c.storeList(ctx, key, tasks)
	return tasks, nil
}

func (c *Cache) InsertColumn(ctx context.Context, col domain.Column) error {
	if err := c.base.InsertColumn(ctx, col); err != nil {
		return err
	}
	c.evictChannel(ctx, col.ChannelID)
	return nil
}

func (c *Cache) SetColumnPosition(ctx context.Context, channelID, columnID string, position int) error {
	if err := c.base.SetColumnPosition(ctx, channelID, columnID, position); err != nil {
		return err
	}
	c.evictChannel(ctx, channelID)
	return nil
}

func (c *Cache) DeleteColumn(ctx context.Context, channelID, columnID string) error {
	if err := c.base.DeleteColumn(ctx, channelID, columnID); err != nil {
		return err
	}
	c.evictChannel(ctx, channelID)
	return nil
}

func (c *Cache) InsertCard(ctx context.Context, card domain.Card) error {
	if err := c.base.InsertCard(ctx, card); err != nil {
		return err
	}
	c.evictChannel(ctx, card.ChannelID)
	return nil
}

func (c *Cache) SetCardPosition(ctx context.Context, channelID, cardID string, position int) error {
	if err := c.base.SetCardPosition(ctx, channelID, cardID, position); err != nil {
		return err
	}
	c.evictChannel(ctx, channelID)
	return nil
}

func (c *Cache) DeleteCard(ctx context.Context, channelID, cardID string) error {
	if err := c.base.DeleteCard(ctx, channelID, cardID); err != nil {
		return err
	}
	c.evictChannel(ctx, channelID)
	return nil
}

func (c *Cache) InsertTask(ctx context.Context, task domain.Task) error {
	if err := c.base.InsertTask(ctx, task); err != nil {
		return err
	}
	c.evictChannel(ctx, task.ChannelID)
	return nil
}

func (c *Cache) SetTaskPosition(ctx context.Context, channelID, taskID string, position int) error {
	if err := c.base.SetTaskPosition(ctx, channelID, taskID, position); err != nil {
		return err
	}
	c.evictChannel(ctx, channelID)
	return nil
}

func (c *Cache) DeleteTask(ctx context.Context, channelID, taskID string) error {
	if err := c.base.DeleteTask(ctx, channelID, taskID); err != nil {
		return err
	}
	c.evictChannel(ctx, channelID)
	return nil
}

func (c *Cache) loadList(ctx context.Context, key string, dst any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) storeList(ctx context.Context, key string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

// evictChannel drops every sibling-list key under the channel.
func (c *Cache) evictChannel(ctx context.Context, channelID string) {
	if c.redis == nil {
		return
	}
	var keys []string
	iter := c.redis.Scan(ctx, 0, "siblings:"+channelID+":*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		_, _ = c.redis.Del(ctx, keys...).Result()
	}
}

func columnsCacheKey(channelID string) string {
	return "siblings:" + channelID + ":columns"
}

func cardsCacheKey(channelID, columnID string) string {
	return "siblings:" + channelID + ":cards:" + columnID
}

func tasksCacheKey(channelID, scope string) string {
	return "siblings:" + channelID + ":tasks:" + scope
}
