package streak

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"habit-planner/internal/calendar"
)

// DefaultCacheSize is used when NewCache is given a non-positive size.
const DefaultCacheSize = 1024

type cacheKey struct {
	taskID uint
	today  calendar.Date
}

// Cache holds computed states per (task, day). It is owned by the caller,
// who must Invalidate a task whenever a completion is appended or a break
// credit is spent. Safe for concurrent use.
type Cache struct {
	entries *lru.Cache[cacheKey, State]
}

func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[cacheKey, State](size)
	if err != nil {
		return nil, fmt.Errorf("create streak cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

func (c *Cache) Get(taskID uint, today calendar.Date) (State, bool) {
	return c.entries.Get(cacheKey{taskID: taskID, today: today})
}

func (c *Cache) Put(taskID uint, today calendar.Date, state State) {
	c.entries.Add(cacheKey{taskID: taskID, today: today}, state)
}

// Invalidate drops every cached state of taskID.
func (c *Cache) Invalidate(taskID uint) {
	for _, key := range c.entries.Keys() {
		if key.taskID == taskID {
			c.entries.Remove(key)
		}
	}
}

func (c *Cache) Purge() {
	c.entries.Purge()
}

func (c *Cache) Len() int {
	return c.entries.Len()
}
