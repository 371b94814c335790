package store

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agenthands/storyforge/internal/core/model"
)

// Cached is a read-through story cache in front of another Store. Entries
// are invalidated on every commit; all other calls pass through.
//
// Each story has a commit epoch, bumped before and after every commit. A
// read only populates the cache when the epoch it started under is still
// current, so a snapshot taken while a commit was in flight is never cached.
type Cached struct {
	Store
	stories *lru.Cache[string, *model.Story]

	mu     sync.Mutex
	epochs map[string]uint64
}

func NewCached(inner Store, size int) (*Cached, error) {
	c, err := lru.New[string, *model.Story](size)
	if err != nil {
		return nil, fmt.Errorf("create story cache: %w", err)
	}
	return &Cached{Store: inner, stories: c, epochs: make(map[string]uint64)}, nil
}

func (c *Cached) GetStory(ctx context.Context, id string) (*model.Story, error) {
	if s, ok := c.stories.Get(id); ok {
		return s.Clone(), nil
	}

	c.mu.Lock()
	epoch := c.epochs[id]
	c.mu.Unlock()

	s, err := c.Store.GetStory(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.epochs[id] == epoch {
		c.stories.Add(id, s.Clone())
	}
	c.mu.Unlock()
	return s, nil
}

func (c *Cached) CommitChapter(ctx context.Context, storyID string, ch model.Chapter, ev model.TimelineEvent) error {
	c.invalidate(storyID)
	defer c.invalidate(storyID)
	return c.Store.CommitChapter(ctx, storyID, ch, ev)
}

func (c *Cached) invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epochs[id]++
	c.stories.Remove(id)
}

// Len reports the number of cached stories.
func (c *Cached) Len() int {
	return c.stories.Len()
}
