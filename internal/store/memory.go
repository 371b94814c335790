package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agenthands/storyforge/internal/core/model"
	"github.com/agenthands/storyforge/internal/errs"
)

// Memory keeps everything in process. Stored values are deep copied on the
// way in and out.
type Memory struct {
	mu      sync.RWMutex
	stories map[string]*model.Story
	users   map[string]*model.User
	emails  map[string]string
	resets  map[string]pendingReset
}

type pendingReset struct {
	tokenHash string
	expiresAt time.Time
}

func NewMemory() *Memory {
	return &Memory{
		stories: make(map[string]*model.Story),
		users:   make(map[string]*model.User),
		emails:  make(map[string]string),
		resets:  make(map[string]pendingReset),
	}
}

func (m *Memory) CreateStory(_ context.Context, s *model.Story) error {
	if err := checkNewStory(s); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stories[s.ID]; ok {
		return errs.Conflict("story already exists")
	}
	cp := s.Clone()
	model.Migrate(cp)
	m.stories[s.ID] = cp
	return nil
}

func (m *Memory) GetStory(_ context.Context, id string) (*model.Story, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stories[id]
	if !ok {
		return nil, storyNotFound("store.GetStory")
	}
	return s.Clone(), nil
}

func (m *Memory) ListStories(_ context.Context, ownerID string) ([]model.StorySummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.StorySummary, 0)
	for _, s := range m.stories {
		if s.OwnerID == ownerID {
			out = append(out, summarize(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (m *Memory) CommitChapter(_ context.Context, storyID string, ch model.Chapter, ev model.TimelineEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stories[storyID]
	if !ok {
		return storyNotFound("store.CommitChapter")
	}
	if have := len(s.ChapterHistory); ch.Index != have {
		return conflictAt(storyID, ch.Index, have)
	}
	s.ChapterHistory = append(s.ChapterHistory, ch)
	s.TimelineEvents = append(s.TimelineEvents, ev)
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) CreateUser(_ context.Context, u *model.User) error {
	if err := checkNewUser(u); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.emails[u.Email]; ok {
		return errs.Conflict("Email already registered")
	}
	cp := *u
	m.users[u.ID] = &cp
	m.emails[u.Email] = u.ID
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, userNotFound("store.GetUser")
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.RLock()
	id, ok := m.emails[email]
	m.mu.RUnlock()
	if !ok {
		return nil, userNotFound("store.GetUserByEmail")
	}
	return m.GetUser(ctx, id)
}

func (m *Memory) SetResetToken(_ context.Context, userID, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return userNotFound("store.SetResetToken")
	}
	m.resets[userID] = pendingReset{tokenHash: tokenHash, expiresAt: expiresAt}
	return nil
}

func (m *Memory) ResetPassword(_ context.Context, tokenHash, passwordHash string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, r := range m.resets {
		if r.tokenHash != tokenHash {
			continue
		}
		if !r.expiresAt.After(now) {
			break
		}
		delete(m.resets, userID)
		m.users[userID].PasswordHash = passwordHash
		return nil
	}
	return resetTokenNotFound("store.ResetPassword")
}

func (m *Memory) Close() error { return nil }
