// Package store persists stories, their chapter history and user accounts.
//
// CommitChapter is the only mutation of a story after creation. Every
// implementation performs an optimistic check: the chapter index must equal
// the stored history length, otherwise errs.KindConflict is returned.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/agenthands/storyforge/internal/config"
	"github.com/agenthands/storyforge/internal/core/model"
	"github.com/agenthands/storyforge/internal/driver"
	"github.com/agenthands/storyforge/internal/errs"
)

type Store interface {
	CreateStory(ctx context.Context, s *model.Story) error
	GetStory(ctx context.Context, id string) (*model.Story, error)
	ListStories(ctx context.Context, ownerID string) ([]model.StorySummary, error)
	CommitChapter(ctx context.Context, storyID string, ch model.Chapter, ev model.TimelineEvent) error

	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// SetResetToken replaces any pending reset token of the user.
	SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	// ResetPassword consumes the unexpired token matching tokenHash and
	// stores passwordHash for its user. An unknown, used or expired token
	// yields errs.KindNotFound.
	ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) error

	Close() error
}

// Open builds the store selected by cfg.Driver, wrapped in a read cache when
// cfg.CacheSize is positive.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "memory":
		s = NewMemory()
	case "sqlite":
		s, err = OpenSQLite(cfg.SQLitePath)
	case "memgraph":
		var drv *driver.MemgraphDriver
		drv, err = driver.NewMemgraphDriver(ctx, cfg.MemgraphURI, cfg.MemgraphUser, cfg.MemgraphPassword, logger)
		if err == nil {
			if err = drv.BuildIndices(ctx); err == nil {
				s = NewMemgraph(drv)
			} else {
				_ = drv.Close(ctx)
			}
		}
	default:
		return nil, errs.Config(fmt.Sprintf("unsupported storage driver: %s", cfg.Driver), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}

	logger.Info("store opened", "driver", cfg.Driver, "cache_size", cfg.CacheSize)
	if cfg.CacheSize > 0 {
		return NewCached(s, cfg.CacheSize)
	}
	return s, nil
}

func checkNewStory(s *model.Story) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("story id is required")
	}
	return nil
}

func checkNewUser(u *model.User) error {
	if u == nil || u.ID == "" || u.Email == "" {
		return fmt.Errorf("user id and email are required")
	}
	return nil
}

func conflictAt(storyID string, want, have int) error {
	return errs.Conflict(fmt.Sprintf("story %s changed concurrently: chapter %d already exists (history has %d)", storyID, want+1, have))
}

func storyNotFound(op string) error {
	return errs.NotFound("Story").WithOp(op)
}

func userNotFound(op string) error {
	return errs.NotFound("User").WithOp(op)
}

func resetTokenNotFound(op string) error {
	return errs.NotFound("Reset token").WithOp(op)
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

func toUnix(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func summarize(s *model.Story) model.StorySummary {
	return model.StorySummary{
		ID:           s.ID,
		Title:        s.Title,
		Genre:        s.Genre,
		Structure:    s.Structure,
		ChapterCount: len(s.ChapterHistory),
		UpdatedAt:    s.UpdatedAt,
	}
}
