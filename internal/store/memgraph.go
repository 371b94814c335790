package store

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/storyforge/internal/core/model"
	"github.com/agenthands/storyforge/internal/driver"
	"github.com/agenthands/storyforge/internal/errs"
)

// Memgraph stores (:Story)-[:HAS_CHAPTER]->(:Chapter) and
// (:Story)-[:HAS_EVENT]->(:TimelineEvent) over Bolt.
type Memgraph struct {
	driver driver.GraphDriver
}

func NewMemgraph(d driver.GraphDriver) *Memgraph {
	return &Memgraph{driver: d}
}

func (m *Memgraph) Close() error {
	return m.driver.Close(context.Background())
}

func (m *Memgraph) CreateStory(ctx context.Context, s *model.Story) error {
	if err := checkNewStory(s); err != nil {
		return err
	}
	cp := s.Clone()
	model.Migrate(cp)

	chars, err := encodeJSON(cp.Characters)
	if err != nil {
		return fmt.Errorf("encode characters: %w", err)
	}
	rules, err := encodeJSON(cp.WorldRules)
	if err != nil {
		return fmt.Errorf("encode world rules: %w", err)
	}

	res, err := m.driver.ExecuteQuery(ctx, driver.CreateStoryQuery, map[string]any{
		"id":               cp.ID,
		"owner_id":         cp.OwnerID,
		"title":            cp.Title,
		"genre":            string(cp.Genre),
		"premise":          cp.Premise,
		"structure":        string(cp.Structure),
		"act_count":        int64(cp.ActCount),
		"schema_version":   int64(cp.SchemaVersion),
		"characters_json":  chars,
		"world_rules_json": rules,
		"created_at":       toUnix(cp.CreatedAt),
		"updated_at":       toUnix(cp.UpdatedAt),
	})
	if err != nil {
		return fmt.Errorf("create story: %w", err)
	}
	if len(res.Records) == 0 {
		return errs.Conflict("story already exists")
	}
	return nil
}

func (m *Memgraph) GetStory(ctx context.Context, id string) (*model.Story, error) {
	params := map[string]any{"id": id}

	res, err := m.driver.ExecuteQuery(ctx, driver.GetStoryQuery, params)
	if err != nil {
		return nil, fmt.Errorf("get story: %w", err)
	}
	if len(res.Records) == 0 {
		return nil, storyNotFound("store.GetStory")
	}
	rec := res.Records[0]

	s := &model.Story{
		ID:            recString(rec, "id"),
		OwnerID:       recString(rec, "owner_id"),
		Title:         recString(rec, "title"),
		Genre:         model.Genre(recString(rec, "genre")),
		Premise:       recString(rec, "premise"),
		Structure:     model.Structure(recString(rec, "structure")),
		ActCount:      int(recInt(rec, "act_count")),
		SchemaVersion: int(recInt(rec, "schema_version")),
		CreatedAt:     fromUnix(recInt(rec, "created_at")),
		UpdatedAt:     fromUnix(recInt(rec, "updated_at")),
	}
	if err := decodeJSON(recString(rec, "characters_json"), &s.Characters); err != nil {
		return nil, fmt.Errorf("decode characters: %w", err)
	}
	if err := decodeJSON(recString(rec, "world_rules_json"), &s.WorldRules); err != nil {
		return nil, fmt.Errorf("decode world rules: %w", err)
	}

	chapters, err := m.driver.ExecuteQuery(ctx, driver.GetChaptersQuery, params)
	if err != nil {
		return nil, fmt.Errorf("get chapters: %w", err)
	}
	s.ChapterHistory = make([]model.Chapter, 0, len(chapters.Records))
	for _, r := range chapters.Records {
		ch := model.Chapter{
			Index:     int(recInt(r, "idx")),
			Title:     recString(r, "title"),
			Content:   recString(r, "content"),
			CreatedAt: fromUnix(recInt(r, "created_at")),
		}
		if v, ok := r.Get("act"); ok && v != nil {
			act := int(recInt(r, "act"))
			ch.Act = &act
		}
		if js := recString(r, "snapshot_json"); js != "" {
			ch.StateSnapshot = &model.Snapshot{}
			if err := decodeJSON(js, ch.StateSnapshot); err != nil {
				return nil, fmt.Errorf("decode snapshot of chapter %d: %w", ch.Index, err)
			}
		}
		s.ChapterHistory = append(s.ChapterHistory, ch)
	}

	events, err := m.driver.ExecuteQuery(ctx, driver.GetTimelineQuery, params)
	if err != nil {
		return nil, fmt.Errorf("get timeline: %w", err)
	}
	s.TimelineEvents = make([]model.TimelineEvent, 0, len(events.Records))
	for _, r := range events.Records {
		s.TimelineEvents = append(s.TimelineEvents, model.TimelineEvent{
			ChapterIndex: int(recInt(r, "chapter_index")),
			Summary:      recString(r, "summary"),
			OccurredAt:   fromUnix(recInt(r, "occurred_at")),
		})
	}

	model.Migrate(s)
	return s, nil
}

func (m *Memgraph) ListStories(ctx context.Context, ownerID string) ([]model.StorySummary, error) {
	res, err := m.driver.ExecuteQuery(ctx, driver.ListStoriesQuery, map[string]any{"owner_id": ownerID})
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	out := make([]model.StorySummary, 0, len(res.Records))
	for _, r := range res.Records {
		out = append(out, model.StorySummary{
			ID:           recString(r, "id"),
			Title:        recString(r, "title"),
			Genre:        model.Genre(recString(r, "genre")),
			Structure:    model.Structure(recString(r, "structure")),
			ChapterCount: int(recInt(r, "chapter_count")),
			UpdatedAt:    fromUnix(recInt(r, "updated_at")),
		})
	}
	return out, nil
}

func (m *Memgraph) CommitChapter(ctx context.Context, storyID string, ch model.Chapter, ev model.TimelineEvent) error {
	var act any
	if ch.Act != nil {
		act = int64(*ch.Act)
	}
	snapshot := ""
	if ch.StateSnapshot != nil {
		js, err := encodeJSON(ch.StateSnapshot)
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		snapshot = js
	}

	res, err := m.driver.ExecuteQuery(ctx, driver.CommitChapterQuery, map[string]any{
		"story_id":            storyID,
		"idx":                 int64(ch.Index),
		"title":               ch.Title,
		"content":             ch.Content,
		"act":                 act,
		"snapshot_json":       snapshot,
		"created_at":          toUnix(ch.CreatedAt),
		"event_chapter_index": int64(ev.ChapterIndex),
		"event_summary":       ev.Summary,
		"event_occurred_at":   toUnix(ev.OccurredAt),
		"updated_at":          toUnix(time.Now()),
	})
	if err != nil {
		return fmt.Errorf("commit chapter: %w", err)
	}
	if len(res.Records) > 0 {
		return nil
	}

	count, err := m.driver.ExecuteQuery(ctx, driver.CountChaptersQuery, map[string]any{"story_id": storyID})
	if err != nil {
		return fmt.Errorf("count chapters: %w", err)
	}
	if len(count.Records) == 0 {
		return storyNotFound("store.CommitChapter")
	}
	return conflictAt(storyID, ch.Index, int(recInt(count.Records[0], "n")))
}

func (m *Memgraph) CreateUser(ctx context.Context, u *model.User) error {
	if err := checkNewUser(u); err != nil {
		return err
	}
	res, err := m.driver.ExecuteQuery(ctx, driver.CreateUserQuery, map[string]any{
		"id":            u.ID,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"created_at":    toUnix(u.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if len(res.Records) == 0 {
		return errs.Conflict("Email already registered")
	}
	return nil
}

func (m *Memgraph) GetUser(ctx context.Context, id string) (*model.User, error) {
	return m.getUser(ctx, "store.GetUser", driver.GetUserByIDQuery, map[string]any{"id": id})
}

func (m *Memgraph) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return m.getUser(ctx, "store.GetUserByEmail", driver.GetUserByEmailQuery, map[string]any{"email": email})
}

func (m *Memgraph) getUser(ctx context.Context, op, query string, params map[string]any) (*model.User, error) {
	res, err := m.driver.ExecuteQuery(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(res.Records) == 0 {
		return nil, userNotFound(op)
	}
	r := res.Records[0]
	return &model.User{
		ID:           recString(r, "id"),
		Email:        recString(r, "email"),
		PasswordHash: recString(r, "password_hash"),
		CreatedAt:    fromUnix(recInt(r, "created_at")),
	}, nil
}

func (m *Memgraph) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	res, err := m.driver.ExecuteQuery(ctx, driver.SetResetTokenQuery, map[string]any{
		"id":         userID,
		"token_hash": tokenHash,
		"expires_at": toUnix(expiresAt),
	})
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if len(res.Records) == 0 {
		return userNotFound("store.SetResetToken")
	}
	return nil
}

func (m *Memgraph) ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) error {
	res, err := m.driver.ExecuteQuery(ctx, driver.ResetPasswordQuery, map[string]any{
		"token_hash":    tokenHash,
		"password_hash": passwordHash,
		"now":           toUnix(now),
	})
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	if len(res.Records) == 0 {
		return resetTokenNotFound("store.ResetPassword")
	}
	return nil
}

func recString(r *neo4j.Record, key string) string {
	v, _ := r.Get(key)
	s, _ := v.(string)
	return s
}

func recInt(r *neo4j.Record, key string) int64 {
	v, _ := r.Get(key)
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
