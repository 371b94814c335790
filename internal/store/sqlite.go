package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/agenthands/storyforge/internal/core/model"
	"github.com/agenthands/storyforge/internal/errs"
)

// SQLite is the default durable store. Characters and world rules live in
// versioned JSON columns; chapters and timeline events are typed rows.
type SQLite struct {
	conn *sqlx.DB
}

// OpenSQLite opens or creates the database at path and migrates its schema.
func OpenSQLite(path string) (*SQLite, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &SQLite{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (db *SQLite) Close() error {
	return db.conn.Close()
}

func (db *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS stories (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		genre TEXT NOT NULL,
		premise TEXT NOT NULL DEFAULT '',
		structure TEXT NOT NULL,
		act_count INTEGER NOT NULL DEFAULT 0,
		schema_version INTEGER NOT NULL,
		characters_json TEXT NOT NULL,
		world_rules_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chapters (
		story_id TEXT NOT NULL REFERENCES stories(id),
		idx INTEGER NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		act INTEGER,
		snapshot_json TEXT,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (story_id, idx)
	);

	CREATE TABLE IF NOT EXISTS timeline_events (
		story_id TEXT NOT NULL REFERENCES stories(id),
		chapter_index INTEGER NOT NULL,
		summary TEXT NOT NULL,
		occurred_at INTEGER NOT NULL,
		PRIMARY KEY (story_id, chapter_index)
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS password_resets (
		user_id TEXT PRIMARY KEY REFERENCES users(id),
		token_hash TEXT NOT NULL UNIQUE,
		expires_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS schema_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_stories_owner ON stories(owner_id, updated_at);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}
	_, err := db.conn.Exec(`INSERT INTO schema_meta (key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, strconv.Itoa(model.SchemaVersion))
	return err
}

type storyRow struct {
	ID             string `db:"id"`
	OwnerID        string `db:"owner_id"`
	Title          string `db:"title"`
	Genre          string `db:"genre"`
	Premise        string `db:"premise"`
	Structure      string `db:"structure"`
	ActCount       int    `db:"act_count"`
	SchemaVersion  int    `db:"schema_version"`
	CharactersJSON string `db:"characters_json"`
	RulesJSON      string `db:"world_rules_json"`
	CreatedAt      int64  `db:"created_at"`
	UpdatedAt      int64  `db:"updated_at"`
}

type chapterRow struct {
	Index        int            `db:"idx"`
	Title        string         `db:"title"`
	Content      string         `db:"content"`
	Act          sql.NullInt64  `db:"act"`
	SnapshotJSON sql.NullString `db:"snapshot_json"`
	CreatedAt    int64          `db:"created_at"`
}

type eventRow struct {
	ChapterIndex int    `db:"chapter_index"`
	Summary      string `db:"summary"`
	OccurredAt   int64  `db:"occurred_at"`
}

type userRow struct {
	ID           string `db:"id"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	CreatedAt    int64  `db:"created_at"`
}

func (db *SQLite) CreateStory(ctx context.Context, s *model.Story) error {
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

	_, err = db.conn.NamedExecContext(ctx, `INSERT INTO stories
		(id, owner_id, title, genre, premise, structure, act_count, schema_version,
		 characters_json, world_rules_json, created_at, updated_at)
		VALUES (:id, :owner_id, :title, :genre, :premise, :structure, :act_count, :schema_version,
		 :characters_json, :world_rules_json, :created_at, :updated_at)`,
		storyRow{
			ID:             cp.ID,
			OwnerID:        cp.OwnerID,
			Title:          cp.Title,
			Genre:          string(cp.Genre),
			Premise:        cp.Premise,
			Structure:      string(cp.Structure),
			ActCount:       cp.ActCount,
			SchemaVersion:  cp.SchemaVersion,
			CharactersJSON: chars,
			RulesJSON:      rules,
			CreatedAt:      toUnix(cp.CreatedAt),
			UpdatedAt:      toUnix(cp.UpdatedAt),
		})
	if isConstraint(err) {
		return errs.Conflict("story already exists")
	}
	if err != nil {
		return fmt.Errorf("insert story: %w", err)
	}
	return nil
}

func (db *SQLite) GetStory(ctx context.Context, id string) (*model.Story, error) {
	var row storyRow
	err := db.conn.GetContext(ctx, &row, `SELECT * FROM stories WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storyNotFound("store.GetStory")
	}
	if err != nil {
		return nil, fmt.Errorf("select story: %w", err)
	}

	s := &model.Story{
		ID:            row.ID,
		OwnerID:       row.OwnerID,
		Title:         row.Title,
		Genre:         model.Genre(row.Genre),
		Premise:       row.Premise,
		Structure:     model.Structure(row.Structure),
		ActCount:      row.ActCount,
		SchemaVersion: row.SchemaVersion,
		CreatedAt:     fromUnix(row.CreatedAt),
		UpdatedAt:     fromUnix(row.UpdatedAt),
	}
	if err := decodeJSON(row.CharactersJSON, &s.Characters); err != nil {
		return nil, fmt.Errorf("decode characters: %w", err)
	}
	if err := decodeJSON(row.RulesJSON, &s.WorldRules); err != nil {
		return nil, fmt.Errorf("decode world rules: %w", err)
	}

	var chapters []chapterRow
	if err := db.conn.SelectContext(ctx, &chapters,
		`SELECT idx, title, content, act, snapshot_json, created_at FROM chapters WHERE story_id = ? ORDER BY idx`, id); err != nil {
		return nil, fmt.Errorf("select chapters: %w", err)
	}
	s.ChapterHistory = make([]model.Chapter, 0, len(chapters))
	for _, c := range chapters {
		ch := model.Chapter{
			Index:     c.Index,
			Title:     c.Title,
			Content:   c.Content,
			CreatedAt: fromUnix(c.CreatedAt),
		}
		if c.Act.Valid {
			act := int(c.Act.Int64)
			ch.Act = &act
		}
		if c.SnapshotJSON.Valid && c.SnapshotJSON.String != "" {
			ch.StateSnapshot = &model.Snapshot{}
			if err := decodeJSON(c.SnapshotJSON.String, ch.StateSnapshot); err != nil {
				return nil, fmt.Errorf("decode snapshot of chapter %d: %w", c.Index, err)
			}
		}
		s.ChapterHistory = append(s.ChapterHistory, ch)
	}

	var events []eventRow
	if err := db.conn.SelectContext(ctx, &events,
		`SELECT chapter_index, summary, occurred_at FROM timeline_events WHERE story_id = ? ORDER BY chapter_index`, id); err != nil {
		return nil, fmt.Errorf("select timeline: %w", err)
	}
	s.TimelineEvents = make([]model.TimelineEvent, 0, len(events))
	for _, e := range events {
		s.TimelineEvents = append(s.TimelineEvents, model.TimelineEvent{
			ChapterIndex: e.ChapterIndex,
			Summary:      e.Summary,
			OccurredAt:   fromUnix(e.OccurredAt),
		})
	}

	model.Migrate(s)
	return s, nil
}

func (db *SQLite) ListStories(ctx context.Context, ownerID string) ([]model.StorySummary, error) {
	var rows []struct {
		ID           string `db:"id"`
		Title        string `db:"title"`
		Genre        string `db:"genre"`
		Structure    string `db:"structure"`
		ChapterCount int    `db:"chapter_count"`
		UpdatedAt    int64  `db:"updated_at"`
	}
	err := db.conn.SelectContext(ctx, &rows, `
		SELECT s.id, s.title, s.genre, s.structure, s.updated_at,
			(SELECT COUNT(*) FROM chapters c WHERE c.story_id = s.id) AS chapter_count
		FROM stories s
		WHERE s.owner_id = ?
		ORDER BY s.updated_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}

	out := make([]model.StorySummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.StorySummary{
			ID:           r.ID,
			Title:        r.Title,
			Genre:        model.Genre(r.Genre),
			Structure:    model.Structure(r.Structure),
			ChapterCount: r.ChapterCount,
			UpdatedAt:    fromUnix(r.UpdatedAt),
		})
	}
	return out, nil
}

func (db *SQLite) CommitChapter(ctx context.Context, storyID string, ch model.Chapter, ev model.TimelineEvent) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM stories WHERE id = ?`, storyID); err != nil {
		return fmt.Errorf("check story: %w", err)
	}
	if exists == 0 {
		return storyNotFound("store.CommitChapter")
	}

	var have int
	if err := tx.GetContext(ctx, &have, `SELECT COUNT(*) FROM chapters WHERE story_id = ?`, storyID); err != nil {
		return fmt.Errorf("count chapters: %w", err)
	}
	if ch.Index != have {
		return conflictAt(storyID, ch.Index, have)
	}

	var act sql.NullInt64
	if ch.Act != nil {
		act = sql.NullInt64{Int64: int64(*ch.Act), Valid: true}
	}
	var snapshot sql.NullString
	if ch.StateSnapshot != nil {
		js, err := encodeJSON(ch.StateSnapshot)
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		snapshot = sql.NullString{String: js, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO chapters (story_id, idx, title, content, act, snapshot_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		storyID, ch.Index, ch.Title, ch.Content, act, snapshot, toUnix(ch.CreatedAt))
	if isConstraint(err) {
		return conflictAt(storyID, ch.Index, have)
	}
	if err != nil {
		return fmt.Errorf("insert chapter: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO timeline_events (story_id, chapter_index, summary, occurred_at)
		VALUES (?, ?, ?, ?)`, storyID, ev.ChapterIndex, ev.Summary, toUnix(ev.OccurredAt)); err != nil {
		return fmt.Errorf("insert timeline event: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE stories SET updated_at = ? WHERE id = ?`,
		toUnix(time.Now()), storyID); err != nil {
		return fmt.Errorf("touch story: %w", err)
	}

	return tx.Commit()
}

func (db *SQLite) CreateUser(ctx context.Context, u *model.User) error {
	if err := checkNewUser(u); err != nil {
		return err
	}
	_, err := db.conn.ExecContext(ctx, `INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, toUnix(u.CreatedAt))
	if isConstraint(err) {
		return errs.Conflict("Email already registered")
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (db *SQLite) GetUser(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, "store.GetUser", `SELECT * FROM users WHERE id = ?`, id)
}

func (db *SQLite) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, "store.GetUserByEmail", `SELECT * FROM users WHERE email = ?`, email)
}

func (db *SQLite) getUser(ctx context.Context, op, query string, arg any) (*model.User, error) {
	var row userRow
	err := db.conn.GetContext(ctx, &row, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, userNotFound(op)
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &model.User{
		ID:           row.ID,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		CreatedAt:    fromUnix(row.CreatedAt),
	}, nil
}

func (db *SQLite) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	if _, err := db.GetUser(ctx, userID); err != nil {
		return err
	}
	_, err := db.conn.ExecContext(ctx, `INSERT INTO password_resets (user_id, token_hash, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET token_hash = excluded.token_hash, expires_at = excluded.expires_at`,
		userID, tokenHash, toUnix(expiresAt))
	if err != nil {
		return fmt.Errorf("upsert reset token: %w", err)
	}
	return nil
}

func (db *SQLite) ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var userID string
	err = tx.GetContext(ctx, &userID, `SELECT user_id FROM password_resets WHERE token_hash = ? AND expires_at > ?`,
		tokenHash, toUnix(now))
	if errors.Is(err, sql.ErrNoRows) {
		return resetTokenNotFound("store.ResetPassword")
	}
	if err != nil {
		return fmt.Errorf("select reset token: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, userID); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM password_resets WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	return tx.Commit()
}

func isConstraint(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}
