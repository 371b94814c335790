// Package core runs the story engine: creating stories and generating the
// next chapter through read, index, compile, generate, ingest and commit.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/agenthands/storyforge/internal/core/indexer"
	"github.com/agenthands/storyforge/internal/core/ingest"
	"github.com/agenthands/storyforge/internal/core/model"
	"github.com/agenthands/storyforge/internal/core/prompt"
	"github.com/agenthands/storyforge/internal/errs"
	"github.com/agenthands/storyforge/internal/llm"
	"github.com/agenthands/storyforge/internal/store"
)

const (
	DefaultMaxTokens   = 2500
	DefaultTemperature = 0.85
	DefaultTimeout     = 90 * time.Second

	commitTimeout = 15 * time.Second
	maxActCount   = 10
)

// Generator produces chapter text. *llm.Client implements it.
type Generator interface {
	Name() string
	Generate(ctx context.Context, system, user string, opts llm.Options) (string, error)
}

type Engine struct {
	Store     store.Store
	Generator Generator
	Options   llm.Options
	Timeout   time.Duration
	Logger    *slog.Logger

	locks *keyedLock
	now   func() time.Time
	newID func() string
}

// NewEngine wires an engine. gen may be nil when no provider is configured;
// reads still work and generation reports a configuration error.
func NewEngine(st store.Store, gen Generator, opts llm.Options, timeout time.Duration, logger *slog.Logger) *Engine {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Store:     st,
		Generator: gen,
		Options:   opts,
		Timeout:   timeout,
		Logger:    logger,
		locks:     newKeyedLock(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
	}
}

// ProviderName is empty when no provider is configured.
func (e *Engine) ProviderName() string {
	if e.Generator == nil {
		return ""
	}
	return e.Generator.Name()
}

type NewCharacter struct {
	Name      string
	Traits    []string
	Alive     *bool
	Role      string
	LastKnown string
}

type NewStory struct {
	OwnerID    string
	Title      string
	Genre      model.Genre
	Premise    string
	Characters []NewCharacter
	WorldRules []model.WorldRule
	Structure  model.Structure
	ActCount   int
}

// CreateStory validates the input and persists a story with empty history.
func (e *Engine) CreateStory(ctx context.Context, in NewStory) (*model.Story, error) {
	if err := validateNewStory(&in); err != nil {
		return nil, err
	}

	chars := make([]model.Character, 0, len(in.Characters))
	for _, c := range in.Characters {
		traits := c.Traits
		if traits == nil {
			traits = []string{}
		}
		alive := true
		if c.Alive != nil {
			alive = *c.Alive
		}
		chars = append(chars, model.Character{
			Name:           strings.TrimSpace(c.Name),
			Traits:         traits,
			Alive:          alive,
			EmotionalState: model.DefaultEmotionalState,
			Role:           c.Role,
			LastKnown:      c.LastKnown,
		})
	}
	rules := in.WorldRules
	if rules == nil {
		rules = []model.WorldRule{}
	}

	now := e.now()
	s := &model.Story{
		ID:            e.newID(),
		OwnerID:       in.OwnerID,
		Title:         strings.TrimSpace(in.Title),
		Genre:         in.Genre,
		Premise:       strings.TrimSpace(in.Premise),
		Structure:     in.Structure,
		SchemaVersion: model.SchemaVersion,
		State: model.State{
			Characters:     chars,
			WorldRules:     rules,
			TimelineEvents: []model.TimelineEvent{},
			ChapterHistory: []model.Chapter{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Structure == model.StructureActs {
		s.ActCount = in.ActCount
	}

	if err := e.Store.CreateStory(ctx, s); err != nil {
		return nil, fmt.Errorf("create story: %w", err)
	}
	e.Logger.Info("story created", "story_id", s.ID, "genre", s.Genre, "structure", s.Structure,
		"characters", len(chars), "world_rules", len(rules))
	return s, nil
}

func validateNewStory(in *NewStory) error {
	fields := map[string]string{}

	if n := utf8.RuneCountInString(strings.TrimSpace(in.Title)); n == 0 || n > 300 {
		fields["title"] = "must be between 1 and 300 characters"
	}
	if !slices.Contains(model.Genres, in.Genre) {
		fields["genre"] = "must be one of " + joinGenres()
	}
	if utf8.RuneCountInString(in.Premise) > 2000 {
		fields["premise"] = "must be at most 2000 characters"
	}
	switch in.Structure {
	case model.StructureActs:
		if in.ActCount < 1 || in.ActCount > maxActCount {
			fields["actCount"] = "actCount is required when structure is 'acts' and must be between 1 and 10"
		}
	case model.StructureChapters:
	default:
		fields["structure"] = "must be one of acts, chapters"
	}
	for i, c := range in.Characters {
		if n := utf8.RuneCountInString(strings.TrimSpace(c.Name)); n == 0 || n > 200 {
			fields[fmt.Sprintf("initialCharacters[%d].name", i)] = "must be between 1 and 200 characters"
		}
	}
	for i, r := range in.WorldRules {
		if n := utf8.RuneCountInString(r.Category); n == 0 || n > 100 {
			fields[fmt.Sprintf("initialWorldRules[%d].category", i)] = "must be between 1 and 100 characters"
		}
		if n := utf8.RuneCountInString(r.Rule); n == 0 || n > 1000 {
			fields[fmt.Sprintf("initialWorldRules[%d].rule", i)] = "must be between 1 and 1000 characters"
		}
	}

	if len(fields) > 0 {
		return errs.Validation("Invalid input", fields).WithOp("core.CreateStory")
	}
	return nil
}

func joinGenres() string {
	names := make([]string, len(model.Genres))
	for i, g := range model.Genres {
		names[i] = string(g)
	}
	return strings.Join(names, ", ")
}

// GetStory loads a story owned by ownerID. Another owner's story is reported
// as not found.
func (e *Engine) GetStory(ctx context.Context, ownerID, id string) (*model.Story, error) {
	s, err := e.Store.GetStory(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.OwnerID != ownerID {
		return nil, errs.NotFound("Story").WithOp("core.GetStory")
	}
	return s, nil
}

func (e *Engine) ListStories(ctx context.Context, ownerID string) ([]model.StorySummary, error) {
	return e.Store.ListStories(ctx, ownerID)
}

// ChapterRequest asks for the next chapter of a story. Continue marks a
// reader continuation; Direction is the director-style instruction.
type ChapterRequest struct {
	StoryID      string
	OwnerID      string
	Direction    string
	ReaderPrompt string
	Continue     bool
	Controls     model.Controls
	ChapterGoal  string
}

type Preview struct {
	Prompts   prompt.Prompts
	NextIndex int
	NextAct   *int
	// State is the state block embedded in a story engine prompt, nil in
	// legacy mode.
	State *prompt.EngineState
}

type Result struct {
	StoryID  string
	Chapter  model.Chapter
	Provider string
	Mode     prompt.Mode
}

// PreviewChapter compiles the prompts the next chapter would use without
// calling the model or changing state.
func (e *Engine) PreviewChapter(ctx context.Context, req ChapterRequest) (*Preview, error) {
	s, err := e.GetStory(ctx, req.OwnerID, req.StoryID)
	if err != nil {
		return nil, err
	}
	pos, in := compileInput(s, req)
	pv := &Preview{Prompts: prompt.Build(in), NextIndex: pos.Index, NextAct: pos.Act}
	if pv.Prompts.Mode == prompt.ModeStoryEngine {
		st, err := prompt.ExtractState(pv.Prompts.System)
		if err != nil {
			return nil, fmt.Errorf("read state block: %w", err)
		}
		pv.State = &st
	}
	return pv, nil
}

// NextChapter generates and commits the next chapter. Writes to one story are
// serialized; the model call is detached from ctx cancellation and bounded by
// the engine timeout, so an abandoned request still records its chapter.
func (e *Engine) NextChapter(ctx context.Context, req ChapterRequest) (*Result, error) {
	if e.Generator == nil {
		return nil, errs.Config(llm.ErrNoProvider, nil).WithOp("core.NextChapter")
	}

	release, err := e.locks.Acquire(ctx, req.StoryID)
	if err != nil {
		return nil, errs.Canceled(err).WithOp("wait for story " + req.StoryID)
	}
	defer release()

	s, err := e.GetStory(ctx, req.OwnerID, req.StoryID)
	if err != nil {
		return nil, err
	}

	pos, in := compileInput(s, req)
	p := prompt.Build(in)

	detached := context.WithoutCancel(ctx)
	genCtx, cancel := context.WithTimeout(detached, e.Timeout)
	defer cancel()

	start := time.Now()
	text, err := e.Generator.Generate(genCtx, p.System, p.User, e.Options)
	if err != nil {
		e.Logger.Warn("chapter generation failed", "story_id", s.ID, "index", pos.Index,
			"mode", p.Mode, "provider", e.Generator.Name(), "error", err)
		return nil, err
	}

	ch, ev := ingest.Build(text, pos.Index, pos.Act, s.State, e.now())

	commitCtx, cancelCommit := context.WithTimeout(detached, commitTimeout)
	defer cancelCommit()
	if err := e.Store.CommitChapter(commitCtx, s.ID, ch, ev); err != nil {
		return nil, fmt.Errorf("commit chapter %d: %w", ch.Index, err)
	}

	e.Logger.Info("chapter committed",
		"story_id", s.ID,
		"index", ch.Index,
		"mode", p.Mode,
		"provider", e.Generator.Name(),
		"words", humanize.Comma(int64(len(strings.Fields(ch.Content)))),
		"took", time.Since(start).Round(time.Millisecond))

	return &Result{StoryID: s.ID, Chapter: ch, Provider: e.Generator.Name(), Mode: p.Mode}, nil
}

func compileInput(s *model.Story, req ChapterRequest) (indexer.Position, prompt.Input) {
	pos := indexer.Next(s.Structure, s.ActCount, len(s.ChapterHistory))
	return pos, prompt.Input{
		Title:        s.Title,
		Genre:        s.Genre,
		Premise:      s.Premise,
		Structure:    s.Structure,
		ActCount:     s.ActCount,
		State:        s.State,
		NextIndex:    pos.Index,
		NextAct:      pos.Act,
		Controls:     req.Controls,
		ChapterGoal:  req.ChapterGoal,
		Direction:    req.Direction,
		ReaderPrompt: req.ReaderPrompt,
		Continue:     req.Continue,
	}
}
