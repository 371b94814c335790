package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/storyforge/internal/core/model"
	"github.com/agenthands/storyforge/internal/core/prompt"
	"github.com/agenthands/storyforge/internal/errs"
	"github.com/agenthands/storyforge/internal/llm"
	"github.com/agenthands/storyforge/internal/store"
)

func boolPtr(b bool) *bool { return &b }

func newTestEngine(t *testing.T, p llm.Provider) (*Engine, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	var gen Generator
	if p != nil {
		gen = llm.NewClient(p, 0)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := NewEngine(st, gen, llm.Options{MaxTokens: 2500, Temperature: 0.85}, time.Second, logger)
	return e, st
}

func actsStory(actCount int) NewStory {
	return NewStory{
		OwnerID:   "u1",
		Title:     "The River Curse",
		Genre:     model.GenreFolkloreHorror,
		Premise:   "A drowned witch.",
		Structure: model.StructureActs,
		ActCount:  actCount,
		Characters: []NewCharacter{
			{Name: "Meera", Traits: []string{"stubborn"}},
			{Name: "Dadi", Alive: boolPtr(false), Role: "elder"},
		},
		WorldRules: []model.WorldRule{{Category: "magic", Rule: "The churail cannot cross running water"}},
	}
}

func TestCreateStoryDefaults(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	s, err := e.CreateStory(context.Background(), actsStory(3))
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, model.SchemaVersion, s.SchemaVersion)
	assert.Equal(t, 3, s.ActCount)
	require.Len(t, s.Characters, 2)
	assert.True(t, s.Characters[0].Alive)
	assert.Equal(t, model.DefaultEmotionalState, s.Characters[0].EmotionalState)
	assert.False(t, s.Characters[1].Alive)
	assert.Equal(t, []string{}, s.Characters[1].Traits)
	assert.Empty(t, s.ChapterHistory)
	assert.NotNil(t, s.TimelineEvents)
}

func TestCreateStoryChaptersIgnoresActCount(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	in := actsStory(4)
	in.Structure = model.StructureChapters

	s, err := e.CreateStory(context.Background(), in)
	require.NoError(t, err)
	assert.Zero(t, s.ActCount)
}

func TestCreateStoryValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*NewStory)
		field  string
	}{
		{"missing title", func(s *NewStory) { s.Title = "  " }, "title"},
		{"long title", func(s *NewStory) { s.Title = strings.Repeat("t", 301) }, "title"},
		{"unknown genre", func(s *NewStory) { s.Genre = "space_opera" }, "genre"},
		{"acts without count", func(s *NewStory) { s.ActCount = 0 }, "actCount"},
		{"too many acts", func(s *NewStory) { s.ActCount = 11 }, "actCount"},
		{"bad structure", func(s *NewStory) { s.Structure = "scenes" }, "structure"},
		{"blank character", func(s *NewStory) { s.Characters[1].Name = "" }, "initialCharacters[1].name"},
		{"blank rule", func(s *NewStory) { s.WorldRules[0].Rule = "" }, "initialWorldRules[0].rule"},
		{"long premise", func(s *NewStory) { s.Premise = strings.Repeat("p", 2001) }, "premise"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, st := newTestEngine(t, nil)
			in := actsStory(3)
			tt.mutate(&in)

			_, err := e.CreateStory(context.Background(), in)
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.KindValidation))
			assert.Contains(t, errs.FieldsOf(err), tt.field)

			list, _ := st.ListStories(context.Background(), "u1")
			assert.Empty(t, list, "nothing is stored on validation failure")
		})
	}
}

func TestGetStoryEnforcesOwner(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	s, err := e.CreateStory(context.Background(), actsStory(3))
	require.NoError(t, err)

	_, err = e.GetStory(context.Background(), "u1", s.ID)
	require.NoError(t, err)

	_, err = e.GetStory(context.Background(), "intruder", s.ID)
	assert.True(t, errs.Is(err, errs.KindNotFound))

	_, err = e.NextChapter(context.Background(), ChapterRequest{StoryID: s.ID, OwnerID: "intruder"})
	assert.True(t, errs.Is(err, errs.KindConfig), "no provider is checked before ownership")
}

func TestNextChapterSingleActScenario(t *testing.T) {
	mock := &llm.MockProvider{ProviderName: "gemini", Response: "# The Well\nMeera looked down."}
	e, st := newTestEngine(t, mock)
	s, err := e.CreateStory(context.Background(), actsStory(1))
	require.NoError(t, err)

	res, err := e.NextChapter(context.Background(), ChapterRequest{StoryID: s.ID, OwnerID: "u1", Direction: "Night falls"})
	require.NoError(t, err)

	assert.Equal(t, "gemini", res.Provider)
	assert.Equal(t, prompt.ModeLegacy, res.Mode)
	assert.Equal(t, 0, res.Chapter.Index)
	require.NotNil(t, res.Chapter.Act)
	assert.Equal(t, 1, *res.Chapter.Act)
	assert.Equal(t, "The Well", res.Chapter.Title)
	assert.Equal(t, "Meera looked down.", res.Chapter.Content)

	require.Len(t, mock.Calls, 1)
	assert.Equal(t, llm.Options{MaxTokens: 2500, Temperature: 0.85}, mock.Calls[0].Opts)
	assert.Equal(t, "Write the next chapter with this direction: Night falls", mock.Calls[0].User)

	stored, err := st.GetStory(context.Background(), s.ID)
	require.NoError(t, err)
	require.Len(t, stored.ChapterHistory, 1)
	require.Len(t, stored.TimelineEvents, 1)
	assert.Equal(t, "Meera looked down.", stored.TimelineEvents[0].Summary)
	require.NotNil(t, stored.ChapterHistory[0].StateSnapshot)
	assert.Equal(t, 0, stored.ChapterHistory[0].StateSnapshot.ChapterCount)
}

func TestNextChapterAppendsInOrder(t *testing.T) {
	n := 0
	mock := &llm.MockProvider{GenerateFunc: func(ctx context.Context, system, user string, opts llm.Options) (string, error) {
		n++
		return fmt.Sprintf("Chapter %d: Part %d\nBody %d", n, n, n), nil
	}}
	e, st := newTestEngine(t, mock)
	s, err := e.CreateStory(context.Background(), actsStory(3))
	require.NoError(t, err)

	wantActs := []int{1, 1, 1, 1, 1, 1, 1, 2}
	for i, want := range wantActs {
		res, err := e.NextChapter(context.Background(), ChapterRequest{StoryID: s.ID, OwnerID: "u1", Continue: true})
		require.NoError(t, err)
		assert.Equal(t, i, res.Chapter.Index)
		assert.Equal(t, want, *res.Chapter.Act, "chapter %d", i)
		assert.Equal(t, fmt.Sprintf("Part %d", i+1), res.Chapter.Title)
	}

	stored, err := st.GetStory(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Len(t, stored.ChapterHistory, len(wantActs))
}

func TestNextChapterStoryEngineMode(t *testing.T) {
	mock := &llm.MockProvider{Response: "Title\nBody"}
	e, _ := newTestEngine(t, mock)
	s, err := e.CreateStory(context.Background(), actsStory(3))
	require.NoError(t, err)

	res, err := e.NextChapter(context.Background(), ChapterRequest{
		StoryID:     s.ID,
		OwnerID:     "u1",
		ChapterGoal: "Reveal the curse",
		Controls:    model.Controls{Tone: model.ToneNoir},
	})
	require.NoError(t, err)
	assert.Equal(t, prompt.ModeStoryEngine, res.Mode)
	assert.Contains(t, mock.Calls[0].System, prompt.ChapterFormat)
	assert.Contains(t, mock.Calls[0].System, `"alive": false`)
	assert.True(t, strings.HasPrefix(mock.Calls[0].User, "Write the next chapter. Chapter goal: Reveal the curse"))
}

func TestNextChapterWithoutProvider(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	s, err := e.CreateStory(context.Background(), actsStory(3))
	require.NoError(t, err)

	_, err = e.NextChapter(context.Background(), ChapterRequest{StoryID: s.ID, OwnerID: "u1"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindConfig))
	assert.Equal(t, llm.ErrNoProvider, errs.Message(err))
	assert.Empty(t, e.ProviderName())
}

func TestNextChapterProviderFailureLeavesStateUntouched(t *testing.T) {
	mock := &llm.MockProvider{Err: errors.New("upstream 500")}
	e, st := newTestEngine(t, mock)
	s, err := e.CreateStory(context.Background(), actsStory(3))
	require.NoError(t, err)

	_, err = e.NextChapter(context.Background(), ChapterRequest{StoryID: s.ID, OwnerID: "u1"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindProvider))

	stored, err := st.GetStory(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.ChapterHistory)
	assert.Equal(t, 0, e.locks.len())
}

func TestNextChapterEmptyOutput(t *testing.T) {
	e, _ := newTestEngine(t, &llm.MockProvider{Response: "  "})
	s, err := e.CreateStory(context.Background(), actsStory(3))
	require.NoError(t, err)

	_, err = e.NextChapter(context.Background(), ChapterRequest{StoryID: s.ID, OwnerID: "u1"})
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
	assert.True(t, errs.Is(err, errs.KindProvider))
}

func TestNextChapterUnknownStory(t *testing.T) {
	mock := &llm.MockProvider{Response: "x\ny"}
	e, _ := newTestEngine(t, mock)

	_, err := e.NextChapter(context.Background(), ChapterRequest{StoryID: "missing", OwnerID: "u1"})
	assert.True(t, errs.Is(err, errs.KindNotFound))
	assert.Zero(t, mock.CallCount())
}

func TestNextChapterSurvivesClientCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mock := &llm.MockProvider{GenerateFunc: func(genCtx context.Context, system, user string, opts llm.Options) (string, error) {
		cancel()
		time.Sleep(10 * time.Millisecond)
		if err := genCtx.Err(); err != nil {
			return "", err
		}
		return "Kept\nStill written.", nil
	}}
	e, st := newTestEngine(t, mock)
	s, err := e.CreateStory(context.Background(), actsStory(3))
	require.NoError(t, err)

	res, err := e.NextChapter(ctx, ChapterRequest{StoryID: s.ID, OwnerID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "Kept", res.Chapter.Title)

	stored, err := st.GetStory(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Len(t, stored.ChapterHistory, 1)
}

func TestNextChapterTimeout(t *testing.T) {
	mock := &llm.MockProvider{GenerateFunc: func(ctx context.Context, system, user string, opts llm.Options) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	e, _ := newTestEngine(t, mock)
	e.Timeout = 20 * time.Millisecond
	s, err := e.CreateStory(context.Background(), actsStory(3))
	require.NoError(t, err)

	_, err = e.NextChapter(context.Background(), ChapterRequest{StoryID: s.ID, OwnerID: "u1"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindProvider))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConcurrentNextChapterIsSerialized(t *testing.T) {
	var inFlight, maxInFlight int
	var mu sync.Mutex
	mock := &llm.MockProvider{GenerateFunc: func(ctx context.Context, system, user string, opts llm.Options) (string, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return "Title\nBody", nil
	}}
	e, st := newTestEngine(t, mock)
	s, err := e.CreateStory(context.Background(), actsStory(3))
	require.NoError(t, err)

	const workers = 6
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.NextChapter(context.Background(), ChapterRequest{StoryID: s.ID, OwnerID: "u1", Continue: true})
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		assert.NoError(t, err)
	}

	stored, err := st.GetStory(context.Background(), s.ID)
	require.NoError(t, err)
	require.Len(t, stored.ChapterHistory, workers)
	for i, ch := range stored.ChapterHistory {
		assert.Equal(t, i, ch.Index)
	}
	assert.Equal(t, 1, maxInFlight)
	assert.Equal(t, 0, e.locks.len())
}

func TestNextChapterCanceledWhileWaitingForLock(t *testing.T) {
	mock := &llm.MockProvider{Response: "Title\nBody"}
	e, _ := newTestEngine(t, mock)
	s, err := e.CreateStory(context.Background(), actsStory(3))
	require.NoError(t, err)

	release, err := e.locks.Acquire(context.Background(), s.ID)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = e.NextChapter(ctx, ChapterRequest{StoryID: s.ID, OwnerID: "u1"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindCanceled))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, mock.CallCount())
}

func TestPreviewChapterDoesNotMutate(t *testing.T) {
	mock := &llm.MockProvider{Response: "x\ny"}
	e, st := newTestEngine(t, mock)
	s, err := e.CreateStory(context.Background(), actsStory(3))
	require.NoError(t, err)

	pv, err := e.PreviewChapter(context.Background(), ChapterRequest{StoryID: s.ID, OwnerID: "u1", ChapterGoal: "Begin"})
	require.NoError(t, err)
	assert.Equal(t, prompt.ModeStoryEngine, pv.Prompts.Mode)
	assert.Equal(t, 0, pv.NextIndex)
	require.NotNil(t, pv.NextAct)
	assert.Equal(t, 1, *pv.NextAct)
	assert.Zero(t, mock.CallCount())
	require.NotNil(t, pv.State)
	require.Len(t, pv.State.Characters, 2)
	assert.Equal(t, "Meera", pv.State.Characters[0].Name)
	assert.False(t, pv.State.Characters[1].Alive)
	require.Len(t, pv.State.WorldRules, 1)
	assert.Equal(t, "The churail cannot cross running water", pv.State.WorldRules[0].Rule)

	stored, err := st.GetStory(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.ChapterHistory)
}

func TestListStories(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	_, err := e.CreateStory(context.Background(), actsStory(3))
	require.NoError(t, err)
	other := actsStory(2)
	other.OwnerID = "u2"
	_, err = e.CreateStory(context.Background(), other)
	require.NoError(t, err)

	list, err := e.ListStories(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "The River Curse", list[0].Title)
}
