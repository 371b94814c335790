package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/agenthands/storyforge/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func sampleInput() Input {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return Input{
		Title:     "The River Curse",
		Genre:     model.GenreFolkloreHorror,
		Premise:   "A village on the Ganga hides a drowned witch.",
		Structure: model.StructureActs,
		ActCount:  3,
		State: model.State{
			Characters: []model.Character{
				{Name: "Meera", Traits: []string{"stubborn", "curious"}, Alive: true, EmotionalState: "fearful", Role: "protagonist", LastKnown: "the ghat"},
				{Name: "Dadi", Traits: []string{"wise"}, Alive: false, EmotionalState: "neutral"},
			},
			WorldRules: []model.WorldRule{
				{Category: "era", Rule: "No electricity in the village"},
				{Category: "magic", Rule: "The churail cannot cross running water"},
			},
			TimelineEvents: []model.TimelineEvent{
				{ChapterIndex: 1, Summary: "Meera found the anklet.", OccurredAt: t0.Add(time.Hour)},
				{ChapterIndex: 0, Summary: "Dadi died at the well.", OccurredAt: t0},
			},
			ChapterHistory: []model.Chapter{
				{Index: 0, Title: "The Well", Content: "Short chapter."},
				{Index: 1, Title: "The Anklet", Content: strings.Repeat("a", 250)},
			},
		},
		NextIndex: 2,
		NextAct:   intPtr(1),
	}
}

func TestModeSelection(t *testing.T) {
	in := sampleInput()

	legacy := Build(in)
	assert.Equal(t, ModeLegacy, legacy.Mode)
	assert.NotContains(t, legacy.System, "REQUIRED CHAPTER OUTPUT FORMAT")

	in.ChapterGoal = "   "
	assert.Equal(t, ModeLegacy, Build(in).Mode)

	in.ChapterGoal = "Reveal the curse at the temple"
	engine := Build(in)
	assert.Equal(t, ModeStoryEngine, engine.Mode)
	assert.Contains(t, engine.System, ChapterFormat)
	assert.True(t, strings.HasSuffix(engine.System, "# CHAPTER GOAL\nReveal the curse at the temple"))
}

func TestNewRequestVariants(t *testing.T) {
	in := sampleInput()
	_, ok := NewRequest(in).(Legacy)
	assert.True(t, ok)

	in.ChapterGoal = " Escape the village "
	req, ok := NewRequest(in).(StoryEngine)
	require.True(t, ok)
	assert.Equal(t, "Escape the village", req.Goal)
}

func TestCompileIsDeterministic(t *testing.T) {
	for _, goal := range []string{"", "Reveal the curse"} {
		in := sampleInput()
		in.ChapterGoal = goal
		a := Build(in)
		b := Build(in)
		assert.Equal(t, a, b)
	}
}

func TestLegacySystemPrompt(t *testing.T) {
	p := Build(sampleInput())

	assert.Contains(t, p.System, "Title: The River Curse\nGenre: folklore_horror\nPremise: A village on the Ganga hides a drowned witch.")
	assert.Contains(t, p.System, "- Meera: stubborn, curious | alive: true | Emotional state: fearful | Last: the ghat")
	assert.Contains(t, p.System, "- Dadi: wise | alive: false | Emotional state: neutral\n")
	assert.Contains(t, p.System, "- [era] No electricity in the village\n- [magic] The churail cannot cross running water")
	assert.Contains(t, p.System, "- Ch1: Dadi died at the well.\n- Ch2: Meera found the anklet.")
	assert.Contains(t, p.System, "- Ch1 (The Well): Short chapter.\n")
	assert.Contains(t, p.System, "- Ch2 (The Anklet): "+strings.Repeat("a", 200)+"...")
	assert.Contains(t, p.System, "- "+genreGuidance[model.GenreFolkloreHorror])
	assert.Contains(t, p.System, "- This story is in 3 acts. You are writing Chapter 3, Act 1.")
	assert.Contains(t, p.System, "Do not kill or resurrect characters unless explicitly noted in the instruction.")

	lines := strings.Split(p.System, "\n")
	assert.Equal(t, "# Story", lines[2])
}

func TestTimelineTiesKeepInsertionOrder(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	in := sampleInput()
	in.State.TimelineEvents = []model.TimelineEvent{
		{ChapterIndex: 3, Summary: "The bells rang.", OccurredAt: t0.Add(time.Hour)},
		{ChapterIndex: 2, Summary: "The river rose.", OccurredAt: t0.Add(time.Hour)},
		{ChapterIndex: 0, Summary: "Dadi died at the well.", OccurredAt: t0},
		{ChapterIndex: 4, Summary: "Meera ran.", OccurredAt: t0.Add(time.Hour)},
	}

	p := Build(in)
	assert.Contains(t, p.System, "- Ch1: Dadi died at the well.\n- Ch4: The bells rang.\n- Ch3: The river rose.\n- Ch5: Meera ran.")

	st := ProjectState(in.State)
	got := make([]int, 0, len(st.PastEvents))
	for _, e := range st.PastEvents {
		got = append(got, e.Chapter)
	}
	assert.Equal(t, []int{1, 4, 3, 5}, got)
}

func TestLegacyEmptyState(t *testing.T) {
	in := Input{Title: "Blank", Genre: "unknown_genre", Structure: model.StructureChapters, NextIndex: 0}
	p := Build(in)

	assert.Contains(t, p.System, "## Characters (alive/dead, traits, emotional state)\nNone defined yet.")
	assert.Contains(t, p.System, "## Timeline of events (in order)\nNone yet.")
	assert.Contains(t, p.System, "- "+genreGuidance[model.GenreOther])
	assert.Contains(t, p.System, "- You are writing Chapter 1.")
}

func TestStructureLineFallsBackWithoutAct(t *testing.T) {
	in := sampleInput()
	in.NextAct = nil
	assert.Contains(t, Build(in).System, "- You are writing Chapter 3.\n")
}

func TestLegacyUserPrompt(t *testing.T) {
	in := sampleInput()
	assert.Equal(t, "Write the next chapter, advancing the plot naturally while respecting all story state above.", Build(in).User)

	in.Direction = "A storm arrives"
	assert.Equal(t, "Write the next chapter with this direction: A storm arrives", Build(in).User)

	in.Continue = true
	in.ReaderPrompt = "then the temple collapses"
	assert.Equal(t, "Continue the story with this direction from the reader: then the temple collapses", Build(in).User)

	in.ReaderPrompt = ""
	assert.Equal(t, "Write the next chapter with this direction: A storm arrives", Build(in).User)
}

func TestDeadCharacterRendersAliveFalseEveryTime(t *testing.T) {
	in := sampleInput()
	for i := 0; i < 3; i++ {
		in.NextIndex = i
		p := Build(in)
		assert.Contains(t, p.System, "- Dadi: wise | alive: false")
	}

	in.ChapterGoal = "Mourn"
	st, err := ExtractState(Build(in).System)
	require.NoError(t, err)
	assert.False(t, st.Characters[1].Alive)
}
