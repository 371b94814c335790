// Package prompt compiles story state and per-chapter authorial controls into
// the system and user instructions sent to the text generation backend.
//
// Compilation is pure: identical inputs always produce byte-identical prompts.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agenthands/storyforge/internal/core/model"
)

type Mode string

const (
	ModeLegacy      Mode = "legacy"
	ModeStoryEngine Mode = "story_engine"
)

// Input is everything a chapter request knows before generation.
type Input struct {
	Title     string
	Genre     model.Genre
	Premise   string
	Structure model.Structure
	ActCount  int
	State     model.State
	NextIndex int
	NextAct   *int
	Controls  model.Controls

	ChapterGoal string
	// Direction is a director-style instruction for generate-chapter requests.
	Direction string
	// ReaderPrompt is reader-supplied free text for continue requests.
	ReaderPrompt string
	Continue     bool
}

// Prompts is the compiler output.
type Prompts struct {
	Mode   Mode
	System string
	User   string
}

// Request is either a Legacy or a StoryEngine request.
type Request interface {
	Mode() Mode
	compile() Prompts
}

// Legacy compiles the free-form prompt used when no chapter goal is given.
type Legacy struct {
	Input
}

func (Legacy) Mode() Mode { return ModeLegacy }

// StoryEngine compiles the strict, structured-chapter prompt.
type StoryEngine struct {
	Input
	Goal string
}

func (StoryEngine) Mode() Mode { return ModeStoryEngine }

// NewRequest selects the compilation mode: a non-blank chapter goal selects
// the story engine, anything else the legacy prompt.
func NewRequest(in Input) Request {
	if goal := strings.TrimSpace(in.ChapterGoal); goal != "" {
		return StoryEngine{Input: in, Goal: goal}
	}
	return Legacy{Input: in}
}

// Compile renders a request.
func Compile(req Request) Prompts {
	return req.compile()
}

// Build selects the mode for in and compiles it.
func Build(in Input) Prompts {
	return Compile(NewRequest(in))
}

func structureLine(in Input, verb string) string {
	chapter := in.NextIndex + 1
	if in.Structure == model.StructureActs && in.ActCount > 0 && in.NextAct != nil {
		return fmt.Sprintf("This story %s %d acts. You are writing Chapter %d, Act %d.", verb, in.ActCount, chapter, *in.NextAct)
	}
	return fmt.Sprintf("You are writing Chapter %d.", chapter)
}

// sortedTimeline orders events by OccurredAt; ties keep insertion order.
func sortedTimeline(events []model.TimelineEvent) []model.TimelineEvent {
	out := append([]model.TimelineEvent(nil), events...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out
}

// preview returns the first n characters of s, plus the marker when cut.
func preview(s string, n int, marker string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + marker
}
