package prompt

import (
	"fmt"
	"strings"

	"github.com/agenthands/storyforge/internal/core/model"
)

const legacySummaryLen = 200

func (r Legacy) compile() Prompts {
	return Prompts{
		Mode:   ModeLegacy,
		System: legacySystem(r.Input),
		User:   legacyUser(r.Input),
	}
}

func legacySystem(in Input) string {
	premise := ""
	if in.Premise != "" {
		premise = "Premise: " + in.Premise
	}

	return fmt.Sprintf(`You are a fiction writer for an Indian/niche fiction platform. Your output must NEVER violate the following story state.

# Story
Title: %s
Genre: %s
%s

# CRITICAL: Story state (DO NOT contradict)
## Characters (alive/dead, traits, emotional state)
%s

## World rules (mythology, culture, constraints)
%s

## Timeline of events (in order)
%s

## Chapters so far (summaries)
%s

# Instructions
- %s
- %s
- Write only the new chapter prose. Do not repeat previous chapters.
- Do not kill or resurrect characters unless explicitly noted in the instruction.
- Do not break world rules. Stay consistent with the timeline and character states.
- Output raw chapter text only; no meta-commentary or "Chapter N" headers unless you title the chapter with a single line.`,
		in.Title,
		in.Genre,
		premise,
		formatCharacters(in.State.Characters),
		formatWorldRules(in.State.WorldRules),
		formatTimeline(in.State.TimelineEvents),
		formatChapterSummaries(in.State.ChapterHistory),
		lookupGenre(genreGuidance, in.Genre),
		structureLine(in, "is in"),
	)
}

func legacyUser(in Input) string {
	if in.Continue && in.ReaderPrompt != "" {
		return "Continue the story with this direction from the reader: " + in.ReaderPrompt
	}
	if in.Direction != "" {
		return "Write the next chapter with this direction: " + in.Direction
	}
	return "Write the next chapter, advancing the plot naturally while respecting all story state above."
}

func formatCharacters(chars []model.Character) string {
	if len(chars) == 0 {
		return "None defined yet."
	}
	lines := make([]string, 0, len(chars))
	for _, c := range chars {
		traits := "—"
		if len(c.Traits) > 0 {
			traits = strings.Join(c.Traits, ", ")
		}
		line := fmt.Sprintf("- %s: %s | alive: %t | Emotional state: %s", c.Name, traits, c.Alive, c.EmotionalState)
		if c.LastKnown != "" {
			line += " | Last: " + c.LastKnown
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatWorldRules(rules []model.WorldRule) string {
	if len(rules) == 0 {
		return "None defined yet."
	}
	lines := make([]string, 0, len(rules))
	for _, r := range rules {
		lines = append(lines, fmt.Sprintf("- [%s] %s", r.Category, r.Rule))
	}
	return strings.Join(lines, "\n")
}

func formatTimeline(events []model.TimelineEvent) string {
	if len(events) == 0 {
		return "None yet."
	}
	sorted := sortedTimeline(events)
	lines := make([]string, 0, len(sorted))
	for _, e := range sorted {
		lines = append(lines, fmt.Sprintf("- Ch%d: %s", e.ChapterIndex+1, e.Summary))
	}
	return strings.Join(lines, "\n")
}

func formatChapterSummaries(chapters []model.Chapter) string {
	if len(chapters) == 0 {
		return "None yet."
	}
	lines := make([]string, 0, len(chapters))
	for _, ch := range chapters {
		lines = append(lines, fmt.Sprintf("- Ch%d (%s): %s", ch.Index+1, ch.Title, preview(ch.Content, legacySummaryLen, "...")))
	}
	return strings.Join(lines, "\n")
}
