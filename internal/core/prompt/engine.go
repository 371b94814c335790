package prompt

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/agenthands/storyforge/internal/core/model"
)

// BaseSystemPrompt establishes identity and discipline for story engine mode.
const BaseSystemPrompt = `You are a disciplined novelist running a STORY ENGINE. You are not a chatbot.

Your role:
- You produce exactly ONE structured chapter per response.
- You never break established story state: characters (alive/dead, traits, emotional state), world rules, or past events.
- You write with cultural grounding in Indian/South Asian context: names, settings, social logic, and mythic or regional authenticity as appropriate to the genre.
- You maintain tone consistency with the story and the requested controls.
- You do not address the reader, explain your choices, or output meta-commentary. You output only the chapter content.

You must:
1. OBEY all rules and facts in the provided story_state. Treat it as canonical.
2. NEVER resurrect a dead character unless the story_state explicitly allows it (e.g. a world rule like "Resurrection is possible via the Amrit").
3. NEVER contradict the timeline or character states. If someone is dead or in a location, they stay that way unless the current chapter explicitly changes it in a way allowed by world rules.
4. Ground names, places, and customs in Indian/desi context where the genre calls for it. Avoid generic Western fantasy names in mythology or historical settings.
5. Output ONLY the next chapter in the required format: no preamble, no "Here is the chapter", no commentary.`

// Guardrails enumerates what a chapter must and must not do.
const Guardrails = `
## GUARDRAILS (MANDATORY)

DO NOT:
- Introduce characters not in story_state unless they are explicitly anonymous (e.g. "a passerby") and do not affect canon. Do not invent new named protagonists or recurring characters.
- Kill a character without it being a direct, logical outcome of the scene and the story_state. Prefer consequences that leave room for future chapters (wounds, capture, exile) unless death is the clear intent of the chapter_goal.
- Resurrect anyone unless a world_rule or explicit instruction allows it.
- Break world_rules (mythology, magic, technology, era). If the world has "No firearms in this era", do not add guns.
- Switch tone mid-chapter (e.g. from solemn to slapstick) or contradict the requested tone.
- Exceed the requested violence_level. "none" = no violence; "implied" = off-screen or referenced; "moderate" = brief, not graphic; "graphic" = explicit only if requested.
- Add twists (reveals, betrayals, resurrections) beyond the requested twist_level. "none" = no major surprises; "subtle" = small reveals; "moderate" = one clear beat; "high" = allowed.
- Output anything other than the single chapter: no summaries, no "Next time", no questions to the user.

ALWAYS:
- Start the chapter with a clear chapter title on the first line.
- Write in past tense (or consistently present if the story already uses it).
- Ground dialogue and behavior in the character traits and emotional states in story_state.
- End the chapter with consequences that could be summarized in 1-2 sentences for the timeline (actions have effects; note them implicitly in the prose).`

// ChapterFormat is the required output format block. Its presence marks a
// story engine prompt.
const ChapterFormat = `
## REQUIRED CHAPTER OUTPUT FORMAT

Output exactly and only the following, in order:

1. **Chapter title**: Single line, no "Chapter N" prefix unless the story convention uses it. Example: "The Curse of the River" or "Chapter Three: The Curse of the River".

2. **Scene description**: Where and when. One or two paragraphs establishing setting, time of day, and atmosphere. Culturally grounded (e.g. temple, bazaar, monsoon, festival) as appropriate.

3. **Character actions**: What the characters do and say. Stay true to each character's traits and emotional state from story_state. Dialogue and action should feel consistent with the tone and violence_level.

4. **Consequences**: Weave into the closing beats of the chapter (do not add a literal "Consequences:" section). The events of this chapter should imply clear updates to the story: who was harmed, who learned what, where people are now. These will be used to update memory.`

const (
	engineSummaryLen = 180
	engineOutputRule = "Output only the chapter in the required format (title, scene, character actions, consequences). No other text."
)

// EngineState is the generation-relevant projection of story state embedded
// as JSON in story engine prompts.
type EngineState struct {
	Characters       []EngineCharacter `json:"characters"`
	WorldRules       []EngineRule      `json:"world_rules"`
	PastEvents       []PastEvent       `json:"past_events"`
	ChapterSummaries []ChapterSummary  `json:"chapter_summaries"`
}

type EngineCharacter struct {
	Name           string   `json:"name"`
	Traits         []string `json:"traits"`
	Alive          bool     `json:"alive"`
	EmotionalState string   `json:"emotionalState"`
	Role           string   `json:"role,omitempty"`
	LastKnown      string   `json:"lastKnown,omitempty"`
}

type EngineRule struct {
	Category string `json:"category"`
	Rule     string `json:"rule"`
}

type PastEvent struct {
	Chapter int    `json:"chapter"`
	Summary string `json:"summary"`
}

type ChapterSummary struct {
	Chapter int    `json:"chapter"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// ProjectState builds the engine view of s.
func ProjectState(s model.State) EngineState {
	out := EngineState{
		Characters:       make([]EngineCharacter, 0, len(s.Characters)),
		WorldRules:       make([]EngineRule, 0, len(s.WorldRules)),
		PastEvents:       make([]PastEvent, 0, len(s.TimelineEvents)),
		ChapterSummaries: make([]ChapterSummary, 0, len(s.ChapterHistory)),
	}
	for _, c := range s.Characters {
		traits := c.Traits
		if traits == nil {
			traits = []string{}
		}
		out.Characters = append(out.Characters, EngineCharacter{
			Name:           c.Name,
			Traits:         traits,
			Alive:          c.Alive,
			EmotionalState: c.EmotionalState,
			Role:           c.Role,
			LastKnown:      c.LastKnown,
		})
	}
	for _, r := range s.WorldRules {
		out.WorldRules = append(out.WorldRules, EngineRule{Category: r.Category, Rule: r.Rule})
	}
	for _, e := range sortedTimeline(s.TimelineEvents) {
		out.PastEvents = append(out.PastEvents, PastEvent{Chapter: e.ChapterIndex + 1, Summary: e.Summary})
	}
	for _, ch := range s.ChapterHistory {
		out.ChapterSummaries = append(out.ChapterSummaries, ChapterSummary{
			Chapter: ch.Index + 1,
			Title:   ch.Title,
			Summary: preview(ch.Content, engineSummaryLen, "…"),
		})
	}
	return out
}

func stateBlock(s model.State) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	// Encoding plain structs of strings, ints and bools cannot fail.
	_ = enc.Encode(ProjectState(s))
	return "```json\n" + strings.TrimRight(buf.String(), "\n") + "\n```"
}

func (r StoryEngine) compile() Prompts {
	return Prompts{
		Mode:   ModeStoryEngine,
		System: engineSystem(r),
		User:   engineUser(r),
	}
}

func engineSystem(r StoryEngine) string {
	genre := r.Controls.Genre
	if genre == "" {
		genre = r.Genre
	}

	title, premise := "", ""
	if r.Title != "" {
		title = "Title: " + r.Title
	}
	if r.Premise != "" {
		premise = "Premise: " + r.Premise
	}

	parts := []string{
		BaseSystemPrompt,
		Guardrails,
		ChapterFormat,
		"---",
		"# CURRENT STORY CONTEXT",
		title,
		premise,
		structureLine(r.Input, "has"),
		"# STORY STATE (canonical, do not contradict)",
		stateBlock(r.State),
		"# USER CONTROLS FOR THIS CHAPTER",
		lookupGenre(culturalGrounding, genre),
		toneLine(r.Controls.Tone),
		violenceLine(r.Controls.ViolenceLevel),
		twistLine(r.Controls.TwistLevel),
		"# CHAPTER GOAL",
		r.Goal,
	}

	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}

func engineUser(r StoryEngine) string {
	parts := []string{"Write the next chapter. Chapter goal: " + r.Goal}
	if r.Continue && r.ReaderPrompt != "" {
		parts = append(parts, "Reader direction: "+r.ReaderPrompt)
	} else if r.Direction != "" {
		parts = append(parts, "Direction: "+r.Direction)
	}
	parts = append(parts, engineOutputRule)
	return strings.Join(parts, "\n\n")
}
