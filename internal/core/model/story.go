package model

import "time"

// SchemaVersion is the version stamped on every story written by this build.
const SchemaVersion = 2

type Structure string

const (
	StructureActs     Structure = "acts"
	StructureChapters Structure = "chapters"
)

type Genre string

const (
	GenreIndianMythology    Genre = "indian_mythology"
	GenreDesiSciFi          Genre = "desi_sci_fi"
	GenreFolkloreHorror     Genre = "folklore_horror"
	GenreHistoricalFiction  Genre = "historical_fiction"
	GenreUrbanFantasyIndian Genre = "urban_fantasy_indian"
	GenreOther              Genre = "other"
)

// Genres lists the closed set accepted at story creation.
var Genres = []Genre{
	GenreIndianMythology,
	GenreDesiSciFi,
	GenreFolkloreHorror,
	GenreHistoricalFiction,
	GenreUrbanFantasyIndian,
	GenreOther,
}

// Character is one character's canonical facts. Once Alive is false it stays
// false unless a world rule explicitly permits reversal.
type Character struct {
	Name           string   `json:"name"`
	Traits         []string `json:"traits"`
	Alive          bool     `json:"alive"`
	EmotionalState string   `json:"emotionalState"`
	Role           string   `json:"role,omitempty"`
	LastKnown      string   `json:"lastKnown,omitempty"`
}

// WorldRule is a constraint generated prose must never contradict.
type WorldRule struct {
	Category string `json:"category"`
	Rule     string `json:"rule"`
}

// TimelineEvent is produced exactly once per chapter and never edited.
type TimelineEvent struct {
	ChapterIndex int       `json:"chapterIndex"`
	Summary      string    `json:"summary"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// Snapshot is the story state as it stood before a chapter was generated.
// Chapter bodies are not copied; ChapterCount identifies the history prefix.
type Snapshot struct {
	Characters     []Character     `json:"characters"`
	WorldRules     []WorldRule     `json:"worldRules"`
	TimelineEvents []TimelineEvent `json:"timelineEvents"`
	ChapterCount   int             `json:"chapterCount"`
}

// Chapter is immutable once created.
type Chapter struct {
	Index         int       `json:"index"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Act           *int      `json:"act,omitempty"`
	StateSnapshot *Snapshot `json:"stateSnapshot,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// State is the narrative aggregate: everything the prompt compiler reads.
type State struct {
	Characters     []Character     `json:"characters"`
	WorldRules     []WorldRule     `json:"worldRules"`
	TimelineEvents []TimelineEvent `json:"timelineEvents"`
	ChapterHistory []Chapter       `json:"chapterHistory"`
}

// Snapshot captures the state without chapter bodies.
func (s State) Snapshot() *Snapshot {
	return &Snapshot{
		Characters:     append([]Character(nil), s.Characters...),
		WorldRules:     append([]WorldRule(nil), s.WorldRules...),
		TimelineEvents: append([]TimelineEvent(nil), s.TimelineEvents...),
		ChapterCount:   len(s.ChapterHistory),
	}
}

// Story is the persisted aggregate root.
type Story struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"ownerId,omitempty"`
	Title         string    `json:"title"`
	Genre         Genre     `json:"genre"`
	Premise       string    `json:"premise,omitempty"`
	Structure     Structure `json:"structure"`
	ActCount      int       `json:"actCount,omitempty"`
	SchemaVersion int       `json:"schemaVersion"`
	State
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers can never alias stored slices.
func (s *Story) Clone() *Story {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Characters = make([]Character, len(s.Characters))
	for i, c := range s.Characters {
		c.Traits = append([]string{}, c.Traits...)
		cp.Characters[i] = c
	}
	cp.WorldRules = append([]WorldRule{}, s.WorldRules...)
	cp.TimelineEvents = append([]TimelineEvent{}, s.TimelineEvents...)
	cp.ChapterHistory = append([]Chapter{}, s.ChapterHistory...)
	return &cp
}

// StorySummary is the listing view used by the dashboard.
type StorySummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Genre        Genre     `json:"genre"`
	Structure    Structure `json:"structure"`
	ChapterCount int       `json:"chapterCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// User is an account that owns stories.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
