package model

// DefaultEmotionalState is assigned to characters that have none recorded.
const DefaultEmotionalState = "neutral"

// Migrate upgrades a decoded story to SchemaVersion in place.
//
// Version 0 and 1 documents were written as untyped blobs: characters may lack
// an emotional state and list fields may be null.
func Migrate(s *Story) {
	if s == nil || s.SchemaVersion >= SchemaVersion {
		return
	}
	for i := range s.Characters {
		c := &s.Characters[i]
		if c.Traits == nil {
			c.Traits = []string{}
		}
		if c.EmotionalState == "" {
			c.EmotionalState = DefaultEmotionalState
		}
	}
	if s.Characters == nil {
		s.Characters = []Character{}
	}
	if s.WorldRules == nil {
		s.WorldRules = []WorldRule{}
	}
	if s.TimelineEvents == nil {
		s.TimelineEvents = []TimelineEvent{}
	}
	if s.ChapterHistory == nil {
		s.ChapterHistory = []Chapter{}
	}
	if s.Structure == "" {
		s.Structure = StructureChapters
	}
	s.SchemaVersion = SchemaVersion
}
