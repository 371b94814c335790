package prompt

import "github.com/agenthands/storyforge/internal/core/model"

var genreGuidance = map[model.Genre]string{
	model.GenreIndianMythology:    "Write in the spirit of Indian mythology: deities, dharma, karma, and regional lore. Keep names and concepts consistent with the established world.",
	model.GenreDesiSciFi:          "Indian/South Asian sci-fi: blend futuristic or alternate tech with desi culture, languages, and social contexts. Maintain internal logic.",
	model.GenreFolkloreHorror:     "Draw from Indian/South Asian folklore, regional ghost stories, and superstitions. Horror should feel rooted in the culture.",
	model.GenreHistoricalFiction:  "Historical fiction set in the Indian subcontinent. Respect period-appropriate language, customs, and events.",
	model.GenreUrbanFantasyIndian: "Contemporary Indian settings with magic or myth woven into modern life. Keep cultural details accurate.",
	model.GenreOther:              "Follow the established tone and setting of the story.",
}

var culturalGrounding = map[model.Genre]string{
	model.GenreIndianMythology:    "Use Indian mythic logic: dharma, karma, boons and curses, regional deities and lores. Names and places should feel authentically Indic (Sanskrit, regional languages, or established transliterations). No generic fantasy renaming.",
	model.GenreDesiSciFi:          "Blend tech or alternate history with desi social reality: family, language, class, geography. Names and references should feel South Asian; future or alternate rules should be consistent.",
	model.GenreFolkloreHorror:     "Root horror in Indian/South Asian folklore: churail, pret, regional ghost stories, forbidden places. Superstitions and rituals should feel culturally specific, not generic.",
	model.GenreHistoricalFiction:  "Period-appropriate dress, speech, and customs for the subcontinent. Avoid anachronisms. Names and titles should match the era and region.",
	model.GenreUrbanFantasyIndian: "Contemporary Indian life (city or small town) with magic or myth. Use real cultural touchstones: festivals, food, language mix, family dynamics.",
	model.GenreOther:              "Maintain the established cultural and world rules of the story. When in doubt, prefer Indian/desi naming and setting cues.",
}

var toneDirectives = map[model.Tone]string{
	model.ToneSolemn:   "Solemn and weighty; avoid levity.",
	model.ToneLyrical:  "Lyrical, evocative prose; imagery and rhythm matter.",
	model.ToneTense:    "Tense and suspenseful; short sentences where appropriate.",
	model.ToneWry:      "Wry, understated humour; irony allowed.",
	model.ToneMythic:   "Mythic, elevated register; suitable for mythology or epic.",
	model.ToneGrounded: "Grounded, naturalistic dialogue and action.",
	model.ToneNoir:     "Noir undertones; moral grey, shadows, disillusionment.",
}

var violenceDirectives = map[model.ViolenceLevel]string{
	model.ViolenceNone:     "Do not depict physical harm.",
	model.ViolenceImplied:  "Violence may be implied or happen off-screen; no direct description.",
	model.ViolenceModerate: "Violence may be brief and not graphically detailed.",
	model.ViolenceGraphic:  "Explicit violence is allowed only where the story requires it.",
}

var twistDirectives = map[model.TwistLevel]string{
	model.TwistNone:     "No major surprises or reversals.",
	model.TwistSubtle:   "Small reveals or ironies are fine.",
	model.TwistModerate: "One clear twist or reversal is allowed.",
	model.TwistHigh:     "Significant reveals or betrayals are allowed.",
}

const (
	defaultTone     = "Maintain the existing tone of the story."
	defaultViolence = "Violence: none. Do not depict physical harm."
	defaultTwist    = "Twists: none. Advance plot straightforwardly."
)

func lookupGenre(table map[model.Genre]string, g model.Genre) string {
	if s, ok := table[g]; ok {
		return s
	}
	return table[model.GenreOther]
}

func toneLine(t model.Tone) string {
	if t == "" {
		return defaultTone
	}
	if s, ok := toneDirectives[t]; ok {
		return "Tone for this chapter: " + s
	}
	return "Tone for this chapter: " + string(t) + "."
}

func violenceLine(v model.ViolenceLevel) string {
	if v == "" || v == model.ViolenceNone {
		return defaultViolence
	}
	s, ok := violenceDirectives[v]
	if !ok {
		return defaultViolence
	}
	return "Violence level: " + string(v) + ". " + s
}

func twistLine(t model.TwistLevel) string {
	if t == "" || t == model.TwistNone {
		return defaultTwist
	}
	s, ok := twistDirectives[t]
	if !ok {
		return defaultTwist
	}
	return "Twist level: " + string(t) + ". " + s
}
