package ingest

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/agenthands/storyforge/internal/core/model"
)

const (
	maxTitleLen   = 120
	summaryLen    = 200
	summaryMarker = "…"
)

var (
	headingMarkers = regexp.MustCompile(`^#+\s*`)
	chapterPrefix  = regexp.MustCompile(`(?i)^chapter\s+\d+[:.]?\s*`)
)

// Parsed is raw model output split into a title and a body.
type Parsed struct {
	Title   string
	Content string
}

// Parse splits raw generated text on its first newline. The first line becomes
// the title with markdown heading markers and a "Chapter N:" prefix removed;
// text without a newline is all content under a default title.
func Parse(raw string, index int) Parsed {
	trimmed := strings.TrimSpace(raw)
	fallback := DefaultTitle(index)

	nl := strings.IndexByte(trimmed, '\n')
	if nl == -1 {
		return Parsed{Title: fallback, Content: trimmed}
	}

	title := strings.TrimSpace(trimmed[:nl])
	title = headingMarkers.ReplaceAllString(title, "")
	title = chapterPrefix.ReplaceAllString(title, "")
	title = strings.TrimSpace(truncate(title, maxTitleLen))
	if title == "" {
		title = fallback
	}

	return Parsed{
		Title:   title,
		Content: strings.TrimSpace(trimmed[nl+1:]),
	}
}

// DefaultTitle is used when the model output carries no usable title.
func DefaultTitle(index int) string {
	return fmt.Sprintf("Chapter %d", index+1)
}

// Summary derives the timeline summary of a chapter body.
func Summary(content string) string {
	r := []rune(content)
	if len(r) <= summaryLen {
		return content
	}
	return string(r[:summaryLen]) + summaryMarker
}

// Build turns raw model output into the chapter record and its timeline event.
// before is the state the chapter was generated from.
func Build(raw string, index int, act *int, before model.State, now time.Time) (model.Chapter, model.TimelineEvent) {
	p := Parse(raw, index)
	now = now.UTC()

	ch := model.Chapter{
		Index:         index,
		Title:         p.Title,
		Content:       p.Content,
		Act:           act,
		StateSnapshot: before.Snapshot(),
		CreatedAt:     now,
	}
	ev := model.TimelineEvent{
		ChapterIndex: index,
		Summary:      Summary(p.Content),
		OccurredAt:   now,
	}
	return ch, ev
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
