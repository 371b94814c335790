// Package export renders a story's title, genre, premise and chapters as a
// downloadable file. Characters, world rules and the timeline are not
// exported.
package export

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/agenthands/storyforge/internal/core/model"
	"github.com/agenthands/storyforge/internal/errs"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatTXT  Format = "txt"
	FormatMD   Format = "md"
	FormatHTML Format = "html"
)

var Formats = []Format{FormatPDF, FormatDOCX, FormatTXT, FormatMD, FormatHTML}

var mimeTypes = map[Format]string{
	FormatPDF:  "application/pdf",
	FormatDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	FormatTXT:  "text/plain; charset=utf-8",
	FormatMD:   "text/markdown; charset=utf-8",
	FormatHTML: "text/html; charset=utf-8",
}

// ParseFormat accepts a format name in any case.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := mimeTypes[f]; ok {
		return f, nil
	}
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	msg := "Invalid format. Use one of: " + strings.Join(names, ", ")
	return "", errs.Validation(msg, map[string]string{"format": msg})
}

type Chapter struct {
	Number  int
	Title   string
	Content string
}

type Document struct {
	Title    string
	Genre    string
	Premise  string
	Chapters []Chapter
}

// NewDocument builds the export payload from a story. Chapters are ordered by
// index and numbered from 1.
func NewDocument(s *model.Story) Document {
	history := append([]model.Chapter(nil), s.ChapterHistory...)
	sort.SliceStable(history, func(i, j int) bool { return history[i].Index < history[j].Index })

	doc := Document{
		Title:    s.Title,
		Genre:    GenreLabel(s.Genre),
		Premise:  s.Premise,
		Chapters: make([]Chapter, 0, len(history)),
	}
	for _, ch := range history {
		doc.Chapters = append(doc.Chapters, Chapter{Number: ch.Index + 1, Title: ch.Title, Content: ch.Content})
	}
	return doc
}

// WordCount counts whitespace separated words across all chapters.
func (d Document) WordCount() int {
	n := 0
	for _, ch := range d.Chapters {
		n += len(strings.Fields(ch.Content))
	}
	return n
}

func (c Chapter) Heading() string {
	if c.Title == "" {
		return fmt.Sprintf("Chapter %d", c.Number)
	}
	return fmt.Sprintf("Chapter %d: %s", c.Number, c.Title)
}

var blankLines = regexp.MustCompile(`\n\s*\n`)

// Paragraphs splits content on blank lines.
func (c Chapter) Paragraphs() []string {
	var out []string
	for _, p := range blankLines.Split(c.Content, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// GenreLabel turns "folklore_horror" into "Folklore Horror".
func GenreLabel(g model.Genre) string {
	words := strings.Split(string(g), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

type Result struct {
	Data     []byte
	MIMEType string
	Filename string
}

// Options tune rendering. The zero value is usable.
type Options struct {
	// PDFFontPath is a TrueType font embedded in PDFs for non-Latin text.
	PDFFontPath string
}

// Render produces the file for doc in format f with default options.
func Render(doc Document, f Format) (*Result, error) {
	return RenderWith(doc, f, Options{})
}

// RenderWith produces the file for doc in format f.
func RenderWith(doc Document, f Format, opts Options) (*Result, error) {
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatTXT:
		data = renderText(doc)
	case FormatMD:
		data, err = renderMarkdown(doc)
	case FormatHTML:
		data, err = renderHTML(doc)
	case FormatPDF:
		data, err = renderPDF(doc, opts)
	case FormatDOCX:
		data, err = renderDOCX(doc)
	default:
		_, err = ParseFormat(string(f))
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", f, err)
	}
	return &Result{
		Data:     data,
		MIMEType: mimeTypes[f],
		Filename: Slug(doc.Title) + "." + string(f),
	}, nil
}

var nonSlug = regexp.MustCompile(`[^\p{L}\p{M}\p{N}]+`)

// Slug derives a file name stem from a title.
func Slug(title string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if r := []rune(s); len(r) > 80 {
		s = strings.TrimRight(string(r[:80]), "-")
	}
	if s == "" {
		return "story"
	}
	return s
}
