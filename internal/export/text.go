package export

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

func renderText(doc Document) []byte {
	var b bytes.Buffer
	b.WriteString(doc.Title + "\n")
	b.WriteString(strings.Repeat("=", len([]rune(doc.Title))) + "\n\n")
	fmt.Fprintf(&b, "Genre: %s\n", doc.Genre)
	fmt.Fprintf(&b, "Length: %s words\n", humanize.Comma(int64(doc.WordCount())))
	if doc.Premise != "" {
		fmt.Fprintf(&b, "\n%s\n", doc.Premise)
	}
	for _, ch := range doc.Chapters {
		heading := ch.Heading()
		fmt.Fprintf(&b, "\n\n%s\n%s\n\n%s\n", heading, strings.Repeat("-", len([]rune(heading))), ch.Content)
	}
	return b.Bytes()
}

type frontMatter struct {
	Title    string `yaml:"title"`
	Genre    string `yaml:"genre"`
	Premise  string `yaml:"premise,omitempty"`
	Chapters int    `yaml:"chapters"`
	Words    int    `yaml:"words"`
}

func renderMarkdown(doc Document) ([]byte, error) {
	fm, err := yaml.Marshal(frontMatter{
		Title:    doc.Title,
		Genre:    doc.Genre,
		Premise:  doc.Premise,
		Chapters: len(doc.Chapters),
		Words:    doc.WordCount(),
	})
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	fmt.Fprintf(&b, "*%s*\n", doc.Genre)
	if doc.Premise != "" {
		fmt.Fprintf(&b, "\n> %s\n", strings.ReplaceAll(doc.Premise, "\n", "\n> "))
	}
	for _, ch := range doc.Chapters {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", ch.Heading(), ch.Content)
	}
	return b.Bytes(), nil
}

var htmlTemplate = template.Must(template.New("story").Funcs(template.FuncMap{
	"comma": func(n int) string { return humanize.Comma(int64(n)) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Georgia, serif; max-width: 42rem; margin: 3rem auto; line-height: 1.6; padding: 0 1rem; }
h1 { margin-bottom: 0.25rem; }
.meta { color: #666; font-style: italic; }
.premise { border-left: 3px solid #ccc; padding-left: 1rem; color: #444; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">{{.Genre}} &middot; {{comma .WordCount}} words</p>
{{- if .Premise}}
<p class="premise">{{.Premise}}</p>
{{- end}}
{{- range .Chapters}}
<section>
<h2>{{.Heading}}</h2>
{{- range .Paragraphs}}
<p>{{.}}</p>
{{- end}}
</section>
{{- end}}
</body>
</html>
`))

func renderHTML(doc Document) ([]byte, error) {
	var b bytes.Buffer
	if err := htmlTemplate.Execute(&b, doc); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
