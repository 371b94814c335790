package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"strconv"
	"strings"
)

const (
	docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

	docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

	docxHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	docxFooter = `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/><w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440"/></w:sectPr></w:body></w:document>`
)

// renderDOCX writes a minimal WordprocessingML package: one document part
// with bold run sizes standing in for heading styles.
func renderDOCX(doc Document) ([]byte, error) {
	var body strings.Builder
	body.WriteString(docxHeader)
	docxParagraph(&body, doc.Title, 48, true, false, false)
	docxParagraph(&body, doc.Genre, 24, false, true, false)
	if doc.Premise != "" {
		docxParagraph(&body, doc.Premise, 24, false, false, false)
	}
	for _, ch := range doc.Chapters {
		docxParagraph(&body, ch.Heading(), 32, true, false, true)
		for _, p := range ch.Paragraphs() {
			docxParagraph(&body, p, 24, false, false, false)
		}
	}
	body.WriteString(docxFooter)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct{ name, content string }{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRels},
		{"word/document.xml", body.String()},
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func docxParagraph(b *strings.Builder, text string, halfPoints int, bold, italic, pageBreak bool) {
	b.WriteString("<w:p>")
	if pageBreak {
		b.WriteString(`<w:pPr><w:pageBreakBefore/></w:pPr>`)
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		b.WriteString("<w:r><w:rPr>")
		if bold {
			b.WriteString("<w:b/>")
		}
		if italic {
			b.WriteString("<w:i/>")
		}
		b.WriteString(`<w:sz w:val="` + strconv.Itoa(halfPoints) + `"/></w:rPr>`)
		if i > 0 {
			b.WriteString("<w:br/>")
		}
		b.WriteString(`<w:t xml:space="preserve">`)
		_ = xml.EscapeText(b, []byte(line))
		b.WriteString("</w:t></w:r>")
	}
	b.WriteString("</w:p>")
}
