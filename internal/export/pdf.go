package export

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// pdfFonts names the families used for headings, captions and body text.
type pdfFonts struct {
	heading, body string
	// tr maps UTF-8 text into the encoding of the selected fonts.
	tr func(string) string
}

// loadFonts embeds fontPath under one family for every style when set.
// Without it the core fonts are used and text outside cp1252 degrades.
func loadFonts(pdf *fpdf.Fpdf, fontPath string) (pdfFonts, error) {
	if fontPath == "" {
		return pdfFonts{heading: "Helvetica", body: "Times", tr: pdf.UnicodeTranslatorFromDescriptor("")}, nil
	}
	const family = "storybody"
	for _, style := range []string{"", "B", "I"} {
		pdf.AddUTF8Font(family, style, fontPath)
	}
	if err := pdf.Error(); err != nil {
		return pdfFonts{}, fmt.Errorf("load pdf font %s: %w", fontPath, err)
	}
	return pdfFonts{heading: family, body: family, tr: func(s string) string { return s }}, nil
}

func renderPDF(doc Document, opts Options) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Title, true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	fonts, err := loadFonts(pdf, opts.PDFFontPath)
	if err != nil {
		return nil, err
	}
	tr := fonts.tr

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(fonts.heading, "I", 8)
		pdf.CellFormat(0, 10, tr(doc.Title), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont(fonts.heading, "B", 22)
	pdf.MultiCell(0, 10, tr(doc.Title), "", "C", false)
	pdf.Ln(2)
	pdf.SetFont(fonts.heading, "I", 11)
	pdf.MultiCell(0, 6, tr(doc.Genre), "", "C", false)
	if doc.Premise != "" {
		pdf.Ln(6)
		pdf.SetFont(fonts.heading, "", 11)
		pdf.MultiCell(0, 6, tr(doc.Premise), "", "L", false)
	}

	for _, ch := range doc.Chapters {
		pdf.AddPage()
		pdf.SetFont(fonts.heading, "B", 16)
		pdf.MultiCell(0, 8, tr(ch.Heading()), "", "L", false)
		pdf.Ln(4)
		pdf.SetFont(fonts.body, "", 12)
		for _, p := range ch.Paragraphs() {
			pdf.MultiCell(0, 6, tr(p), "", "J", false)
			pdf.Ln(3)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
