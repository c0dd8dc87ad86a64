// Package pdfgen renders revision sheets to PDF. Markdown from the model
// is flattened: headings become styled paragraphs, inline bold and italic
// markers are honored, everything else is plain text.
package pdfgen

import (
	"bytes"
	"strings"

	"github.com/go-pdf/fpdf"
)

// Block is one flattened unit of output.
type Block struct {
	// Level 0 is body text; 1..3 are heading levels.
	Level int
	Text  string
}

// Flatten converts markdown-ish model output into renderable blocks,
// stripping list markers and fence lines.
func Flatten(md string) []Block {
	var blocks []Block
	for _, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "```") {
			continue
		}

		level := 0
		for level < len(trimmed) && trimmed[level] == '#' {
			level++
		}
		if level > 0 && level < len(trimmed) && trimmed[level] == ' ' {
			text := strings.TrimSpace(trimmed[level:])
			if level > 3 {
				level = 3
			}
			blocks = append(blocks, Block{Level: level, Text: stripInline(text)})
			continue
		}

		trimmed = strings.TrimPrefix(trimmed, "- ")
		trimmed = strings.TrimPrefix(trimmed, "* ")
		blocks = append(blocks, Block{Level: 0, Text: trimmed})
	}
	return blocks
}

func stripInline(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "*", "")
	s = strings.ReplaceAll(s, "__", "")
	s = strings.ReplaceAll(s, "`", "")
	return s
}

// Renderer builds a PDF document page by page.
type Renderer struct {
	pdf *fpdf.Fpdf
}

// NewRenderer creates an A4 portrait renderer with the document title as
// the first heading.
func NewRenderer(title string) *Renderer {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, sanitize(title), "", "L", false)
	pdf.Ln(4)
	return &Renderer{pdf: pdf}
}

// Heading writes a styled section heading.
func (r *Renderer) Heading(level int, text string) {
	size := 16.0
	switch {
	case level >= 3:
		size = 12
	case level == 2:
		size = 14
	}
	r.pdf.SetFont("Helvetica", "B", size)
	r.pdf.MultiCell(0, 7, sanitize(text), "", "L", false)
	r.pdf.Ln(2)
}

// Body writes a paragraph of body text, honoring **bold** and *italic*
// inline runs.
func (r *Renderer) Body(text string) {
	r.pdf.SetFont("Helvetica", "", 11)
	for _, run := range splitInline(text) {
		style := ""
		if run.bold {
			style += "B"
		}
		if run.italic {
			style += "I"
		}
		r.pdf.SetFont("Helvetica", style, 11)
		r.pdf.Write(5.5, sanitize(run.text))
	}
	r.pdf.Ln(5.5)
	r.pdf.Ln(2)
}

// Markdown flattens md and writes every block.
func (r *Renderer) Markdown(md string) {
	for _, b := range Flatten(md) {
		if b.Level > 0 {
			r.Heading(b.Level, b.Text)
		} else {
			r.Body(b.Text)
		}
	}
}

// Output returns the rendered PDF bytes.
func (r *Renderer) Output() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type inlineRun struct {
	text   string
	bold   bool
	italic bool
}

// splitInline walks the text splitting on ** and * markers.
func splitInline(s string) []inlineRun {
	var runs []inlineRun
	bold, italic := false, false
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			runs = append(runs, inlineRun{text: current.String(), bold: bold, italic: italic})
			current.Reset()
		}
	}

	for i := 0; i < len(s); {
		if strings.HasPrefix(s[i:], "**") {
			flush()
			bold = !bold
			i += 2
			continue
		}
		if s[i] == '*' {
			flush()
			italic = !italic
			i++
			continue
		}
		current.WriteByte(s[i])
		i++
	}
	flush()
	if len(runs) == 0 {
		runs = append(runs, inlineRun{text: s})
	}
	return runs
}

// sanitize maps text onto the cp1252 range the core fonts support.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '\t' {
			b.WriteRune(' ')
			continue
		}
		if r < 32 && r != '\n' {
			continue
		}
		if r > 0xFF {
			switch r {
			case '‘', '’':
				b.WriteRune('\'')
			case '“', '”':
				b.WriteRune('"')
			case '–', '—':
				b.WriteRune('-')
			case '…':
				b.WriteString("...")
			default:
				b.WriteRune('?')
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
