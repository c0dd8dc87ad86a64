package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// docx is a zip archive; paragraph text lives in word/document.xml as
// <w:p> elements containing <w:t> runs.
func docxPages(path string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var doc io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc, err = f.Open()
			if err != nil {
				return nil, err
			}
			break
		}
	}
	if doc == nil {
		return nil, fmt.Errorf("word/document.xml not found")
	}
	defer doc.Close()

	paragraphs, err := xmlParagraphs(doc, "p", "t")
	if err != nil {
		return nil, err
	}

	// Group paragraphs into synthetic pages; the tail group is kept even
	// when short.
	var pages []string
	for i := 0; i < len(paragraphs); i += ParagraphsPerPage {
		end := i + ParagraphsPerPage
		if end > len(paragraphs) {
			end = len(paragraphs)
		}
		pages = append(pages, strings.Join(paragraphs[i:end], "\n"))
	}
	return pages, nil
}

// xmlParagraphs streams an OOXML part and returns the text of each
// paragraph element (local name paraName), joining the character data of
// its text runs (local name textName).
func xmlParagraphs(r io.Reader, paraName, textName string) ([]string, error) {
	dec := xml.NewDecoder(r)

	var paragraphs []string
	var current strings.Builder
	inPara := false
	textDepth := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case paraName:
				inPara = true
				current.Reset()
			case textName:
				if inPara {
					textDepth++
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case paraName:
				if inPara {
					inPara = false
					if s := strings.TrimSpace(current.String()); s != "" {
						paragraphs = append(paragraphs, s)
					}
				}
			case textName:
				if textDepth > 0 {
					textDepth--
				}
			}
		case xml.CharData:
			if inPara && textDepth > 0 {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}
