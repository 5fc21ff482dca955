// Package extraction turns uploaded artifacts into plain text. Parse
// failures never abort the pipeline; they become error-typed results so
// downstream stages can surface them as data.
package extraction

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// Result is one extraction outcome. When Success is false, Text holds a
// bracketed error description rather than document content.
type Result struct {
	Text      string
	FileType  string
	Pages     int
	WordCount int
	Success   bool
	Error     string
}

// ExtractText parses a file by extension. Unknown extensions fall back to
// plain-text decoding.
func ExtractText(content []byte, filename string) Result {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return parsePDF(content, filename)
	case ".docx", ".doc":
		return parseDOCX(content, filename)
	default:
		return parseText(content)
	}
}

func parsePDF(content []byte, filename string) (res Result) {
	// the pdf library panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%v", r)
			res = errorResult("PDF", fmt.Sprintf("[Error parsing PDF %s: %v]", filename, err), err)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return errorResult("PDF", fmt.Sprintf("[Error parsing PDF %s: %v]", filename, err), err)
	}

	var parts []string
	totalPages := reader.NumPage()
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			parts = append(parts, fmt.Sprintf("--- Page %d (extraction failed: %v) ---", pageNum, err))
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", pageNum, text))
		}
	}

	text := cleanText(strings.Join(parts, "\n\n"))
	return Result{
		Text:      text,
		FileType:  "PDF",
		Pages:     totalPages,
		WordCount: len(strings.Fields(text)),
		Success:   true,
	}
}

func parseDOCX(content []byte, filename string) Result {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return errorResult("Word Document", fmt.Sprintf("[Error parsing Word document %s: %v]", filename, err), err)
	}
	defer doc.Close()

	text := cleanText(stripXMLTags(doc.Editable().GetContent()))
	return Result{
		Text:      text,
		FileType:  "Word Document",
		WordCount: len(strings.Fields(text)),
		Success:   true,
	}
}

func parseText(content []byte) Result {
	var text string
	if utf8.Valid(content) {
		text = string(content)
	} else {
		// latin-1 fallback: every byte maps to a rune
		runes := make([]rune, len(content))
		for i, b := range content {
			runes[i] = rune(b)
		}
		text = string(runes)
	}

	text = cleanText(text)
	return Result{
		Text:      text,
		FileType:  "Text",
		WordCount: len(strings.Fields(text)),
		Success:   true,
	}
}

func errorResult(fileType, text string, err error) Result {
	return Result{Text: text, FileType: fileType, Error: err.Error()}
}

var (
	multiNewlines = regexp.MustCompile(`\n\s*\n\s*\n`)
	runsOfSpaces  = regexp.MustCompile(`[ \t]+`)
	controlChars  = regexp.MustCompile("[\x00-\x08\x0b\x0e-\x1f\x7f]")
	xmlTags       = regexp.MustCompile(`<[^>]*>`)
)

// cleanText normalizes whitespace, line endings, and strips control
// characters left behind by PDF extraction.
func cleanText(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\x0c", "\n")
	text = multiNewlines.ReplaceAllString(text, "\n\n")
	text = runsOfSpaces.ReplaceAllString(text, " ")
	text = controlChars.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// stripXMLTags removes WordprocessingML markup, inserting line breaks at
// paragraph boundaries.
func stripXMLTags(content string) string {
	content = strings.ReplaceAll(content, "</w:p>", "</w:p>\n")
	return xmlTags.ReplaceAllString(content, "")
}
