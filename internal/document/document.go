package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
	"github.com/ledongthuc/pdf"
	"golang.org/x/text/language"

	"github.com/dkurilov/paratrans/internal/checkpoint"
)

// Format identifies the source document type.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
)

// Document is an extracted source document ready for segmentation.
type Document struct {
	Path      string
	Name      string
	SizeBytes int64
	Format    Format

	Text      string
	Pages     int
	CharCount int
	WordCount int
	Language  language.Tag
}

// JobID derives the checkpoint identifier for this document.
func (d *Document) JobID() string {
	return checkpoint.JobID(d.Name, d.SizeBytes)
}

// SupportedExt reports whether the file extension is one we can extract.
func SupportedExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".md", ".markdown":
		return true
	}
	return false
}

// Extract reads a document from disk, pulls out its plain text and fills in
// basic metadata including a detected source language.
func Extract(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat document: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("document path %s is a directory", path)
	}

	doc := &Document{
		Path:      path,
		Name:      filepath.Base(path),
		SizeBytes: info.Size(),
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		doc.Format = FormatPDF
		doc.Text, doc.Pages, err = extractPDF(path)
	case ".txt":
		doc.Format = FormatText
		doc.Text, err = readTextFile(path)
	case ".md", ".markdown":
		doc.Format = FormatMarkdown
		doc.Text, err = readTextFile(path)
	default:
		return nil, fmt.Errorf("unsupported document format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	doc.CharCount = len([]rune(doc.Text))
	doc.WordCount = len(strings.Fields(doc.Text))
	doc.Language = DetectLanguage(doc.Text)
	return doc, nil
}

func readTextFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return string(data), nil
}

// extractPDF pulls plain text from every page, joining pages with blank
// lines. Pages that fail to decode are skipped rather than failing the whole
// document.
func extractPDF(path string) (string, int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	totalPages := r.NumPage()
	pages := make([]string, 0, totalPages)
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		pages = append(pages, content)
	}

	text := strings.Join(pages, "\n\n")
	if !hasExtractableText(text) {
		return "", totalPages, fmt.Errorf("pdf %s has no extractable text (scanned document?)", filepath.Base(path))
	}
	return text, totalPages, nil
}

// hasExtractableText requires a minimum of non-whitespace content before we
// treat a PDF as text-based.
func hasExtractableText(text string) bool {
	count := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			count++
			if count > 50 {
				return true
			}
		}
	}
	return false
}

// DetectLanguage samples up to the first few thousand runes and votes per
// line, which is more robust on mixed-language documents than one global
// detection pass.
func DetectLanguage(text string) language.Tag {
	const sampleRunes = 4000

	runes := []rune(text)
	if len(runes) > sampleRunes {
		runes = runes[:sampleRunes]
	}
	sample := string(runes)
	if strings.TrimSpace(sample) == "" {
		return language.Und
	}

	votes := make(map[string]int)
	for _, line := range strings.Split(sample, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		iso := whatlanggo.DetectLang(line).Iso6391()
		if iso == "" {
			continue
		}
		votes[iso]++
	}

	var topLang string
	var topCount int
	for iso, count := range votes {
		if count > topCount {
			topLang = iso
			topCount = count
		}
	}
	if topLang == "" {
		return language.Und
	}

	tag, err := language.Parse(topLang)
	if err != nil {
		return language.Und
	}
	return tag
}
