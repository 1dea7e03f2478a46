package document

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func writeTempDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSupportedExt(t *testing.T) {
	assert.True(t, SupportedExt("report.pdf"))
	assert.True(t, SupportedExt("notes.TXT"))
	assert.True(t, SupportedExt("readme.md"))
	assert.False(t, SupportedExt("image.png"))
	assert.False(t, SupportedExt("archive"))
}

func TestExtract_TextFile(t *testing.T) {
	content := "The quick brown fox jumps over the lazy dog.\n\nIt was the best of times, it was the worst of times."
	path := writeTempDoc(t, "sample.txt", content)

	doc, err := Extract(path)
	require.NoError(t, err)

	assert.Equal(t, "sample.txt", doc.Name)
	assert.Equal(t, FormatText, doc.Format)
	assert.Equal(t, content, doc.Text)
	assert.Equal(t, int64(len(content)), doc.SizeBytes)
	assert.Equal(t, len(strings.Fields(content)), doc.WordCount)
	assert.Positive(t, doc.CharCount)
}

func TestExtract_MarkdownFile(t *testing.T) {
	path := writeTempDoc(t, "notes.md", "# Title\n\nSome body text here.")

	doc, err := Extract(path)
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, doc.Format)
}

func TestExtract_UnsupportedFormat(t *testing.T) {
	path := writeTempDoc(t, "image.png", "not really an image")

	_, err := Extract(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported document format")
}

func TestExtract_MissingFile(t *testing.T) {
	_, err := Extract(filepath.Join(t.TempDir(), "ghost.txt"))
	require.Error(t, err)
}

func TestDocument_JobID(t *testing.T) {
	path := writeTempDoc(t, "book.txt", "0123456789")

	doc, err := Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "book.txt_10", doc.JobID())
}

func TestDetectLanguage(t *testing.T) {
	english := "This is a plain English sentence about nothing in particular, long enough to classify.\n" +
		"Here is another English line to strengthen the vote."
	assert.Equal(t, language.English, DetectLanguage(english))

	russian := "Это обычное русское предложение ни о чём конкретном, достаточно длинное для распознавания.\n" +
		"Вот ещё одна русская строка для усиления голосования."
	assert.Equal(t, language.Russian, DetectLanguage(russian))

	assert.Equal(t, language.Und, DetectLanguage("   \n\t  "))
}
