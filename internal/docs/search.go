package docs

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"
	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"zakupki/ingest-service/internal/parser"
)

// snippetRadius is the number of runes kept around a matched phrase.
const snippetRadius = 40

// Match is one keyword hit inside a downloaded document.
type Match struct {
	File    string
	Phrase  string
	Snippet string
}

// Searcher scans the documents directory for configured phrases in DOCX,
// XLSX and text-layer PDF files. Scanned PDFs without a text layer are
// skipped; OCR is out of scope here.
type Searcher struct {
	dir     string
	phrases []string
	log     zerolog.Logger
}

// NewSearcher constructs a Searcher.
func NewSearcher(dir string, phrases []string, log zerolog.Logger) *Searcher {
	return &Searcher{dir: dir, phrases: phrases, log: log}
}

// Search walks the documents directory and returns all matches. Per-file
// failures are logged and skipped.
func (s *Searcher) Search() ([]Match, error) {
	var matches []Match

	err := filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		var (
			text    string
			readErr error
		)
		switch strings.ToLower(filepath.Ext(path)) {
		case ".docx":
			text, readErr = readDocx(path)
		case ".xlsx":
			text, readErr = readXlsx(path)
		case ".pdf":
			text, readErr = readPdf(path)
		default:
			return nil
		}
		if readErr != nil {
			s.log.Warn().Str("file", path).Err(readErr).Msg("document skipped")
			return nil
		}
		if strings.TrimSpace(text) == "" {
			s.log.Info().Str("file", path).Msg("no text layer (scanned document), skipped")
			return nil
		}

		matches = append(matches, s.matchPhrases(path, text)...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.dir, err)
	}

	return matches, nil
}

func (s *Searcher) matchPhrases(path, text string) []Match {
	var out []Match
	lower := strings.ToLower(text)

	for _, phrase := range s.phrases {
		p := strings.ToLower(strings.TrimSpace(phrase))
		if p == "" {
			continue
		}
		idx := strings.Index(lower, p)
		if idx < 0 {
			continue
		}
		out = append(out, Match{
			File:    path,
			Phrase:  phrase,
			Snippet: snippet(text, lower, idx, len(p)),
		})
	}

	return out
}

// snippet cuts ±snippetRadius runes around the match. The byte offsets
// refer to the lowered text, whose byte lengths can differ from the
// original (case folding is not length-preserving in UTF-8), so they are
// translated to rune offsets — folding maps rune to rune, keeping rune
// positions aligned between the two strings.
func snippet(text, lower string, byteIdx, byteLen int) string {
	runeIdx := utf8.RuneCountInString(lower[:byteIdx])
	runeLen := utf8.RuneCountInString(lower[byteIdx : byteIdx+byteLen])
	runes := []rune(text)

	start := runeIdx - snippetRadius
	if start < 0 {
		start = 0
	}
	end := runeIdx + runeLen + snippetRadius
	if end > len(runes) {
		end = len(runes)
	}
	if start > end {
		start = end
	}

	return string(runes[start:end])
}

// readDocx extracts all paragraph text from a Word document. A DOCX is a
// ZIP container; the body lives in word/document.xml with w: prefixed
// tags, which the namespace stripper reduces to plain names.
func readDocx(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}

		doc := etree.NewDocument()
		if err := doc.ReadFromBytes(parser.StripNamespaces(data)); err != nil {
			return "", err
		}

		var sb strings.Builder
		for _, el := range doc.FindElements("//t") {
			sb.WriteString(el.Text())
			sb.WriteString(" ")
		}
		return sb.String(), nil
	}

	return "", fmt.Errorf("word/document.xml not found")
}

// readXlsx joins all cell values of all sheets.
func readXlsx(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", err
		}
		for _, row := range rows {
			sb.WriteString(strings.Join(row, " "))
			sb.WriteString(" ")
		}
	}

	return sb.String(), nil
}

// readPdf extracts the text layer of a PDF. Image-only pages yield an
// empty string, which the caller treats as a scanned document.
func readPdf(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}

	return string(data), nil
}
