// Copyright (c) 2026 Novelforge. All rights reserved.

/*
Package assembler writes a completed download's chapters to disk as
either plain text or EPUB (spec.md §4.8).

Output filenames are "{sanitized title}_{sanitized author}.{ext}", built
with [github.com/novelforge/novelforge/pkg/textnorm.Sanitize] so the
non-Latin titles the engine mostly deals with (CJK source material) stay
human-readable instead of being transliterated away.
*/
package assembler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmaupin/go-epub"

	"github.com/novelforge/novelforge/internal/download"
	"github.com/novelforge/novelforge/internal/source"
	"github.com/novelforge/novelforge/pkg/textnorm"
)

// Format selects the assembled artifact's encoding.
type Format string

const (
	FormatTXT  Format = "txt"
	FormatEPUB Format = "epub"
)

// EpubWriter abstracts the EPUB encoder so tests can substitute a fake
// without writing a real zip archive to disk.
type EpubWriter interface {
	AddSection(body, title, internalFilename, cssPath string) (string, error)
	Write(path string) error
}

// epubFactory constructs an [EpubWriter]; overridable in tests.
var epubFactory = func(title, author string) EpubWriter {
	doc := epub.NewEpub(title)
	doc.SetAuthor(author)
	return doc
}

// Assemble writes detail's chapters to outputDir in the requested
// format and returns the path to the written file.
func Assemble(outputDir string, detail source.Detail, chapters []download.ChapterResult, format Format) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("assembler: create output dir %q: %w", outputDir, err)
	}

	filename := Filename(detail.Title, detail.Author, format)
	path := filepath.Join(outputDir, filename)

	var err error
	switch format {
	case FormatEPUB:
		err = assembleEPUB(path, detail, chapters)
	default:
		err = assembleTXT(path, detail, chapters)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

// Filename builds the sanitized output filename for a title/author pair.
func Filename(title, author string, format Format) string {
	ext := "txt"
	if format == FormatEPUB {
		ext = "epub"
	}
	return fmt.Sprintf("%s_%s.%s", textnorm.Sanitize(title), textnorm.Sanitize(author), ext)
}

func assembleTXT(path string, detail source.Detail, chapters []download.ChapterResult) error {
	var builder strings.Builder
	fmt.Fprintf(&builder, "%s\nby %s\n\n", detail.Title, detail.Author)
	for _, chapter := range chapters {
		fmt.Fprintf(&builder, "%s\n\n%s\n\n", chapter.Title, chapter.Content)
	}
	if err := os.WriteFile(path, []byte(builder.String()), 0o644); err != nil {
		return fmt.Errorf("assembler: write txt %q: %w", path, err)
	}
	return nil
}

func assembleEPUB(path string, detail source.Detail, chapters []download.ChapterResult) error {
	doc := epubFactory(detail.Title, detail.Author)
	for _, chapter := range chapters {
		body := fmt.Sprintf("<h1>%s</h1><p>%s</p>", chapter.Title, strings.ReplaceAll(chapter.Content, "\n", "</p><p>"))
		if _, err := doc.AddSection(body, chapter.Title, "", ""); err != nil {
			return fmt.Errorf("assembler: add section %q: %w", chapter.Title, err)
		}
	}
	if err := doc.Write(path); err != nil {
		return fmt.Errorf("assembler: write epub %q: %w", path, err)
	}
	return nil
}
