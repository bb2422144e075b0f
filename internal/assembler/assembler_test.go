// Copyright (c) 2026 Novelforge. All rights reserved.

package assembler_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelforge/novelforge/internal/assembler"
	"github.com/novelforge/novelforge/internal/download"
	"github.com/novelforge/novelforge/internal/source"
)

func TestFilename_SanitizesAndPreservesCJK(t *testing.T) {
	name := assembler.Filename("斗破苍穹", "天蚕土豆", assembler.FormatEPUB)
	assert.Equal(t, "斗破苍穹_天蚕土豆.epub", name)
}

func TestAssemble_TXT_WritesAllChapters(t *testing.T) {
	dir := t.TempDir()
	detail := source.Detail{Title: "Solo Leveling", Author: "Chugong"}
	chapters := []download.ChapterResult{
		{Order: 1, Title: "Chapter 1", Content: "It began."},
		{Order: 2, Title: "Chapter 2", Content: "It continued."},
	}

	path, err := assembler.Assemble(dir, detail, chapters, assembler.FormatTXT)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Solo Leveling_Chugong.txt"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Solo Leveling")
	assert.Contains(t, string(content), "It began.")
	assert.Contains(t, string(content), "It continued.")
}

func TestAssemble_EPUB_ProducesFile(t *testing.T) {
	dir := t.TempDir()
	detail := source.Detail{Title: "Solo Leveling", Author: "Chugong"}
	chapters := []download.ChapterResult{{Order: 1, Title: "Chapter 1", Content: "It began."}}

	path, err := assembler.Assemble(dir, detail, chapters, assembler.FormatEPUB)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
