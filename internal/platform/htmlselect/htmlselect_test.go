// Copyright (c) 2026 Novelforge. All rights reserved.

package htmlselect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelforge/novelforge/internal/platform/htmlselect"
)

const samplePage = `
<html>
<head><meta name="description" content="A great novel"></head>
<body>
  <ul class="list">
    <li><a class="title" href="/book/1">  Solo   Leveling  </a></li>
    <li><a class="title" href="/book/2">Second Book</a></li>
  </ul>
  <h1 class="name">斗破苍穹</h1>
</body>
</html>`

func TestExtract_TextSuffix(t *testing.T) {
	doc, err := htmlselect.Parse(samplePage)
	require.NoError(t, err)

	value, err := htmlselect.Extract(doc.Selection, "h1.name@text")
	require.NoError(t, err)
	assert.Equal(t, "斗破苍穹", value)
}

func TestExtract_AttrSuffix(t *testing.T) {
	doc, err := htmlselect.Parse(samplePage)
	require.NoError(t, err)

	value, err := htmlselect.Extract(doc.Selection, "ul.list li a@href")
	require.NoError(t, err)
	assert.Equal(t, "/book/1", value)
}

func TestExtract_MetaDefaultsToContent(t *testing.T) {
	doc, err := htmlselect.Parse(samplePage)
	require.NoError(t, err)

	value, err := htmlselect.Extract(doc.Selection, `meta[name="description"]`)
	require.NoError(t, err)
	assert.Equal(t, "A great novel", value)
}

func TestExtract_CollapsesWhitespace(t *testing.T) {
	doc, err := htmlselect.Parse(samplePage)
	require.NoError(t, err)

	value, err := htmlselect.Extract(doc.Selection, "ul.list li a@text")
	require.NoError(t, err)
	assert.Equal(t, "Solo Leveling", value)
}

func TestExtract_PipeFallback(t *testing.T) {
	doc, err := htmlselect.Parse(samplePage)
	require.NoError(t, err)

	value, err := htmlselect.Extract(doc.Selection, "h1.missing@text|h1.name@text")
	require.NoError(t, err)
	assert.Equal(t, "斗破苍穹", value)
}

func TestExtract_RegexReplace(t *testing.T) {
	doc, err := htmlselect.Parse(samplePage)
	require.NoError(t, err)

	value, err := htmlselect.Extract(doc.Selection, `h1.name@text##苍穹##Cangqiong`)
	require.NoError(t, err)
	assert.Equal(t, "斗破Cangqiong", value)
}

func TestNodes_ListSelector(t *testing.T) {
	doc, err := htmlselect.Parse(samplePage)
	require.NoError(t, err)

	nodes := htmlselect.Nodes(doc.Selection, "ul.list li")
	assert.Equal(t, 2, nodes.Length())
}

func TestExtractParagraphs_PreservesParagraphBreaks(t *testing.T) {
	page := `<html><body><div id="content"><p>First  paragraph.</p><p>Second paragraph.</p></div></body></html>`
	doc, err := htmlselect.Parse(page)
	require.NoError(t, err)

	value, err := htmlselect.ExtractParagraphs(doc.Selection, "#content")
	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\nSecond paragraph.", value)
}

func TestExtractParagraphs_BreaksOnBr(t *testing.T) {
	page := `<html><body><div id="content">Line one.<br>Line two.</div></body></html>`
	doc, err := htmlselect.Parse(page)
	require.NoError(t, err)

	value, err := htmlselect.ExtractParagraphs(doc.Selection, "#content")
	require.NoError(t, err)
	assert.Equal(t, "Line one.\nLine two.", value)
}

func TestAbsoluteURL(t *testing.T) {
	assert.Equal(t, "https://example.com/book/1", htmlselect.AbsoluteURL("https://example.com/search", "/book/1"))
	assert.Equal(t, "https://other.com/x", htmlselect.AbsoluteURL("https://example.com/search", "https://other.com/x"))
}
