package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chapterPage = `<!doctype html>
<html>
  <body>
    <ul>
      <li><a class="chapter" href="/c/1">Chapter <b>1</b></a></li>
      <li><a class="chapter" href="/c/2">Chapter 2</a></li>
      <li><a class="other" href="/about">About</a></li>
      <li><a class="chapter">Broken</a></li>
    </ul>
  </body>
</html>`

func TestCompile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "class", raw: "a.chapter"},
		{name: "group", raw: "img.page, img.cover"},
		{name: "trimmed", raw: "  div > img  "},
		{name: "empty", raw: "   ", wantErr: true},
		{name: "invalid", raw: "a[href", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sel, err := Compile(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, sel.String())
		})
	}
}

func TestSelectDocumentOrder(t *testing.T) {
	t.Parallel()

	doc, err := NewParser().Parse(chapterPage)
	require.NoError(t, err)

	elements := doc.Select(MustCompile("a.chapter"))
	require.Len(t, elements, 3)

	href, ok := elements[0].Attr("href")
	assert.True(t, ok)
	assert.Equal(t, "/c/1", href)
	assert.Equal(t, "Chapter 1", elements[0].Text())
	assert.Equal(t, "Chapter 2", elements[1].Text())

	_, ok = elements[2].Attr("href")
	assert.False(t, ok)
	assert.Contains(t, elements[2].HTML(), "Broken")
}

func TestZeroSelectorMatchesNothing(t *testing.T) {
	t.Parallel()

	doc, err := NewParser().Parse(chapterPage)
	require.NoError(t, err)
	assert.Empty(t, doc.Select(Selector{}))
}
