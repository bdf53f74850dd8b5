package parser_test

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/lemmasearch/internal/parser"
)

const page = `<!DOCTYPE html>
<html>
<head>
  <title> Go &amp; Search </title>
  <style>body { color: red; }</style>
  <script>var hidden = "never shown";</script>
</head>
<body>
  <nav><a href="/docs/">Docs</a> <a href="about#team">About</a></nav>
  <p>Welcome to the <b>search</b> engine.</p>
  <noscript>Enable JavaScript</noscript>
  <a href="https://other.example/x">Elsewhere</a>
  <a href="mailto:me@example.com">Mail</a>
  <a>No href</a>
</body>
</html>`

func TestParseHTML(t *testing.T) {
	p := parser.New()

	doc, err := p.ParseHTML(page, "https://example.com/start")
	require.NoError(t, err)

	assert.Equal(t, "Go & Search", doc.Title)
	assert.Equal(t, "Docs About Welcome to the search engine. Elsewhere Mail No href", doc.Text)
	assert.NotContains(t, doc.Text, "never shown")
	assert.NotContains(t, doc.Text, "color")

	assert.Equal(t, []string{
		"https://example.com/docs/",
		"https://example.com/about#team",
		"https://other.example/x",
		"mailto:me@example.com",
	}, doc.Links)
}

func TestHasSufficientContent(t *testing.T) {
	p := parser.New()

	thin, err := p.ParseHTML(`<html><body><div id="app"></div><script>render()</script></body></html>`, "https://example.com")
	require.NoError(t, err)
	assert.False(t, thin.HasSufficientContent())

	rich, err := p.ParseHTML("<p>"+strings.Repeat("word ", 40)+"</p>", "https://example.com")
	require.NoError(t, err)
	assert.True(t, rich.HasSufficientContent())
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "<title>Hello</title>", "Hello"},
		{"attributes and case", `<TITLE lang="en">Upper</TITLE>`, "Upper"},
		{"multiline", "<title>\n  Two\n</title>", "Two"},
		{"first wins", "<title>One</title><title>Two</title>", "One"},
		{"missing", "<p>no title</p>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parser.ExtractTitle(tt.input))
		})
	}
}

func TestVisibleText(t *testing.T) {
	got := parser.VisibleText(`<body><p>one</p><script>two()</script><div>three   four</div></body>`)
	assert.Equal(t, "one three four", got)
}

func TestURLPattern(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/page", true},
		{"http://example.com/a-b_c~d", true},
		{"ftp://files.example.com/x", true},
		{"mailto:me@example.com", false},
		{"javascript:void(0)", false},
		{"//example.com/page", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, parser.URLPattern.MatchString(tt.url))
		})
	}
}

func TestNormalizeURLString(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://example.com/", "https://example.com"},
		{"https://example.com/docs/", "https://example.com/docs"},
		{"https://example.com/docs?page=2", "https://example.com/docs"},
		{"https://example.com/docs#top", "https://example.com/docs"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parser.NormalizeURLString(tt.input))
		})
	}
}

func TestHasSkippedExtension(t *testing.T) {
	assert.True(t, parser.HasSkippedExtension("https://example.com/report.PDF"))
	assert.True(t, parser.HasSkippedExtension("https://example.com/photo.jpeg?size=2"))
	assert.True(t, parser.HasSkippedExtension("https://example.com/img.png"))
	assert.False(t, parser.HasSkippedExtension("https://example.com/pdf-guide"))
	assert.False(t, parser.HasSkippedExtension("https://example.com/page.html"))
}

func TestPathOf(t *testing.T) {
	for input, want := range map[string]string{
		"https://example.com":           "/",
		"https://example.com/":          "/",
		"https://example.com/a/b":       "/a/b",
		"https://example.com/a%20b?q=1": "/a%20b",
	} {
		u, err := url.Parse(input)
		require.NoError(t, err)
		assert.Equal(t, want, parser.PathOf(u), input)
	}
}

func TestSameOrigin(t *testing.T) {
	a, _ := url.Parse("https://Example.com/a")
	b, _ := url.Parse("https://example.com/b")
	c, _ := url.Parse("http://example.com/b")

	assert.True(t, parser.SameOrigin(a, b))
	assert.False(t, parser.SameOrigin(a, c))
	assert.Equal(t, "https://example.com", parser.Origin(a))
}
