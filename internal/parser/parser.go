package parser

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	xhtml "golang.org/x/net/html"
)

// MinContentLength is the amount of visible text below which a page is
// considered a script shell worth rendering in a browser.
const MinContentLength = 100

var (
	linkSelector = cascadia.MustCompile("a[href]")
	titleRe      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
)

type Document struct {
	URL   string
	Title string
	// Text is the visible text with whitespace collapsed.
	Text string
	// Links are absolute, in document order, exactly as resolved against
	// URL. Filtering is left to the caller.
	Links []string
}

type Parser struct{}

func New() *Parser {
	return &Parser{}
}

func (p *Parser) ParseHTML(htmlContent string, baseURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", baseURL, err)
	}

	return &Document{
		URL:   baseURL,
		Title: ExtractTitle(htmlContent),
		Text:  visibleText(doc.Nodes),
		Links: p.extractLinks(doc, baseURL),
	}, nil
}

func (d *Document) HasSufficientContent() bool {
	return len(strings.TrimSpace(d.Text)) >= MinContentLength
}

func (p *Parser) extractLinks(doc *goquery.Document, baseURL string) []string {
	var links []string

	doc.FindMatcher(linkSelector).Each(func(i int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists {
			return
		}

		absoluteURL := ResolveURL(baseURL, strings.TrimSpace(href))
		if absoluteURL == "" {
			return
		}
		links = append(links, absoluteURL)
	})

	return links
}

// ExtractTitle returns the text between the first <title> and </title>,
// entity-decoded and trimmed.
func ExtractTitle(htmlContent string) string {
	m := titleRe.FindStringSubmatch(htmlContent)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(m[1]))
}

// VisibleText returns the text a reader would see: no scripts, styles or
// markup, whitespace collapsed.
func VisibleText(htmlContent string) string {
	root, err := xhtml.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}
	return visibleText([]*xhtml.Node{root})
}

func visibleText(nodes []*xhtml.Node) string {
	var sb strings.Builder

	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template", "head":
				return
			}
		}
		if n.Type == xhtml.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}

	return strings.Join(strings.Fields(sb.String()), " ")
}
