package search

import (
	"slices"
	"strings"

	"github.com/deidaraiorek/lemmasearch/internal/lemmatizer"
	"github.com/deidaraiorek/lemmasearch/internal/parser"
)

const (
	snippetWindow  = 200
	clusterGap     = 50
	fallbackLength = 150
	ellipsis       = "..."
)

// span is a match in the cleaned text as rune offsets [start, end).
type span struct {
	start, end int
}

// Snippet picks the 200-character window of the page's cleaned text that
// holds the densest run of literal query word occurrences (neighbours at
// most 50 characters apart) and wraps every occurrence inside it in
// <b></b>. A page where no query word occurs verbatim gets the first 150
// characters of its visible text.
func (e *Engine) Snippet(content string, queryWords []string) string {
	text := []rune(lemmatizer.CleanText(content))

	hits := occurrences(text, queryWords)
	if len(hits) == 0 {
		return fallbackSnippet(content)
	}

	first, last := densestCluster(hits)
	start, end := window(text, hits[first].start, hits[last].end)

	var sb strings.Builder
	if start > 0 {
		sb.WriteString(ellipsis)
	}
	pos := start
	for _, h := range hits {
		if h.start < start || h.end > end {
			continue
		}
		sb.WriteString(string(text[pos:h.start]))
		sb.WriteString("<b>")
		sb.WriteString(string(text[h.start:h.end]))
		sb.WriteString("</b>")
		pos = h.end
	}
	sb.WriteString(string(text[pos:end]))
	if end < len(text) {
		sb.WriteString(ellipsis)
	}
	return sb.String()
}

// occurrences returns every literal occurrence of the words in text,
// ordered by position. Overlapping matches keep the earliest, longest one.
func occurrences(text []rune, words []string) []span {
	var found []span
	for _, w := range words {
		needle := []rune(w)
		if len(needle) == 0 {
			continue
		}
		for i := 0; i+len(needle) <= len(text); i++ {
			if slices.Equal(text[i:i+len(needle)], needle) {
				found = append(found, span{i, i + len(needle)})
			}
		}
	}

	slices.SortFunc(found, func(a, b span) int {
		if a.start != b.start {
			return a.start - b.start
		}
		return b.end - a.end
	})

	hits := found[:0]
	for _, h := range found {
		if len(hits) > 0 && h.start < hits[len(hits)-1].end {
			continue
		}
		hits = append(hits, h)
	}
	return hits
}

// densestCluster returns the indexes of the first and last hit of the
// longest run of hits separated by at most clusterGap characters. The
// earliest run wins ties.
func densestCluster(hits []span) (int, int) {
	bestFirst, bestLast, bestCount := 0, 0, 0

	for i := 0; i < len(hits); {
		j := i
		for j+1 < len(hits) && hits[j+1].start-hits[j].end <= clusterGap {
			j++
		}
		if count := j - i + 1; count > bestCount {
			bestFirst, bestLast, bestCount = i, j, count
		}
		i = j + 1
	}
	return bestFirst, bestLast
}

// window centres a snippetWindow-long range on [from, to) and shrinks it
// to whole words.
func window(text []rune, from, to int) (int, int) {
	start := (from+to)/2 - snippetWindow/2
	if start < 0 {
		start = 0
	}
	end := start + snippetWindow
	if end > len(text) {
		end = len(text)
		start = max(0, end-snippetWindow)
	}

	// The cluster may be wider than the window; keep its first word.
	if from < start {
		start = from
		end = min(len(text), start+snippetWindow)
	}

	for start > 0 && start < end && text[start-1] != ' ' {
		start++
	}
	for end < len(text) && end > start && text[end] != ' ' {
		end--
	}
	for start < end && text[start] == ' ' {
		start++
	}
	for end > start && text[end-1] == ' ' {
		end--
	}
	return start, end
}

func fallbackSnippet(content string) string {
	text := []rune(parser.VisibleText(content))
	if len(text) <= fallbackLength {
		return string(text)
	}
	return string(text[:fallbackLength]) + ellipsis
}
