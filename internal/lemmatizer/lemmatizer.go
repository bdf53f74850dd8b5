package lemmatizer

import (
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/deidaraiorek/lemmasearch/internal/morphology"
)

var (
	scriptRe   = regexp.MustCompile(`(?is)<script\b.*?</script\s*>|<style\b.*?</style\s*>`)
	tagRe      = regexp.MustCompile(`<[^>]*>`)
	nonAlphaRe = regexp.MustCompile(`[^a-zа-яё]+`)
)

// Lemmatizer turns text into lemma occurrence counts. It holds no mutable
// state, so one value can serve any number of goroutines.
type Lemmatizer struct {
	analyzers []morphology.Analyzer
	excluded  map[morphology.PartOfSpeech]bool
}

type Option func(*Lemmatizer)

// WithExcluded replaces the set of categories whose words are dropped.
func WithExcluded(tags ...morphology.PartOfSpeech) Option {
	return func(l *Lemmatizer) {
		l.excluded = make(map[morphology.PartOfSpeech]bool, len(tags))
		for _, tag := range tags {
			l.excluded[tag] = true
		}
	}
}

func New(analyzers []morphology.Analyzer, opts ...Option) *Lemmatizer {
	l := &Lemmatizer{analyzers: analyzers}
	WithExcluded(morphology.FunctionWords...)(l)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lemmatize returns lemma -> number of occurrences in text. HTML markup
// and script bodies are ignored.
func (l *Lemmatizer) Lemmatize(text string) map[string]int {
	counts := make(map[string]int)

	for _, token := range Tokenize(text) {
		lemma, ok := l.Lemma(token)
		if !ok {
			continue
		}
		counts[lemma]++
	}
	return counts
}

// Lemmas returns the distinct lemmas of text in sorted order.
func (l *Lemmatizer) Lemmas(text string) []string {
	counts := l.Lemmatize(text)
	lemmas := make([]string, 0, len(counts))
	for lemma := range counts {
		lemmas = append(lemmas, lemma)
	}
	sort.Strings(lemmas)
	return lemmas
}

// Lemma returns the normal form of a single cleaned token, or false when
// the token is too short, a function word or unknown to every analyzer.
func (l *Lemmatizer) Lemma(token string) (string, bool) {
	analyzer := l.route(token)
	if analyzer == nil {
		return "", false
	}
	if utf8.RuneCountInString(token) < analyzer.MinLength() {
		return "", false
	}

	analysis := analyzer.Analyze(token)
	for _, tag := range analysis.Tags {
		if l.excluded[tag] {
			return "", false
		}
	}
	if len(analysis.Forms) == 0 {
		return "", false
	}
	return analysis.Forms[0], true
}

func (l *Lemmatizer) route(token string) morphology.Analyzer {
	for _, analyzer := range l.analyzers {
		if analyzer.Accepts(token) {
			return analyzer
		}
	}
	return nil
}

// StripHTML removes script and style blocks and every remaining tag, and
// decodes entities. Case and punctuation are preserved.
func StripHTML(text string) string {
	text = scriptRe.ReplaceAllString(text, " ")
	text = tagRe.ReplaceAllString(text, " ")
	return html.UnescapeString(text)
}

// CleanText reduces text to lowercase letters of the supported alphabets
// separated by single spaces.
func CleanText(text string) string {
	text = strings.ToLower(StripHTML(text))
	text = nonAlphaRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func Tokenize(text string) []string {
	return strings.Fields(CleanText(text))
}
