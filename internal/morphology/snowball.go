package morphology

import (
	"github.com/kljensen/snowball"
)

// SnowballAnalyzer produces normal forms with a snowball stemmer and tags
// closed-class words from a per-language dictionary.
type SnowballAnalyzer struct {
	language  string
	letter    func(rune) bool
	minLength int
	closed    map[string][]PartOfSpeech
}

func NewEnglish() *SnowballAnalyzer {
	return &SnowballAnalyzer{
		language:  "english",
		letter:    IsLatin,
		minLength: 2,
		closed:    englishClosedClass(),
	}
}

func NewRussian() *SnowballAnalyzer {
	return &SnowballAnalyzer{
		language:  "russian",
		letter:    IsCyrillic,
		minLength: 3,
		closed:    russianClosedClass(),
	}
}

// Default returns the analyzers for every supported alphabet.
func Default() []Analyzer {
	return []Analyzer{NewRussian(), NewEnglish()}
}

func (a *SnowballAnalyzer) Language() string { return a.language }

func (a *SnowballAnalyzer) MinLength() int { return a.minLength }

func (a *SnowballAnalyzer) Accepts(word string) bool {
	if word == "" {
		return false
	}
	for _, r := range word {
		if !a.letter(r) {
			return false
		}
	}
	return true
}

func (a *SnowballAnalyzer) Analyze(word string) Analysis {
	tags := a.closed[word]
	if len(tags) == 0 {
		tags = []PartOfSpeech{Content}
	}

	stemmed, err := snowball.Stem(word, a.language, true)
	if err != nil || stemmed == "" {
		return Analysis{Tags: tags}
	}
	return Analysis{Tags: tags, Forms: []string{stemmed}}
}

func IsLatin(r rune) bool {
	return r >= 'a' && r <= 'z'
}

func IsCyrillic(r rune) bool {
	return (r >= 'а' && r <= 'я') || r == 'ё'
}
