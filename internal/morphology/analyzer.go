package morphology

// PartOfSpeech is a coarse grammatical category attached to a word form.
type PartOfSpeech string

const (
	Content      PartOfSpeech = "CONTENT"
	Article      PartOfSpeech = "ART"
	Conjunction  PartOfSpeech = "CONJ"
	Preposition  PartOfSpeech = "PREP"
	Particle     PartOfSpeech = "PART"
	Interjection PartOfSpeech = "INTJ"
)

// FunctionWords is the default set of categories that carry no search value.
var FunctionWords = []PartOfSpeech{Article, Conjunction, Preposition, Particle, Interjection}

// ParsePartOfSpeech maps a configuration name such as "conjunction" or
// "CONJ" onto a category.
func ParsePartOfSpeech(name string) (PartOfSpeech, bool) {
	switch name {
	case "article", "ART":
		return Article, true
	case "conjunction", "CONJ":
		return Conjunction, true
	case "preposition", "PREP":
		return Preposition, true
	case "particle", "PART":
		return Particle, true
	case "interjection", "INTJ":
		return Interjection, true
	case "content", "CONTENT":
		return Content, true
	}
	return "", false
}

// Analysis is the morphological reading of a single lowercase word.
type Analysis struct {
	Tags  []PartOfSpeech
	Forms []string
}

// Analyzer classifies and normalizes words of one alphabet.
// Implementations must be safe for concurrent use.
type Analyzer interface {
	Language() string
	// Accepts reports whether every rune of word belongs to the analyzer's alphabet.
	Accepts(word string) bool
	// MinLength is the shortest token, in runes, worth analyzing.
	MinLength() int
	Analyze(word string) Analysis
}
