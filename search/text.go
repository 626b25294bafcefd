package search

import "strings"

// Words too common to signal a verbatim match.
var stopWords = newWordSet(
	"the", "a", "an", "be", "is", "are", "was", "to", "of", "and", "in",
	"that", "have", "it", "for", "not", "on", "with", "as", "you", "do",
	"at", "this", "but", "by", "from",
)

func newWordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[word] = struct{}{}
	}
	return set
}

// significantWords lowercases text, trims surrounding punctuation and
// drops stop words.
func significantWords(text string) []string {
	var words []string
	for _, field := range strings.Fields(text) {
		word := strings.ToLower(strings.Trim(field, ".,!?;:'\"-()[]{}"))
		if word == "" {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		words = append(words, word)
	}
	return words
}

// containsAllQueryWords reports whether every significant query word
// occurs in the chunk text. A query made entirely of stop words matches
// nothing.
func containsAllQueryWords(document, query string) bool {
	queryWords := significantWords(query)
	if len(queryWords) == 0 {
		return false
	}

	present := newWordSet(significantWords(document)...)
	for _, word := range queryWords {
		if _, ok := present[word]; !ok {
			return false
		}
	}
	return true
}
