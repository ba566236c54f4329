package crawler

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kljensen/snowball/english"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/CityBaseInc/cityscrape/internal/model"
)

// DefaultOmitWords are site words too common to be informative.
var DefaultOmitWords = []string{"chicago", "city", "department", "spec", "council", "please"}

var wordRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// DefaultStopwords returns the English stopword set.
func DefaultStopwords() map[string]struct{} {
	ws := []string{
		"a", "an", "the", "and", "or", "but",
		"to", "in", "of", "on", "for", "with", "as", "at", "by", "from",
		"is", "are", "was", "were", "be", "been", "being", "am",
		"this", "that", "these", "those", "it", "its", "itself",
		"i", "me", "my", "myself", "we", "our", "ours", "ourselves",
		"you", "your", "yours", "yourself", "yourselves",
		"he", "him", "his", "himself", "she", "her", "hers", "herself",
		"they", "them", "their", "theirs", "themselves",
		"what", "which", "who", "whom", "why", "how",
		"do", "does", "did", "doing",
		"have", "has", "had", "having",
		"not", "no", "nor", "only", "very", "too", "just", "now",
		"can", "could", "should", "would", "may", "might", "must", "will",
		"if", "then", "else", "than", "so", "because", "while", "when", "where",
		"about", "above", "below", "under", "over", "into", "out", "up", "down",
		"again", "further", "once", "here", "there", "through", "during",
		"before", "after", "between", "against", "off",
		"all", "any", "both", "each", "few", "more", "most", "other", "some",
		"such", "own", "same", "s", "t", "don",
	}
	m := make(map[string]struct{}, len(ws))
	for _, w := range ws {
		m[w] = struct{}{}
	}
	return m
}

// WordFilter turns page text into the body word sequence.
type WordFilter struct {
	stop map[string]struct{}
	omit map[string]struct{}
	stem bool
}

// NewWordFilter builds a filter. A nil omit list means DefaultOmitWords.
func NewWordFilter(omit []string, stem bool) *WordFilter {
	if omit == nil {
		omit = DefaultOmitWords
	}
	om := make(map[string]struct{}, len(omit))
	for _, w := range omit {
		om[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return &WordFilter{stop: DefaultStopwords(), omit: om, stem: stem}
}

// Words lowercases text, splits it into letter and digit runs and drops
// stopwords, omitted words and tokens that do not start with a letter.
// It returns []string{model.NoTextFound} when nothing is left.
func (w *WordFilter) Words(text string) []string {
	lower := cases.Lower(language.English).String(text)

	out := make([]string, 0)
	for _, tok := range wordRegex.FindAllString(lower, -1) {
		r, _ := utf8.DecodeRuneInString(tok)
		if !unicode.IsLetter(r) {
			continue
		}
		if _, ok := w.stop[tok]; ok {
			continue
		}
		if _, ok := w.omit[tok]; ok {
			continue
		}
		if w.stem {
			if tok = english.Stem(tok, true); tok == "" {
				continue
			}
		}
		out = append(out, tok)
	}

	if len(out) == 0 {
		return []string{model.NoTextFound}
	}
	return out
}

// TopWords counts body words across pages and returns the n most frequent,
// ties broken alphabetically. n <= 0 returns all words.
func TopWords(pages []model.PageRecord, n int) []model.WordCount {
	counts := make(map[string]int)
	for i := range pages {
		if !pages[i].HasText() {
			continue
		}
		for _, word := range pages[i].BodyWords {
			counts[word]++
		}
	}

	out := make([]model.WordCount, 0, len(counts))
	for word, c := range counts {
		out = append(out, model.WordCount{Word: word, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})

	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
