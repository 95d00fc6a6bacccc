package query

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Intent is the classified purpose of a question.
type Intent string

const (
	IntentSearch    Intent = "search"
	IntentRecommend Intent = "recommend"
	IntentDescribe  Intent = "describe"
	IntentTopRated  Intent = "top_rated"
)

// intentTriggers is checked in order; the first category with a matching phrase wins.
var intentTriggers = []struct {
	intent  Intent
	phrases []string
}{
	{IntentRecommend, []string{"recommend", "suggest", "what should i watch"}},
	{IntentDescribe, []string{"about", "plot", "synopsis", "tell me about"}},
	{IntentTopRated, []string{"best", "top", "highest rated"}},
}

// genres is matched by substring in this order, so "sci-fi" only wins when no earlier genre does.
var genres = []string{
	"action", "adventure", "animation", "comedy", "crime",
	"documentary", "drama", "family", "fantasy", "history",
	"horror", "music", "mystery", "romance", "science fiction",
	"sci-fi", "thriller", "war", "western",
}

const (
	sciFiAlias     = "sci-fi"
	sciFiCanonical = "science fiction"
)

var stopWords = []string{
	"recommend", "about", "find", "show", "me", "tell", "what", "is",
	"best", "top", "movies", "films", "movie", "film", "the", "a", "an",
	"from", "in", "of", "and", "or",
}

var (
	stopWordSet = func() map[string]bool {
		set := make(map[string]bool, len(stopWords))
		for _, w := range stopWords {
			set[w] = true
		}
		return set
	}()
	yearPattern = regexp.MustCompile(`^(?:19|20)\d{2}$`)
)

// ParsedQuery holds the structured filters derived from a question.
type ParsedQuery struct {
	Intent   Intent  `json:"intent"`
	Genre    *string `json:"genre"`
	Year     *int    `json:"year"`
	Keywords *string `json:"keywords"`
}

// Parse classifies a question and extracts its genre, year and title keywords.
// Matching is first-hit with no backtracking: a number or genre word inside a title
// is taken as a filter.
func Parse(question string) ParsedQuery {
	q := strings.ToLower(strings.TrimSpace(question))

	parsed := ParsedQuery{Intent: classify(q)}

	for _, g := range genres {
		if strings.Contains(q, g) {
			genre := g
			if g == sciFiAlias {
				genre = sciFiCanonical
			}
			parsed.Genre = &genre
			break
		}
	}

	words := wordSpans(q)
	for _, w := range words {
		if match := q[w[0]:w[1]]; yearPattern.MatchString(match) {
			year, _ := strconv.Atoi(match)
			parsed.Year = &year
			break
		}
	}

	keywords := removeStopWords(q, words)
	if parsed.Genre != nil {
		keywords = strings.ReplaceAll(keywords, *parsed.Genre, "")
		keywords = strings.ReplaceAll(keywords, sciFiAlias, "")
	}
	if parsed.Year != nil {
		keywords = strings.ReplaceAll(keywords, strconv.Itoa(*parsed.Year), "")
	}
	keywords = strings.Join(strings.Fields(keywords), " ")
	if utf8.RuneCountInString(keywords) > 2 {
		parsed.Keywords = &keywords
	}

	return parsed
}

// wordSpans returns the byte ranges of maximal runs of letters, digits and underscores.
// A whole-word match is a run equal to the word, so non-ASCII letters count as word characters.
func wordSpans(s string) [][2]int {
	var spans [][2]int
	start := -1
	for i, r := range s {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			spans = append(spans, [2]int{start, i})
			start = -1
		}
	}
	if start >= 0 {
		spans = append(spans, [2]int{start, len(s)})
	}
	return spans
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func removeStopWords(s string, words [][2]int) string {
	var b strings.Builder
	last := 0
	for _, w := range words {
		if stopWordSet[s[w[0]:w[1]]] {
			b.WriteString(s[last:w[0]])
			last = w[1]
		}
	}
	b.WriteString(s[last:])
	return b.String()
}

func classify(q string) Intent {
	for _, trigger := range intentTriggers {
		for _, phrase := range trigger.phrases {
			if strings.Contains(q, phrase) {
				return trigger.intent
			}
		}
	}
	return IntentSearch
}
