package retrieval

import (
	"fmt"
	"strings"

	"github.com/rhuss/lokal/pkg/debug"
)

// PreviewLength is the number of characters of a document shown in a Source.
const PreviewLength = 200

// NoMatchesAnswer is returned when retrieval finds nothing.
const NoMatchesAnswer = "I couldn't find any relevant information in the knowledge base to answer your question."

// Source describes a retrieved document in an answer.
type Source struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

// Answer is the result of a retrieval-augmented query.
type Answer struct {
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	Confidence float64  `json:"confidence"`
}

// Sources converts matches into answer sources with shortened content.
func Sources(matches []Match) []Source {
	out := make([]Source, len(matches))
	for i, m := range matches {
		out[i] = Source{
			ID:       m.Document.ID,
			Content:  debug.Truncate(m.Document.Content, PreviewLength),
			Metadata: m.Document.Metadata,
			Score:    m.Score,
		}
	}
	return out
}

// Confidence is the mean score of matches, or 0 without matches.
func Confidence(matches []Match) float64 {
	if len(matches) == 0 {
		return 0
	}
	var sum float64
	for _, m := range matches {
		sum += m.Score
	}
	return sum / float64(len(matches))
}

// Summarize builds a templated answer from matches without a generator.
func Summarize(query string, matches []Match) Answer {
	if len(matches) == 0 {
		return Answer{Answer: NoMatchesAnswer, Sources: []Source{}, Confidence: 0}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on %d relevant document(s) in the knowledge base, here is what I found about %q:\n", len(matches), query)
	for i, m := range matches {
		fmt.Fprintf(&b, "\n%d. %s", i+1, debug.Truncate(m.Document.Content, PreviewLength))
	}

	return Answer{
		Answer:     b.String(),
		Sources:    Sources(matches),
		Confidence: Confidence(matches),
	}
}

// ContextPrompt prepends the content of the first n matches to query.
// Without matches the query is returned unchanged.
func ContextPrompt(query string, matches []Match, n int) string {
	if len(matches) == 0 || n <= 0 {
		return query
	}
	if len(matches) > n {
		matches = matches[:n]
	}
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.Document.Content
	}
	return fmt.Sprintf("Context:\n%s\n\nQuery: %s\n\nPlease provide a comprehensive answer based on the context above.",
		strings.Join(parts, "\n"), query)
}
