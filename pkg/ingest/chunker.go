package ingest

import (
	"regexp"
	"strings"
)

// SentenceChunker splits text into chunks of whole sentences. Consecutive
// chunks share Overlap sentences.
type SentenceChunker struct {
	sentencesPerChunk int
	overlap           int
	splitter          *regexp.Regexp
}

// NewSentenceChunker creates a chunker. A non-positive sentencesPerChunk
// selects 5; overlap is clamped to [0, sentencesPerChunk-1].
func NewSentenceChunker(sentencesPerChunk, overlap int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= sentencesPerChunk {
		overlap = sentencesPerChunk - 1
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlap:           overlap,
		splitter:          regexp.MustCompile(`[^.!?]+[.!?]+`),
	}
}

// Sentences splits text at sentence terminators. Trailing text without a
// terminator forms a final sentence.
func (c *SentenceChunker) Sentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range c.splitter.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[loc[0]:loc[1]]); s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if tail := strings.TrimSpace(text[last:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

// Chunk returns the chunks of text, or nil for blank text.
func (c *SentenceChunker) Chunk(text string) []string {
	sentences := c.Sentences(text)
	var chunks []string
	for i := 0; i < len(sentences); {
		end := min(i+c.sentencesPerChunk, len(sentences))
		chunks = append(chunks, strings.Join(sentences[i:end], " "))
		if end == len(sentences) {
			break
		}
		i = end - c.overlap
	}
	return chunks
}
