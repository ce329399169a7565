package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentenceChunker_Sentences(t *testing.T) {
	c := NewSentenceChunker(5, 0)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"terminators", "One. Two! Three?", []string{"One.", "Two!", "Three?"}},
		{"trailing text", "One. Two", []string{"One.", "Two"}},
		{"ellipsis", "Wait... what?", []string{"Wait...", "what?"}},
		{"newlines", "First line.\nSecond line.\n", []string{"First line.", "Second line."}},
		{"blank", "  \n\t", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Sentences(tt.text))
		})
	}
}

func TestSentenceChunker_Chunk(t *testing.T) {
	text := "One. Two. Three. Four. Five."

	tests := []struct {
		name     string
		per      int
		overlap  int
		expected []string
	}{
		{"no overlap", 2, 0, []string{"One. Two.", "Three. Four.", "Five."}},
		{"overlap", 2, 1, []string{"One. Two.", "Two. Three.", "Three. Four.", "Four. Five."}},
		{"single chunk", 10, 0, []string{"One. Two. Three. Four. Five."}},
		{"overlap clamped", 2, 5, []string{"One. Two.", "Two. Three.", "Three. Four.", "Four. Five."}},
		{"default size", 0, 0, []string{"One. Two. Three. Four. Five."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NewSentenceChunker(tt.per, tt.overlap).Chunk(text))
		})
	}

	assert.Nil(t, NewSentenceChunker(2, 0).Chunk(""))
}
