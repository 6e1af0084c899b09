package pipeline

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_Counts(t *testing.T) {
	c := NewChunker()
	tests := []struct {
		name   string
		length int
		want   int
	}{
		{"shorter than a window", 100, 1},
		{"exactly one window", 2048, 1},
		{"one past a window", 2049, 2},
		{"several windows", 5000, 3},
		{"many windows", 20000, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := c.Split(strings.Repeat("a", tt.length))
			assert.Len(t, chunks, tt.want)
		})
	}
}

func TestChunker_LengthAndOverlap(t *testing.T) {
	var b strings.Builder
	for i := 0; b.Len() < 9000; i++ {
		b.WriteString("cláusula ")
		b.WriteByte(byte('0' + i%10))
		b.WriteString(". ")
	}
	text := b.String()
	chunks := NewChunker().Split(text)
	require.Greater(t, len(chunks), 2)

	for i, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), DefaultChunkSize)
		if i+1 < len(chunks) {
			cur := []rune(chunk)
			next := []rune(chunks[i+1])
			assert.Equal(t, string(cur[len(cur)-DefaultChunkOverlap:]), string(next[:DefaultChunkOverlap]),
				"chunk %d must share its tail with the head of chunk %d", i, i+1)
		}
	}

	runes := []rune(text)
	last := []rune(chunks[len(chunks)-1])
	assert.Equal(t, string(runes[len(runes)-len(last):]), string(last), "last chunk ends at the text end")
}

func TestChunker_BlankText(t *testing.T) {
	c := NewChunker()
	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split(" \n\t "))
}

func TestChunker_Options(t *testing.T) {
	c := NewChunker(WithChunkSize(4), WithOverlap(1))
	assert.Equal(t, []string{"abcd", "defg", "ghij"}, c.Split("abcdefghij"))

	// overlap not smaller than the window falls back to a quarter of it
	c = NewChunker(WithChunkSize(8), WithOverlap(8))
	assert.Equal(t, 2, c.overlap)
}
