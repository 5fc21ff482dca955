package embeddings

import (
	"strings"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
)

// ChunkingConfig controls corpus chunking behavior.
type ChunkingConfig struct {
	Enabled       bool   `yaml:"Enabled"`
	MaxTokens     int    `yaml:"MaxTokens"`
	OverlapTokens int    `yaml:"OverlapTokens"`
	TokenizerMode string `yaml:"TokenizerMode"` // "simple" | "tiktoken"
}

// DefaultChunkingConfig returns sensible defaults.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		Enabled:       true,
		MaxTokens:     700,
		OverlapTokens: 50,
		TokenizerMode: "tiktoken",
	}
}

// Chunk is one piece of a split document.
type Chunk struct {
	DocID      string // shared UUID across all chunks of one document
	Text       string // the chunk text
	Index      int    // 0-based chunk position
	TotalCount int    // total number of chunks
}

// Chunker splits long texts into overlapping chunks.
type Chunker struct {
	maxTokens     int
	overlapTokens int
	encoding      *tiktoken.Tiktoken
}

// NewChunker creates a chunker. In tiktoken mode the cl100k_base encoding
// counts real model tokens; if the encoding cannot be loaded the chunker
// falls back to word-based splitting.
func NewChunker(config ChunkingConfig) *Chunker {
	if config.MaxTokens <= 0 {
		config.MaxTokens = 700
	}
	if config.OverlapTokens <= 0 {
		config.OverlapTokens = 50
	}

	c := &Chunker{
		maxTokens:     config.MaxTokens,
		overlapTokens: config.OverlapTokens,
	}
	if config.TokenizerMode == "tiktoken" {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			c.encoding = enc
		}
	}
	return c
}

// ChunkText splits text into overlapping chunks. Returns nil if the text
// already fits within maxTokens.
func (c *Chunker) ChunkText(text string) []Chunk {
	if c.encoding != nil {
		return c.chunkByTokens(text)
	}
	return c.chunkByWords(text)
}

// CountTokens returns the token count for text.
func (c *Chunker) CountTokens(text string) int {
	if c.encoding != nil {
		return len(c.encoding.Encode(text, nil, nil))
	}
	// ~1.3 tokens per word for English text
	return len(strings.Fields(text)) * 13 / 10
}

func (c *Chunker) chunkByTokens(text string) []Chunk {
	tokens := c.encoding.Encode(text, nil, nil)
	if len(tokens) <= c.maxTokens {
		return nil
	}

	docID := uuid.New().String()
	var chunks []Chunk
	step := c.step()

	for i := 0; i < len(tokens); i += step {
		end := i + c.maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, Chunk{
			DocID: docID,
			Text:  c.encoding.Decode(tokens[i:end]),
			Index: len(chunks),
		})
		if end == len(tokens) {
			break
		}
	}
	return finalize(chunks)
}

func (c *Chunker) chunkByWords(text string) []Chunk {
	words := strings.Fields(text)
	if len(words) <= c.maxTokens {
		return nil
	}

	docID := uuid.New().String()
	var chunks []Chunk
	step := c.step()

	for i := 0; i < len(words); i += step {
		end := i + c.maxTokens
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, Chunk{
			DocID: docID,
			Text:  strings.Join(words[i:end], " "),
			Index: len(chunks),
		})
		if end == len(words) {
			break
		}
	}
	return finalize(chunks)
}

func (c *Chunker) step() int {
	step := c.maxTokens - c.overlapTokens
	if step <= 0 {
		step = c.maxTokens / 2
	}
	// the window must always advance
	if step < 1 {
		step = 1
	}
	return step
}

func finalize(chunks []Chunk) []Chunk {
	for i := range chunks {
		chunks[i].TotalCount = len(chunks)
	}
	return chunks
}
