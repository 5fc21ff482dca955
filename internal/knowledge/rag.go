package knowledge

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/claritymed/regassist/internal/embeddings"
	"github.com/claritymed/regassist/internal/extraction"
	"github.com/claritymed/regassist/internal/metrics"
	"github.com/claritymed/regassist/internal/models"
	"github.com/claritymed/regassist/internal/synthesis"
)

// ChainConfig configures one domain's RAG chain.
type ChainConfig struct {
	Domain     string
	CorpusDir  string
	TopK       int
	LLMBaseURL string
	LLMModel   string
	APIKey     string
	EmbedModel string
}

// RAGChain retrieves guidance passages from an embedded chromem store and
// asks the LLM to answer with them.
type RAGChain struct {
	cfg      ChainConfig
	col      *chromem.Collection
	embedder *embeddings.Service
	llm      *llmClient
	logger   *zap.Logger
	docCount int
}

// NewRAGChainBuilder returns a BuildFunc for Manager registration.
func NewRAGChainBuilder(cfg ChainConfig, embedder *embeddings.Service, logger *zap.Logger) BuildFunc {
	return func(ctx context.Context) (Chain, error) {
		return buildRAGChain(ctx, cfg, embedder, logger)
	}
}

func buildRAGChain(ctx context.Context, cfg ChainConfig, embedder *embeddings.Service, logger *zap.Logger) (*RAGChain, error) {
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}

	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(cfg.Domain, nil, func(ctx context.Context, text string) ([]float32, error) {
		return embedder.GenerateEmbedding(ctx, text, cfg.EmbedModel)
	})
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", cfg.Domain, err)
	}

	chain := &RAGChain{
		cfg:      cfg,
		col:      col,
		embedder: embedder,
		llm:      newLLMClient(cfg.LLMBaseURL, cfg.LLMModel, cfg.APIKey, 0, logger),
		logger:   logger,
	}

	if err := chain.indexCorpus(ctx); err != nil {
		return nil, err
	}
	if chain.docCount == 0 {
		return nil, fmt.Errorf("no indexable documents in %s", cfg.CorpusDir)
	}
	return chain, nil
}

// indexCorpus loads, chunks, embeds, and stores every document under the
// corpus directory.
func (c *RAGChain) indexCorpus(ctx context.Context) error {
	chunker := embeddings.NewChunker(c.embedder.Config().Chunking)

	return filepath.WalkDir(c.cfg.CorpusDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			c.logger.Warn("Skipping unreadable corpus file", zap.String("path", path), zap.Error(err))
			return nil
		}

		name := d.Name()
		result := extraction.ExtractText(content, name)
		if !result.Success {
			metrics.DocumentsParsed.WithLabelValues(strings.TrimPrefix(filepath.Ext(name), "."), "error").Inc()
			c.logger.Warn("Skipping unparseable corpus file", zap.String("path", path), zap.String("error", result.Error))
			return nil
		}
		metrics.DocumentsParsed.WithLabelValues(strings.TrimPrefix(filepath.Ext(name), "."), "ok").Inc()

		for _, pg := range splitPages(result.Text) {
			texts := []string{pg.text}
			if chunks := chunker.ChunkText(pg.text); chunks != nil {
				texts = texts[:0]
				for _, ch := range chunks {
					texts = append(texts, ch.Text)
				}
			}

			vectors, err := c.embedder.GenerateBatchEmbeddings(ctx, texts, c.cfg.EmbedModel)
			if err != nil {
				return fmt.Errorf("embed %s page %s: %w", name, pg.page, err)
			}

			docs := make([]chromem.Document, 0, len(texts))
			for i, text := range texts {
				docs = append(docs, chromem.Document{
					ID:        fmt.Sprintf("%s#%s.%d", name, pg.page, i),
					Content:   text,
					Embedding: vectors[i],
					Metadata: map[string]string{
						"document": name,
						"page":     pg.page,
					},
				})
			}
			if err := c.col.AddDocuments(ctx, docs, 1); err != nil {
				return fmt.Errorf("index %s page %s: %w", name, pg.page, err)
			}
			c.docCount += len(docs)
		}
		return nil
	})
}

// Query embeds the question, retrieves the closest passages, and asks the
// LLM to answer from them.
func (c *RAGChain) Query(ctx context.Context, question string) (Answer, error) {
	start := time.Now()
	defer func() {
		metrics.ChainQueryDuration.WithLabelValues(c.cfg.Domain).Observe(float64(time.Since(start).Milliseconds()))
	}()

	vec, err := c.embedder.GenerateEmbedding(ctx, question, c.cfg.EmbedModel)
	if err != nil {
		return Answer{}, fmt.Errorf("embed question: %w", err)
	}

	topK := c.cfg.TopK
	if count := c.col.Count(); count < topK {
		topK = count
	}
	results, err := c.col.QueryEmbedding(ctx, vec, topK, nil, nil)
	if err != nil {
		return Answer{}, fmt.Errorf("query %s collection: %w", c.cfg.Domain, err)
	}

	var contextSb strings.Builder
	var citations []models.Citation
	for _, r := range results {
		doc := r.Metadata["document"]
		page := r.Metadata["page"]
		fmt.Fprintf(&contextSb, "[%s, page %s]\n%s\n\n", doc, page, r.Content)
		citations = append(citations, models.Citation{Document: doc, Page: page})
	}

	system := fmt.Sprintf(
		"You are an FDA %s specialist. Answer the question using ONLY the provided guidance excerpts. Be specific and cite requirements precisely. If the excerpts do not cover the question, say so.",
		c.cfg.Domain,
	)
	user := fmt.Sprintf("Guidance excerpts:\n\n%sQuestion: %s", contextSb.String(), question)

	text, err := c.llm.Chat(ctx, system, user)
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	return Answer{
		Text:    text,
		Sources: synthesis.DedupeCitations(citations),
	}, nil
}

type pageText struct {
	page string
	text string
}

var pageMarker = regexp.MustCompile(`--- Page (\d+)(?: \(extraction failed[^)]*\))? ---`)

// splitPages splits extracted text on page markers, defaulting to a single
// page when none exist.
func splitPages(text string) []pageText {
	locs := pageMarker.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []pageText{{page: "1", text: text}}
	}

	var pages []pageText
	for i, loc := range locs {
		pageNum := text[loc[2]:loc[3]]
		start := loc[1]
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := strings.TrimSpace(text[start:end])
		if body == "" {
			continue
		}
		pages = append(pages, pageText{page: pageNum, text: body})
	}

	// text before the first marker belongs to page 1
	if lead := strings.TrimSpace(text[:locs[0][0]]); lead != "" {
		pages = append([]pageText{{page: "1", text: lead}}, pages...)
	}
	return pages
}
