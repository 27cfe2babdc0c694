// services/citation_index_service.go
package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/AI-Template-SDK/senso-insights/internal/config"
	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"
	"github.com/typesense/typesense-go/v2/typesense"
	typesenseapi "github.com/typesense/typesense-go/v2/typesense/api"
)

const (
	// ~4 chars per token keeps a chunk well under the embedding model's input limit
	maxChunkChars  = 8000
	embeddingModel = openai.EmbeddingModelTextEmbedding3Small
	embeddingSize  = 1536
)

var chunkHeadingRe = regexp.MustCompile(`(?m)^(#{1,3}\s.*)$`)

// citationIndexService stores analysed citation pages as heading chunks: vectors in Qdrant,
// full text in Typesense. Chunk ids derive from the citation id so re-indexing overwrites.
type citationIndexService struct {
	embeddings *openai.Client
	qdrant     *qdrant.Client
	typesense  *typesense.Client
	vectors    string
	documents  string
	logger     zerolog.Logger
}

// NewCitationIndexService returns nil when neither search backend is available
func NewCitationIndexService(cfg *config.Config, qdrantClient *qdrant.Client, typesenseClient *typesense.Client, logger zerolog.Logger) CitationIndexer {
	if qdrantClient == nil && typesenseClient == nil {
		return nil
	}
	s := &citationIndexService{
		typesense: typesenseClient,
		vectors:   cfg.Qdrant.Collection,
		documents: cfg.Typesense.Collection,
		logger:    logger.With().Str("component", "citation_index").Logger(),
	}
	if qdrantClient != nil && cfg.OpenAIAPIKey != "" {
		client := openai.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey))
		s.embeddings = &client
		s.qdrant = qdrantClient
	} else if qdrantClient != nil {
		s.logger.Warn().Msg("OPENAI_API_KEY not set, vector indexing disabled")
	}
	return s
}

// EnsureCitationIndexes creates the search collections, ignoring ones that already exist
func EnsureCitationIndexes(ctx context.Context, cfg *config.Config, qdrantClient *qdrant.Client, typesenseClient *typesense.Client) error {
	if qdrantClient != nil {
		err := qdrantClient.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: cfg.Qdrant.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     embeddingSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create qdrant collection %s: %w", cfg.Qdrant.Collection, err)
		}
	}

	if typesenseClient != nil {
		facet := true
		sort := true
		defaultSortField := "analyzed_at"
		schema := &typesenseapi.CollectionSchema{
			Name: cfg.Typesense.Collection,
			Fields: []typesenseapi.Field{
				{Name: "content", Type: "string"},
				{Name: "citation_id", Type: "string", Facet: &facet},
				{Name: "url", Type: "string", Facet: &facet},
				{Name: "company_name", Type: "string", Facet: &facet},
				{Name: "chunk_index", Type: "int32"},
				{Name: "keyword_usage", Type: "float"},
				{Name: "readability", Type: "float"},
				{Name: "analyzed_at", Type: "int64", Sort: &sort},
			},
			DefaultSortingField: &defaultSortField,
		}
		_, err := typesenseClient.Collections().Create(ctx, schema)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create typesense collection %s: %w", cfg.Typesense.Collection, err)
		}
	}
	return nil
}

func (s *citationIndexService) IndexCitation(ctx context.Context, doc CitationDocument) error {
	chunks := chunkMarkdown(doc.Markdown)
	if len(chunks) == 0 {
		return nil
	}
	ids := make([]string, len(chunks))
	for i := range chunks {
		ids[i] = uuid.NewSHA1(doc.CitationID, []byte(fmt.Sprintf("chunk-%d", i))).String()
	}

	if s.qdrant != nil {
		if err := s.indexVectors(ctx, doc, chunks, ids); err != nil {
			return err
		}
	}
	if s.typesense != nil {
		if err := s.indexDocuments(ctx, doc, chunks, ids); err != nil {
			return err
		}
	}
	s.logger.Debug().Str("citation_id", doc.CitationID.String()).Int("chunks", len(chunks)).Msg("indexed citation content")
	return nil
}

func (s *citationIndexService) indexVectors(ctx context.Context, doc CitationDocument, chunks, ids []string) error {
	resp, err := s.embeddings.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: chunks},
		Model: embeddingModel,
	})
	if err != nil {
		return fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(resp.Data) != len(chunks) {
		return fmt.Errorf("expected %d embeddings, got %d", len(chunks), len(resp.Data))
	}

	// Drop chunks of an earlier, longer version of the page
	_, err = s.qdrant.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.vectors,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("citation_id", doc.CitationID.String())},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to clear previous vectors: %w", err)
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for _, e := range resp.Data {
		i := int(e.Index)
		vector := make([]float32, len(e.Embedding))
		for j, v := range e.Embedding {
			vector[j] = float32(v)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(ids[i]),
			Vectors: qdrant.NewVectors(vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"citation_id":   doc.CitationID.String(),
				"url":           doc.URL,
				"company_name":  doc.CompanyName,
				"chunk_index":   int64(i),
				"text":          chunks[i],
				"keyword_usage": doc.Analysis.KeywordUsage,
				"readability":   doc.Analysis.Readability,
			}),
		}
	}
	wait := true
	if _, err := s.qdrant.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.vectors,
		Points:         points,
		Wait:           &wait,
	}); err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}
	return nil
}

func (s *citationIndexService) indexDocuments(ctx context.Context, doc CitationDocument, chunks, ids []string) error {
	filter := "citation_id:=" + doc.CitationID.String()
	if _, err := s.typesense.Collection(s.documents).Documents().Delete(ctx, &typesenseapi.DeleteDocumentsParams{FilterBy: &filter}); err != nil {
		return fmt.Errorf("failed to clear previous documents: %w", err)
	}

	docs := make([]interface{}, len(chunks))
	for i, chunk := range chunks {
		docs[i] = map[string]interface{}{
			"id":            ids[i],
			"content":       chunk,
			"citation_id":   doc.CitationID.String(),
			"url":           doc.URL,
			"company_name":  doc.CompanyName,
			"chunk_index":   i,
			"keyword_usage": doc.Analysis.KeywordUsage,
			"readability":   doc.Analysis.Readability,
			"analyzed_at":   doc.AnalyzedAt.Unix(),
		}
	}
	action := "upsert"
	results, err := s.typesense.Collection(s.documents).Documents().Import(ctx, docs, &typesenseapi.ImportDocumentsParams{Action: &action})
	if err != nil {
		return fmt.Errorf("failed to import documents: %w", err)
	}
	for _, r := range results {
		if !r.Success {
			return fmt.Errorf("typesense rejected chunk: %s", r.Error)
		}
	}
	return nil
}

// chunkMarkdown splits on level 1-3 headings, then by size
func chunkMarkdown(markdown string) []string {
	var sections []string
	indexes := chunkHeadingRe.FindAllStringIndex(markdown, -1)
	if len(indexes) == 0 {
		if trimmed := strings.TrimSpace(markdown); trimmed != "" {
			sections = append(sections, trimmed)
		}
	} else {
		if lead := strings.TrimSpace(markdown[:indexes[0][0]]); lead != "" {
			sections = append(sections, lead)
		}
		for i, index := range indexes {
			end := len(markdown)
			if i < len(indexes)-1 {
				end = indexes[i+1][0]
			}
			if chunk := strings.TrimSpace(markdown[index[0]:end]); chunk != "" {
				sections = append(sections, chunk)
			}
		}
	}

	var chunks []string
	for _, section := range sections {
		for len(section) > maxChunkChars {
			cut := maxChunkChars
			for cut > 0 && !isRuneStart(section[cut]) {
				cut--
			}
			chunks = append(chunks, section[:cut])
			section = section[cut:]
		}
		chunks = append(chunks, section)
	}
	return chunks
}
