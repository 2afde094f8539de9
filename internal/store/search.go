package store

import (
	"context"
	"math"
	"sort"

	"github.com/rulebook-dev/rulebook-memory/internal/model"
	"github.com/rulebook-dev/rulebook-memory/internal/vector"
)

// BM25 parameters: k1 controls term-frequency saturation, b controls
// document-length normalization.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// ScoredMemory is a memory with its BM25 relevance score.
type ScoredMemory struct {
	model.Memory
	Score float64 `json:"score"`
}

// SearchBM25 ranks every memory's title+content against the query using
// BM25. The query runs through the same tokenizer as the vectorizer so
// lexical and semantic retrieval agree on what a term is. An empty
// query or one with no lexical overlap yields an empty result.
func (s *Store) SearchBM25(ctx context.Context, query string) ([]ScoredMemory, error) {
	terms := vector.Tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	memories, err := s.ListMemories(ctx, ListFilter{})
	if err != nil {
		return nil, err
	}
	if len(memories) == 0 {
		return nil, nil
	}

	// Term frequencies and document lengths over the corpus.
	docTerms := make([]map[string]int, len(memories))
	docLens := make([]int, len(memories))
	var totalLen int
	for i, m := range memories {
		tokens := vector.Tokenize(m.Title + " " + m.Content)
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		docTerms[i] = tf
		docLens[i] = len(tokens)
		totalLen += len(tokens)
	}
	avgLen := float64(totalLen) / float64(len(memories))
	if avgLen == 0 {
		return nil, nil
	}

	// Inverse document frequency per query term.
	n := float64(len(memories))
	idf := make(map[string]float64, len(terms))
	for _, term := range terms {
		if _, ok := idf[term]; ok {
			continue
		}
		var df float64
		for _, tf := range docTerms {
			if tf[term] > 0 {
				df++
			}
		}
		idf[term] = math.Log(1 + (n-df+0.5)/(df+0.5))
	}

	var results []ScoredMemory
	for i, m := range memories {
		var score float64
		for _, term := range terms {
			tf := float64(docTerms[i][term])
			if tf == 0 {
				continue
			}
			norm := 1 - bm25B + bm25B*float64(docLens[i])/avgLen
			score += idf[term] * tf * (bm25K1 + 1) / (tf + bm25K1*norm)
		}
		if score > 0 {
			results = append(results, ScoredMemory{Memory: m, Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].UpdatedAt.After(results[j].UpdatedAt)
	})
	return results, nil
}
