package tools

import (
	"context"
	"fmt"
	"strings"

	"dealroom-supervisor/internal/common/database"
)

type knowledgeBaseTool struct {
	es    Searcher
	index string
	size  int
}

func (t *knowledgeBaseTool) Name() string { return QueryKnowledgeBase }

func (t *knowledgeBaseTool) Description() string {
	return "Full-text search over the deal's document chunks"
}

func (t *knowledgeBaseTool) Run(ctx context.Context, req Request) (*Result, error) {
	hits, err := t.es.Search(ctx, t.index, dealQuery(req, []string{"content", "document_name^2"}), limit(req, t.size))
	if err != nil {
		return nil, toolErr(t.Name(), err)
	}

	res := &Result{Tool: t.Name()}
	if len(hits) == 0 {
		res.Content = "No matching passages in the knowledge base."
		return res, nil
	}

	maxScore := topScore(hits)
	var b strings.Builder
	for i, h := range hits {
		src := Source{
			DocumentID:   str(h.Source, "document_id"),
			DocumentName: str(h.Source, "document_name"),
			ChunkID:      h.ID,
			Relevance:    h.Score / maxScore,
			Snippet:      snippet(str(h.Source, "content"), 240),
		}
		res.Sources = append(res.Sources, src)
		fmt.Fprintf(&b, "[%d] %s (chunk %s): %s\n", i+1, src.DocumentName, src.ChunkID, snippet(str(h.Source, "content"), 800))
	}
	res.Content = b.String()
	return res, nil
}

type documentSearchTool struct {
	es    Searcher
	index string
	size  int
}

func (t *documentSearchTool) Name() string { return SearchDocuments }

func (t *documentSearchTool) Description() string {
	return "Find deal documents by name and summary"
}

func (t *documentSearchTool) Run(ctx context.Context, req Request) (*Result, error) {
	hits, err := t.es.Search(ctx, t.index, dealQuery(req, []string{"name^3", "summary"}), limit(req, t.size))
	if err != nil {
		return nil, toolErr(t.Name(), err)
	}

	res := &Result{Tool: t.Name()}
	if len(hits) == 0 {
		res.Content = "No matching documents."
		return res, nil
	}

	maxScore := topScore(hits)
	var b strings.Builder
	for _, h := range hits {
		id := str(h.Source, "id")
		if id == "" {
			id = h.ID
		}
		src := Source{
			DocumentID:   id,
			DocumentName: str(h.Source, "name"),
			Relevance:    h.Score / maxScore,
			Snippet:      snippet(str(h.Source, "summary"), 240),
		}
		res.Sources = append(res.Sources, src)
		fmt.Fprintf(&b, "- %s [%s]: %s\n", src.DocumentName, src.DocumentID, src.Snippet)
	}
	res.Content = b.String()
	return res, nil
}

// dealQuery matches text on fields, filtered to the request's deal.
func dealQuery(req Request, fields []string) map[string]interface{} {
	filter := []interface{}{}
	if req.DealID != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"deal_id": req.DealID},
		})
	}
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"multi_match": map[string]interface{}{
							"query":  req.Query,
							"fields": fields,
						},
					},
				},
				"filter": filter,
			},
		},
	}
}

func topScore(hits []database.SearchHit) float64 {
	best := 0.0
	for _, h := range hits {
		if h.Score > best {
			best = h.Score
		}
	}
	if best == 0 {
		return 1
	}
	return best
}

func limit(req Request, def int) int {
	if req.Limit > 0 && req.Limit < def {
		return req.Limit
	}
	return def
}

func str(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
