// Package tools is the deal-room tool catalog available to the generic
// reasoning agent. Each tool reads one collaborator store scoped to a deal.
package tools

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"dealroom-supervisor/internal/common/database"
)

const (
	QueryKnowledgeBase = "query_knowledge_base"
	SearchDocuments    = "search_documents"
	GetDocumentInfo    = "get_document_info"
	GetFindings        = "get_findings"
	GetQAItems         = "get_qa_items"
	GetIRLItems        = "get_irl_items"
)

// AllNames is the full catalog in presentation order.
var AllNames = []string{
	QueryKnowledgeBase,
	SearchDocuments,
	GetDocumentInfo,
	GetFindings,
	GetQAItems,
	GetIRLItems,
}

var ErrToolFailed = errors.New("TOOL_FAILED")

// Request scopes a tool call to one deal.
type Request struct {
	Query          string
	DealID         string
	OrganizationID string
	Limit          int
}

// Source is a document reference surfaced by a tool.
type Source struct {
	DocumentID   string
	DocumentName string
	ChunkID      string
	Relevance    float64
	Snippet      string
}

// Result is the text rendering handed to the model plus the references behind it.
type Result struct {
	Tool    string
	Content string
	Sources []Source
}

type Tool interface {
	Name() string
	Description() string
	Run(ctx context.Context, req Request) (*Result, error)
}

// Querier is the subset of *database.PostgresClient the SQL tools need.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Searcher is the subset of *database.ElasticsearchClient the search tools need.
type Searcher interface {
	Search(ctx context.Context, index string, query map[string]interface{}, size int) ([]database.SearchHit, error)
}

type Catalog struct {
	byName map[string]Tool
}

// NewCatalog registers the tools whose store is available. A nil store
// leaves its tools out of the catalog.
func NewCatalog(db Querier, es Searcher, opts Options) *Catalog {
	opts.applyDefaults()
	c := &Catalog{byName: make(map[string]Tool)}
	if es != nil {
		c.Register(&knowledgeBaseTool{es: es, index: opts.ChunkIndex, size: opts.MaxHits})
		c.Register(&documentSearchTool{es: es, index: opts.DocumentIndex, size: opts.MaxHits})
	}
	if db != nil {
		c.Register(&documentInfoTool{db: db, limit: opts.MaxRows})
		c.Register(&findingsTool{db: db, limit: opts.MaxRows})
		c.Register(&qaItemsTool{db: db, limit: opts.MaxRows})
		c.Register(&irlItemsTool{db: db, limit: opts.MaxRows})
	}
	return c
}

// Options sizes the built-in tools.
type Options struct {
	ChunkIndex    string
	DocumentIndex string
	MaxHits       int
	MaxRows       int
}

func (o *Options) applyDefaults() {
	if o.ChunkIndex == "" {
		o.ChunkIndex = "document_chunks"
	}
	if o.DocumentIndex == "" {
		o.DocumentIndex = "documents"
	}
	if o.MaxHits <= 0 {
		o.MaxHits = 8
	}
	if o.MaxRows <= 0 {
		o.MaxRows = 20
	}
}

func (c *Catalog) Register(t Tool) {
	c.byName[t.Name()] = t
}

func (c *Catalog) Get(name string) (Tool, bool) {
	t, ok := c.byName[name]
	return t, ok
}

// Names lists registered tools in catalog order, custom tools last.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.byName))
	for _, n := range AllNames {
		if _, ok := c.byName[n]; ok {
			out = append(out, n)
		}
	}
	var extra []string
	for n := range c.byName {
		if !contains(AllNames, n) {
			extra = append(extra, n)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Select returns the registered tools named in allow, in allow order.
// Unknown or unavailable names are skipped.
func (c *Catalog) Select(allow []string) []Tool {
	out := make([]Tool, 0, len(allow))
	seen := make(map[string]bool, len(allow))
	for _, n := range allow {
		if seen[n] {
			continue
		}
		seen[n] = true
		if t, ok := c.byName[n]; ok {
			out = append(out, t)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func toolErr(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrToolFailed, name, err)
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
