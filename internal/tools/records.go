package tools

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type documentInfoTool struct {
	db    Querier
	limit int
}

func (t *documentInfoTool) Name() string { return GetDocumentInfo }

func (t *documentInfoTool) Description() string {
	return "List the deal's documents with type, status and upload date"
}

func (t *documentInfoTool) Run(ctx context.Context, req Request) (*Result, error) {
	rows, err := t.db.Query(ctx, `
		SELECT id, name, file_type, status, uploaded_at
		FROM documents
		WHERE deal_id = $1
		ORDER BY uploaded_at DESC
		LIMIT $2`, req.DealID, limit(req, t.limit))
	if err != nil {
		return nil, toolErr(t.Name(), err)
	}
	defer rows.Close()

	res := &Result{Tool: t.Name()}
	var b strings.Builder
	for rows.Next() {
		var id, name, fileType, status string
		var uploaded sql.NullTime
		if err := rows.Scan(&id, &name, &fileType, &status, &uploaded); err != nil {
			return nil, toolErr(t.Name(), err)
		}
		date := "unknown"
		if uploaded.Valid {
			date = uploaded.Time.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "- %s [%s] type=%s status=%s uploaded=%s\n", name, id, fileType, status, date)
		res.Sources = append(res.Sources, Source{DocumentID: id, DocumentName: name})
	}
	if err := rows.Err(); err != nil {
		return nil, toolErr(t.Name(), err)
	}
	res.Content = orEmpty(b.String(), "No documents uploaded for this deal.")
	return res, nil
}

type findingsTool struct {
	db    Querier
	limit int
}

func (t *findingsTool) Name() string { return GetFindings }

func (t *findingsTool) Description() string {
	return "Extracted findings with their category and source document"
}

func (t *findingsTool) Run(ctx context.Context, req Request) (*Result, error) {
	rows, err := t.db.Query(ctx, `
		SELECT f.id, f.text, f.category, f.confidence, d.id, d.name
		FROM findings f
		LEFT JOIN documents d ON d.id = f.document_id
		WHERE f.deal_id = $1
		ORDER BY f.confidence DESC
		LIMIT $2`, req.DealID, limit(req, t.limit))
	if err != nil {
		return nil, toolErr(t.Name(), err)
	}
	defer rows.Close()

	res := &Result{Tool: t.Name()}
	var b strings.Builder
	for rows.Next() {
		var id, text, category string
		var conf sql.NullFloat64
		var docID, docName sql.NullString
		if err := rows.Scan(&id, &text, &category, &conf, &docID, &docName); err != nil {
			return nil, toolErr(t.Name(), err)
		}
		fmt.Fprintf(&b, "- (%s) %s", category, text)
		if docName.Valid {
			fmt.Fprintf(&b, " [source: %s]", docName.String)
		}
		b.WriteString("\n")
		if docID.Valid {
			res.Sources = append(res.Sources, Source{
				DocumentID:   docID.String,
				DocumentName: docName.String,
				Relevance:    conf.Float64,
				Snippet:      snippet(text, 240),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, toolErr(t.Name(), err)
	}
	res.Content = orEmpty(b.String(), "No findings recorded for this deal.")
	return res, nil
}

type qaItemsTool struct {
	db    Querier
	limit int
}

func (t *qaItemsTool) Name() string { return GetQAItems }

func (t *qaItemsTool) Description() string {
	return "Questions and answers exchanged on the deal"
}

func (t *qaItemsTool) Run(ctx context.Context, req Request) (*Result, error) {
	rows, err := t.db.Query(ctx, `
		SELECT id, question, COALESCE(answer, ''), status
		FROM qa_items
		WHERE deal_id = $1
		ORDER BY updated_at DESC
		LIMIT $2`, req.DealID, limit(req, t.limit))
	if err != nil {
		return nil, toolErr(t.Name(), err)
	}
	defer rows.Close()

	res := &Result{Tool: t.Name()}
	var b strings.Builder
	for rows.Next() {
		var id, question, answer, status string
		if err := rows.Scan(&id, &question, &answer, &status); err != nil {
			return nil, toolErr(t.Name(), err)
		}
		if answer == "" {
			answer = "(unanswered)"
		}
		fmt.Fprintf(&b, "- Q: %s\n  A: %s [%s]\n", question, answer, status)
	}
	if err := rows.Err(); err != nil {
		return nil, toolErr(t.Name(), err)
	}
	res.Content = orEmpty(b.String(), "No Q&A items for this deal.")
	return res, nil
}

type irlItemsTool struct {
	db    Querier
	limit int
}

func (t *irlItemsTool) Name() string { return GetIRLItems }

func (t *irlItemsTool) Description() string {
	return "Information request list items and their fulfilment status"
}

func (t *irlItemsTool) Run(ctx context.Context, req Request) (*Result, error) {
	rows, err := t.db.Query(ctx, `
		SELECT id, category, item_name, status
		FROM irl_items
		WHERE deal_id = $1
		ORDER BY category, sort_order
		LIMIT $2`, req.DealID, limit(req, t.limit))
	if err != nil {
		return nil, toolErr(t.Name(), err)
	}
	defer rows.Close()

	res := &Result{Tool: t.Name()}
	var b strings.Builder
	for rows.Next() {
		var id, category, item, status string
		if err := rows.Scan(&id, &category, &item, &status); err != nil {
			return nil, toolErr(t.Name(), err)
		}
		fmt.Fprintf(&b, "- [%s] %s: %s\n", category, item, status)
	}
	if err := rows.Err(); err != nil {
		return nil, toolErr(t.Name(), err)
	}
	res.Content = orEmpty(b.String(), "No IRL items for this deal.")
	return res, nil
}

func orEmpty(s, empty string) string {
	if s == "" {
		return empty
	}
	return s
}
