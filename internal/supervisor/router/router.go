// Package router maps a classified query to the specialists that answer it.
package router

import (
	"fmt"
	"regexp"
	"strings"

	"dealroom-supervisor/internal/supervisor/classifier"
	"dealroom-supervisor/pkg/registry"
)

// Decision is derived once per query and never mutated.
type Decision struct {
	SelectedSpecialists []string            `json:"selectedSpecialists"`
	IsParallel          bool                `json:"isParallel"`
	Rationale           string              `json:"rationale"`
	MatchedKeywords     map[string][]string `json:"matchedKeywords"`
}

type keywordMatcher struct {
	keyword string
	re      *regexp.Regexp
}

type specialistTable struct {
	id       string
	matchers []keywordMatcher
}

// Router is safe for concurrent use; tables are compiled once in New.
type Router struct {
	tables   []specialistTable
	affinity map[string]string
	fallback string
}

func New(reg *registry.SpecialistRegistry) *Router {
	if reg == nil {
		reg = registry.Default()
	}
	r := &Router{
		affinity: make(map[string]string, len(reg.Affinity)),
		fallback: reg.Fallback,
	}
	if r.fallback == "" {
		r.fallback = registry.General
	}
	for intent, id := range reg.Affinity {
		r.affinity[intent] = id
	}

	for _, s := range reg.Specialists {
		if len(s.Keywords) == 0 {
			continue
		}
		table := specialistTable{id: s.ID}
		seen := make(map[string]bool, len(s.Keywords))
		for _, kw := range s.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" || seen[kw] {
				continue
			}
			seen[kw] = true
			table.matchers = append(table.matchers, keywordMatcher{keyword: kw, re: wholeWord(kw)})
		}
		r.tables = append(r.tables, table)
	}
	return r
}

// wholeWord matches kw bounded by non-word characters. Keywords may contain
// spaces or symbols such as "p&l", so \b alone is not enough.
func wholeWord(kw string) *regexp.Regexp {
	return regexp.MustCompile(`(^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(kw) + `($|[^\p{L}\p{N}_])`)
}

// Route selects specialists by keyword, then by intent affinity, then the
// fallback. More than one keyword match runs every match in parallel.
func (r *Router) Route(c classifier.Result, query string) Decision {
	text := strings.ToLower(strings.TrimSpace(query))
	if text == "" {
		return r.single(r.fallback, "Empty query; routed to "+r.fallback)
	}

	var selected []string
	matched := make(map[string][]string)
	for _, table := range r.tables {
		for _, m := range table.matchers {
			if m.re.MatchString(text) {
				matched[table.id] = append(matched[table.id], m.keyword)
			}
		}
		if len(matched[table.id]) > 0 {
			selected = append(selected, table.id)
		}
	}

	switch len(selected) {
	case 0:
		if id, ok := r.affinity[string(c.Intent)]; ok && id != "" {
			return r.single(id, fmt.Sprintf("No keyword match; %s intent routed to %s", c.Intent, id))
		}
		return r.single(r.fallback, "No keyword match; routed to "+r.fallback)
	case 1:
		return Decision{
			SelectedSpecialists: selected,
			IsParallel:          false,
			Rationale:           rationale(selected, matched),
			MatchedKeywords:     matched,
		}
	default:
		return Decision{
			SelectedSpecialists: selected,
			IsParallel:          true,
			Rationale:           rationale(selected, matched),
			MatchedKeywords:     matched,
		}
	}
}

func (r *Router) single(id, why string) Decision {
	return Decision{
		SelectedSpecialists: []string{id},
		IsParallel:          false,
		Rationale:           why,
		MatchedKeywords:     map[string][]string{},
	}
}

func rationale(selected []string, matched map[string][]string) string {
	parts := make([]string, 0, len(selected))
	for _, id := range selected {
		parts = append(parts, fmt.Sprintf("%s matched [%s]", id, strings.Join(matched[id], ", ")))
	}
	return "Keyword match: " + strings.Join(parts, "; ")
}
