// pkg/registry/registry.go
package registry

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	FinancialAnalyst = "financial_analyst"
	KnowledgeGraph   = "knowledge_graph"
	General          = "general"
)

// LoadRegistry reads a registry from a YAML file. Missing affinity and
// fallback entries take the built-in values.
func LoadRegistry(path string) (*SpecialistRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var reg SpecialistRegistry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}

	applyDefaults(&reg)
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("registry %s: %w", path, err)
	}
	return &reg, nil
}

// LoadOrDefault loads path when set, the built-in registry otherwise.
func LoadOrDefault(path string) (*SpecialistRegistry, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadRegistry(path)
}

func applyDefaults(reg *SpecialistRegistry) {
	if reg.Fallback == "" {
		reg.Fallback = General
	}
	if reg.Affinity == nil {
		reg.Affinity = map[string]string{
			"greeting": General,
			"meta":     General,
		}
	}
	if _, ok := reg.Get(reg.Fallback); !ok && reg.Fallback == General {
		reg.Specialists = append(reg.Specialists, generalSpecialist())
	}
	for i := range reg.Specialists {
		if reg.Specialists[i].DisplayName == "" {
			reg.Specialists[i].DisplayName = humanize(reg.Specialists[i].ID)
		}
	}
}

// Validate checks ids are unique and every affinity target exists.
func (r *SpecialistRegistry) Validate() error {
	seen := make(map[string]bool, len(r.Specialists))
	for _, s := range r.Specialists {
		if s.ID == "" {
			return fmt.Errorf("specialist without id")
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate specialist %q", s.ID)
		}
		seen[s.ID] = true
	}
	if !seen[r.Fallback] {
		return fmt.Errorf("fallback specialist %q is not registered", r.Fallback)
	}
	for intent, id := range r.Affinity {
		if !seen[id] {
			return fmt.Errorf("affinity %s -> %q is not registered", intent, id)
		}
	}
	return nil
}

func (r *SpecialistRegistry) Get(id string) (*Specialist, bool) {
	for i := range r.Specialists {
		if r.Specialists[i].ID == id {
			return &r.Specialists[i], true
		}
	}
	return nil, false
}

// DisplayName falls back to a humanized id for unknown specialists.
func (r *SpecialistRegistry) DisplayName(id string) string {
	if s, ok := r.Get(id); ok && s.DisplayName != "" {
		return s.DisplayName
	}
	return humanize(id)
}

func humanize(id string) string {
	words := strings.Fields(strings.ReplaceAll(id, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
