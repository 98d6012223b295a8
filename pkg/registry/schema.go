// pkg/registry/schema.go
package registry

// SpecialistRegistry describes the specialists the router can select and
// how intents fall back when no keyword matches.
type SpecialistRegistry struct {
	Version     string            `yaml:"version"`
	LastUpdated string            `yaml:"last_updated,omitempty"`
	Specialists []Specialist      `yaml:"specialists"`
	Affinity    map[string]string `yaml:"affinity,omitempty"`
	Fallback    string            `yaml:"fallback,omitempty"`
}

// Specialist is one domain agent. An empty Endpoint means the specialist is
// served only by the generic tool-augmented path.
type Specialist struct {
	ID          string   `yaml:"id"`
	DisplayName string   `yaml:"display_name"`
	Description string   `yaml:"description,omitempty"`
	Endpoint    string   `yaml:"endpoint,omitempty"`
	Keywords    []string `yaml:"keywords,omitempty"`
	DomainHints []string `yaml:"domain_hints,omitempty"`
	RolePrompt  string   `yaml:"role_prompt"`
	// Priority orders combined output; lower comes first.
	Priority int `yaml:"priority,omitempty"`
}
