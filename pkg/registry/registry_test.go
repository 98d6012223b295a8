package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	reg := Default()
	require.NoError(t, reg.Validate())

	fa, ok := reg.Get(FinancialAnalyst)
	require.True(t, ok)
	assert.Contains(t, fa.Keywords, "ebitda")
	assert.NotEmpty(t, fa.Endpoint)

	g, ok := reg.Get(General)
	require.True(t, ok)
	assert.Empty(t, g.Endpoint)
	assert.Empty(t, g.Keywords)

	assert.Equal(t, General, reg.Affinity["greeting"])
	assert.Equal(t, "Knowledge Graph", reg.DisplayName(KnowledgeGraph))
	assert.Equal(t, "Legal Reviewer", reg.DisplayName("legal_reviewer"))
}

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "specialists.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRegistry(t *testing.T) {
	path := writeFile(t, `
version: "2"
specialists:
  - id: legal_reviewer
    endpoint: /api/agents/legal
    keywords: [indemnity, warranty, "change of control"]
    role_prompt: You review legal terms.
`)

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, "2", reg.Version)
	require.Len(t, reg.Specialists, 2, "general is added as fallback")

	legal, ok := reg.Get("legal_reviewer")
	require.True(t, ok)
	assert.Equal(t, "Legal Reviewer", legal.DisplayName)
	assert.Equal(t, []string{"indemnity", "warranty", "change of control"}, legal.Keywords)
	assert.Equal(t, General, reg.Fallback)
	assert.Equal(t, General, reg.Affinity["meta"])
}

func TestLoadRegistry_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"duplicate id", "specialists:\n  - id: a\n  - id: a\n"},
		{"unknown affinity", "specialists:\n  - id: a\naffinity:\n  greeting: b\n"},
		{"unknown fallback", "specialists:\n  - id: a\nfallback: b\n"},
		{"not yaml", "specialists: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRegistry(writeFile(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	reg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Len(t, reg.Specialists, 3)

	_, err = LoadOrDefault("/does/not/exist.yaml")
	assert.Error(t, err)
}
