package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"dealroom-supervisor/internal/common/logger"
	"dealroom-supervisor/internal/llm"
	"dealroom-supervisor/internal/tools"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name string
	res  *tools.Result
	err  error
	got  tools.Request
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }
func (s *stubTool) Run(_ context.Context, req tools.Request) (*tools.Result, error) {
	s.got = req
	return s.res, s.err
}

func newCatalog(ts ...tools.Tool) *tools.Catalog {
	c := tools.NewCatalog(nil, nil, tools.Options{})
	for _, t := range ts {
		c.Register(t)
	}
	return c
}

func TestToolAgent_Run_GathersContext(t *testing.T) {
	findings := &stubTool{name: tools.GetFindings, res: &tools.Result{
		Tool:    tools.GetFindings,
		Content: "- (financial) EBITDA margin 18%",
		Sources: []tools.Source{{DocumentID: "d1", DocumentName: "CIM.pdf"}},
	}}
	broken := &stubTool{name: tools.GetQAItems, err: errors.New("db down")}

	provider := llm.NewMockProvider("Margin is 18% per CIM.pdf.")
	a := New(provider, newCatalog(findings, broken), logger.NewTestLogger(t), WithDefaultModel("default-model"))

	ans, err := a.Run(context.Background(), Task{
		RolePrompt: "You are a financial analyst.",
		Query:      "What is the EBITDA margin?",
		DealID:     "deal-1",
		Tools:      []string{tools.GetFindings, tools.GetQAItems, tools.GetIRLItems},
	})
	require.NoError(t, err)

	assert.Equal(t, "Margin is 18% per CIM.pdf.", ans.Content)
	assert.Equal(t, []string{tools.GetFindings}, ans.ToolsUsed)
	require.Len(t, ans.Sources, 1)
	assert.Equal(t, "deal-1", findings.got.DealID)

	require.Len(t, provider.Requests, 1)
	req := provider.Requests[0]
	assert.Equal(t, "default-model", req.Model)
	assert.Equal(t, "You are a financial analyst.", req.System)
	assert.Contains(t, req.Messages[0].Content, "EBITDA margin 18%")
}

func TestToolAgent_Run_NoTools(t *testing.T) {
	provider := llm.NewMockProvider("Hello!")
	a := New(provider, nil, nil)

	ans, err := a.Run(context.Background(), Task{Query: "hi", Model: "m"})
	require.NoError(t, err)
	assert.Empty(t, ans.ToolsUsed)
	assert.True(t, strings.Contains(provider.Requests[0].Messages[0].Content, "No deal data was retrieved"))
}

func TestToolAgent_Run_ProviderError(t *testing.T) {
	provider := llm.NewMockProvider("")
	provider.Err = llm.ErrLLMTimeout
	a := New(provider, nil, nil)

	_, err := a.Run(context.Background(), Task{Query: "q"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAgentFailed)
	assert.ErrorIs(t, err, llm.ErrLLMTimeout)

	_, err = New(nil, nil, nil).Run(context.Background(), Task{Query: "q"})
	assert.ErrorIs(t, err, ErrAgentFailed)
}

func TestToolAgent_ContextBudget(t *testing.T) {
	big := &stubTool{name: "big", res: &tools.Result{Tool: "big", Content: strings.Repeat("x", 500)}}
	provider := llm.NewMockProvider("ok")
	a := New(provider, newCatalog(big), nil, WithMaxContext(100))

	_, err := a.Run(context.Background(), Task{Query: "q", Tools: []string{"big"}})
	require.NoError(t, err)
	assert.Less(t, len(provider.Requests[0].Messages[0].Content), 400)
}

func TestToolAgent_ContextBudget_KeepsRunesWhole(t *testing.T) {
	euros := &stubTool{name: "fx", res: &tools.Result{Tool: "fx", Content: strings.Repeat("€", 200)}}
	provider := llm.NewMockProvider("ok")
	a := New(provider, newCatalog(euros), nil, WithMaxContext(101))

	_, err := a.Run(context.Background(), Task{Query: "q", Tools: []string{"fx"}})
	require.NoError(t, err)

	prompt := provider.Requests[0].Messages[0].Content
	assert.True(t, utf8.ValidString(prompt))
	assert.Contains(t, prompt, strings.Repeat("€", 33))
	assert.NotContains(t, prompt, strings.Repeat("€", 34))
}
