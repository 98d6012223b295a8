package registry

// Default returns the built-in deal-room registry.
func Default() *SpecialistRegistry {
	return &SpecialistRegistry{
		Version: "1.0",
		Specialists: []Specialist{
			{
				ID:          FinancialAnalyst,
				DisplayName: "Financial Analyst",
				Description: "Financial statements, metrics, projections and valuation",
				Endpoint:    "/api/agents/financial-analyst",
				Keywords: []string{
					"ebitda", "revenue", "revenues", "margin", "margins", "cash flow", "valuation",
					"profit", "profitability", "gross profit", "net income", "income statement",
					"balance sheet", "p&l", "earnings", "expenses", "opex", "capex", "debt",
					"working capital", "forecast", "projection", "projections", "arr", "mrr",
					"burn rate", "multiple", "irr", "financials", "financial",
				},
				DomainHints: []string{"financial_statements", "kpis", "projections"},
				RolePrompt: "You are a financial analyst on an M&A due-diligence team. Read the deal's " +
					"financial documents and answer with exact figures, periods and the document each " +
					"figure comes from. Flag inconsistencies between sources and state assumptions explicitly.",
				Priority: 10,
			},
			{
				ID:          KnowledgeGraph,
				DisplayName: "Knowledge Graph",
				Description: "Entities, relationships, document lineage and contradictions",
				Endpoint:    "/api/agents/knowledge-graph",
				Keywords: []string{
					"contradiction", "contradictions", "contradict", "conflict", "conflicting",
					"inconsistent", "inconsistency", "relationship", "relationships", "entity",
					"entities", "ownership", "owner", "owns", "subsidiary", "subsidiaries",
					"parent company", "shareholder", "shareholders", "supersede", "supersedes",
					"superseded", "related party", "connected", "lineage",
				},
				DomainHints: []string{"entities", "relationships", "contradictions"},
				RolePrompt: "You are a knowledge-graph analyst for a deal room. Identify the entities, " +
					"ownership and relationships described in the deal documents, note which documents " +
					"supersede others, and surface any contradictions with both conflicting statements quoted.",
				Priority: 20,
			},
			generalSpecialist(),
		},
		Affinity: map[string]string{
			"greeting": General,
			"meta":     General,
		},
		Fallback: General,
	}
}

func generalSpecialist() Specialist {
	return Specialist{
		ID:          General,
		DisplayName: "General",
		Description: "Catch-all deal assistant",
		RolePrompt: "You are a helpful deal-room assistant supporting an M&A analyst. Answer concisely " +
			"from the deal data you are given and say plainly when the data does not cover the question.",
		Priority: 100,
	}
}
