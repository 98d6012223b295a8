package runsupervisor

import "dealroom-supervisor/internal/supervisor/synthesis"

type Input struct {
	Question       string `json:"question"`
	DealID         string `json:"dealId"`
	UserID         string `json:"userId"`
	OrganizationID string `json:"organizationId,omitempty"`
}

type Output struct {
	Response      synthesis.Response     `json:"response"`
	TraceMetadata map[string]interface{} `json:"traceMetadata"`
}
