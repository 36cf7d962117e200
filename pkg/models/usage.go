package models

import "time"

// Usage represents token usage from an LLM response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// AttemptRecord tracks one call made to a provider on behalf of a generation.
type AttemptRecord struct {
	ID        int64     `json:"id"`
	TraceID   string    `json:"trace_id"`
	Feature   string    `json:"feature"`
	Provider  string    `json:"provider"`
	Attempt   int       `json:"attempt"`
	Outcome   string    `json:"outcome"`
	LatencyMs int64     `json:"latency_ms"`
	Tokens    int       `json:"tokens"`
	CreatedAt time.Time `json:"created_at"`
}

// AttemptSummary aggregates attempts per feature, provider and outcome.
type AttemptSummary struct {
	Feature      string `json:"feature"`
	Provider     string `json:"provider"`
	Outcome      string `json:"outcome"`
	Count        int    `json:"count"`
	AvgLatencyMs int64  `json:"avg_latency_ms"`
	TotalTokens  int    `json:"total_tokens"`
}
