package models

import "time"

// AuditEntry represents a single audited gateway exchange.
type AuditEntry struct {
	RequestID        string    `json:"request_id"`
	ClientHash       string    `json:"client_hash"`
	ClientPrefix     string    `json:"client_prefix"`
	Model            string    `json:"model"`
	Outcome          string    `json:"outcome"`
	Message          string    `json:"message,omitempty"`
	Response         string    `json:"response,omitempty"`
	ErrorDetail      string    `json:"error_detail,omitempty"`
	StatusCode       int       `json:"status_code"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	LatencyMs        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// AuditConfig controls the audit logging subsystem.
type AuditConfig struct {
	Enabled         bool     `yaml:"enabled"`
	DBPath          string   `yaml:"db_path"`
	RetentionDays   int      `yaml:"retention_days"`
	Include         []string `yaml:"include"` // "messages", "responses", "errors"
	ExcludeOutcomes []string `yaml:"exclude_outcomes"`
	MaxBodySize     int      `yaml:"max_body_size"` // bytes
}

// AuditQueryOpts specifies filters for querying audit entries.
type AuditQueryOpts struct {
	Outcome      string
	Since        time.Time
	ClientPrefix string
	RequestID    string
	Limit        int
}

// AuditStat holds aggregate audit counts for an outcome/day combination.
type AuditStat struct {
	Outcome string
	Day     string
	Count   int
}
