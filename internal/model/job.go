package model

import "time"

// JobStatus tracks a lead-generation run.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

// LogLevel is the severity of a job log entry.
type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// JobProviders toggles optional pipeline features per job.
type JobProviders struct {
	AIQueries  bool `json:"ai_queries" yaml:"ai_queries"`
	AIAnalysis bool `json:"ai_analysis" yaml:"ai_analysis"`
	SERP       bool `json:"serp" yaml:"serp"`
}

// JobCounters accumulate over a job's lifetime.
type JobCounters struct {
	Queries           int `json:"queries"`
	SourceEvents      int `json:"source_events"`
	CandidatesCreated int `json:"candidates_created"`
	Enriched          int `json:"enriched"`
	EnrichFailed      int `json:"enrich_failed"`
	ContactsSaved     int `json:"contacts_saved"`
}

// Add returns the field-wise sum of c and d.
func (c JobCounters) Add(d JobCounters) JobCounters {
	return JobCounters{
		Queries:           c.Queries + d.Queries,
		SourceEvents:      c.SourceEvents + d.SourceEvents,
		CandidatesCreated: c.CandidatesCreated + d.CandidatesCreated,
		Enriched:          c.Enriched + d.Enriched,
		EnrichFailed:      c.EnrichFailed + d.EnrichFailed,
		ContactsSaved:     c.ContactsSaved + d.ContactsSaved,
	}
}

// JobLogEntry is one append-only message in a job's log.
type JobLogEntry struct {
	JobID     string    `json:"job_id"`
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}

// LeadGenJob is the run record for one pipeline execution.
type LeadGenJob struct {
	ID             string        `json:"id"`
	PoolID         string        `json:"pool_id"`
	UserID         string        `json:"user_id"`
	Providers      JobProviders  `json:"providers"`
	QueryTemplates []string      `json:"query_templates,omitempty"`
	Counters       JobCounters   `json:"counters"`
	Status         JobStatus     `json:"status"`
	Logs           []JobLogEntry `json:"logs,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// SourceEventType identifies which search backend produced an event.
type SourceEventType string

const (
	SourceEventSERP         SourceEventType = "serp"
	SourceEventGoogleSearch SourceEventType = "google_search"
	SourceEventJinaSearch   SourceEventType = "jina_search"
)

// SourceEventMetadata summarizes what one query returned.
type SourceEventMetadata struct {
	Domains      []string `json:"domains"`
	TotalResults int      `json:"total_results"`
	Snippets     []string `json:"snippets,omitempty"`
	Strategy     string   `json:"strategy,omitempty"`
}

// LeadSourceEvent audits a single search query execution.
type LeadSourceEvent struct {
	ID        string              `json:"id"`
	JobID     string              `json:"job_id"`
	Type      SourceEventType     `json:"type"`
	Query     string              `json:"query"`
	URL       string              `json:"url,omitempty"`
	FetchedAt time.Time           `json:"fetched_at"`
	Metadata  SourceEventMetadata `json:"metadata"`
}
