// Package model defines the canonical data types used throughout polidisc.
// These types are the single source of truth for every entity that flows
// through the ingestion pipeline, plus the result envelope that every
// command returns.
package model

import (
	"time"
)

// ─── Core Pipeline Entities ───────────────────────────────────────────────────

// Politician identifies a public office-holder whose disclosures this system
// tracks. A politician with a non-empty BioguideID is unique by that id;
// otherwise it is unique by normalized (LastName, FirstName, Chamber).
type Politician struct {
	ID              string    `json:"id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	FullName        string    `json:"full_name"`
	Role            string    `json:"role"`
	Chamber         string    `json:"chamber"`
	Party           string    `json:"party,omitempty"`
	StateOrCountry  string    `json:"state_or_country,omitempty"`
	BioguideID      string    `json:"bioguide_id,omitempty"`
	District        string    `json:"district,omitempty"` // raw "CA-11"-style code, source material for StateOrCountry backfill
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// RawDisclosure is a snapshot of a source record exactly as an adapter
// produced it. RawData is an opaque string-keyed mapping: Clean is the only
// stage permitted to tolerate missing keys in it.
type RawDisclosure struct {
	Source           string         `json:"source"`
	SourceType       string         `json:"source_type"`
	RawData          map[string]any `json:"raw_data"`
	ScrapedAt        time.Time      `json:"scraped_at"`
	SourceURL        string         `json:"source_url,omitempty"`
	SourceDocumentID string         `json:"source_document_id,omitempty"`
}

// CleanedDisclosure is the output of the Clean stage: required fields are
// guaranteed non-empty and dates are parsed.
type CleanedDisclosure struct {
	PoliticianName   string    `json:"politician_name"`
	TransactionDate  time.Time `json:"transaction_date"`
	DisclosureDate   time.Time `json:"disclosure_date"`
	AssetName        string    `json:"asset_name"`
	TransactionType  string    `json:"transaction_type"`
	AssetTicker      string    `json:"asset_ticker,omitempty"`
	AssetType        string    `json:"asset_type,omitempty"`
	AmountText       string    `json:"amount_text,omitempty"`
	Source           string    `json:"source"`
	SourceURL        string    `json:"source_url,omitempty"`
	SourceDocumentID string    `json:"source_document_id,omitempty"`
	RawData          map[string]any `json:"raw_data,omitempty"`
}

// NormalizedDisclosure is CleanedDisclosure enriched with resolved politician
// identity, a parsed amount range, and a canonical transaction type.
type NormalizedDisclosure struct {
	PoliticianID       string    `json:"politician_id,omitempty"`
	PoliticianFirst    string    `json:"politician_first_name"`
	PoliticianLast     string    `json:"politician_last_name"`
	PoliticianFullName string    `json:"politician_full_name"`
	PoliticianRole     string    `json:"politician_role"`
	PoliticianParty    string    `json:"politician_party,omitempty"`
	PoliticianState    string    `json:"politician_state,omitempty"`

	TransactionDate time.Time `json:"transaction_date"`
	DisclosureDate  time.Time `json:"disclosure_date"`
	TransactionType string    `json:"transaction_type"`

	AssetName   string `json:"asset_name"`
	AssetTicker string `json:"asset_ticker,omitempty"`
	AssetType   string `json:"asset_type"`

	AmountRangeMin *int64 `json:"amount_range_min,omitempty"`
	AmountRangeMax *int64 `json:"amount_range_max,omitempty"`
	AmountExact    *int64 `json:"amount_exact,omitempty"`

	Source           string         `json:"source"`
	SourceURL        string         `json:"source_url,omitempty"`
	SourceDocumentID string         `json:"source_document_id,omitempty"`
	RawData          map[string]any `json:"raw_data,omitempty"`

	// HasRawPDF and SourceFileID are set when C2 archives the source PDF
	// this disclosure was extracted from; SourceFileID is the StoredFile.ID
	// (§4.2 save_pdf's documented side effect on the linked disclosure row).
	HasRawPDF    bool   `json:"has_raw_pdf,omitempty"`
	SourceFileID string `json:"source_file_id,omitempty"`
}

// StoredFile is C2's metadata row for one content-addressed blob.
type StoredFile struct {
	ID                string    `json:"id"`
	StorageBucket     string    `json:"storage_bucket"`
	StoragePath       string    `json:"storage_path"`
	FileType          string    `json:"file_type"`
	FileSizeBytes     int64     `json:"file_size_bytes"`
	FileHashSHA256    string    `json:"file_hash_sha256"`
	MimeType          string    `json:"mime_type"`
	SourceURL         string    `json:"source_url,omitempty"`
	SourceType        string    `json:"source_type"`
	ParseStatus       string    `json:"parse_status"`
	TransactionsFound int       `json:"transactions_found"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	DisclosureID      string    `json:"disclosure_id,omitempty"`
	ParseError        string    `json:"parse_error,omitempty"`
}

// Parse status values for StoredFile.
const (
	ParseStatusPending = "pending"
	ParseStatusSuccess = "success"
	ParseStatusFailed  = "failed"
)

// ScheduleType distinguishes cron-triggered from interval-triggered jobs.
type ScheduleType string

const (
	ScheduleCron     ScheduleType = "cron"
	ScheduleInterval ScheduleType = "interval"
)

// JobDefinition is a durable scheduled-job row (C7).
type JobDefinition struct {
	JobID                  string       `json:"job_id"`
	Name                   string       `json:"name"`
	FunctionReference      string       `json:"function_reference"`
	ScheduleType           ScheduleType `json:"schedule_type"`
	ScheduleValue          string       `json:"schedule_value"`
	Enabled                bool         `json:"enabled"`
	NextScheduledRun       time.Time    `json:"next_scheduled_run"`
	LastRunAt              time.Time    `json:"last_run_at,omitempty"`
	ConsecutiveFailures    int          `json:"consecutive_failures"`
	MaxConsecutiveFailures int          `json:"max_consecutive_failures"`
	AutoRetryOnStartup     bool         `json:"auto_retry_on_startup"`
	Metadata               map[string]any `json:"metadata,omitempty"`
}

// JobExecutionStatus enumerates the lifecycle of one JobExecution.
type JobExecutionStatus string

const (
	JobQueued  JobExecutionStatus = "queued"
	JobRunning JobExecutionStatus = "running"
	JobSuccess JobExecutionStatus = "success"
	JobFailed  JobExecutionStatus = "failed"
)

// JobExecution is one execution-history row for a JobDefinition (C7).
type JobExecution struct {
	ID              string             `json:"id"`
	JobID           string             `json:"job_id"`
	StartedAt       time.Time          `json:"started_at"`
	CompletedAt     time.Time          `json:"completed_at,omitempty"`
	Status          JobExecutionStatus `json:"status"`
	DurationSeconds float64            `json:"duration_seconds,omitempty"`
	ErrorMessage    string             `json:"error_message,omitempty"`
	Logs            []string           `json:"logs,omitempty"`
	Metadata        map[string]any     `json:"metadata,omitempty"`
}

// DataQualityCorrection is one audit-trail row written by the politician
// normalizer batch job.
type DataQualityCorrection struct {
	ID          string    `json:"id"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	Field       string    `json:"field"`
	OldValue    string    `json:"old_value"`
	NewValue    string    `json:"new_value"`
	Confidence  float64   `json:"confidence"`
	CorrectedBy string    `json:"corrected_by"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// ─── Pipeline Plumbing ────────────────────────────────────────────────────────

// PipelineStatus is the outcome of running one pipeline stage.
type PipelineStatus string

const (
	StatusSuccess        PipelineStatus = "success"
	StatusPartialSuccess  PipelineStatus = "partial_success"
	StatusFailed          PipelineStatus = "failed"
	StatusSkipped         PipelineStatus = "skipped"
)

// PipelineMetrics accumulates counters and messages for one stage run.
type PipelineMetrics struct {
	RecordsInput    int      `json:"records_input"`
	RecordsOutput   int      `json:"records_output"`
	RecordsSkipped  int      `json:"records_skipped"`
	RecordsFailed   int      `json:"records_failed"`
	DurationSeconds float64  `json:"duration_seconds"`
	Errors          []string `json:"errors,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

// SuccessRate returns the fraction of input records that made it through
// without failure; 100% when there was no input.
func (m PipelineMetrics) SuccessRate() float64 {
	if m.RecordsInput == 0 {
		return 100.0
	}
	return float64(m.RecordsInput-m.RecordsFailed) / float64(m.RecordsInput) * 100.0
}

// PipelineContext is threaded by reference through every stage of one
// orchestrator run. It is shared and read-only except for Metadata.
type PipelineContext struct {
	SourceName string
	SourceType string
	JobID      string
	Config     map[string]any
	Metadata   map[string]any
	StartedAt  time.Time
}

// PipelineResult carries the output of one stage: the data it produced, plus
// status and metrics. A PipelineResult exclusively owns Data until a
// downstream stage consumes it.
type PipelineResult[T any] struct {
	Status          PipelineStatus
	Data            []T
	Metrics         PipelineMetrics
	StageName       string
	CollectedErrors []error
}

// Success reports whether the stage completed without being marked failed.
func (r PipelineResult[T]) Success() bool {
	return r.Status == StatusSuccess || r.Status == StatusPartialSuccess
}

// Failed reports whether the stage is terminal for the pipeline.
func (r PipelineResult[T]) Failed() bool {
	return r.Status == StatusFailed
}

// ─── Result Envelope (CLI rendering) ──────────────────────────────────────────

// ResultStats carries performance metadata for a command result.
type ResultStats struct {
	DurationMs int64 `json:"duration_ms"`
	Items      int   `json:"items"`
}

// Result is the uniform envelope returned by every CLI command. The Data
// field holds the typed payload; Kind identifies what is in it so renderers
// can switch on it to format output appropriately.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindRunSummary   = "run_summary"
	KindJobList      = "job_list"
	KindJobExecution = "job_execution"
	KindStoreStats   = "store_stats"
	KindETLResult    = "etl_result"
	KindTable        = "table"
)
