// Package render converts Result values into human-readable or
// machine-parseable output. Each format is a separate function; the
// top-level Render dispatcher selects based on the format string.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/gwicho38/polidisc/internal/etl"
	"github.com/gwicho38/polidisc/internal/model"
	"github.com/gwicho38/polidisc/internal/orchestrator"
	"github.com/gwicho38/polidisc/internal/storage"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatMD    = "md"
)

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatJSONL:
		return renderJSONL(w, result)
	case FormatCSV:
		return renderDelimited(w, result, ',')
	case FormatTSV:
		return renderDelimited(w, result, '\t')
	case FormatMD:
		return renderMarkdown(w, result)
	default:
		return renderTable(w, result)
	}
}

// RenderTo writes to stdout by default; if path is non-empty, writes to file.
func RenderTo(path string, result *model.Result, format string) error {
	if path == "" {
		return Render(os.Stdout, result, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return Render(f, result, format)
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

func renderJSONL(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	switch result.Kind {
	case model.KindJobList:
		if jobs, ok := result.Data.([]model.JobDefinition); ok {
			for _, j := range jobs {
				if err := enc.Encode(j); err != nil {
					return err
				}
			}
			return nil
		}
	case model.KindStoreStats:
		if stats, ok := result.Data.([]storage.BucketStats); ok {
			for _, s := range stats {
				if err := enc.Encode(s); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return enc.Encode(result.Data)
}

// ─── Table ────────────────────────────────────────────────────────────────────

func renderTable(w io.Writer, result *model.Result) error {
	switch result.Kind {
	case model.KindRunSummary:
		if summary, ok := result.Data.(orchestrator.RunSummary); ok {
			return renderRunSummaryTable(w, summary)
		}
	case model.KindJobList:
		if jobs, ok := result.Data.([]model.JobDefinition); ok {
			return renderJobListTable(w, jobs)
		}
	case model.KindJobExecution:
		if exec, ok := result.Data.(model.JobExecution); ok {
			return renderJobExecutionTable(w, exec)
		}
	case model.KindStoreStats:
		if stats, ok := result.Data.([]storage.BucketStats); ok {
			return renderStoreStatsTable(w, stats)
		}
	case model.KindETLResult:
		if r, ok := result.Data.(etl.ETLResult); ok {
			return renderETLResultTable(w, r)
		}
	case model.KindTable:
		if rows, ok := result.Data.([][]string); ok {
			printKVTable(w, rows)
			return nil
		}
	}
	return renderJSON(w, result)
}

func newTable(w io.Writer, headers []string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)
	return tw
}

func renderRunSummaryTable(w io.Writer, summary orchestrator.RunSummary) error {
	fmt.Fprintf(w, "run: %s (%s)\n\n", summary.SourceName, summary.Status)
	tw := newTable(w, []string{"STAGE", "STATUS", "IN", "OUT", "SKIPPED", "FAILED", "DURATION"})
	for _, s := range summary.Stages {
		tw.Append([]string{
			s.Stage, string(s.Status),
			fmt.Sprintf("%d", s.RecordsInput),
			fmt.Sprintf("%d", s.RecordsOutput),
			fmt.Sprintf("%d", s.RecordsSkipped),
			fmt.Sprintf("%d", s.RecordsFailed),
			fmt.Sprintf("%.2fs", s.DurationSeconds),
		})
	}
	tw.Render()
	fmt.Fprintf(w, "\npublish: %d inserted, %d updated, %d skipped, %d politicians matched, %d created\n",
		summary.Publish.DisclosuresInserted, summary.Publish.DisclosuresUpdated, summary.Publish.DisclosuresSkipped,
		summary.Publish.PoliticiansMatched, summary.Publish.PoliticiansCreated)
	return nil
}

func renderJobListTable(w io.Writer, jobs []model.JobDefinition) error {
	tw := newTable(w, []string{"JOB ID", "NAME", "SCHEDULE", "ENABLED", "NEXT RUN", "FAILURES"})
	for _, j := range jobs {
		next := "-"
		if !j.NextScheduledRun.IsZero() {
			next = j.NextScheduledRun.Format(time.RFC3339)
		}
		tw.Append([]string{
			j.JobID, j.Name,
			fmt.Sprintf("%s: %s", j.ScheduleType, j.ScheduleValue),
			fmt.Sprintf("%t", j.Enabled),
			next,
			fmt.Sprintf("%d", j.ConsecutiveFailures),
		})
	}
	tw.Render()
	return nil
}

func renderJobExecutionTable(w io.Writer, exec model.JobExecution) error {
	rows := [][]string{
		{"id", exec.ID},
		{"job_id", exec.JobID},
		{"status", string(exec.Status)},
		{"started_at", exec.StartedAt.Format(time.RFC3339)},
		{"completed_at", exec.CompletedAt.Format(time.RFC3339)},
		{"duration_seconds", fmt.Sprintf("%.2f", exec.DurationSeconds)},
	}
	if exec.ErrorMessage != "" {
		rows = append(rows, []string{"error", exec.ErrorMessage})
	}
	printKVTable(w, rows)
	if len(exec.Logs) > 0 {
		fmt.Fprintln(w, "\nlogs:")
		for _, line := range exec.Logs {
			fmt.Fprintln(w, "  "+line)
		}
	}
	return nil
}

func renderStoreStatsTable(w io.Writer, stats []storage.BucketStats) error {
	tw := newTable(w, []string{"BUCKET", "COUNT", "BYTES"})
	var totalCount int
	var totalBytes int64
	for _, s := range stats {
		tw.Append([]string{s.Name, fmt.Sprintf("%d", s.Count), fmt.Sprintf("%d", s.Bytes)})
		totalCount += s.Count
		totalBytes += s.Bytes
	}
	tw.Render()
	fmt.Fprintf(w, "\ntotal: %d records, %d bytes\n", totalCount, totalBytes)
	return nil
}

func renderETLResultTable(w io.Writer, r etl.ETLResult) error {
	fmt.Fprintf(w, "etl run: %s\n\n", r.SourceID)
	rows := [][]string{
		{"processed", fmt.Sprintf("%d", r.RecordsProcessed)},
		{"inserted", fmt.Sprintf("%d", r.RecordsInserted)},
		{"updated", fmt.Sprintf("%d", r.RecordsUpdated)},
		{"skipped", fmt.Sprintf("%d", r.RecordsSkipped)},
		{"failed", fmt.Sprintf("%d", r.RecordsFailed)},
		{"success_rate", fmt.Sprintf("%.1f%%", r.SuccessRate())},
		{"duration_seconds", fmt.Sprintf("%.2f", r.DurationSeconds)},
	}
	printKVTable(w, rows)
	for _, warn := range r.Warnings {
		fmt.Fprintln(w, "warning: "+warn)
	}
	for _, e := range r.Errors {
		fmt.Fprintln(w, "error: "+e)
	}
	return nil
}

// printKVTable renders a two-column key/value table.
func printKVTable(w io.Writer, rows [][]string) {
	tw := newTable(w, []string{"FIELD", "VALUE"})
	for _, r := range rows {
		tw.Append(r)
	}
	tw.Render()
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep

	switch result.Kind {
	case model.KindJobList:
		if jobs, ok := result.Data.([]model.JobDefinition); ok {
			_ = cw.Write([]string{"job_id", "name", "schedule_type", "schedule_value", "enabled", "next_scheduled_run", "consecutive_failures"})
			for _, j := range jobs {
				_ = cw.Write([]string{
					j.JobID, j.Name, string(j.ScheduleType), j.ScheduleValue,
					fmt.Sprintf("%t", j.Enabled), j.NextScheduledRun.Format(time.RFC3339),
					fmt.Sprintf("%d", j.ConsecutiveFailures),
				})
			}
		}
	case model.KindStoreStats:
		if stats, ok := result.Data.([]storage.BucketStats); ok {
			_ = cw.Write([]string{"bucket", "count", "bytes"})
			for _, s := range stats {
				_ = cw.Write([]string{s.Name, fmt.Sprintf("%d", s.Count), fmt.Sprintf("%d", s.Bytes)})
			}
		}
	default:
		b, _ := json.Marshal(result.Data)
		_ = cw.Write([]string{string(b)})
	}

	cw.Flush()
	return cw.Error()
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func renderMarkdown(w io.Writer, result *model.Result) error {
	switch result.Kind {
	case model.KindJobList:
		if jobs, ok := result.Data.([]model.JobDefinition); ok {
			fmt.Fprintf(w, "| JOB ID | NAME | SCHEDULE | ENABLED |\n|---|---|---|---|\n")
			for _, j := range jobs {
				fmt.Fprintf(w, "| %s | %s | %s: %s | %t |\n", j.JobID, mdEscape(j.Name), j.ScheduleType, j.ScheduleValue, j.Enabled)
			}
			return nil
		}
	case model.KindStoreStats:
		if stats, ok := result.Data.([]storage.BucketStats); ok {
			fmt.Fprintf(w, "| BUCKET | COUNT | BYTES |\n|---|---|---|\n")
			for _, s := range stats {
				fmt.Fprintf(w, "| %s | %d | %d |\n", s.Name, s.Count, s.Bytes)
			}
			return nil
		}
	}
	return renderJSON(w, result)
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings to w, followed by stats when verbose mode is on.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		fmt.Fprintf(w, "\n[%s • %d items • %dms]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Stats.Items,
			result.Stats.DurationMs,
		)
	}
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
