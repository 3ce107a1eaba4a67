package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gwicho38/polidisc/internal/model"
	"github.com/gwicho38/polidisc/internal/render"
)

// etlCmd exposes the record-by-record ETL runner (C6) as an alternative to
// run's batch-oriented orchestrator pass: one record at a time, with live
// progress pollable mid-run via `etl status`.
var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "Run or inspect record-by-record ETL jobs for a source",
	Long: `etl drives one registered source through fetch, parse, validate, and
upload one record at a time rather than as a single pipeline batch, polling
a live JobStatus as it goes. Use run for the ordinary per-source pass;
reach for etl when you need partial-batch progress or a hard record limit.`,
}

var (
	etlLimit        int
	etlUpdate       bool
	etlLookbackDays int
)

var etlRunCmd = &cobra.Command{
	Use:     "run <source>",
	Short:   "Run one ETL job for a registered source",
	Example: `  polidisc etl run us_house --limit 50`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		name := args[0]
		svc, ok := deps.ETL.Get(name)
		if !ok {
			return fmt.Errorf("etl: no service registered for source %q — registered sources: %s", name, joinNames())
		}

		jobID := uuid.NewString()
		params := map[string]any{}
		if etlLookbackDays > 0 {
			params["lookback_days"] = etlLookbackDays
		}

		result := deps.ETL.Run(cmd.Context(), svc, jobID, etlLimit, etlUpdate, params)

		out := &model.Result{
			Kind:        model.KindETLResult,
			Data:        result,
			GeneratedAt: time.Now(),
			Command:     "etl run " + name,
			Warnings:    result.Warnings,
		}
		if err := render.RenderTo(globalFlags.Out, out, resolveFormat("")); err != nil {
			return err
		}
		if !result.IsSuccess() {
			return fmt.Errorf("etl run %s: completed with %d error(s)", name, len(result.Errors))
		}
		return nil
	},
}

var etlStatusCmd = &cobra.Command{
	Use:     "status <job-id>",
	Short:   "Show the live or final status of one ETL job",
	Example: `  polidisc etl status 3f1e2a9c-...`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		status, ok := deps.ETL.Status(args[0])
		if !ok {
			return fmt.Errorf("etl: no job tracked with id %q", args[0])
		}
		rows := [][]string{
			{"job_id", status.JobID},
			{"status", status.Status},
			{"message", status.Message},
			{"processed", fmt.Sprintf("%d/%d", status.Processed, status.Total)},
			{"started_at", status.StartedAt.Format(time.RFC3339)},
		}
		result := &model.Result{Kind: model.KindTable, Data: rows, GeneratedAt: time.Now(), Command: "etl status " + args[0]}
		return render.RenderTo(globalFlags.Out, result, resolveFormat(""))
	},
}

func init() {
	rootCmd.AddCommand(etlCmd)
	etlCmd.AddCommand(etlRunCmd, etlStatusCmd)

	etlRunCmd.Flags().IntVar(&etlLimit, "limit", 0, "cap the number of records processed, 0 for no limit")
	etlRunCmd.Flags().BoolVar(&etlUpdate, "update", false, "update existing disclosure rows instead of skipping them")
	etlRunCmd.Flags().IntVar(&etlLookbackDays, "lookback-days", 0, "override the default lookback window in days")
}
