package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gwicho38/polidisc/internal/app"
	"github.com/gwicho38/polidisc/internal/model"
	"github.com/gwicho38/polidisc/internal/render"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage the background job scheduler",
	Long: `Add, list, pause, resume, and trigger scheduled ingestion jobs. Each
job invokes run:<source> against the orchestrator on a cron expression or a
fixed interval.`,
}

var scheduleAutoRetry bool

var scheduleAddCronCmd = &cobra.Command{
	Use:   "add-cron <job-id> <name> <cron-expr> <source>",
	Short: "Register a cron-scheduled ingestion job",
	Example: `  polidisc schedule add-cron daily-house "Daily House ingest" "0 6 * * *" us_house`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		jobID, name, expr, source := args[0], args[1], args[2], args[3]
		fn := app.RunFunctionPrefix + source
		if err := deps.Scheduler.AddCronJob(jobID, name, fn, expr, scheduleAutoRetry, true); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Added cron job %s (%s)\n", jobID, expr)
		return nil
	},
}

var scheduleAddIntervalCmd = &cobra.Command{
	Use:   "add-interval <job-id> <name> <interval> <source>",
	Short: "Register an interval-scheduled ingestion job",
	Example: `  polidisc schedule add-interval hourly-senate "Hourly Senate ingest" 1h us_senate`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		jobID, name, intervalStr, source := args[0], args[1], args[2], args[3]
		d, err := time.ParseDuration(intervalStr)
		if err != nil {
			return fmt.Errorf("invalid interval %q: %w", intervalStr, err)
		}
		fn := app.RunFunctionPrefix + source
		if err := deps.Scheduler.AddIntervalJob(jobID, name, fn, d, scheduleAutoRetry, true); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Added interval job %s (every %s)\n", jobID, d)
		return nil
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all scheduled jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		jobs, err := deps.Scheduler.GetJobs()
		if err != nil {
			return err
		}
		result := &model.Result{Kind: model.KindJobList, Data: jobs, GeneratedAt: time.Now(), Command: "schedule list"}
		return render.RenderTo(globalFlags.Out, result, resolveFormat(""))
	},
}

var scheduleInfoCmd = &cobra.Command{
	Use:   "info <job-id>",
	Short: "Show a job's definition and most recent execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		_, exec, err := deps.Scheduler.GetJobInfo(args[0])
		if err != nil {
			return err
		}
		result := &model.Result{Kind: model.KindJobExecution, Data: exec, GeneratedAt: time.Now(), Command: "schedule info " + args[0]}
		return render.RenderTo(globalFlags.Out, result, resolveFormat(""))
	},
}

var schedulePauseCmd = &cobra.Command{
	Use:   "pause <job-id>",
	Short: "Disable a scheduled job without removing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		if err := deps.Scheduler.PauseJob(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Paused %s\n", args[0])
		return nil
	},
}

var scheduleResumeCmd = &cobra.Command{
	Use:   "resume <job-id>",
	Short: "Re-enable a paused scheduled job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		if err := deps.Scheduler.ResumeJob(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Resumed %s\n", args[0])
		return nil
	},
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove <job-id>",
	Short: "Remove a scheduled job entirely",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		if err := deps.Scheduler.RemoveJob(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %s\n", args[0])
		return nil
	},
}

var scheduleRunNowTimeout time.Duration

var scheduleRunNowCmd = &cobra.Command{
	Use:   "run-now <job-id>",
	Short: "Trigger an out-of-band execution of a scheduled job immediately",
	Long: `Run-now starts the job's function as if its scheduled time had
arrived, bypassing the single-flight guard only insofar as it still refuses
to start a second concurrent run of the same job. The command blocks and
polls until the execution finishes or --timeout elapses.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		jobID := args[0]
		triggeredAt := time.Now()
		ctx, cancel := context.WithTimeout(cmd.Context(), scheduleRunNowTimeout)
		defer cancel()

		deps.Scheduler.RunJobNow(ctx, jobID)

		var exec model.JobExecution
		for {
			_, e, err := deps.Scheduler.GetJobInfo(jobID)
			if err == nil && !e.StartedAt.Before(triggeredAt) && e.Status != model.JobRunning && e.Status != model.JobQueued {
				exec = e
				break
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("schedule run-now: timed out waiting for %s to finish", jobID)
			case <-time.After(200 * time.Millisecond):
			}
		}

		result := &model.Result{Kind: model.KindJobExecution, Data: exec, GeneratedAt: time.Now(), Command: "schedule run-now " + jobID}
		return render.RenderTo(globalFlags.Out, result, resolveFormat(""))
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(scheduleAddCronCmd)
	scheduleCmd.AddCommand(scheduleAddIntervalCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleInfoCmd)
	scheduleCmd.AddCommand(schedulePauseCmd)
	scheduleCmd.AddCommand(scheduleResumeCmd)
	scheduleCmd.AddCommand(scheduleRemoveCmd)
	scheduleCmd.AddCommand(scheduleRunNowCmd)

	scheduleAddCronCmd.Flags().BoolVar(&scheduleAutoRetry, "auto-retry", false, "retry a missed run on process startup")
	scheduleAddIntervalCmd.Flags().BoolVar(&scheduleAutoRetry, "auto-retry", false, "retry a missed run on process startup")
	scheduleRunNowCmd.Flags().DurationVar(&scheduleRunNowTimeout, "timeout", 5*time.Minute, "how long to wait for the run to finish")
}
