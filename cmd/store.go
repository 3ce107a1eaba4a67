package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/gwicho38/polidisc/internal/model"
	"github.com/gwicho38/polidisc/internal/render"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect and maintain the local disclosure store",
	Long: `Commands for inspecting what data has been accumulated in the local
bbolt database and for reclaiming space held by expired blobs.`,
}

// ─── store stats ──────────────────────────────────────────────────────────────

var storeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-bucket record counts and byte sizes",
	Example: `  polidisc store stats
  polidisc store stats --format csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		stats, err := deps.Store.Stats()
		if err != nil {
			return fmt.Errorf("reading store stats: %w", err)
		}

		result := &model.Result{
			Kind:        model.KindStoreStats,
			Data:        stats,
			GeneratedAt: time.Now(),
			Command:     "store stats",
		}

		format := resolveFormat("")
		w, closeFn, err := outputWriter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeFn()
		if err := render.Render(w, result, format); err != nil {
			return err
		}
		render.PrintFooter(cmd.OutOrStdout(), result, deps.Config.Verbose)
		return nil
	},
}

// ─── store gc ─────────────────────────────────────────────────────────────────

var storeGCCmd = &cobra.Command{
	Use:   "gc",
	Short: "Delete blobs past their retention window and compact the database file",
	Example: `  polidisc store gc`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		deleted, err := deps.Store.GC(time.Now())
		if err != nil {
			return fmt.Errorf("running gc: %w", err)
		}

		before, after, err := deps.Store.Compact()
		if err != nil {
			return fmt.Errorf("compacting store: %w", err)
		}

		total := 0
		for bucket, n := range deleted {
			fmt.Fprintf(cmd.OutOrStdout(), "  %-24s %d\n", bucket, n)
			total += n
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired blobs across %d buckets\n", total, len(deleted))
		fmt.Fprintf(cmd.OutOrStdout(), "compacted db: %s -> %s bytes\n", strconv.FormatInt(before, 10), strconv.FormatInt(after, 10))
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeStatsCmd)
	storeCmd.AddCommand(storeGCCmd)
}
