package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/GannettDigital/tablediff/internal/config"
	"github.com/GannettDigital/tablediff/internal/database"
	"github.com/GannettDigital/tablediff/internal/differ"
	"github.com/GannettDigital/tablediff/internal/leafdiff"
	"github.com/GannettDigital/tablediff/internal/lock"
	"github.com/GannettDigital/tablediff/internal/logger"
	"github.com/GannettDigital/tablediff/internal/reconcile"
	"github.com/GannettDigital/tablediff/internal/schemaload"
	"github.com/GannettDigital/tablediff/internal/segment"
)

var (
	diffJob   string
	diffForce bool
	diffQuiet bool
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Diff one job's table pair",
	Long: `Diff compares the left and right tables named by one job in the
configuration file, streaming every row-level difference as it's found
and printing a summary once the run completes.

The diff process follows these steps:
  1. Load and reconcile both sides' schemas
  2. Query both sides' observed key ranges (the first to return becomes
     the primary diff box; a mesh covers anything the other side adds)
  3. Recursively checksum-compare-and-split until segments are small
     enough to download and diff directly
  4. Stream every exclusive-to-left, exclusive-to-right, and updated row

Example:
  tablediff diff --config tablediff.yaml --job orders`,
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().StringVarP(&diffJob, "job", "j", "",
		"Job name from configuration file (required)")
	diffCmd.MarkFlagRequired("job")

	diffCmd.Flags().BoolVar(&diffForce, "force", false,
		"Run even if the job's advisory lock cannot be acquired (use with caution)")
	diffCmd.Flags().BoolVar(&diffQuiet, "quiet", false,
		"Suppress per-row diff output; print only the summary")

	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	job, err := cfg.GetJob(diffJob)
	if err != nil {
		return err
	}

	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat,
		overrides.BisectFactor, overrides.BisectThresh, overrides.Threaded)

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log = log.WithJob(diffJob).WithPair(job.LeftTable, job.RightTable)
	log.Infow("starting diff")

	dbManager := database.NewManager(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to databases: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.Ping(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	if !diffForce {
		jobLock := lock.NewJobLock(dbManager.Left, diffJob)
		if err := jobLock.AcquireOrFail(ctx); err != nil {
			if errors.Is(err, lock.ErrLockTimeout) {
				return fmt.Errorf("job %q is already running on another instance (use --force to override)", diffJob)
			}
			return fmt.Errorf("failed to acquire job lock: %w", err)
		}
		defer jobLock.ReleaseLock(context.Background())
		log.Infow("acquired advisory lock")
	} else {
		log.Warnw("skipping advisory lock acquisition (--force flag used)")
	}

	left, right, jsonColumns, err := buildSegments(ctx, cfg, dbManager, job)
	if err != nil {
		return err
	}

	bisect := cfg.ApplyJobOverrides(diffJob, overrides.BisectFactor, overrides.BisectThresh)
	if cmd.Flags().Changed("no-threaded") {
		bisect.Threaded = false
	}

	engine, err := differ.New(differ.Config{
		BisectionFactor:     bisect.Factor,
		BisectionThreshold:  bisect.Threshold,
		BisectionDisabled:   bisect.Disabled,
		AutoBisectionFactor: bisect.AutoFactor,
		SegmentRows:         bisect.SegmentRows,
		Threaded:            bisect.Threaded,
		MaxThreadpoolSize:   bisect.MaxThreadpoolSize,
		JSONColumns:         jsonColumns,
	}, log)
	if err != nil {
		return fmt.Errorf("invalid bisection configuration: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Warn("received shutdown signal - finishing in-flight work...")
		cancel()
	}()

	start := time.Now()
	stats, err := engine.Run(ctx, left, right, func(d leafdiff.Diff) {
		if !diffQuiet {
			printDiffRow(d)
		}
	})
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("diff cancelled by user")
			return nil
		}
		return fmt.Errorf("diff failed: %w", err)
	}

	printSummary(diffJob, duration, stats)
	return nil
}

// buildSegments loads and reconciles both sides' schemas and constructs the
// bound TableSegments the differ operates on (spec.md §4.6's reconcile step
// runs before the engine ever sees a segment).
func buildSegments(ctx context.Context, cfg *config.Config, dbManager *database.Manager, job *config.DiffJob) (segment.TableSegment, segment.TableSegment, []leafdiff.JSONColumn, error) {
	leftSchema, err := schemaload.Load(ctx, dbManager.Left, cfg.Left.Database, job.LeftTable)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("left schema: %w", err)
	}
	rightSchema, err := schemaload.Load(ctx, dbManager.Right, cfg.Right.Database, job.RightTable)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("right schema: %w", err)
	}

	if _, err := reconcile.Reconcile(job.KeyColumns, leftSchema.Schema, rightSchema.Schema); err != nil {
		var mismatch *reconcile.MismatchError
		if errors.As(err, &mismatch) {
			return nil, nil, nil, fmt.Errorf("schema reconcile: %w", err)
		}
		return nil, nil, nil, err
	}

	var left, right segment.TableSegment
	left = segment.NewSQLSegment(dbManager.Left, job.LeftTable, job.LeftTable, job.KeyColumns, leftSchema.Columns, job.Where)
	right = segment.NewSQLSegment(dbManager.Right, job.RightTable, job.RightTable, job.KeyColumns, rightSchema.Columns, job.Where)

	if len(job.IgnoredColumns) > 0 {
		ignored := make(map[string]struct{}, len(job.IgnoredColumns))
		for _, c := range job.IgnoredColumns {
			ignored[c] = struct{}{}
		}
		left = left.WithIgnoredColumns(ignored)
		right = right.WithIgnoredColumns(ignored)
	}

	var jsonColumns []leafdiff.JSONColumn
	for _, name := range job.JSONColumns {
		for i, c := range leftSchema.Columns {
			if c == name {
				jsonColumns = append(jsonColumns, leafdiff.JSONColumn{Index: i, Name: name})
				break
			}
		}
	}

	return left, right, jsonColumns, nil
}

func printDiffRow(d leafdiff.Diff) {
	switch d.Side {
	case '-':
		fmt.Printf("%s %s %v\n", color.FgRed.Render("-"), d.Key.String(), d.Row)
	case '+':
		fmt.Printf("%s %s %v\n", color.FgGreen.Render("+"), d.Key.String(), d.Row)
	}
}

func printSummary(job string, duration time.Duration, stats *differ.Stats) {
	fmt.Println()
	color.Bold.Printf("=== Diff Complete: %s ===\n", job)
	fmt.Printf("Duration:        %s\n", duration.Round(time.Millisecond))
	printAligned("Rows (left):", fmt.Sprintf("%d", stats.RowsA))
	printAligned("Rows (right):", fmt.Sprintf("%d", stats.RowsB))
	printAligned("Exclusive left:", color.FgRed.Render(fmt.Sprintf("%d", stats.ExclusiveA)))
	printAligned("Exclusive right:", color.FgGreen.Render(fmt.Sprintf("%d", stats.ExclusiveB)))
	printAligned("Updated:", color.FgYellow.Render(fmt.Sprintf("%d", stats.Updated)))
	printAligned("Unchanged:", fmt.Sprintf("%d", stats.Unchanged))
	fmt.Printf("Diff:            %.2f%%\n", stats.DiffPercent*100)
}

// printAligned right-pads label to a fixed column using rune-width-aware
// padding, so ANSI-colored values don't throw off alignment the way naive
// byte-length padding would on wide-rune labels.
func printAligned(label, value string) {
	const labelWidth = 17
	pad := labelWidth - runewidth.StringWidth(label)
	if pad < 1 {
		pad = 1
	}
	fmt.Printf("%s%s%s\n", label, padding(pad), value)
}

func padding(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
