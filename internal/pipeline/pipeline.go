// Package pipeline runs one classification pass: it discovers log files or
// reopens a report, then dispatches every pending row.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/mesh-intelligence/logtriage/internal/dispatch"
	"github.com/mesh-intelligence/logtriage/internal/match"
	"github.com/mesh-intelligence/logtriage/internal/report"
	"github.com/mesh-intelligence/logtriage/internal/scan"
	"github.com/mesh-intelligence/logtriage/pkg/types"
)

// DefaultFormat is used when neither an output path nor a format is given.
const DefaultFormat = report.FormatCSV

// ErrFormatConflict is returned when --output and --format disagree.
var ErrFormatConflict = errors.New("output extension does not match format")

// Options selects what a Run works on.
type Options struct {
	Target  string        // File or directory to scan on a fresh run.
	Resume  string        // Existing report to continue; Target is ignored.
	Output  string        // Report path for a fresh run.
	Format  report.Format // Report format for a fresh run.
	Debug   bool          // Add prompt and response columns on a fresh run.
	Workers int           // Overrides Config.Workers when positive.
}

// Result describes a finished Run.
type Result struct {
	ReportPath string
	Discovered int // Files found by discovery; zero on resume.
	Pending    int // Rows dispatched.
	Summary    dispatch.Summary
}

// Runner carries the dependencies shared by every run.
type Runner struct {
	Config     types.Config
	Classifier dispatch.Classifier
	Logger     *slog.Logger
	Progress   dispatch.Progress
	Tracer     trace.Tracer
	Now        func() time.Time
}

// Run executes one pass. Opening or creating the report is the only fatal
// step; per-row failures are recorded in the report. A cancelled ctx
// returns ctx.Err() after the report has been finalized.
func (r *Runner) Run(ctx context.Context, opts Options) (Result, error) {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "pipeline")

	matcher, err := match.New(r.Config.SuccessPatterns, r.Config.FailurePatterns)
	if err != nil {
		return Result{}, err
	}

	var res Result
	var store types.Store
	if opts.Resume != "" {
		store, err = report.Open(opts.Resume)
		if err != nil {
			return Result{}, fmt.Errorf("open report: %w", err)
		}
		log.Info("resuming report", "path", store.Path())
	} else {
		store, res.Discovered, err = r.create(opts, log)
		if err != nil {
			return Result{}, err
		}
	}
	res.ReportPath = store.Path()

	pending, err := store.Pending()
	if err != nil {
		store.Close()
		return res, fmt.Errorf("read pending rows: %w", err)
	}
	res.Pending = len(pending)
	if len(pending) == 0 {
		log.Info("nothing to do", "path", store.Path())
		return res, store.Close()
	}

	dopts := dispatch.OptionsFromConfig(r.Config)
	if opts.Workers > 0 {
		dopts.Workers = opts.Workers
	}
	dopts.Logger = r.Logger
	dopts.Progress = r.Progress
	dopts.Tracer = r.Tracer

	res.Summary, err = dispatch.New(store, matcher, r.Classifier, dopts).Run(ctx, pending)
	return res, err
}

func (r *Runner) create(opts Options, log *slog.Logger) (types.Store, int, error) {
	target := opts.Target
	if target == "" {
		target = "."
	}
	output, err := ReportPath(opts.Output, opts.Format, r.now())
	if err != nil {
		return nil, 0, err
	}

	files, err := scan.Discover(target, scan.FiltersFromConfig(r.Config))
	if err != nil {
		return nil, 0, fmt.Errorf("discover %s: %w", target, err)
	}
	if len(files) == 0 {
		return nil, 0, fmt.Errorf("%w under %s", types.ErrNoLogFiles, target)
	}
	depth, rows, err := scan.Plan(target, files)
	if err != nil {
		return nil, 0, err
	}

	store, err := report.Create(output, types.Schema{Depth: depth, Debug: opts.Debug}, rows)
	if err != nil {
		return nil, 0, fmt.Errorf("create report: %w", err)
	}
	log.Info("report created", "path", store.Path(), "files", len(files), "depth", depth, "debug", opts.Debug)
	return store, len(files), nil
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// ReportPath resolves the report path for a fresh run. An empty output
// yields analysis_report_YYYYmmdd_HHMMSS.<format> in the working
// directory. An output without a known extension takes the format's.
func ReportPath(output string, format report.Format, now time.Time) (string, error) {
	if output == "" {
		if format == "" {
			format = DefaultFormat
		}
		return fmt.Sprintf("analysis_report_%s.%s", now.Format("20060102_150405"), format), nil
	}
	implied, err := report.FormatOf(output)
	if err != nil {
		if format == "" {
			format = DefaultFormat
		}
		return output + "." + string(format), nil
	}
	if format != "" && format != implied {
		return "", fmt.Errorf("%w: %s is not %s", ErrFormatConflict, filepath.Base(output), format)
	}
	return output, nil
}
