package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/logtriage/internal/cache"
	"github.com/mesh-intelligence/logtriage/internal/config"
	"github.com/mesh-intelligence/logtriage/internal/dispatch"
	"github.com/mesh-intelligence/logtriage/internal/llm"
	"github.com/mesh-intelligence/logtriage/internal/paths"
	"github.com/mesh-intelligence/logtriage/internal/pipeline"
	"github.com/mesh-intelligence/logtriage/internal/report"
	"github.com/mesh-intelligence/logtriage/internal/telemetry"
	"github.com/mesh-intelligence/logtriage/pkg/types"
)

// shutdownTimeout bounds the trace exporter flush on exit.
const shutdownTimeout = 5 * time.Second

type runFlags struct {
	resume  string
	output  string
	format  string
	threads int
	debug   bool
}

func newRunCmd() *cobra.Command {
	var rf runFlags
	cmd := &cobra.Command{
		Use:   "run [path]",
		Short: "Classify the logs under path, or resume a report",
		Long: "Scan path for log files and classify each one, writing verdicts to a report.\n" +
			"With --resume, continue an existing report: only rows still Pending are\n" +
			"processed. Interrupting a run with Ctrl-C keeps every verdict already made.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args, rf)
		},
	}
	cmd.Flags().StringVar(&rf.resume, "resume", "", "existing report to continue")
	cmd.Flags().StringVar(&rf.output, "output", "", "report path (default: analysis_report_<timestamp>.<format>)")
	cmd.Flags().StringVar(&rf.format, "format", "", "report format: csv or xlsx (default: csv)")
	cmd.Flags().IntVar(&rf.threads, "threads", 0, "concurrent workers (default: from config)")
	cmd.Flags().BoolVar(&rf.debug, "debug", false, "add prompt and model response columns")
	return cmd
}

func runRun(cmd *cobra.Command, args []string, rf runFlags) error {
	var target string
	if len(args) == 1 {
		target = args[0]
	}
	if target == "" && rf.resume == "" {
		return userError(errors.New("a path or --resume is required"))
	}
	if rf.threads < 0 {
		return userError(types.ErrWorkersInvalid)
	}
	var format report.Format
	if rf.format != "" {
		f, err := report.ParseFormat(rf.format)
		if err != nil {
			return userError(err)
		}
		format = f
	}

	configDir, err := resolveConfigDir()
	if err != nil {
		return err
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return userError(err)
	}
	if cfg.Credential == "" {
		return userError(fmt.Errorf("%w: add it to %s or set %s_CREDENTIAL", types.ErrCredentialEmpty, config.FileName, config.EnvPrefix))
	}
	level := cfg.LogLevel
	if flags.logLevel != "" {
		level = flags.logLevel
	}

	runID := telemetry.NewRunID()
	log := telemetry.NewLogger(cmd.ErrOrStderr(), level, runID)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracing, err := telemetry.InitTracing(ctx, cfg.TraceFile, runID, Version)
	if err != nil {
		return sysError(err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := tracing.Shutdown(sctx); err != nil {
			log.Warn("flush traces", "error", err)
		}
	}()

	classifier, closeCache, err := buildClassifier(cfg, configDir, tracing, log)
	if err != nil {
		return err
	}
	defer closeCache()

	runner := &pipeline.Runner{
		Config:     cfg,
		Classifier: classifier,
		Logger:     log,
		Progress:   newProgress(cmd.ErrOrStderr()),
		Tracer:     tracing.Tracer,
	}
	res, err := runner.Run(ctx, pipeline.Options{
		Target:  target,
		Resume:  rf.resume,
		Output:  rf.output,
		Format:  format,
		Debug:   rf.debug,
		Workers: rf.threads,
	})

	out := cmd.OutOrStdout()
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintf(out, "interrupted: %d of %d rows settled\nresume with: logtriage run --resume %s\n",
			res.Summary.Settled(), res.Pending, res.ReportPath)
		return sysError(err)
	case err != nil:
		return classifyRunError(err)
	}

	if res.Pending == 0 {
		fmt.Fprintf(out, "all rows already settled: %s\n", res.ReportPath)
		return nil
	}
	s := res.Summary
	fmt.Fprintf(out, "report: %s\nrows: %d  success: %d  failure: %d  errors: %d  (pattern: %d, model: %d, cached: %d)\n",
		res.ReportPath, s.Total, s.Success, s.Failure, s.Errors, s.FastPath, s.Classified, s.Cached)
	return nil
}

// buildClassifier constructs the model client and, when enabled, wraps it in
// the verdict cache. The returned func closes the cache.
func buildClassifier(cfg types.Config, configDir string, tracing *telemetry.Tracing, log *slog.Logger) (dispatch.Classifier, func(), error) {
	nop := func() {}
	tmpl, err := config.LoadTemplates(configDir)
	if err != nil {
		return nil, nop, sysError(err)
	}
	opts := llm.OptionsFromConfig(cfg)
	opts.Tracer = tracing.Tracer
	client, err := llm.NewClient(opts, tmpl)
	if err != nil {
		return nil, nop, userError(err)
	}
	if !cfg.CacheEnabled {
		return client, nop, nil
	}

	dataDir, err := paths.ResolveDataDir(cfg.DataDir)
	if err != nil {
		return nil, nop, sysError(fmt.Errorf("resolve data directory: %w", err))
	}
	c, err := cache.Open(dataDir)
	if err != nil {
		return nil, nop, sysError(err)
	}
	log.Info("verdict cache enabled", "path", c.Path())
	return cache.Wrap(client, c, client.Model(), tmpl.Digest(), log), func() { c.Close() }, nil
}

// classifyRunError maps pipeline failures to exit codes.
func classifyRunError(err error) error {
	for _, sentinel := range []error{
		types.ErrNoLogFiles,
		types.ErrReportExists,
		types.ErrReportNotFound,
		types.ErrSchemaMismatch,
		types.ErrUnknownFormat,
		types.ErrBadPattern,
		pipeline.ErrFormatConflict,
	} {
		if errors.Is(err, sentinel) {
			return userError(err)
		}
	}
	return sysError(err)
}
