// Package dispatch runs pending report rows through the fast-path matcher and
// the model classifier on a bounded worker pool, committing each result to
// the report as it settles.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/mesh-intelligence/logtriage/internal/llm"
	"github.com/mesh-intelligence/logtriage/internal/match"
	"github.com/mesh-intelligence/logtriage/pkg/types"
)

// Defaults applied by New for zero option values.
const (
	DefaultWorkers            = 8
	DefaultCheckpointInterval = 10
	DefaultExcerptBytes       = 4000
)

// Classifier produces a verdict for an excerpt the matcher could not decide.
type Classifier interface {
	Classify(ctx context.Context, content string) (llm.Outcome, error)
}

// Progress observes commits. Calls are serialized by the dispatcher.
type Progress interface {
	Start(total int)
	Observe(done int, row types.Row, res types.Result)
	Done()
}

type nopProgress struct{}

func (nopProgress) Start(int)                            {}
func (nopProgress) Observe(int, types.Row, types.Result) {}
func (nopProgress) Done()                                {}

// Options configures a Dispatcher.
type Options struct {
	Workers            int
	CheckpointInterval int
	ExcerptBytes       int
	ExcerptFrom        string
	Logger             *slog.Logger
	Progress           Progress
	Tracer             trace.Tracer
}

// OptionsFromConfig maps the run configuration onto dispatcher options.
func OptionsFromConfig(cfg types.Config) Options {
	return Options{
		Workers:            cfg.Workers,
		CheckpointInterval: cfg.CheckpointInterval,
		ExcerptBytes:       cfg.ExcerptBytes,
		ExcerptFrom:        cfg.ExcerptFrom,
	}
}

// Summary counts the outcomes of one Run.
type Summary struct {
	Total        int // Tasks dispatched.
	Success      int
	Failure      int
	Errors       int // Error-kind statuses, including unparseable answers.
	FastPath     int // Settled by the matcher.
	Classified   int // Settled by a classifier call.
	Cached       int // Classifier answers served from the verdict cache.
	CommitErrors int // Results the store refused.
}

// Settled returns the number of results committed.
func (s Summary) Settled() int { return s.Success + s.Failure + s.Errors }

type source int

const (
	sourceNone source = iota
	sourceFast
	sourceModel
	sourceCache
)

// Dispatcher owns the worker pool for one report.
type Dispatcher struct {
	store      types.Store
	matcher    *match.Matcher
	classifier Classifier
	opts       Options
	log        *slog.Logger
	tracer     trace.Tracer

	// mu serializes every store update, the checkpoint counter, and
	// progress callbacks across all workers.
	mu        sync.Mutex
	completed int
	total     int
	sum       Summary
}

// New builds a Dispatcher. classifier may be nil, in which case rows the
// matcher cannot decide are recorded as API errors.
func New(store types.Store, matcher *match.Matcher, classifier Classifier, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.CheckpointInterval <= 0 {
		opts.CheckpointInterval = DefaultCheckpointInterval
	}
	if opts.ExcerptBytes <= 0 {
		opts.ExcerptBytes = DefaultExcerptBytes
	}
	if opts.ExcerptFrom == "" {
		opts.ExcerptFrom = types.ExcerptHead
	}
	if opts.Progress == nil {
		opts.Progress = nopProgress{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	tr := opts.Tracer
	if tr == nil {
		tr = noop.NewTracerProvider().Tracer("")
	}
	return &Dispatcher{
		store:      store,
		matcher:    matcher,
		classifier: classifier,
		opts:       opts,
		log:        log.With("component", "dispatch"),
		tracer:     tr,
	}
}

// Run classifies rows and commits every result. Rows with a repeated ID are
// dispatched once. Finalize is always called on the store before Run
// returns. When ctx is cancelled no further rows are started; rows already
// running finish and are committed, and Run returns ctx.Err().
func (d *Dispatcher) Run(ctx context.Context, rows []types.Row) (sum Summary, err error) {
	defer func() {
		if ferr := d.store.Finalize(); ferr != nil {
			d.log.Error("finalize report", "path", d.store.Path(), "error", ferr)
			if err == nil {
				err = fmt.Errorf("finalize report: %w", ferr)
			}
		}
	}()

	tasks := distinct(rows)
	d.total = len(tasks)
	d.opts.Progress.Start(d.total)
	d.log.Info("dispatch started", "tasks", d.total, "workers", d.opts.Workers, "checkpoint", d.opts.CheckpointInterval)

	jobs := make(chan types.Row)
	var wg sync.WaitGroup
	for i := 0; i < d.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := range jobs {
				d.runTask(ctx, row)
			}
		}()
	}

feed:
	for _, row := range tasks {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break feed
		case jobs <- row:
		}
	}
	close(jobs)
	wg.Wait()
	d.opts.Progress.Done()

	d.mu.Lock()
	sum = d.sum
	d.mu.Unlock()
	sum.Total = d.total

	if cerr := ctx.Err(); cerr != nil {
		d.log.Warn("dispatch interrupted", "settled", sum.Settled(), "tasks", sum.Total)
		return sum, cerr
	}
	d.log.Info("dispatch finished", "success", sum.Success, "failure", sum.Failure, "errors", sum.Errors)
	return sum, nil
}

func distinct(rows []types.Row) []types.Row {
	seen := make(map[int]bool, len(rows))
	out := make([]types.Row, 0, len(rows))
	for _, r := range rows {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}

// runTask settles one row. The task is not interrupted by cancellation of
// the run; the classifier timeout bounds it instead.
func (d *Dispatcher) runTask(ctx context.Context, row types.Row) {
	ctx, span := d.tracer.Start(context.WithoutCancel(ctx), "dispatch.task",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("report.path", row.AbsPath), attribute.Int("report.row", row.ID)),
	)
	defer span.End()

	res, src := d.classify(ctx, row)
	span.SetAttributes(attribute.String("report.status", res.Status))
	d.commit(row, res, src)
}

// classify reads the excerpt and produces a result. A panic anywhere below
// becomes a worker-error result for this row only.
func (d *Dispatcher) classify(ctx context.Context, row types.Row) (res types.Result, src source) {
	defer func() {
		if p := recover(); p != nil {
			d.log.Error("task panicked", "path", row.AbsPath, "panic", p)
			res = types.Result{Status: types.StatusWorkerError, Detail: fmt.Sprint(p), Content: res.Content}
			src = sourceNone
		}
	}()

	content := row.Content
	if content == "" {
		c, err := ReadExcerpt(row.AbsPath, d.opts.ExcerptBytes, d.opts.ExcerptFrom)
		if err != nil {
			d.log.Warn("read log", "path", row.AbsPath, "error", err)
			return types.Result{Status: types.StatusReadError, Detail: fmt.Sprintf("无法读取: %v", err)}, sourceNone
		}
		content = c
	}
	res.Content = content

	if v, ok := d.matcher.Classify(content); ok {
		return types.Result{Status: v.Status, Detail: v.Detail(), Content: content}, sourceFast
	}

	if d.classifier == nil {
		return types.Result{Status: types.StatusAPIError, Detail: "no classifier configured", Content: content}, sourceNone
	}
	out, err := d.classifier.Classify(ctx, content)
	if err != nil {
		d.log.Warn("classify", "path", row.AbsPath, "error", err)
	}
	res = types.Result{
		Status:   out.Status,
		Detail:   out.Detail,
		Content:  content,
		Prompt:   out.Prompt,
		Response: out.Response,
	}
	if out.Cached {
		return res, sourceCache
	}
	return res, sourceModel
}

// commit writes res under the dispatcher lock and checkpoints the store
// every CheckpointInterval commits.
func (d *Dispatcher) commit(row types.Row, res types.Result, src source) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.store.Update(row.ID, res); err != nil {
		d.sum.CommitErrors++
		d.log.Error("commit result", "row", row.ID, "path", row.AbsPath, "error", err)
	} else {
		d.tally(res, src)
	}

	d.completed++
	if d.completed%d.opts.CheckpointInterval == 0 {
		if err := d.store.Flush(); err != nil {
			d.log.Error("checkpoint", "completed", d.completed, "error", err)
		} else {
			d.log.Debug("checkpoint", "completed", d.completed)
		}
	}
	d.opts.Progress.Observe(d.completed, row, res)
}

func (d *Dispatcher) tally(res types.Result, src source) {
	switch {
	case res.Status == types.StatusSuccess:
		d.sum.Success++
	case res.Status == types.StatusFailure:
		d.sum.Failure++
	default:
		d.sum.Errors++
	}
	switch src {
	case sourceFast:
		d.sum.FastPath++
	case sourceModel:
		d.sum.Classified++
	case sourceCache:
		d.sum.Classified++
		d.sum.Cached++
	}
}
