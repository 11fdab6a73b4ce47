package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/waftester/scanhost/pkg/metrics"
	"github.com/waftester/scanhost/pkg/telemetry"
	"github.com/waftester/scanhost/pkg/workerpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Func is the body of a task. ctx is the context given to Spawn.
type Func func(ctx context.Context) error

// group is the per-owner wait group.
type group struct {
	mu   sync.Mutex
	cond *sync.Cond
	live map[*Task]struct{}
	errs []error

	completed int
	failed    int
}

func newGroup() *group {
	g := &group{live: make(map[*Task]struct{})}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Tracker schedules tasks on a pool and lets each owner join its own.
type Tracker struct {
	pool    *workerpool.Pool
	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer

	mu     sync.Mutex
	groups map[string]*group
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger used for task failures.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithMetrics records task lifecycle on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(t *Tracker) { t.metrics = c }
}

// New creates a tracker running tasks on pool. A nil pool runs every
// task on its own goroutine.
func New(pool *workerpool.Pool, opts ...Option) *Tracker {
	t := &Tracker{
		pool:   pool,
		tracer: telemetry.Tracer(),
		groups: make(map[string]*group),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}

func (t *Tracker) group(owner string) *group {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.groups[owner]
	if !ok {
		g = newGroup()
		t.groups[owner] = g
	}
	return g
}

func (t *Tracker) lookup(owner string) *group {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.groups[owner]
}

// Spawn records a pending task under owner and schedules fn. It never
// blocks: when the pool queue is full the task gets its own goroutine.
func (t *Tracker) Spawn(ctx context.Context, owner, name string, fn Func) {
	task := newTask(owner, name)
	g := t.group(owner)

	g.mu.Lock()
	g.live[task] = struct{}{}
	g.mu.Unlock()
	t.metrics.TaskSpawned(owner)

	run := func() { t.execute(ctx, g, task, fn) }
	if t.pool == nil || !t.pool.TrySubmit(run) {
		go run()
	}
}

func (t *Tracker) execute(ctx context.Context, g *group, task *Task, fn Func) {
	ctx, span := t.tracer.Start(ctx, "tasks.run",
		trace.WithAttributes(
			attribute.String("task.owner", task.Owner),
			attribute.String("task.name", task.Name),
			attribute.String("task.id", task.ID.String()),
		),
	)
	defer span.End()

	task.set(Running)
	t.metrics.TaskStarted(task.Owner)

	err := ctx.Err()
	if err == nil {
		err = call(ctx, fn)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.fail(task, err)
	}
	t.finish(g, task, err)
}

// call runs fn, turning a panic into an error wrapping ErrPanic.
func call(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn(ctx)
}

func (t *Tracker) fail(task *Task, err error) {
	attrs := []any{
		slog.String("owner", task.Owner),
		slog.String("task", task.Name),
		slog.String("id", task.ID.String()),
		slog.String("error", err.Error()),
	}
	if errors.Is(err, context.Canceled) {
		t.logger.Debug("task cancelled", attrs...)
		return
	}
	t.logger.Warn("task failed", attrs...)
}

func (t *Tracker) finish(g *group, task *Task, err error) {
	state := Completed
	if err != nil {
		state = Failed
	}
	task.set(state)
	t.metrics.TaskFinished(task.Owner, state.String())

	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.live, task)
	if err != nil {
		g.failed++
		g.errs = append(g.errs, &Error{TaskID: task.ID, Owner: task.Owner, Name: task.Name, Err: err})
	} else {
		g.completed++
	}
	if len(g.live) == 0 {
		g.cond.Broadcast()
	}
}

// Join blocks until owner has no pending or running tasks. It returns the
// failures recorded since the previous Join, joined with errors.Join; each
// is a *Error. A nil return means every task succeeded.
func (t *Tracker) Join(owner string) error {
	g := t.lookup(owner)
	if g == nil {
		return nil
	}

	g.mu.Lock()
	for len(g.live) > 0 {
		g.cond.Wait()
	}
	errs := g.errs
	g.errs = nil
	g.mu.Unlock()

	return errors.Join(errs...)
}

// Stats returns owner's task counts.
func (t *Tracker) Stats(owner string) Stats {
	g := t.lookup(owner)
	if g == nil {
		return Stats{}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	s := Stats{Completed: g.completed, Failed: g.failed}
	for task := range g.live {
		switch task.State() {
		case Pending:
			s.Pending++
		default:
			s.Running++
		}
	}
	return s
}

// Live returns a snapshot of owner's unfinished tasks, ordered by name.
func (t *Tracker) Live(owner string) []*Task {
	g := t.lookup(owner)
	if g == nil {
		return nil
	}

	g.mu.Lock()
	out := make([]*Task, 0, len(g.live))
	for task := range g.live {
		out = append(out, task)
	}
	g.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Owners returns every owner that has spawned a task, sorted.
func (t *Tracker) Owners() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.groups))
	for owner := range t.groups {
		out = append(out, owner)
	}
	sort.Strings(out)
	return out
}
