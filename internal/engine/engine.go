// Package engine implements the structural and content operations over the content graph:
// create, update, delete, recursive duplicate, fan-out duplicate, move, attach/detach and
// sibling reorder. Every operation runs in a single store transaction, so it either fully
// applies or leaves the store untouched.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/filter"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/logging"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/metrics"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/store"
)

// Outcome distinguishes a mutation that changed the graph from one that had nothing to do.
type Outcome int

const (
	OutcomeNoOp Outcome = iota
	OutcomeChanged
)

func (o Outcome) String() string {
	if o == OutcomeChanged {
		return "changed"
	}
	return "noop"
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Position places an item relative to a sibling anchor
type Position int

const (
	Before Position = iota
	After
)

func (p Position) String() string {
	if p == After {
		return "after"
	}
	return "before"
}

// ParsePosition parses "before" or "after"
func ParsePosition(s string) (Position, error) {
	switch s {
	case "before":
		return Before, nil
	case "after":
		return After, nil
	default:
		return 0, fmt.Errorf("unknown position %q (want before or after)", s)
	}
}

// errNoChange aborts a transaction that turned out to have nothing to do.
var errNoChange = errors.New("no change")

const (
	DefaultEditor     = "system"
	DefaultCopySuffix = " (Copy)"
)

// Engine owns a store and applies graph operations to it.
type Engine struct {
	store      *store.Store
	log        *zap.Logger
	tracer     trace.Tracer
	metrics    *metrics.Metrics
	now        func() time.Time
	newID      func() string
	editor     string
	copySuffix string
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the fallback logger used when the context carries none
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

// WithTracer sets the tracer used for one span per operation
func WithTracer(t trace.Tracer) Option { return func(e *Engine) { e.tracer = t } }

// WithMetrics records operation counts and latencies
func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithIDGenerator overrides the uuid generator, for tests and deterministic fixtures
func WithIDGenerator(gen func() string) Option { return func(e *Engine) { e.newID = gen } }

// WithEditor sets the LastEditedBy value used when the context carries no editor
func WithEditor(name string) Option { return func(e *Engine) { e.editor = name } }

// WithCopySuffix sets the suffix appended to the root of a duplicated subtree
func WithCopySuffix(s string) Option { return func(e *Engine) { e.copySuffix = s } }

// New creates an engine over s. A nil store gets a fresh empty one.
func New(s *store.Store, opts ...Option) *Engine {
	if s == nil {
		s = store.New()
	}
	e := &Engine{
		store:      s,
		log:        zap.NewNop(),
		tracer:     noop.NewTracerProvider().Tracer("planner/engine"),
		now:        time.Now,
		newID:      uuid.NewString,
		editor:     DefaultEditor,
		copySuffix: DefaultCopySuffix,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the underlying entity store
func (e *Engine) Store() *store.Store { return e.store }

type editorKey struct{}

// ContextWithEditor attaches the name recorded in LastEditedBy for mutations made with ctx.
func ContextWithEditor(ctx context.Context, editor string) context.Context {
	return context.WithValue(ctx, editorKey{}, editor)
}

func (e *Engine) editorFrom(ctx context.Context) string {
	if v, ok := ctx.Value(editorKey{}).(string); ok && v != "" {
		return v
	}
	return e.editor
}

// begin starts the span and returns a finish func that ends it, logs and records metrics.
func (e *Engine) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(Outcome, error, ...zap.Field)) {
	started := time.Now()
	ctx, span := e.tracer.Start(ctx, "planner."+op, trace.WithAttributes(attrs...))
	log := logging.FromContext(ctx, e.log).With(zap.String("op", op))

	return ctx, func(outcome Outcome, err error, fields ...zap.Field) {
		label := outcome.String()
		if err != nil {
			label = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Warn("operation rejected", append(fields, zap.Error(err))...)
		} else {
			span.SetAttributes(attribute.String("outcome", label))
			log.Debug("operation applied", append(fields, zap.String("outcome", label))...)
		}
		span.End()
		e.metrics.Observe(op, label, started, e.store.Len())
	}
}

// touch refreshes the provenance of items whose content or child list changed.
func (e *Engine) touch(ctx context.Context, tx *store.Tx, ids ...string) error {
	now := e.now()
	editor := e.editorFrom(ctx)
	for _, id := range ids {
		it, ok := tx.Get(id)
		if !ok {
			continue
		}
		it.LastEditedAt = now
		it.LastEditedBy = editor
		if err := tx.Replace(it); err != nil {
			return err
		}
	}
	return nil
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", content.ErrNotFound, id)
}

// Get returns a copy of one item
func (e *Engine) Get(id string) (content.Item, error) {
	return e.store.Get(id)
}

// Items returns every item in insertion order
func (e *Engine) Items() []content.Item {
	return e.store.Items()
}

// ChildrenOf returns the children of id in sibling order
func (e *Engine) ChildrenOf(id string) ([]content.Item, error) {
	return e.related(id, func(r *store.Reader) []string { return r.Children(id) })
}

// ParentsOf returns the parents of id in attach order
func (e *Engine) ParentsOf(id string) ([]content.Item, error) {
	return e.related(id, func(r *store.Reader) []string { return r.Parents(id) })
}

func (e *Engine) related(id string, ids func(*store.Reader) []string) ([]content.Item, error) {
	var out []content.Item
	err := e.store.View(func(r *store.Reader) error {
		if !r.Has(id) {
			return notFound(id)
		}
		for _, rid := range ids(r) {
			it, _ := r.Get(rid)
			out = append(out, it)
		}
		return nil
	})
	return out, err
}

// Roots returns the Objectives in insertion order
func (e *Engine) Roots() []content.Item {
	var out []content.Item
	for _, it := range e.store.Items() {
		if it.Type == content.TypeObjective {
			out = append(out, it)
		}
	}
	return out
}

// Orphans returns non-Objective items that have no parent and so are unreachable from
// the roots.
func (e *Engine) Orphans() []content.Item {
	var out []content.Item
	for _, it := range e.store.Items() {
		if it.Type != content.TypeObjective && len(it.ParentIDs) == 0 {
			out = append(out, it)
		}
	}
	return out
}

// Subtree returns id and every descendant in depth-first pre-order, each id once.
func (e *Engine) Subtree(id string) ([]string, error) {
	var out []string
	err := e.store.View(func(r *store.Reader) error {
		if !r.Has(id) {
			return notFound(id)
		}
		out = subtreeOf(r, id)
		return nil
	})
	return out, err
}

// Query evaluates a filter against a consistent snapshot of the store.
func (e *Engine) Query(ctx context.Context, spec filter.Spec) ([]content.Item, error) {
	_, finish := e.begin(ctx, "query")
	f, err := filter.Compile(spec)
	if err != nil {
		finish(OutcomeNoOp, err)
		return nil, err
	}
	out, err := f.Apply(e.store.Items())
	finish(OutcomeNoOp, err, zap.Int("matches", len(out)))
	return out, err
}

// subtreeOf walks children with an explicit stack so deep trees cannot overflow the
// goroutine stack. Items reachable along several paths are listed once.
func subtreeOf(r *store.Reader, root string) []string {
	var order []string
	seen := map[string]bool{}
	stack := []string{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		order = append(order, id)
		kids := r.Children(id)
		for i := len(kids) - 1; i >= 0; i-- {
			if !seen[kids[i]] {
				stack = append(stack, kids[i])
			}
		}
	}
	return order
}
