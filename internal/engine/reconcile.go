package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/picklr-io/ocrstack/internal/ir"
	"github.com/picklr-io/ocrstack/internal/logging"
	"github.com/picklr-io/ocrstack/internal/provider"
)

// Event statuses reported through the progress callback.
const (
	EventStarted = "started"
	EventWaiting = "waiting"
	// EventSkipped reports a settle wait the installed waiter does not perform.
	EventSkipped = "skipped"
	EventFailed  = "failed"
)

// Event represents a progress event during a reconciliation run.
// Status is one of the Event* constants or a resolved ir.Status.
type Event struct {
	Name     string
	Kind     ir.Kind
	Status   string
	Duration time.Duration
	Resource *ir.ResolvedResource
	Error    error
}

// Callback is called for each event if set.
type Callback func(event Event)

// ResourceError reports the descriptor a run stopped at and the verbatim
// provider error that stopped it.
type ResourceError struct {
	Name string
	Kind ir.Kind
	Op   string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s (%s): %s failed: %v", e.Name, e.Kind, e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// Engine reconciles a descriptor graph against the registered drivers.
type Engine struct {
	registry *provider.Registry
	waiter   Waiter

	// Timeout bounds each descriptor when the descriptor sets none.
	Timeout time.Duration
}

func NewEngine(registry *provider.Registry) *Engine {
	return &Engine{
		registry: registry,
		waiter:   SleepWaiter{},
		Timeout:  DefaultTimeout,
	}
}

// WithWaiter replaces the settle waiter.
func (e *Engine) WithWaiter(w Waiter) *Engine {
	e.waiter = w
	return e
}

// Reconcile brings every descriptor into existence exactly once.
func (e *Engine) Reconcile(ctx context.Context, descs []*ir.Descriptor) (*ir.Run, error) {
	return e.ReconcileWithCallback(ctx, descs, nil)
}

// ReconcileWithCallback visits descriptors one at a time in topological
// order. The first unrecoverable failure aborts the run; descriptors already
// resolved stay in place and the returned run holds them.
func (e *Engine) ReconcileWithCallback(ctx context.Context, descs []*ir.Descriptor, callback Callback) (*ir.Run, error) {
	emit := func(event Event) {
		if callback != nil {
			callback(event)
		}
	}
	log := logging.WithComponent("engine")

	descs = ExpandEach(descs)
	dag, err := BuildDAG(descs)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependency graph: %w", err)
	}

	byName := make(map[string]*ir.Descriptor, len(descs))
	for _, d := range descs {
		byName[d.Name] = d
	}

	run := ir.NewRun()
	for _, name := range dag.Order() {
		d := byName[name]
		if err := ctx.Err(); err != nil {
			return run, &ResourceError{Name: d.Name, Kind: d.Kind, Op: "reconcile", Err: err}
		}

		start := time.Now()
		emit(Event{Name: d.Name, Kind: d.Kind, Status: EventStarted})

		res, err := e.reconcileOne(ctx, d, run)
		if err != nil {
			emit(Event{Name: d.Name, Kind: d.Kind, Status: EventFailed, Duration: time.Since(start), Error: err})
			return run, err
		}
		run.Record(res)
		log.Debug().Str("descriptor", d.Name).Str("status", string(res.Status)).Str("id", res.ID).Msg("descriptor resolved")
		emit(Event{Name: d.Name, Kind: d.Kind, Status: string(res.Status), Duration: time.Since(start), Resource: res})

		if res.Status == ir.StatusCreated && d.SettleAfter > 0 {
			if _, noop := e.waiter.(NoopWaiter); noop {
				emit(Event{Name: d.Name, Kind: d.Kind, Status: EventSkipped, Duration: d.SettleAfter, Resource: res})
				continue
			}
			emit(Event{Name: d.Name, Kind: d.Kind, Status: EventWaiting, Duration: d.SettleAfter, Resource: res})
			if err := e.waiter.Wait(ctx, d.SettleAfter); err != nil {
				return run, &ResourceError{Name: d.Name, Kind: d.Kind, Op: "settle", Err: err}
			}
		}
	}

	return run, nil
}

func (e *Engine) reconcileOne(ctx context.Context, d *ir.Descriptor, run *ir.Run) (*ir.ResolvedResource, error) {
	fail := func(op string, err error) error {
		return &ResourceError{Name: d.Name, Kind: d.Kind, Op: op, Err: err}
	}

	drv, err := e.registry.Get(d.Kind)
	if err != nil {
		return nil, fail("lookup", err)
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = e.Timeout
	}
	ctx, cancel := WithTimeout(ctx, timeout)
	defer cancel()

	props, err := resolveReferences(d.Properties, run)
	if err != nil {
		return nil, fail("resolve", err)
	}
	desiredJSON, err := json.Marshal(props)
	if err != nil {
		return nil, fail("resolve", fmt.Errorf("failed to marshal desired config: %w", err))
	}
	req := &provider.Request{Name: d.Name, Kind: d.Kind, DesiredConfigJSON: desiredJSON}

	obs, err := drv.Probe(ctx, req)
	switch {
	case errors.Is(err, provider.ErrProbeFolded):
		obs = ir.Absent()
	case err != nil && Classify(err) == ClassNotFound:
		obs = ir.Absent()
	case err != nil:
		return nil, fail("probe", err)
	}

	if !obs.Present {
		created, err := drv.Create(ctx, req)
		if err == nil {
			return resolved(d, created, ir.StatusCreated), nil
		}
		if Classify(err) != ClassConflict {
			return nil, fail("create", err)
		}
		log := logging.WithComponent("engine")
		log.Debug().Str("descriptor", d.Name).Err(err).Msg("create conflicted, reading existing resource")
		if obs, err = drv.Read(ctx, req); err != nil {
			return nil, fail("read", err)
		}
	}

	if up, ok := drv.(provider.Updater); ok {
		updated, err := up.Update(ctx, req, obs)
		if err != nil {
			return nil, fail("update", err)
		}
		return resolved(d, merge(obs, updated), ir.StatusUpdated), nil
	}

	return resolved(d, obs, ir.StatusReused), nil
}

// merge overlays fields from next onto prev.
func merge(prev, next ir.Observation) ir.Observation {
	out := prev
	out.Present = true
	if next.ID != "" {
		out.ID = next.ID
	}
	if next.ARN != "" {
		out.ARN = next.ARN
	}
	if len(next.Attributes) > 0 {
		attrs := make(map[string]string, len(prev.Attributes)+len(next.Attributes))
		for k, v := range prev.Attributes {
			attrs[k] = v
		}
		for k, v := range next.Attributes {
			attrs[k] = v
		}
		out.Attributes = attrs
	}
	return out
}

func resolved(d *ir.Descriptor, obs ir.Observation, status ir.Status) *ir.ResolvedResource {
	return &ir.ResolvedResource{
		Name:       d.Name,
		Kind:       d.Kind,
		ID:         obs.ID,
		ARN:        obs.ARN,
		Attributes: obs.Attributes,
		Status:     status,
	}
}

// resolveReferences substitutes ptr:// references with attributes of
// resources resolved earlier in the run.
func resolveReferences(val any, run *ir.Run) (any, error) {
	switch v := val.(type) {
	case string:
		name, attr, ok := parsePtrRef(v)
		if !ok {
			return v, nil
		}
		res, found := run.Get(name)
		if !found {
			return nil, fmt.Errorf("reference %s: %s has not been resolved", v, name)
		}
		out, found := res.Attr(attr)
		if !found {
			return nil, fmt.Errorf("reference %s: %s has no attribute %q", v, name, attr)
		}
		return out, nil
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			r, err := resolveReferences(item, run)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			r, err := resolveReferences(item, run)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			r, err := resolveReferences(item, run)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}
