package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/picklr-io/ocrstack/internal/ir"
)

// ErrProbeFolded is returned by drivers whose provider offers no read-only
// existence check cheaper than attempting the creation itself. The
// reconciler then goes straight to Create and treats a conflict as Present.
var ErrProbeFolded = errors.New("existence probe folded into create")

// Request is what a driver receives for one descriptor: its name and its
// desired configuration with every reference already substituted.
type Request struct {
	Name              string
	Kind              ir.Kind
	DesiredConfigJSON []byte
}

// Driver reconciles one resource kind.
type Driver interface {
	// Probe reports whether a resource matching the request already exists.
	Probe(ctx context.Context, req *Request) (ir.Observation, error)

	// Create creates the resource.
	Create(ctx context.Context, req *Request) (ir.Observation, error)

	// Read returns the identity of an existing resource after a conflict.
	Read(ctx context.Context, req *Request) (ir.Observation, error)
}

// Updater is implemented by drivers with a safe in-place update path.
type Updater interface {
	Update(ctx context.Context, req *Request, existing ir.Observation) (ir.Observation, error)
}

// Registry maps resource kinds to drivers.
type Registry struct {
	mu      sync.RWMutex
	drivers map[ir.Kind]Driver
}

func NewRegistry() *Registry {
	return &Registry{
		drivers: make(map[ir.Kind]Driver),
	}
}

// Register installs the driver for a kind, replacing any previous one.
func (r *Registry) Register(kind ir.Kind, d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[kind] = d
}

// Get returns the driver registered for a kind.
func (r *Registry) Get(kind ir.Kind) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.drivers[kind]
	if !ok {
		return nil, fmt.Errorf("no driver registered for kind %s", kind)
	}
	return d, nil
}
