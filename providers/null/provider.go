// Package null provides a driver that touches no cloud. It backs
// "provision --dry-run": every descriptor is reported as created with a
// placeholder identity, so the visit order and reference wiring can be
// inspected without credentials.
package null

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/picklr-io/ocrstack/internal/ir"
	"github.com/picklr-io/ocrstack/internal/provider"
)

// Kinds is every kind the topology uses.
var Kinds = []ir.Kind{
	ir.KindBucket, ir.KindRole, ir.KindFunction, ir.KindLogGroup, ir.KindAPI,
	ir.KindIntegration, ir.KindRoute, ir.KindStage, ir.KindPermission,
}

// Driver remembers what it "created" so that Read after a conflict and a
// second Probe behave like a real provider.
type Driver struct {
	mu      sync.Mutex
	created map[string]ir.Observation
	// Requests records the desired configuration each Create received.
	Requests map[string]map[string]any
}

func New() *Driver {
	return &Driver{
		created:  make(map[string]ir.Observation),
		Requests: make(map[string]map[string]any),
	}
}

// Register installs d for every kind in Kinds.
func Register(reg *provider.Registry, d *Driver) {
	for _, k := range Kinds {
		reg.Register(k, d)
	}
}

func (d *Driver) Probe(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if obs, ok := d.created[req.Name]; ok {
		return obs, nil
	}
	return ir.Absent(), nil
}

func (d *Driver) Create(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	var desired map[string]any
	if err := json.Unmarshal(req.DesiredConfigJSON, &desired); err != nil {
		return ir.Observation{}, fmt.Errorf("failed to unmarshal desired config: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.created[req.Name]; ok {
		return ir.Observation{}, fmt.Errorf("%s already exists", req.Name)
	}

	id := "dryrun-" + string(req.Kind)
	obs := ir.Observation{
		Present: true,
		ID:      id,
		ARN:     fmt.Sprintf("arn:dryrun:%s:%s", req.Kind, req.Name),
		Attributes: map[string]string{
			ir.AttrName:       req.Name,
			ir.AttrObjectsARN: fmt.Sprintf("arn:dryrun:%s:%s/*", req.Kind, req.Name),
			ir.AttrEndpoint:   "https://" + id + ".invalid",
			ir.AttrURL:        "https://" + id + ".invalid/",
		},
	}
	if name, ok := desired["stageName"].(string); ok && name != "$default" {
		obs.Attributes[ir.AttrURL] += name
	}
	d.created[req.Name] = obs
	d.Requests[req.Name] = desired
	return obs, nil
}

func (d *Driver) Read(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	obs, ok := d.created[req.Name]
	if !ok {
		return ir.Observation{}, fmt.Errorf("%s not found", req.Name)
	}
	return obs, nil
}
