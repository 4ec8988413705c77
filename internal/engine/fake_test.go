package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/smithy-go"
	"github.com/picklr-io/ocrstack/internal/ir"
	"github.com/picklr-io/ocrstack/internal/provider"
)

// fakeCloud is an in-memory provider shared by every fake driver so that
// repeated runs observe what earlier runs created.
type fakeCloud struct {
	mu         sync.Mutex
	resources  map[string]ir.Observation
	desired    map[string]map[string]any
	calls      []string
	failCreate map[string]error
	failProbe  map[string]error
	nextID     int
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{
		resources:  make(map[string]ir.Observation),
		desired:    make(map[string]map[string]any),
		failCreate: make(map[string]error),
		failProbe:  make(map[string]error),
	}
}

func (c *fakeCloud) record(op, name string) {
	c.calls = append(c.calls, op+":"+name)
}

// precreate simulates a resource created out of band.
func (c *fakeCloud) precreate(name string) ir.Observation {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	obs := ir.Observation{
		Present:    true,
		ID:         fmt.Sprintf("%s-%d", name, c.nextID),
		ARN:        fmt.Sprintf("arn:fake:%s-%d", name, c.nextID),
		Attributes: map[string]string{ir.AttrURL: fmt.Sprintf("https://%s-%d.example", name, c.nextID)},
	}
	c.resources[name] = obs
	return obs
}

func (c *fakeCloud) callIndex(call string) int {
	for i, got := range c.calls {
		if got == call {
			return i
		}
	}
	return -1
}

type fakeDriver struct {
	cloud  *fakeCloud
	folded bool
}

func (f *fakeDriver) Probe(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	if f.folded {
		return ir.Observation{}, provider.ErrProbeFolded
	}
	f.cloud.mu.Lock()
	defer f.cloud.mu.Unlock()
	f.cloud.record("probe", req.Name)
	if err := f.cloud.failProbe[req.Name]; err != nil {
		return ir.Observation{}, err
	}
	if obs, ok := f.cloud.resources[req.Name]; ok {
		return obs, nil
	}
	return ir.Observation{}, &smithy.GenericAPIError{Code: "NotFound", Message: req.Name + " not found"}
}

func (f *fakeDriver) Create(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	var desired map[string]any
	if err := json.Unmarshal(req.DesiredConfigJSON, &desired); err != nil {
		return ir.Observation{}, err
	}

	f.cloud.mu.Lock()
	f.cloud.record("create", req.Name)
	if err := f.cloud.failCreate[req.Name]; err != nil {
		f.cloud.mu.Unlock()
		return ir.Observation{}, err
	}
	if _, exists := f.cloud.resources[req.Name]; exists {
		f.cloud.mu.Unlock()
		return ir.Observation{}, &smithy.GenericAPIError{Code: "ConflictException", Message: req.Name + " already exists"}
	}
	f.cloud.desired[req.Name] = desired
	f.cloud.mu.Unlock()

	return f.cloud.precreate(req.Name), nil
}

func (f *fakeDriver) Read(ctx context.Context, req *provider.Request) (ir.Observation, error) {
	f.cloud.mu.Lock()
	defer f.cloud.mu.Unlock()
	f.cloud.record("read", req.Name)
	if obs, ok := f.cloud.resources[req.Name]; ok {
		return obs, nil
	}
	return ir.Observation{}, &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "gone"}
}

type fakeUpdatableDriver struct {
	fakeDriver
}

func (f *fakeUpdatableDriver) Update(ctx context.Context, req *provider.Request, existing ir.Observation) (ir.Observation, error) {
	f.cloud.mu.Lock()
	defer f.cloud.mu.Unlock()
	f.cloud.record("update", req.Name)
	var desired map[string]any
	if err := json.Unmarshal(req.DesiredConfigJSON, &desired); err != nil {
		return ir.Observation{}, err
	}
	f.cloud.desired[req.Name] = desired
	return existing, nil
}

type recordingWaiter struct {
	waits []time.Duration
}

func (w *recordingWaiter) Wait(ctx context.Context, d time.Duration) error {
	w.waits = append(w.waits, d)
	return ctx.Err()
}

// newFakeEngine wires one driver per kind the way the AWS provider does:
// function and permission fold their probe into create; role and function
// support in-place updates.
func newFakeEngine(cloud *fakeCloud, waiter Waiter) *Engine {
	reg := provider.NewRegistry()
	reg.Register(ir.KindBucket, &fakeDriver{cloud: cloud})
	reg.Register(ir.KindRole, &fakeUpdatableDriver{fakeDriver{cloud: cloud}})
	reg.Register(ir.KindFunction, &fakeUpdatableDriver{fakeDriver{cloud: cloud, folded: true}})
	reg.Register(ir.KindAPI, &fakeDriver{cloud: cloud})
	reg.Register(ir.KindIntegration, &fakeDriver{cloud: cloud})
	reg.Register(ir.KindRoute, &fakeDriver{cloud: cloud})
	reg.Register(ir.KindStage, &fakeDriver{cloud: cloud})
	reg.Register(ir.KindPermission, &fakeDriver{cloud: cloud, folded: true})
	return NewEngine(reg).WithWaiter(waiter)
}

// testTopology mirrors the shape of the real descriptor table.
func testTopology() []*ir.Descriptor {
	return []*ir.Descriptor{
		{Name: "bucket", Kind: ir.KindBucket, Properties: map[string]any{"bucket": "b"}},
		{Name: "role", Kind: ir.KindRole, SettleAfter: 10 * time.Second, Properties: map[string]any{
			"bucketArn": ir.Ref("bucket", ir.AttrARN),
		}},
		{Name: "function", Kind: ir.KindFunction, Properties: map[string]any{
			"role": ir.Ref("role", ir.AttrARN),
		}},
		{Name: "api", Kind: ir.KindAPI, Properties: map[string]any{"name": "api"}},
		{Name: "integration", Kind: ir.KindIntegration, Properties: map[string]any{
			"apiId":       ir.Ref("api", ir.AttrID),
			"functionArn": ir.Ref("function", ir.AttrARN),
		}},
		{Name: "route", Kind: ir.KindRoute, Each: []string{"POST /", "OPTIONS /"}, Properties: map[string]any{
			"apiId":    ir.Ref("api", ir.AttrID),
			"routeKey": "${each.value}",
			"target":   ir.Ref("integration", ir.AttrID),
		}},
		{Name: "stage", Kind: ir.KindStage, DependsOn: []string{"route"}, Properties: map[string]any{
			"apiId": ir.Ref("api", ir.AttrID),
		}},
		{Name: "permission", Kind: ir.KindPermission, Properties: map[string]any{
			"function": ir.Ref("function", ir.AttrARN),
			"source":   ir.Ref("stage", ir.AttrURL),
		}},
	}
}
