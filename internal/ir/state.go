package ir

// Well-known attribute names shared by drivers and the reconciler.
const (
	AttrID   = "id"
	AttrARN  = "arn"
	AttrName = "name"
	AttrURL  = "url"

	// AttrObjectsARN is the ARN pattern covering every object in a bucket.
	AttrObjectsARN = "objects-arn"
	// AttrEndpoint is the default invoke endpoint of a gateway API.
	AttrEndpoint = "endpoint"
)

// Status is the outcome of reconciling one descriptor.
type Status string

const (
	StatusCreated Status = "created"
	StatusReused  Status = "reused"
	StatusUpdated Status = "updated"
)

// Observation is what a driver learned about the real resource.
type Observation struct {
	Present    bool
	ID         string
	ARN        string
	Attributes map[string]string
}

// Absent is the observation of a resource that does not exist.
func Absent() Observation {
	return Observation{}
}

// ResolvedResource is the outcome of reconciling one descriptor during a run.
type ResolvedResource struct {
	Name       string
	Kind       Kind
	ID         string
	ARN        string
	Attributes map[string]string
	Status     Status
}

// Attr looks up an attribute by name. id and arn are always available.
func (r *ResolvedResource) Attr(name string) (string, bool) {
	switch name {
	case AttrID:
		return r.ID, r.ID != ""
	case AttrARN:
		return r.ARN, r.ARN != ""
	}
	v, ok := r.Attributes[name]
	return v, ok
}

// Run holds the resources resolved so far, in the order they were resolved.
type Run struct {
	Resources []*ResolvedResource
	index     map[string]int
}

func NewRun() *Run {
	return &Run{index: make(map[string]int)}
}

// Record stores a resolved resource, replacing any previous entry with the same name.
func (r *Run) Record(res *ResolvedResource) {
	if idx, ok := r.index[res.Name]; ok {
		r.Resources[idx] = res
		return
	}
	r.index[res.Name] = len(r.Resources)
	r.Resources = append(r.Resources, res)
}

// Get returns the resolved resource for a descriptor name.
func (r *Run) Get(name string) (*ResolvedResource, bool) {
	idx, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.Resources[idx], true
}

// Counts returns how many resources ended in each status.
func (r *Run) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, res := range r.Resources {
		counts[res.Status]++
	}
	return counts
}
