package ir

import "time"

// Kind identifies the type of a managed resource.
type Kind string

const (
	KindBucket      Kind = "bucket"
	KindRole        Kind = "role"
	KindFunction    Kind = "function"
	KindLogGroup    Kind = "log-group"
	KindAPI         Kind = "api"
	KindIntegration Kind = "integration"
	KindRoute       Kind = "route"
	KindStage       Kind = "stage"
	KindPermission  Kind = "permission"
)

// RefPrefix marks a property value that refers to another descriptor's
// resolved attribute: ptr://<name>/<attribute>.
const RefPrefix = "ptr://"

// Descriptor declares a single managed resource and its desired configuration.
type Descriptor struct {
	Name      string
	Kind      Kind
	DependsOn []string // ordering-only edges, in addition to ptr:// references

	// Properties is the desired configuration. String values of the form
	// ptr://<name>/<attr> are substituted before the descriptor is reconciled.
	Properties map[string]any

	// SettleAfter is the fixed wait inserted after this resource is created,
	// before any dependent descriptor is visited.
	SettleAfter time.Duration

	Timeout time.Duration

	// Each expands the descriptor into one copy per item, named name[item].
	// ${each.value} and ${each.index} are substituted in string properties.
	Each []string
}

// Ref builds a reference to an attribute of another descriptor.
func Ref(name, attr string) string {
	return RefPrefix + name + "/" + attr
}
