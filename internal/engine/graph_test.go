package engine

import (
	"testing"

	"github.com/picklr-io/ocrstack/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexOf(slice []string, item string) int {
	for i, s := range slice {
		if s == item {
			return i
		}
	}
	return -1
}

func TestBuildDAG_NoDependencies(t *testing.T) {
	descs := []*ir.Descriptor{
		{Name: "a", Kind: ir.KindBucket},
		{Name: "b", Kind: ir.KindBucket},
		{Name: "c", Kind: ir.KindBucket},
	}

	dag, err := BuildDAG(descs)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, dag.Order())
	assert.Equal(t, []string{"a", "b", "c"}, dag.Roots())
	assert.Equal(t, []string{"a", "b", "c"}, dag.Sinks())
}

func TestBuildDAG_ExplicitDependsOn(t *testing.T) {
	descs := []*ir.Descriptor{
		{Name: "stage", Kind: ir.KindStage, DependsOn: []string{"api"}},
		{Name: "api", Kind: ir.KindAPI},
	}

	dag, err := BuildDAG(descs)
	require.NoError(t, err)
	assert.Equal(t, []string{"api", "stage"}, dag.Order())
	assert.Equal(t, []string{"api"}, dag.Dependencies("stage"))
}

func TestBuildDAG_ImplicitReferences(t *testing.T) {
	descs := []*ir.Descriptor{
		{Name: "function", Kind: ir.KindFunction, Properties: map[string]any{
			"role": ir.Ref("role", ir.AttrARN),
		}},
		{Name: "role", Kind: ir.KindRole, Properties: map[string]any{
			"statements": []any{map[string]any{"resource": ir.Ref("bucket", ir.AttrARN)}},
		}},
		{Name: "bucket", Kind: ir.KindBucket},
	}

	dag, err := BuildDAG(descs)
	require.NoError(t, err)
	order := dag.Order()
	assert.Less(t, indexOf(order, "bucket"), indexOf(order, "role"))
	assert.Less(t, indexOf(order, "role"), indexOf(order, "function"))
}

func TestBuildDAG_TieBreakByDeclarationOrder(t *testing.T) {
	descs := []*ir.Descriptor{
		{Name: "bucket", Kind: ir.KindBucket},
		{Name: "role", Kind: ir.KindRole, DependsOn: []string{"bucket"}},
		{Name: "api", Kind: ir.KindAPI},
		{Name: "function", Kind: ir.KindFunction, DependsOn: []string{"role"}},
	}

	for i := 0; i < 20; i++ {
		dag, err := BuildDAG(descs)
		require.NoError(t, err)
		assert.Equal(t, []string{"bucket", "role", "api", "function"}, dag.Order())
	}
}

func TestBuildDAG_Cycle(t *testing.T) {
	descs := []*ir.Descriptor{
		{Name: "a", Kind: ir.KindBucket, DependsOn: []string{"b"}},
		{Name: "b", Kind: ir.KindBucket, DependsOn: []string{"a"}},
	}

	_, err := BuildDAG(descs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestBuildDAG_UnknownReference(t *testing.T) {
	descs := []*ir.Descriptor{
		{Name: "function", Kind: ir.KindFunction, Properties: map[string]any{
			"role": ir.Ref("missing", ir.AttrARN),
		}},
	}

	_, err := BuildDAG(descs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown descriptor "missing"`)
}

func TestBuildDAG_DuplicateName(t *testing.T) {
	descs := []*ir.Descriptor{
		{Name: "a", Kind: ir.KindBucket},
		{Name: "a", Kind: ir.KindRole},
	}

	_, err := BuildDAG(descs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestBuildDAG_MalformedReference(t *testing.T) {
	descs := []*ir.Descriptor{
		{Name: "a", Kind: ir.KindBucket, Properties: map[string]any{"x": "ptr://noattr"}},
	}

	_, err := BuildDAG(descs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}

func TestBuildDAG_TestTopology(t *testing.T) {
	dag, err := BuildDAG(ExpandEach(testTopology()))
	require.NoError(t, err)

	assert.Equal(t, []string{"bucket", "api"}, dag.Roots())
	assert.Equal(t, []string{"permission"}, dag.Sinks())

	order := dag.Order()
	assert.Less(t, indexOf(order, "role"), indexOf(order, "function"))
	assert.Less(t, indexOf(order, "integration"), indexOf(order, "route[POST /]"))
	assert.Less(t, indexOf(order, "route[OPTIONS /]"), indexOf(order, "stage"))
	assert.Equal(t, len(order)-1, indexOf(order, "permission"))
}

func TestParsePtrRef(t *testing.T) {
	tests := []struct {
		ref      string
		wantName string
		wantAttr string
		wantOK   bool
	}{
		{"ptr://role/arn", "role", "arn", true},
		{"ptr://route[POST /]/id", "route[POST /]", "id", true},
		{"ptr:///aws/lambda/fn/arn", "/aws/lambda/fn", "arn", true},
		{"ptr://role", "", "", false},
		{"ptr://role/", "", "", false},
		{"role/arn", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			name, attr, ok := parsePtrRef(tt.ref)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantAttr, attr)
		})
	}
}
