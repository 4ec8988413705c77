package engine

import (
	"testing"

	"github.com/picklr-io/ocrstack/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEach_NoEach(t *testing.T) {
	descs := []*ir.Descriptor{
		{Name: "bucket", Kind: ir.KindBucket},
	}

	out := ExpandEach(descs)
	require.Len(t, out, 1)
	assert.Same(t, descs[0], out[0])
}

func TestExpandEach_Routes(t *testing.T) {
	descs := []*ir.Descriptor{
		{Name: "route", Kind: ir.KindRoute, Each: []string{"POST /", "OPTIONS /"}, Properties: map[string]any{
			"routeKey": "${each.value}",
			"ordinal":  "${each.index}",
			"target":   ir.Ref("integration", ir.AttrID),
		}},
	}

	out := ExpandEach(descs)
	require.Len(t, out, 2)

	assert.Equal(t, "route[POST /]", out[0].Name)
	assert.Equal(t, "POST /", out[0].Properties["routeKey"])
	assert.Equal(t, "0", out[0].Properties["ordinal"])
	assert.Empty(t, out[0].Each)

	assert.Equal(t, "route[OPTIONS /]", out[1].Name)
	assert.Equal(t, "OPTIONS /", out[1].Properties["routeKey"])
	assert.Equal(t, "1", out[1].Properties["ordinal"])
	assert.Equal(t, "ptr://integration/id", out[1].Properties["target"])

	// The source descriptor is left untouched.
	assert.Equal(t, "${each.value}", descs[0].Properties["routeKey"])
}

func TestExpandEach_RewritesGroupDependencies(t *testing.T) {
	descs := []*ir.Descriptor{
		{Name: "route", Kind: ir.KindRoute, Each: []string{"a", "b"}},
		{Name: "stage", Kind: ir.KindStage, DependsOn: []string{"api", "route"}},
		{Name: "api", Kind: ir.KindAPI},
	}

	out := ExpandEach(descs)
	require.Len(t, out, 4)
	assert.Equal(t, []string{"api", "route[a]", "route[b]"}, out[2].DependsOn)
}

func TestExpandEach_LeavesCallerDescriptorsUntouched(t *testing.T) {
	descs := []*ir.Descriptor{
		{Name: "route", Kind: ir.KindRoute, Each: []string{"a", "b"}},
		{Name: "stage", Kind: ir.KindStage, DependsOn: []string{"route"}},
	}

	first := ExpandEach(descs)
	second := ExpandEach(descs)

	assert.Equal(t, []string{"route"}, descs[1].DependsOn)
	assert.NotSame(t, descs[1], first[2])
	assert.Equal(t, []string{"route[a]", "route[b]"}, first[2].DependsOn)
	assert.Equal(t, first[2].DependsOn, second[2].DependsOn)
}

func TestExpandEach_SubstitutesNestedValues(t *testing.T) {
	descs := []*ir.Descriptor{
		{Name: "x", Kind: ir.KindBucket, Each: []string{"one"}, Properties: map[string]any{
			"tags":  map[string]any{"item": "${each.value}"},
			"list":  []any{"${each.value}-a"},
			"plain": []string{"${each.index}"},
		}},
	}

	out := ExpandEach(descs)
	require.Len(t, out, 1)
	assert.Equal(t, map[string]any{"item": "one"}, out[0].Properties["tags"])
	assert.Equal(t, []any{"one-a"}, out[0].Properties["list"])
	assert.Equal(t, []string{"0"}, out[0].Properties["plain"])
}
