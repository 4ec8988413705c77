package engine

import (
	"fmt"
	"strings"

	"github.com/picklr-io/ocrstack/internal/ir"
)

// ExpandEach expands descriptors with an Each list into individual descriptors,
// keeping declaration order. Dependencies that name an expanded descriptor are
// rewritten to depend on every expanded member.
func ExpandEach(descs []*ir.Descriptor) []*ir.Descriptor {
	var expanded []*ir.Descriptor
	members := make(map[string][]string)
	cloned := make(map[*ir.Descriptor]struct{})

	for _, d := range descs {
		if len(d.Each) == 0 {
			expanded = append(expanded, d)
			continue
		}
		for i, item := range d.Each {
			clone := cloneDescriptor(d)
			clone.Name = fmt.Sprintf("%s[%s]", d.Name, item)
			clone.Each = nil
			clone.Properties = substituteAll(clone.Properties, map[string]string{
				"${each.value}": item,
				"${each.index}": fmt.Sprintf("%d", i),
			})
			members[d.Name] = append(members[d.Name], clone.Name)
			cloned[clone] = struct{}{}
			expanded = append(expanded, clone)
		}
	}

	if len(members) == 0 {
		return expanded
	}

	for i, d := range expanded {
		if !dependsOnExpanded(d, members) {
			continue
		}
		// Expanded members are already private copies; anything else belongs
		// to the caller.
		if _, own := cloned[d]; !own {
			d = cloneDescriptor(d)
			expanded[i] = d
		}
		var deps []string
		for _, dep := range d.DependsOn {
			if names, ok := members[dep]; ok {
				deps = append(deps, names...)
				continue
			}
			deps = append(deps, dep)
		}
		d.DependsOn = deps
	}

	return expanded
}

func dependsOnExpanded(d *ir.Descriptor, members map[string][]string) bool {
	for _, dep := range d.DependsOn {
		if _, ok := members[dep]; ok {
			return true
		}
	}
	return false
}

func cloneDescriptor(d *ir.Descriptor) *ir.Descriptor {
	return &ir.Descriptor{
		Name:        d.Name,
		Kind:        d.Kind,
		DependsOn:   append([]string{}, d.DependsOn...),
		Properties:  deepCopyMap(d.Properties),
		SettleAfter: d.SettleAfter,
		Timeout:     d.Timeout,
		Each:        append([]string{}, d.Each...),
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	result := make(map[string]any)
	for k, v := range m {
		result[k] = deepCopyValue(v)
	}
	return result
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		clone := make([]any, len(val))
		for i, item := range val {
			clone[i] = deepCopyValue(item)
		}
		return clone
	case []string:
		return append([]string{}, val...)
	default:
		return v
	}
}

func substituteAll(props map[string]any, replacements map[string]string) map[string]any {
	if props == nil {
		return nil
	}
	result := make(map[string]any)
	for k, v := range props {
		result[k] = substituteValue(v, replacements)
	}
	return result
}

func substituteValue(v any, replacements map[string]string) any {
	switch val := v.(type) {
	case string:
		result := val
		for old, newVal := range replacements {
			result = strings.ReplaceAll(result, old, newVal)
		}
		return result
	case map[string]any:
		return substituteAll(val, replacements)
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = substituteValue(item, replacements)
		}
		return result
	case []string:
		result := make([]string, len(val))
		for i, item := range val {
			result[i] = substituteValue(item, replacements).(string)
		}
		return result
	default:
		return v
	}
}
