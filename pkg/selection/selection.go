// Package selection models the declarative catalog selections a run is
// built from.
//
// A selection file holds an ordered list of specs. Each spec maps field
// names (catalog columns) to an ordered set of candidate values. Expanding a
// spec yields the cross product of those sets as Concrete selections, one
// catalog query each. Field order is significant: queries bind parameters
// positionally in declaration order, so every representation here keeps it.
package selection

import (
	"fmt"
	"strings"
)

// InfoField is the catalog column whose declared values drive chunk key
// classification.
const InfoField = "info"

// Value is one candidate value: string, int64 or float64.
type Value = any

// Field is one named dimension of a spec with its candidate values in
// declared order.
type Field struct {
	Name   string  `json:"name"`
	Values []Value `json:"values"`
}

// Spec is one selection group: an ordered list of fields.
type Spec struct {
	Fields []Field `json:"fields"`
}

// Names returns the field names in declaration order.
func (s Spec) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Combinations returns the number of concrete selections the spec expands to.
func (s Spec) Combinations() int {
	if len(s.Fields) == 0 {
		return 0
	}
	n := 1
	for _, f := range s.Fields {
		n *= len(f.Values)
	}
	return n
}

// Concrete binds exactly one value to every field of a spec.
type Concrete struct {
	Names  []string
	Values []Value
}

// Map returns the selection as a name -> value map, for logging and plan
// output.
func (c Concrete) Map() map[string]any {
	out := make(map[string]any, len(c.Names))
	for i, name := range c.Names {
		out[name] = c.Values[i]
	}
	return out
}

// String renders "name=value" pairs in field order.
func (c Concrete) String() string {
	parts := make([]string, len(c.Names))
	for i, name := range c.Names {
		parts[i] = fmt.Sprintf("%s=%v", name, c.Values[i])
	}
	return strings.Join(parts, " ")
}

// Infos returns every string value declared for the info field across all
// specs, in declaration order.
func Infos(specs []Spec) []string {
	var out []string
	for _, s := range specs {
		for _, f := range s.Fields {
			if f.Name != InfoField {
				continue
			}
			for _, v := range f.Values {
				if str, ok := v.(string); ok {
					out = append(out, str)
				}
			}
		}
	}
	return out
}
