package selection

import (
	"iter"

	"go.uber.org/zap"
)

// Expand returns the cross product of the spec's value sets as a lazy
// sequence. Fields vary like an odometer: the last declared field changes
// fastest, and each field walks its values in the order given. The sequence
// is restartable; each range over it starts from the first combination.
//
// A spec with no fields, or with any field that has no values, yields
// nothing.
func Expand(spec Spec) iter.Seq[Concrete] {
	names := spec.Names()
	return func(yield func(Concrete) bool) {
		if spec.Combinations() == 0 {
			return
		}

		idx := make([]int, len(spec.Fields))
		for {
			values := make([]Value, len(spec.Fields))
			for i, f := range spec.Fields {
				values[i] = f.Values[idx[i]]
			}
			if !yield(Concrete{Names: names, Values: values}) {
				return
			}

			i := len(idx) - 1
			for ; i >= 0; i-- {
				idx[i]++
				if idx[i] < len(spec.Fields[i].Values) {
					break
				}
				idx[i] = 0
			}
			if i < 0 {
				return
			}
		}
	}
}

// Expander expands specs and reports specs that produce nothing.
type Expander struct {
	Logger *zap.Logger
}

// Expand behaves like the package-level Expand and logs a warning naming the
// first empty field when the spec yields no combinations.
func (e Expander) Expand(index int, spec Spec) iter.Seq[Concrete] {
	if spec.Combinations() == 0 {
		logger := e.Logger
		if logger == nil {
			logger = zap.NewNop()
		}
		for _, f := range spec.Fields {
			if len(f.Values) == 0 {
				logger.Warn("selection has an empty value set; it matches nothing",
					zap.Int("selection", index),
					zap.String("field", f.Name),
				)
				break
			}
		}
	}
	return Expand(spec)
}
