package selection

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// hclFile decodes the top level of an HCL selection file:
//
//	selection {
//	  part   = ["B", "RS"]
//	  njets  = [1]
//	  energy = 13
//	}
type hclFile struct {
	Selections []*hclSelection `hcl:"selection,block"`
}

type hclSelection struct {
	Body hcl.Body `hcl:",remain"`
}

func parseHCL(data []byte, path string) ([]Spec, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL selection file %s: %w", path, diags)
	}

	var root hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL selection file %s: %w", path, diags)
	}

	specs := make([]Spec, 0, len(root.Selections))
	for i, block := range root.Selections {
		spec, err := specFromHCL(block.Body, i)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func specFromHCL(body hcl.Body, index int) (Spec, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return Spec{}, fmt.Errorf("selection %d: %w", index, diags)
	}

	// Attributes come back as a map; source position restores declaration
	// order.
	ordered := make([]*hcl.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		ordered = append(ordered, attr)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Range.Start.Byte < ordered[j].Range.Start.Byte
	})

	spec := Spec{Fields: make([]Field, 0, len(ordered))}
	for _, attr := range ordered {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return Spec{}, fmt.Errorf("selection %d field %q: %w", index, attr.Name, diags)
		}
		values, err := ctyValues(val)
		if err != nil {
			return Spec{}, fmt.Errorf("selection %d field %q (%s): %w", index, attr.Name, attr.Range, err)
		}
		spec.Fields = append(spec.Fields, Field{Name: attr.Name, Values: values})
	}
	return spec, nil
}

func ctyValues(val cty.Value) ([]Value, error) {
	if val.IsNull() || !val.IsKnown() {
		return nil, errors.New("value must be known and not null")
	}
	ty := val.Type()
	if !ty.IsTupleType() && !ty.IsListType() && !ty.IsSetType() {
		v, err := ctyScalar(val)
		if err != nil {
			return nil, err
		}
		return []Value{v}, nil
	}

	out := make([]Value, 0, val.LengthInt())
	for it := val.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		v, err := ctyScalar(elem)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func ctyScalar(val cty.Value) (Value, error) {
	if val.IsNull() || !val.IsKnown() {
		return nil, errors.New("value must be known and not null")
	}
	switch val.Type() {
	case cty.String:
		return val.AsString(), nil
	case cty.Number:
		bf := val.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return i, nil
			}
		}
		f, _ := bf.Float64()
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", val.Type().FriendlyName())
	}
}
