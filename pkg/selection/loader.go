package selection

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/3leaps/ntbatch/pkg/catalog"
)

// selectionsKey names the list when a document wraps it in a mapping.
const selectionsKey = "selections"

// Load reads and validates a selection file.
//
// The format is determined by extension: .hcl for HCL, anything else is
// parsed as YAML (which also accepts JSON). A YAML document is either a list
// of mappings or a mapping whose "selections" key holds that list; a bare
// mapping is read as a single spec.
//
// Returns an error if:
//   - The file cannot be read
//   - The content does not parse
//   - Validation fails (see Validate)
func Load(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("selection file not found: %s: %w", path, err)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading selection file: %s", path)
		}
		return nil, fmt.Errorf("failed to read selection file: %w", err)
	}
	return LoadFromBytes(data, path)
}

// LoadFromBytes parses and validates selections from raw bytes. The path is
// used for format detection and error messages.
func LoadFromBytes(data []byte, path string) ([]Spec, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("selection file is empty")
	}

	var (
		specs []Spec
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		specs, err = parseHCL(data, path)
	default:
		specs, err = parseYAML(data)
	}
	if err != nil {
		return nil, err
	}

	if err := Validate(specs); err != nil {
		return nil, err
	}
	return specs, nil
}

// LoadFromReader reads selections from r. The path is used for format
// detection and error messages.
func LoadFromReader(r io.Reader, path string) ([]Spec, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read selections: %w", err)
	}
	return LoadFromBytes(data, path)
}

// Validate checks a loaded selection list.
//
// There must be at least one spec and every spec needs at least one field.
// Field names must be plain SQL identifiers and unique within their spec.
// Values must be strings or numbers and form a set: a value may appear at
// most once per field, with 13 and 13.0 counting as the same number.
// Empty value sets are allowed.
func Validate(specs []Spec) error {
	if len(specs) == 0 {
		return errors.New("no selections defined")
	}
	for i, s := range specs {
		if len(s.Fields) == 0 {
			return fmt.Errorf("selection %d: no fields", i)
		}
		seen := make(map[string]bool, len(s.Fields))
		for _, f := range s.Fields {
			if !catalog.ValidIdentifier(f.Name) {
				return fmt.Errorf("selection %d: invalid field name %q", i, f.Name)
			}
			if seen[f.Name] {
				return fmt.Errorf("selection %d: duplicate field %q", i, f.Name)
			}
			seen[f.Name] = true
			values := make(map[string]int, len(f.Values))
			for j, v := range f.Values {
				key, ok := valueKey(v)
				if !ok {
					return fmt.Errorf("selection %d: field %q value %d: unsupported type %T", i, f.Name, j, v)
				}
				if first, dup := values[key]; dup {
					return fmt.Errorf("selection %d: field %q value %d: duplicate of value %d (%v)", i, f.Name, j, first, v)
				}
				values[key] = j
			}
		}
	}
	return nil
}

// valueKey identifies a value for set membership. Numbers compare by value
// across int64 and float64; strings never equal numbers.
func valueKey(v Value) (string, bool) {
	switch x := v.(type) {
	case string:
		return "s:" + x, true
	case int64:
		return "n:" + strconv.FormatInt(x, 10), true
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<63 {
			return "n:" + strconv.FormatInt(int64(x), 10), true
		}
		return "n:" + strconv.FormatFloat(x, 'g', -1, 64), true
	default:
		return "", false
	}
}

func parseYAML(data []byte) ([]Spec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML in selection file: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("selection file is empty")
	}

	root := doc.Content[0]
	if root.Kind == yaml.MappingNode {
		if list := mappingValue(root, selectionsKey); list != nil {
			root = list
		} else {
			spec, err := specFromNode(root, 0)
			if err != nil {
				return nil, err
			}
			return []Spec{spec}, nil
		}
	}
	if root.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: expected a list of selections", root.Line)
	}

	specs := make([]Spec, 0, len(root.Content))
	for i, item := range root.Content {
		spec, err := specFromNode(item, i)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func specFromNode(n *yaml.Node, index int) (Spec, error) {
	if n.Kind != yaml.MappingNode {
		return Spec{}, fmt.Errorf("selection %d (line %d): expected a mapping of field to values", index, n.Line)
	}

	spec := Spec{Fields: make([]Field, 0, len(n.Content)/2)}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]

		var items []*yaml.Node
		switch val.Kind {
		case yaml.SequenceNode:
			items = val.Content
		case yaml.ScalarNode:
			items = []*yaml.Node{val}
		default:
			return Spec{}, fmt.Errorf("selection %d field %q (line %d): expected a value or a list of values", index, key.Value, val.Line)
		}

		field := Field{Name: key.Value, Values: make([]Value, 0, len(items))}
		for _, item := range items {
			v, err := scalarValue(item)
			if err != nil {
				return Spec{}, fmt.Errorf("selection %d field %q: %w", index, key.Value, err)
			}
			field.Values = append(field.Values, v)
		}
		spec.Fields = append(spec.Fields, field)
	}
	return spec, nil
}

func scalarValue(n *yaml.Node) (Value, error) {
	if n.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("line %d: values must be scalars", n.Line)
	}
	switch n.Tag {
	case "!!str":
		return n.Value, nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return i, nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported value %q (%s)", n.Line, n.Value, strings.TrimPrefix(n.Tag, "!!"))
	}
}
