package schema

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/chrisdreid/autoflow/internal/ctxlog"
	"github.com/chrisdreid/autoflow/internal/fsutil"
)

// ManifestFile is the top-level structure of a node-schema manifest. Local
// manifests let custom node packs convert offline, without a fetched
// object_info that knows about them.
type ManifestFile struct {
	Nodes []*ManifestNode `hcl:"node,block"`
}

// ManifestNode declares the schema of one node type.
type ManifestNode struct {
	Type        string           `hcl:"type,label"`
	DisplayName string           `hcl:"display_name,optional"`
	Description string           `hcl:"description,optional"`
	Category    string           `hcl:"category,optional"`
	Inputs      []*ManifestInput `hcl:"input,block"`
	Optional    []*ManifestInput `hcl:"optional,block"`
	Outputs     []string         `hcl:"outputs,optional"`
}

// ManifestInput declares a single named parameter. Either type or options
// must be set; a default (or options) makes it a widget unless overridden.
type ManifestInput struct {
	Name    string     `hcl:"name,label"`
	Type    string     `hcl:"type,optional"`
	Default *cty.Value `hcl:"default,optional"`
	Options *cty.Value `hcl:"options,optional"`
	Widget  *bool      `hcl:"widget,optional"`
	Tooltip string     `hcl:"tooltip,optional"`
	Min     *cty.Value `hcl:"min,optional"`
	Max     *cty.Value `hcl:"max,optional"`
}

// ParseManifest decodes one manifest source into a Library fragment.
func ParseManifest(filename string, src []byte) (Library, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", filename, diags)
	}
	return decodeManifest(filename, file.Body)
}

// LoadManifests parses every .hcl manifest under dir and merges the results.
// Later files win on type collisions.
func LoadManifests(ctx context.Context, dir string) (Library, error) {
	logger := ctxlog.FromContext(ctx)

	paths, err := fsutil.FindFilesByExtension(dir, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("walking manifest directory %s: %w", dir, err)
	}
	if len(paths) == 0 {
		logger.Warn("No .hcl manifests found in path", "path", dir)
		return Library{}, nil
	}

	parser := hclparse.NewParser()
	out := Library{}
	for _, path := range paths {
		file, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse manifest %s: %w", path, diags)
		}
		lib, err := decodeManifest(path, file.Body)
		if err != nil {
			return nil, err
		}
		out = out.Merge(lib)
		logger.Debug("Loaded schema manifest.", "file", path, "types", len(lib))
	}
	logger.Info("Schema manifests loaded.", "files", len(paths), "types", len(out))
	return out, nil
}

func decodeManifest(filename string, body hcl.Body) (Library, error) {
	var mf ManifestFile
	if diags := gohcl.DecodeBody(body, nil, &mf); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", filename, diags)
	}

	lib := Library{}
	for _, node := range mf.Nodes {
		info, err := node.nodeInfo()
		if err != nil {
			return nil, fmt.Errorf("manifest %s, node %q: %w", filename, node.Type, err)
		}
		lib[node.Type] = info
	}
	return lib, nil
}

func (m *ManifestNode) nodeInfo() (*NodeInfo, error) {
	info := &NodeInfo{
		Name:        m.Type,
		DisplayName: m.DisplayName,
		Description: m.Description,
		Category:    m.Category,
	}
	if info.DisplayName == "" {
		info.DisplayName = m.Type
	}

	for _, in := range m.Inputs {
		spec, err := in.spec()
		if err != nil {
			return nil, err
		}
		info.Input.Required = append(info.Input.Required, NamedSpec{Name: in.Name, Spec: spec})
	}
	for _, in := range m.Optional {
		spec, err := in.spec()
		if err != nil {
			return nil, err
		}
		info.Input.Optional = append(info.Input.Optional, NamedSpec{Name: in.Name, Spec: spec})
	}
	return info, nil
}

func (m *ManifestInput) spec() (*Spec, error) {
	opts := map[string]any{}
	if m.Default != nil {
		v, err := ctyToGo(*m.Default)
		if err != nil {
			return nil, fmt.Errorf("input %q default: %w", m.Name, err)
		}
		opts["default"] = v
	}
	if m.Min != nil {
		v, err := ctyToGo(*m.Min)
		if err != nil {
			return nil, fmt.Errorf("input %q min: %w", m.Name, err)
		}
		opts["min"] = v
	}
	if m.Max != nil {
		v, err := ctyToGo(*m.Max)
		if err != nil {
			return nil, fmt.Errorf("input %q max: %w", m.Name, err)
		}
		opts["max"] = v
	}
	if m.Tooltip != "" {
		opts["tooltip"] = m.Tooltip
	}
	if len(opts) == 0 {
		opts = nil
	}

	var spec *Spec
	if m.Options != nil {
		raw, err := ctyToGo(*m.Options)
		if err != nil {
			return nil, fmt.Errorf("input %q options: %w", m.Name, err)
		}
		choices, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("input %q options must be a list", m.Name)
		}
		spec = NewSpec("", choices, opts)
	} else {
		if m.Type == "" {
			return nil, fmt.Errorf("input %q needs a type or options", m.Name)
		}
		spec = NewSpec(m.Type, nil, opts)
	}
	spec.Widget = m.Widget
	return spec, nil
}

// ctyToGo converts a decoded HCL value into the plain Go shapes the rest of
// the schema layer works with.
func ctyToGo(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			i, _ := bf.Int64()
			return i, nil
		}
		f, _ := bf.Float64()
		return f, nil
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			converted, err := ctyToGo(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			kv, ev := it.Element()
			converted, err := ctyToGo(ev)
			if err != nil {
				return nil, err
			}
			out[kv.AsString()] = converted
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}
