package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrInvalidDocument marks whole-document shape problems: the only class of
// error that aborts a conversion before any per-node work begins.
var ErrInvalidDocument = errors.New("invalid workflow document")

// Parse decodes and shape-checks a workspace graph document. Individual
// malformed nodes or link records are dropped; a missing or mistyped
// top-level "nodes" or "links" field wraps ErrInvalidDocument.
func Parse(data []byte) (*Graph, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: not a JSON object: %v", ErrInvalidDocument, err)
	}
	if err := checkListField(raw, "nodes"); err != nil {
		return nil, err
	}
	if err := checkListField(raw, "links"); err != nil {
		return nil, err
	}

	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if g.Nodes == nil {
		g.Nodes = NodeList{}
	}
	if g.Links == nil {
		g.Links = LinkList{}
	}
	return &g, nil
}

func checkListField(raw map[string]json.RawMessage, field string) error {
	val, ok := raw[field]
	if !ok {
		return fmt.Errorf("%w: missing %q field", ErrInvalidDocument, field)
	}
	var probe []json.RawMessage
	if err := json.Unmarshal(val, &probe); err != nil {
		return fmt.Errorf("%w: %q field must be a list", ErrInvalidDocument, field)
	}
	return nil
}

// Load reads and parses a workspace graph from a JSON file.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow file %s: %w", path, err)
	}
	g, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing workflow file %s: %w", path, err)
	}
	return g, nil
}

// Save writes the graph as indented JSON, creating parent directories.
func (g *Graph) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding workflow: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing workflow file %s: %w", path, err)
	}
	return nil
}
