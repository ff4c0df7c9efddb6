package dag

import (
	"fmt"
	"strings"
)

// Label presets for the renderers. Any string containing braces is instead
// treated as a template over {id}, {class_type}, and {title}.
const (
	LabelID          = "id"
	LabelClassType   = "class_type"
	LabelTitle       = "title"
	LabelIDClassType = "id_class_type"
)

// DefaultMermaidLabel is the label template Mermaid rendering uses when none
// is given.
const DefaultMermaidLabel = "{id}: {class_type}"

// DOT renders the graph as Graphviz DOT. An empty label means LabelID.
func (g *Graph) DOT(label string) string {
	var b strings.Builder
	b.WriteString("digraph autoflow {\n")
	b.WriteString("  rankdir=LR;\n")
	for _, n := range g.nodes {
		text := strings.ReplaceAll(g.formatLabel(label, n), `"`, `\"`)
		fmt.Fprintf(&b, "  %q [label=\"%s\"];\n", n, text)
	}
	for _, e := range g.edges {
		fmt.Fprintf(&b, "  %q -> %q;\n", e.Src, e.Dst)
	}
	b.WriteString("}")
	return b.String()
}

// Mermaid renders the graph as a Mermaid flowchart. Direction is LR or TD
// (anything else falls back to LR); an empty label means DefaultMermaidLabel.
func (g *Graph) Mermaid(direction, label string) string {
	if direction != "LR" && direction != "TD" {
		direction = "LR"
	}
	if label == "" {
		label = DefaultMermaidLabel
	}

	var b strings.Builder
	fmt.Fprintf(&b, "flowchart %s\n", direction)
	for _, n := range g.nodes {
		text := strings.ReplaceAll(g.formatLabel(label, n), `"`, `\"`)
		fmt.Fprintf(&b, "  %s[\"%s\"]\n", mermaidID(n), text)
	}
	for _, e := range g.edges {
		fmt.Fprintf(&b, "  %s --> %s\n", mermaidID(e.Src), mermaidID(e.Dst))
	}
	return strings.TrimRight(b.String(), "\n")
}

// mermaidID makes a node ID safe for Mermaid, which chokes on characters
// like ':' in identifiers; the original ID stays visible in the label.
func mermaidID(id string) string {
	var b strings.Builder
	b.WriteString("n_")
	for _, ch := range id {
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			b.WriteRune(ch)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (g *Graph) formatLabel(label, id string) string {
	ent := g.entities[id]

	if strings.Contains(label, "{") && strings.Contains(label, "}") {
		out := strings.NewReplacer(
			"{id}", id,
			"{class_type}", ent.ClassType,
			"{title}", ent.Title,
		).Replace(label)
		if strings.TrimSpace(out) == "" {
			return id
		}
		return out
	}

	switch label {
	case LabelClassType:
		if ent.ClassType != "" {
			return ent.ClassType
		}
	case LabelTitle:
		if ent.Title != "" {
			return ent.Title
		}
	case LabelIDClassType, "id+class_type", "id:class_type":
		if ent.ClassType != "" {
			return id + ": " + ent.ClassType
		}
	}
	return id
}
