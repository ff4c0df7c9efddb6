package client

import (
	"strconv"
	"sync"
	"time"

	"github.com/chrisdreid/autoflow/internal/dag"
)

// Event is one message from the server's websocket stream.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// PromptID returns the prompt the event belongs to, when the server tags it.
func (e Event) PromptID() string {
	s, _ := e.Data["prompt_id"].(string)
	return s
}

// Progress is the enriched view the tracker computes from the raw event
// stream: which nodes are done, which node runs now, and how far along the
// whole prompt is.
type Progress struct {
	NodeCurrent    string   `json:"node_current,omitempty"`
	NodesCompleted []string `json:"nodes_completed"`
	NodesSkipped   []string `json:"nodes_skipped"`
	NodesDone      []string `json:"nodes_done"`
	NodesTotal     int      `json:"nodes_total"`

	// NodePercent is the current node's own progress, 0-100.
	NodePercent int `json:"node_percent"`
	// Overall is the whole prompt's progress in [0, 1].
	Overall float64 `json:"overall"`

	TimeQueued  time.Duration `json:"time_queued"`
	TimeElapsed time.Duration `json:"time_elapsed"`
	NodeElapsed time.Duration `json:"node_elapsed"`
	Finished    bool          `json:"finished"`
}

// ProgressTracker folds websocket events into Progress. The server does not
// announce cached nodes up front, so the tracker also infers them: when a
// node starts executing, every unfinished ancestor must have been served from
// cache. Safe for use from one reader goroutine plus callers of Snapshot.
type ProgressTracker struct {
	mu sync.Mutex

	total     []string
	deps      *dag.Graph
	completed []string
	skipped   []string
	current   string
	finished  bool

	submitted   time.Time
	started     time.Time
	nodeStarted time.Time

	lastPercent int
}

// NewProgressTracker starts tracking a prompt with the given node IDs.
// deps may be nil when no dependency graph is available; cached-ancestor
// inference is skipped then.
func NewProgressTracker(total []string, deps *dag.Graph) *ProgressTracker {
	return &ProgressTracker{
		total:     append([]string(nil), total...),
		deps:      deps,
		submitted: time.Now(),
	}
}

// Update folds one event and returns the resulting progress snapshot.
func (t *ProgressTracker) Update(ev Event) Progress {
	return t.update(ev, time.Now())
}

func (t *ProgressTracker) update(ev Event, now time.Time) Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ingestCached(ev.Data)

	if t.started.IsZero() && ev.Type != "submitted" {
		t.started = now
	}

	switch ev.Type {
	case "executing":
		node, ok := ev.Data["node"]
		if !ok || node == nil {
			// executing with a null node marks the end of the prompt.
			t.completeCurrent()
			t.finished = true
		} else {
			t.completeCurrent()
			t.current = asNodeID(node)
			t.nodeStarted = now
			t.lastPercent = 0
		}
	case "executed":
		if node, ok := ev.Data["node"]; ok && node != nil {
			t.markCompleted(asNodeID(node))
		}
	case "progress":
		value, okV := asNumber(ev.Data["value"])
		max, okM := asNumber(ev.Data["max"])
		if okV && okM && max > 0 {
			t.lastPercent = int(value * 100 / max)
		} else {
			t.lastPercent = 0
		}
	}

	t.inferSkipped()
	return t.snapshot(now)
}

// Snapshot returns the current progress without folding an event.
func (t *ProgressTracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot(time.Now())
}

func (t *ProgressTracker) snapshot(now time.Time) Progress {
	done := make([]string, 0, len(t.completed)+len(t.skipped))
	seen := map[string]bool{}
	for _, id := range append(append([]string{}, t.completed...), t.skipped...) {
		if !seen[id] {
			seen[id] = true
			done = append(done, id)
		}
	}

	p := Progress{
		NodeCurrent:    t.current,
		NodesCompleted: append([]string(nil), t.completed...),
		NodesSkipped:   append([]string(nil), t.skipped...),
		NodesDone:      done,
		NodesTotal:     len(t.total),
		NodePercent:    t.lastPercent,
		TimeElapsed:    now.Sub(t.submitted),
		Finished:       t.finished,
	}
	if !t.started.IsZero() {
		p.TimeQueued = t.started.Sub(t.submitted)
	}
	if !t.nodeStarted.IsZero() {
		p.NodeElapsed = now.Sub(t.nodeStarted)
	}
	if len(t.total) > 0 {
		overall := (float64(len(done)) + float64(p.NodePercent)/100) / float64(len(t.total))
		if overall < 0 {
			overall = 0
		}
		if overall > 1 {
			overall = 1
		}
		p.Overall = overall
	}
	return p
}

func (t *ProgressTracker) completeCurrent() {
	if t.current != "" {
		t.markCompleted(t.current)
		t.current = ""
	}
}

func (t *ProgressTracker) markCompleted(id string) {
	for _, c := range t.completed {
		if c == id {
			return
		}
	}
	t.completed = append(t.completed, id)
}

func (t *ProgressTracker) markSkipped(id string) {
	for _, c := range t.completed {
		if c == id {
			return
		}
	}
	for _, s := range t.skipped {
		if s == id {
			return
		}
	}
	t.skipped = append(t.skipped, id)
}

func (t *ProgressTracker) inferSkipped() {
	if t.current == "" || t.deps == nil {
		return
	}
	for _, anc := range t.deps.Ancestors(t.current) {
		if anc != t.current {
			t.markSkipped(anc)
		}
	}
}

// ingestCached pulls execution_cached announcements out of the message
// shapes the server uses, e.g. {"status": {"messages": [["execution_cached",
// {"nodes": [...]}]]}}.
func (t *ProgressTracker) ingestCached(data map[string]any) {
	var msgs []any
	msgs = append(msgs, extractMessages(data)...)
	if status, ok := data["status"].(map[string]any); ok {
		msgs = append(msgs, extractMessages(status)...)
	}

	for _, msg := range msgs {
		entry, ok := msg.([]any)
		if !ok || len(entry) < 2 {
			continue
		}
		if tag, _ := entry[0].(string); tag != "execution_cached" {
			continue
		}
		payload, ok := entry[1].(map[string]any)
		if !ok {
			continue
		}
		nodes, ok := payload["nodes"].([]any)
		if !ok {
			continue
		}
		for _, n := range nodes {
			t.markCompleted(asNodeID(n))
		}
	}
}

func extractMessages(obj map[string]any) []any {
	if obj == nil {
		return nil
	}
	if msgs, ok := obj["messages"].([]any); ok {
		return msgs
	}
	switch d := obj["data"].(type) {
	case []any:
		return d
	case map[string]any:
		if msgs, ok := d["messages"].([]any); ok {
			return msgs
		}
	}
	return nil
}

func asNodeID(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64)
	default:
		return ""
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
