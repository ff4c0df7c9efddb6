package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chrisdreid/autoflow/internal/pngmeta"
)

// readWorkflowDoc returns the workflow JSON carried by path. PNG files are
// unwrapped through their embedded metadata; anything else is read verbatim.
func readWorkflowDoc(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !pngmeta.IsPNG(data) {
		return data, nil
	}
	meta, err := pngmeta.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if meta.Workflow == nil {
		return nil, fmt.Errorf("%s carries no embedded workflow", path)
	}
	return meta.Workflow, nil
}

// readPromptDoc is readWorkflowDoc's sibling for already-compiled payloads.
func readPromptDoc(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !pngmeta.IsPNG(data) {
		return data, nil
	}
	meta, err := pngmeta.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if meta.Prompt == nil {
		return nil, fmt.Errorf("%s carries no embedded prompt", path)
	}
	return meta.Prompt, nil
}

// readPromptOrWorkflow returns whichever document the input carries,
// preferring an exact compiled payload over the editable workflow when a PNG
// embeds both.
func readPromptOrWorkflow(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !pngmeta.IsPNG(data) {
		return data, nil
	}
	meta, err := pngmeta.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	switch {
	case meta.Prompt != nil:
		return meta.Prompt, nil
	case meta.Workflow != nil:
		return meta.Workflow, nil
	default:
		return nil, fmt.Errorf("%s carries no embedded workflow or prompt", path)
	}
}

// isWorkflowJSON distinguishes an editor workflow document from a compiled
// payload: a workflow has a top-level "nodes" array, a payload never does.
func isWorkflowJSON(data []byte) bool {
	var probe struct {
		Nodes json.RawMessage `json:"nodes"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	trimmed := strings.TrimSpace(string(probe.Nodes))
	return strings.HasPrefix(trimmed, "[")
}

// stdoutTarget marks output destined for the terminal instead of a file.
const stdoutTarget = "-"

// outputTarget maps an input path and the --out value to the destination
// file. An --out naming a .json file is used as-is (only valid for a single
// input); anything else is treated as a directory that receives
// "<input stem>.json".
func outputTarget(input, out string, multi bool) (string, error) {
	if out == stdoutTarget {
		return stdoutTarget, nil
	}
	if strings.EqualFold(filepath.Ext(out), ".json") {
		if multi {
			return "", fmt.Errorf("--out %s names a single file but multiple inputs matched", out)
		}
		return out, nil
	}
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(out, stem+".json"), nil
}
