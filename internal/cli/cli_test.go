package cli

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisdreid/autoflow/internal/config"
)

const cliObjectInfo = `{
	"LoadThing": {
		"input": {"required": {"path": ["STRING", {"default": "a.png"}]}},
		"output": ["VAL"]
	},
	"UseThing": {
		"input": {"required": {"src": ["VAL"], "count": ["INT", {"default": 1}]}}
	}
}`

const cliWorkflow = `{
	"last_node_id": 2,
	"last_link_id": 1,
	"nodes": [
		{"id": 1, "type": "LoadThing", "mode": 0,
		 "outputs": [{"name": "VAL", "type": "VAL", "links": [1]}],
		 "widgets_values": ["b.png"]},
		{"id": 2, "type": "UseThing", "mode": 0,
		 "inputs": [{"name": "src", "type": "VAL", "link": 1}],
		 "widgets_values": [3]}
	],
	"links": [[1, 1, 0, 2, 0, "VAL"]]
}`

const cliPayload = `{
	"1": {"class_type": "LoadThing", "inputs": {"path": "b.png"}},
	"2": {"class_type": "UseThing", "inputs": {"src": ["1", 0], "count": 3}}
}`

func clearAutoflowEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{
		config.EnvServerURL, config.EnvObjectInfoSource, config.EnvTimeoutS,
		config.EnvSubgraphMaxDepth, config.EnvClientID, config.EnvOutputPath,
		config.EnvIncludeMeta, config.EnvManifestDir, config.EnvCachePath,
		config.EnvCacheMaxAgeS, config.EnvLogLevel, config.EnvLogFormat,
	} {
		t.Setenv(env, "")
	}
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := New()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func writeFixtures(t *testing.T) (dir, flow, objectInfo string) {
	t.Helper()
	dir = t.TempDir()
	flow = filepath.Join(dir, "flow.json")
	objectInfo = filepath.Join(dir, "object_info.json")
	require.NoError(t, os.WriteFile(flow, []byte(cliWorkflow), 0o644))
	require.NoError(t, os.WriteFile(objectInfo, []byte(cliObjectInfo), 0o644))
	return dir, flow, objectInfo
}

func TestConvertCommand(t *testing.T) {
	clearAutoflowEnv(t)
	dir, flow, objectInfo := writeFixtures(t)
	outDir := filepath.Join(dir, "out")

	stdout, _, err := runCLI(t, "convert", flow, "--object-info", objectInfo, "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "flow.json")

	data, err := os.ReadFile(filepath.Join(outDir, "flow.json"))
	require.NoError(t, err)

	var got, want map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.NoError(t, json.Unmarshal([]byte(cliPayload), &want))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertToStdout(t *testing.T) {
	clearAutoflowEnv(t)
	_, flow, objectInfo := writeFixtures(t)

	stdout, _, err := runCLI(t, "convert", flow, "--object-info", objectInfo, "--out", "-")
	require.NoError(t, err)
	assert.JSONEq(t, cliPayload, stdout)
}

func TestConvertPNGInput(t *testing.T) {
	clearAutoflowEnv(t)
	dir, _, objectInfo := writeFixtures(t)
	png := filepath.Join(dir, "render.png")
	require.NoError(t, os.WriteFile(png, pngWithChunk("workflow", cliWorkflow), 0o644))

	_, _, err := runCLI(t, "convert", png, "--object-info", objectInfo, "--out", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "render.json"))
	require.NoError(t, err)
	assert.JSONEq(t, cliPayload, string(data))
}

func TestConvertFailsOnBadDocument(t *testing.T) {
	clearAutoflowEnv(t)
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"nodes": 5}`), 0o644))

	_, _, err := runCLI(t, "convert", bad, "--out", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 inputs failed")
}

func TestConvertMissingInput(t *testing.T) {
	clearAutoflowEnv(t)
	_, _, err := runCLI(t, "convert", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestConvertReportFlag(t *testing.T) {
	clearAutoflowEnv(t)
	_, flow, objectInfo := writeFixtures(t)

	_, stderr, err := runCLI(t, "convert", flow, "--object-info", objectInfo, "--out", "-", "--report")
	require.NoError(t, err)
	assert.Contains(t, stderr, `"success": true`)
	assert.Contains(t, stderr, `"processed_nodes": 2`)
}

func TestConvertLogFormatFlag(t *testing.T) {
	clearAutoflowEnv(t)
	_, flow, objectInfo := writeFixtures(t)

	_, stderr, err := runCLI(t,
		"--log-level", "debug", "--log-format", "json",
		"convert", flow, "--object-info", objectInfo, "--out", "-")
	require.NoError(t, err)
	assert.Contains(t, stderr, `"level":"DEBUG"`)
}

func TestExpandCommand(t *testing.T) {
	clearAutoflowEnv(t)
	_, flow, _ := writeFixtures(t)

	stdout, _, err := runCLI(t, "expand", flow, "--out", "-")
	require.NoError(t, err)

	var doc struct {
		Nodes []json.RawMessage `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.Len(t, doc.Nodes, 2)
}

func TestExpandWritesFlatFile(t *testing.T) {
	clearAutoflowEnv(t)
	dir, flow, _ := writeFixtures(t)

	stdout, _, err := runCLI(t, "expand", flow, "--out", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "flow_flat.json")

	_, err = os.Stat(filepath.Join(dir, "flow_flat.json"))
	require.NoError(t, err)
}

func TestDagFromWorkflow(t *testing.T) {
	clearAutoflowEnv(t)
	_, flow, _ := writeFixtures(t)

	stdout, _, err := runCLI(t, "dag", flow, "--format", "dot")
	require.NoError(t, err)
	assert.Contains(t, stdout, "digraph autoflow {")
	assert.Contains(t, stdout, `"1" -> "2";`)
}

func TestDagFromPrompt(t *testing.T) {
	clearAutoflowEnv(t)
	dir := t.TempDir()
	payload := filepath.Join(dir, "payload.json")
	require.NoError(t, os.WriteFile(payload, []byte(cliPayload), 0o644))

	stdout, _, err := runCLI(t, "dag", payload, "--format", "mermaid", "--direction", "TD")
	require.NoError(t, err)
	assert.Contains(t, stdout, "flowchart TD")
	assert.Contains(t, stdout, "n_1 --> n_2")
	assert.Contains(t, stdout, `n_2["2: UseThing"]`)
}

func TestDagUnknownFormat(t *testing.T) {
	clearAutoflowEnv(t)
	_, flow, _ := writeFixtures(t)

	_, _, err := runCLI(t, "dag", flow, "--format", "ascii")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ascii")
}

func TestSchemaShow(t *testing.T) {
	clearAutoflowEnv(t)
	_, _, objectInfo := writeFixtures(t)

	stdout, _, err := runCLI(t, "schema", "show", "UseThing", "--object-info", objectInfo)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"count"`)

	_, _, err = runCLI(t, "schema", "show", "Missing", "--object-info", objectInfo)
	require.Error(t, err)
}

func TestSchemaFetch(t *testing.T) {
	clearAutoflowEnv(t)
	_, _, objectInfo := writeFixtures(t)

	stdout, _, err := runCLI(t, "schema", "fetch", objectInfo)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"LoadThing"`)
}

func TestSubmitCommand(t *testing.T) {
	clearAutoflowEnv(t)
	var submitted map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		require.Equal(t, "/prompt", req.URL.Path)
		require.NoError(t, json.NewDecoder(req.Body).Decode(&submitted))
		fmt.Fprint(w, `{"prompt_id": "abc-123", "number": 7}`)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	payload := filepath.Join(dir, "payload.json")
	require.NoError(t, os.WriteFile(payload, []byte(cliPayload), 0o644))

	stdout, _, err := runCLI(t, "submit", payload, "--server-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, stdout, "queued prompt abc-123 (#7)")
	assert.Equal(t, "autoflow", submitted["client_id"], "the configured default ID is sent verbatim")
}

func TestSubmitConvertsWorkflows(t *testing.T) {
	clearAutoflowEnv(t)
	var submitted map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		require.NoError(t, json.NewDecoder(req.Body).Decode(&submitted))
		fmt.Fprint(w, `{"prompt_id": "xyz", "number": 1}`)
	}))
	t.Cleanup(srv.Close)

	_, flow, objectInfo := writeFixtures(t)
	_, _, err := runCLI(t, "submit", flow, "--server-url", srv.URL, "--object-info", objectInfo, "--client-id", "bench-01")
	require.NoError(t, err)

	assert.Equal(t, "bench-01", submitted["client_id"])
	prompt, ok := submitted["prompt"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, prompt, 2)
}

func TestSubmitWithoutServerURL(t *testing.T) {
	clearAutoflowEnv(t)
	dir := t.TempDir()
	payload := filepath.Join(dir, "payload.json")
	require.NoError(t, os.WriteFile(payload, []byte(cliPayload), 0o644))

	_, _, err := runCLI(t, "submit", payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.EnvServerURL)
}

func TestConfigFileIsHonored(t *testing.T) {
	clearAutoflowEnv(t)
	dir, flow, objectInfo := writeFixtures(t)
	outDir := filepath.Join(dir, "from-config")
	cfgPath := filepath.Join(dir, "autoflow.yaml")
	require.NoError(t, os.WriteFile(cfgPath,
		[]byte("output_path: "+outDir+"\nobject_info_source: "+objectInfo+"\n"), 0o644))

	_, _, err := runCLI(t, "--config", cfgPath, "convert", flow)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, "flow.json"))
	require.NoError(t, err)
	assert.JSONEq(t, cliPayload, string(data))
}

// pngWithChunk builds a minimal PNG wrapping one tEXt metadata chunk.
func pngWithChunk(key, value string) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})

	payload := append(append([]byte(key), 0), []byte(value)...)
	binary.Write(&buf, binary.BigEndian, uint32(len(payload)))
	buf.WriteString("tEXt")
	buf.Write(payload)
	buf.Write([]byte{0, 0, 0, 0})

	binary.Write(&buf, binary.BigEndian, uint32(0))
	buf.WriteString("IEND")
	buf.Write([]byte{0, 0, 0, 0})
	return buf.Bytes()
}
