// internal/cli/cli_test.go
package parachat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

// resetFlags restores every flag to its default so global command state does
// not leak between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	currentConfig = nil

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append(args, "--logFile", filepath.Join(t.TempDir(), "parachat.log")))
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// fakeOllama serves the endpoints the commands touch. chatStatus controls /api/chat.
func fakeOllama(t *testing.T, reply string, chatStatus int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			_, _ = io.WriteString(w, `{"done":true}`)
		case "/api/tags":
			_, _ = io.WriteString(w, `{"models":[{"name":"m"},{"name":"llama3.2:3b"}]}`)
		case "/api/ps":
			_, _ = io.WriteString(w, `{"models":[{"name":"m"}]}`)
		case "/api/chat":
			if chatStatus != http.StatusOK {
				w.WriteHeader(chatStatus)
				_, _ = io.WriteString(w, `{"error":"backend down"}`)
				return
			}
			_, _ = fmt.Fprintf(w, `{"model":"m","message":{"role":"assistant","content":%q},"done":true}`, reply)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func hostConfig(url string, extra map[string]any) map[string]any {
	cfg := map[string]any{
		"hosts": []map[string]any{{
			"name":   "local",
			"url":    url,
			"type":   "ollama",
			"models": []string{"m"},
		}},
		"parallelism":      1,
		"chunkDelayMs":     -1,
		"sampleIntervalMs": 5,
	}
	for k, v := range extra {
		cfg[k] = v
	}
	return cfg
}

func TestAnalyzeCommandFromFile(t *testing.T) {
	cfg := writeJSON(t, map[string]any{"parallelism": 2, "chunkDelayMs": -1})
	input := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(input, []byte("a b c d"), 0o644))

	out, err := executeCommand(t, "", "analyze", input, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Chunks processed: 2")
	assert.Contains(t, out, "Total words: 4")
}

func TestAnalyzeCommandFromStdin(t *testing.T) {
	cfg := writeJSON(t, map[string]any{"parallelism": 1, "chunkDelayMs": -1})

	out, err := executeCommand(t, "the cat sat on the mat the cat ran", "analyze", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "the cat sat on **the** mat **the** **cat** ran")
	assert.Contains(t, out, "Unique words: 6")
}

func TestAskCommandParallel(t *testing.T) {
	server := fakeOllama(t, "the cat the", http.StatusOK)
	export := filepath.Join(t.TempDir(), "messages.jsonl")
	cfg := writeJSON(t, hostConfig(server.URL, map[string]any{"export": export}))

	out, err := executeCommand(t, "", "ask", "hello", "there", "--mode", "parallel", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "the cat **the**")
	assert.Contains(t, out, "--- Parallel Analysis ---")
	assert.Contains(t, out, "[OK] m on local (parallel)")

	data, err := os.ReadFile(export)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"prompt":"hello there"`)
}

func TestAskCommandBackendFailure(t *testing.T) {
	server := fakeOllama(t, "", http.StatusInternalServerError)
	cfg := writeJSON(t, hostConfig(server.URL, nil))

	out, err := executeCommand(t, "", "ask", "hello", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend failure")
	assert.Contains(t, out, "[FAIL] m on local (sequential)")
	assert.Contains(t, out, "Errors:")
}

func TestCompareCommandWritesHistory(t *testing.T) {
	server := fakeOllama(t, "one two three four", http.StatusOK)
	cfg := writeJSON(t, hostConfig(server.URL, nil))
	historyPath := filepath.Join(t.TempDir(), "history", "runs.json")

	out, err := executeCommand(t, "", "compare", "go", "--runs", "2", "--history-out", historyPath, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "run 2/2")
	assert.Contains(t, out, "parallel/sequential speedup")

	data, err := os.ReadFile(historyPath)
	require.NoError(t, err)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(data, &entries))
	assert.Len(t, entries, 2)
}

func TestShowConfigReflectsFlagOverrides(t *testing.T) {
	cfg := writeJSON(t, map[string]any{"parallelism": 3, "defaultMode": "parallel"})

	out, err := executeCommand(t, "", "show", "config", "--config", cfg, "--sampleIntervalMs", "250")
	require.NoError(t, err)
	assert.Contains(t, out, "Parallelism:     3")
	assert.Contains(t, out, "Default Mode:    parallel")
	assert.Contains(t, out, "Sample Interval: 250ms")
}

func TestListModelsCommand(t *testing.T) {
	server := fakeOllama(t, "", http.StatusOK)
	cfg := writeJSON(t, hostConfig(server.URL, nil))

	out, err := executeCommand(t, "", "list", "models", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "- m (LOADED)")
	assert.Contains(t, out, "- llama3.2:3b (RECOMMENDED)")
	assert.Contains(t, out, "Recommended models:")
}

func TestListCommands(t *testing.T) {
	cfg := writeJSON(t, map[string]any{})

	out, err := executeCommand(t, "", "list", "commands", "--config", cfg)
	require.NoError(t, err)
	for _, name := range []string{"parachat ask", "parachat compare", "parachat analyze", "parachat list models", "parachat show config"} {
		assert.Contains(t, out, name)
	}
}
