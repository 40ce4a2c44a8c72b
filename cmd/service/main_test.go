package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotes-api/internal/platform/config"
)

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())

	return out.String(), err
}

// startServer runs serve on a free port with the built-in seed and returns
// its base URL. The server stops when the test ends.
func startServer(t *testing.T) string {
	t.Helper()

	cfg, err := config.LoadFrom(t.TempDir(), "")
	require.NoError(t, err)

	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Log.Level = "error"
	cfg.Seed.Enabled = true
	require.NoError(t, cfg.Validate())

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)

	go func() { done <- serve(ctx, cfg, func(baseURL string) { ready <- baseURL }) }()

	var baseURL string

	select {
	case baseURL = <-ready:
	case err := <-done:
		cancel()
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("server did not become ready")
	}

	t.Cleanup(func() {
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})

	return baseURL
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)

	assert.Contains(t, out, "version dev")
	assert.Contains(t, out, "commit unknown")
}

func TestServe_InvalidConfigFailsFast(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("log:\n  level: loud\n"), 0o600))

	_, err := execute(t, "serve", "--config-dir", dir, "--profile", "broken")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
	assert.Contains(t, err.Error(), "log.level must be one of")
}

func TestServe_UnknownStoreDriverFails(t *testing.T) {
	cfg, err := config.LoadFrom(t.TempDir(), "")
	require.NoError(t, err)

	cfg.Log.Level = "error"
	cfg.Store.Driver = "postgres"

	err = serve(context.Background(), cfg, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "initializing quote store")
}

func TestClientCommands_AgainstSeededServer(t *testing.T) {
	baseURL := startServer(t)
	dir := t.TempDir()

	client := func(args ...string) string {
		t.Helper()

		full := append([]string{"client", "--config-dir", dir, "--url", baseURL}, args...)
		out, err := execute(t, full...)
		require.NoError(t, err, out)

		return out
	}

	out := client("list")
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "Dennis Gabor")
	assert.Contains(t, out, "Pablo Picasso")

	out = client("get", "3", "--json")

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Pablo Picasso", got[0]["author"])
	assert.NotContains(t, out, "secret")

	out = client("get", "3", "2", "--json")
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Pablo Picasso", got[0]["author"])
	assert.Equal(t, "Mahatma Gandhi", got[1]["author"])

	out = client("create", "--author", "Grace Hopper", "--text", "It's easier to ask forgiveness than it is to get permission.")
	assert.Contains(t, out, "4")
	assert.Contains(t, out, "Grace Hopper")

	out = client("search", "gab")
	assert.Contains(t, out, "Dennis Gabor")
	assert.NotContains(t, out, "Gandhi")

	out = client("update", "1", "--author", "D. Gabor", "--text", "Invent it.")
	assert.Equal(t, "Quote 1 updated.\n", out)

	out = client("delete", "1")
	assert.Contains(t, out, "D. Gabor")

	_, err := execute(t, "client", "--config-dir", dir, "--url", baseURL, "get", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `quote with id "1" not found`)

	_, err = execute(t, "client", "--config-dir", dir, "--url", baseURL, "search", "gabbagool")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no quote found")

	_, err = execute(t, "client", "--config-dir", dir, "--url", baseURL, "get", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be an integer")
}

func TestPrintQuotes_Empty(t *testing.T) {
	var out bytes.Buffer

	opts := &clientOptions{globalOptions: &globalOptions{}}
	require.NoError(t, opts.printQuotes(&out, nil))
	assert.Equal(t, "No quotes found.\n", out.String())

	out.Reset()
	opts.jsonOutput = true
	require.NoError(t, opts.printQuotes(&out, nil))
	assert.Equal(t, "[]", strings.TrimSpace(out.String()))
}

func TestProfileFromEnv(t *testing.T) {
	t.Setenv("APP_ENVIRONMENT", "")
	assert.Equal(t, "local", profileFromEnv())

	t.Setenv("APP_ENVIRONMENT", "demo")
	assert.Equal(t, "demo", profileFromEnv())
}
