package command

import (
	"bytes"
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/urfave/cli/v2"
)

// recordedRequest is what the mock backend saw.
type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   []byte
}

// mockServer is a fake backend. Handlers are keyed by "METHOD /path";
// the longest matching path prefix wins. Unmatched requests get the
// backend's "Route not found" 404.
type mockServer struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	requests []recordedRequest
}

func newMockServer(t *testing.T) *mockServer {
	t.Helper()
	m := &mockServer{handlers: make(map[string]http.HandlerFunc)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		m.mu.Lock()
		m.requests = append(m.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			Body:   body,
		})
		handler := m.match(r.Method, r.URL.Path)
		m.mu.Unlock()

		if handler == nil {
			errorResponse(w, http.StatusNotFound, "Route not found")
			return
		}
		handler(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *mockServer) match(method, path string) http.HandlerFunc {
	var best http.HandlerFunc
	bestLen := -1
	for pattern, h := range m.handlers {
		pm, pp, _ := strings.Cut(pattern, " ")
		if pm != method || !strings.HasPrefix(path, pp) {
			continue
		}
		if len(pp) > bestLen {
			best, bestLen = h, len(pp)
		}
	}
	return best
}

// handle registers a handler for "METHOD /path".
func (m *mockServer) handle(pattern string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[pattern] = handler
}

// reply registers a fixed JSON answer.
func (m *mockServer) reply(pattern string, status int, data any) {
	m.handle(pattern, func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, status, data)
	})
}

func (m *mockServer) Requests() []recordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordedRequest(nil), m.requests...)
}

// count returns how many requests hit method and path.
func (m *mockServer) count(method, path string) int {
	n := 0
	for _, r := range m.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// jsonResponse writes a JSON response.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// errorResponse writes the backend's error shape.
func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]any{"success": false, "message": message})
}

// harness runs the CLI against a mock backend with a private config file
// and session directory that persist across runs.
type harness struct {
	t      *testing.T
	server *mockServer
	dir    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := "api:\n  base_delay: 1ms\n  timeout: 2s\n"
	if err := os.WriteFile(filepath.Join(dir, "cli.yaml"), []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	return &harness{t: t, server: newMockServer(t), dir: dir}
}

func (h *harness) configPath() string {
	return filepath.Join(h.dir, "cli.yaml")
}

// run executes one CLI invocation and returns stdout, stderr and the error.
func (h *harness) run(stdin string, args ...string) (string, string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	app := NewApp(&out, &errOut, strings.NewReader(stdin))

	argv := []string{
		"salesdesk-cli",
		"--config", h.configPath(),
		"--api-url", h.server.URL,
		"--session-dir", filepath.Join(h.dir, "session"),
	}
	argv = append(argv, args...)
	err := app.Run(argv)
	return out.String(), errOut.String(), err
}

// login stores a session through the real login command.
func (h *harness) login() {
	h.t.Helper()
	h.server.reply("POST /auth/login", http.StatusOK, map[string]any{
		"success": true,
		"token":   "tok-abc",
		"user":    map[string]any{"id": "u-1", "email": "ana@shop.test", "name": "Ana", "role": "admin"},
	})
	if _, stderr, err := h.run("", "login", "-e", "ana@shop.test", "-p", "secret"); err != nil {
		h.t.Fatalf("login failed: %v (stderr %q)", err, stderr)
	}
}

// newFlagContext parses args against flags into a standalone context.
func newFlagContext(t *testing.T, flags []cli.Flag, args ...string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range flags {
		if err := f.Apply(set); err != nil {
			t.Fatal(err)
		}
	}
	if err := set.Parse(args); err != nil {
		t.Fatal(err)
	}
	app := NewApp(io.Discard, io.Discard, strings.NewReader(""))
	return cli.NewContext(app, set, nil)
}
