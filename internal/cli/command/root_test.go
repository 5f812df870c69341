package command

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/salesdesk-go/internal/core/domain"
	"github.com/yndnr/salesdesk-go/internal/core/service"
)

func TestApp(t *testing.T) {
	app := NewApp(io.Discard, io.Discard, strings.NewReader(""))

	if app.Name != "salesdesk-cli" {
		t.Errorf("Name = %q", app.Name)
	}

	names := map[string]bool{}
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, want := range []string{
		"login", "logout", "whoami", "health", "resources",
		"list", "get", "create", "update", "delete",
		"config", "shell", "version",
	} {
		if !names[want] {
			t.Errorf("missing command %q", want)
		}
	}
}

func TestApp_GlobalFlags(t *testing.T) {
	app := NewApp(io.Discard, io.Discard, strings.NewReader(""))

	flags := map[string]bool{}
	for _, f := range app.Flags {
		for _, n := range f.Names() {
			flags[n] = true
		}
	}
	for _, want := range []string{"config", "api-url", "output", "o", "wide", "verbose", "timeout", "max-attempts", "session-dir", "ephemeral"} {
		if !flags[want] {
			t.Errorf("missing global flag %q", want)
		}
	}
}

func TestGetRuntime_WithoutBefore(t *testing.T) {
	app := NewApp(io.Discard, io.Discard, strings.NewReader(""))
	c := cli.NewContext(app, nil, nil)
	if _, err := GetRuntime(c); !errors.Is(err, errRuntimeMissing) {
		t.Errorf("GetRuntime() error = %v, want errRuntimeMissing", err)
	}
}

func TestVersion_NoSessionStore(t *testing.T) {
	h := newHarness(t)

	out, _, err := h.run("", "-o", "json", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if info["version"] == "" || info["go_version"] == "" {
		t.Errorf("info = %v", info)
	}
}

func TestLoginWhoamiLogout(t *testing.T) {
	h := newHarness(t)
	h.login()

	reqs := h.server.Requests()
	if len(reqs) != 1 || reqs[0].Auth != "" {
		t.Fatalf("login requests = %+v, want one without Authorization", reqs)
	}
	var sent map[string]string
	json.Unmarshal(reqs[0].Body, &sent)
	if sent["email"] != "ana@shop.test" || sent["password"] != "secret" {
		t.Errorf("login body = %v", sent)
	}

	out, _, err := h.run("", "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if !strings.Contains(out, "ana@shop.test") {
		t.Errorf("whoami output = %q", out)
	}
	if strings.Contains(out, "tok-abc") {
		t.Errorf("whoami printed the raw token: %q", out)
	}

	if _, _, err := h.run("", "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, _, err := h.run("", "whoami"); !errors.Is(err, domain.ErrNotLoggedIn) {
		t.Errorf("whoami after logout error = %v, want ErrNotLoggedIn", err)
	}
}

func TestLogin_PasswordFromStdin(t *testing.T) {
	h := newHarness(t)
	h.server.reply("POST /auth/login", http.StatusOK, map[string]any{
		"success": true, "token": "t", "user": map[string]any{"email": "a@b.test"},
	})

	out, stderr, err := h.run("typed-secret\n", "login", "-e", "a@b.test")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(stderr, "Password:") {
		t.Errorf("stderr = %q, want prompt", stderr)
	}
	if !strings.Contains(out, "Logged in as a@b.test") {
		t.Errorf("stdout = %q", out)
	}
	var sent map[string]string
	json.Unmarshal(h.server.Requests()[0].Body, &sent)
	if sent["password"] != "typed-secret" {
		t.Errorf("password = %q", sent["password"])
	}
}

func TestLogin_Rejected(t *testing.T) {
	h := newHarness(t)
	h.server.reply("POST /auth/login", http.StatusOK, map[string]any{
		"success": false, "message": "Invalid credentials",
	})

	_, _, err := h.run("", "login", "-e", "a@b.test", "-p", "wrong")
	if !errors.Is(err, domain.ErrLoginRejected) {
		t.Fatalf("error = %v, want ErrLoginRejected", err)
	}
	if !strings.Contains(FormatError(err), "Invalid credentials") {
		t.Errorf("FormatError = %q", FormatError(err))
	}
	if _, _, err := h.run("", "whoami"); !errors.Is(err, domain.ErrNotLoggedIn) {
		t.Errorf("session stored after rejected login")
	}
}

func TestSessionExpired(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.server.reply("GET /orders/", http.StatusUnauthorized, map[string]any{"message": "jwt expired"})

	_, stderr, err := h.run("", "get", "orders", "o-1")
	if !domain.IsKind(err, domain.KindAuthExpired) {
		t.Fatalf("error = %v, want AuthExpired", err)
	}
	if got := strings.Count(stderr, "Session expired"); got != 1 {
		t.Errorf("redirect notices = %d, want 1 (stderr %q)", got, stderr)
	}
	if got := h.server.count(http.MethodGet, "/orders/o-1"); got != 1 {
		t.Errorf("401 attempts = %d, want 1", got)
	}
	if _, _, err := h.run("", "whoami"); !errors.Is(err, domain.ErrNotLoggedIn) {
		t.Errorf("whoami after 401 error = %v, want ErrNotLoggedIn", err)
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	h.server.reply("GET /health", http.StatusOK, map[string]any{"status": "ok", "db": "up"})

	out, _, err := h.run("", "health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !strings.Contains(out, "db") || !strings.Contains(out, "up") {
		t.Errorf("output = %q", out)
	}
}

func TestHealth_Unreachable(t *testing.T) {
	h := newHarness(t)
	h.server.Close()

	_, _, err := h.run("", "--max-attempts", "2", "health")
	if !domain.IsKind(err, domain.KindNetwork) {
		t.Fatalf("error = %v, want Network", err)
	}
	if !strings.HasPrefix(FormatError(err), "cannot reach API") {
		t.Errorf("FormatError = %q", FormatError(err))
	}
}

func TestFormatError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"plain", errors.New("boom"), "boom"},
		{"auth expired", domain.NewAuthExpiredError("x", nil), "session expired: run 'salesdesk-cli login'"},
		{"http", domain.NewHTTPStatusError(500, "db down", nil), "API error (500): db down"},
		{"timeout", domain.NewTimeoutError(nil), "request timed out"},
		{"domain", domain.ErrNotLoggedIn, domain.ErrNotLoggedIn.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatError(tt.err); got != tt.want {
				t.Errorf("FormatError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintError(t *testing.T) {
	var sb strings.Builder
	PrintError(&sb, nil)
	if sb.Len() != 0 {
		t.Errorf("PrintError(nil) wrote %q", sb.String())
	}
	PrintError(&sb, errors.New("boom"))
	if sb.String() != "error: boom\n" {
		t.Errorf("PrintError() = %q", sb.String())
	}
}

func TestShell(t *testing.T) {
	h := newHarness(t)
	h.server.reply("POST /auth/login", http.StatusOK, map[string]any{
		"success": true, "token": "tok-sh", "user": map[string]any{"email": "sh@shop.test"},
	})
	h.server.reply("DELETE /products/", http.StatusOK, map[string]any{"success": true})

	script := strings.Join([]string{
		"login -e sh@shop.test -p secret",
		"whoami",
		"delete products p-9",
		"y",
		"bogus",
		"exit",
	}, "\n") + "\n"

	out, stderr, err := h.run(script, "shell", "--history-file", h.dir+"/history")
	if err != nil {
		t.Fatalf("shell: %v (stderr %q)", err, stderr)
	}
	for _, want := range []string{"Logged in as sh@shop.test", "sh@shop.test", "Deleted products p-9", `unknown command "bogus"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if got := h.server.count(http.MethodDelete, "/products/p-9"); got != 1 {
		t.Errorf("DELETE requests = %d, want 1", got)
	}
}

func TestCompletionWords(t *testing.T) {
	app := NewApp(io.Discard, io.Discard, strings.NewReader(""))
	words := map[string]bool{}
	for _, w := range CompletionWords(app) {
		words[w] = true
	}

	for _, want := range []string{"list", "ls", "list products", "get commissions", "config show", "whoami"} {
		if !words[want] {
			t.Errorf("missing %q", want)
		}
	}
	if words["shell"] {
		t.Error("shell should not complete inside the shell")
	}
	if words["whoami products"] {
		t.Error("resource names only follow resource commands")
	}
}

func TestParsePayload(t *testing.T) {
	set := newFlagContext(t, payloadFlags(),
		"--json", `{"name":"Shoe","tags":["a"]}`,
		"--data", "price=9.5",
		"--data", "active=true",
		"--data", "zip=007",
		"--data", "name=Red Shoe",
		"--data", "note=",
	)

	got, err := parsePayload(set)
	if err != nil {
		t.Fatalf("parsePayload() error = %v", err)
	}
	want := service.Record{
		"name":   "Red Shoe",
		"tags":   []any{"a"},
		"price":  9.5,
		"active": true,
		"zip":    "007",
		"note":   "",
	}
	for k, v := range want {
		gj, _ := json.Marshal(got[k])
		wj, _ := json.Marshal(v)
		if string(gj) != string(wj) {
			t.Errorf("%s = %s, want %s", k, gj, wj)
		}
	}
}

func TestParsePayload_Invalid(t *testing.T) {
	tests := [][]string{
		{"--data", "novalue"},
		{"--data", "=x"},
		{"--json", "{broken"},
	}
	for _, args := range tests {
		c := newFlagContext(t, payloadFlags(), args...)
		if _, err := parsePayload(c); !IsUsageError(err) {
			t.Errorf("parsePayload(%v) error = %v, want usage error", args, err)
		}
	}
}
