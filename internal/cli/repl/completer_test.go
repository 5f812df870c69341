package repl

import (
	"reflect"
	"testing"
)

func testCompleter() *Completer {
	return NewCompleter([]string{
		"list", "list products", "list orders",
		"get", "login", "logout",
		"config", "config show", "config set",
	})
}

func TestCompleter_Complete(t *testing.T) {
	c := testCompleter()

	tests := []struct {
		prefix string
		want   []string
	}{
		{"list ", []string{"list orders", "list products"}},
		{"list p", []string{"list products"}},
		{"config s", []string{"config set", "config show"}},
		{"log", []string{"login", "logout"}},
		{"ex", []string{"exit"}},
		{"zzz", nil},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			if got := c.Complete(tt.prefix); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Complete(%q) = %v, want %v", tt.prefix, got, tt.want)
			}
		})
	}
}

func TestCompleter_IsCommand(t *testing.T) {
	c := testCompleter()

	for _, w := range []string{"list", "config", "exit", "history"} {
		if !c.IsCommand(w) {
			t.Errorf("IsCommand(%q) = false", w)
		}
	}
	for _, w := range []string{"products", "show", "lis", ""} {
		if c.IsCommand(w) {
			t.Errorf("IsCommand(%q) = true", w)
		}
	}
}

func TestCompleter_Suggest(t *testing.T) {
	c := testCompleter()

	if got := c.Suggest("lsit"); len(got) != 0 {
		t.Errorf("Suggest(lsit) = %v, want none", got)
	}
	if got, want := c.Suggest("lo"), []string{"login", "logout"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Suggest(lo) = %v, want %v", got, want)
	}
	if got := c.Suggest(""); got != nil {
		t.Errorf("Suggest(\"\") = %v, want nil", got)
	}
}
