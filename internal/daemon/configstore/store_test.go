package configstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "daemon.toml"))

	regs, err := s.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(regs) != 0 {
		t.Fatalf("expected empty list, got %v", regs)
	}
	if s.Exists() {
		t.Error("expected Exists to be false for a missing file")
	}
}

func TestAppendThenLoadObservesRegistration(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "daemon.toml"))

	reg := Registration{APIHost: "https://planner.example.com", APIToken: "tok-1", Interface: "wg0"}
	if err := s.Append(reg); err != nil {
		t.Fatalf("append: %v", err)
	}

	regs, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(regs) != 1 || regs[0] != reg {
		t.Fatalf("expected %+v, got %+v", reg, regs)
	}
	if !s.Exists() {
		t.Error("expected Exists to be true after Append")
	}
}

func TestAppendDuplicateInterfaceRejected(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "daemon.toml"))

	first := Registration{APIHost: "https://a.example.com", APIToken: "tok-a", Interface: "wg0"}
	if err := s.Append(first); err != nil {
		t.Fatalf("append: %v", err)
	}

	before, err := os.ReadFile(s.Path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	dup := Registration{APIHost: "https://b.example.com", APIToken: "tok-b", Interface: "wg0"}
	if err := s.Append(dup); err == nil {
		t.Fatal("expected duplicate interface to be rejected")
	}

	after, err := os.ReadFile(s.Path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(before) != string(after) {
		t.Error("expected file to be byte-unchanged after a rejected append")
	}
}

func TestAppendDuplicateHostAndTokenRejected(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "daemon.toml"))

	reg := Registration{APIHost: "https://a.example.com", APIToken: "tok-a", Interface: "wg0"}
	if err := s.Append(reg); err != nil {
		t.Fatalf("append: %v", err)
	}

	dup := Registration{APIHost: "https://a.example.com", APIToken: "tok-a", Interface: "wg1"}
	if err := s.Append(dup); err == nil {
		t.Fatal("expected duplicate (api_host, api_token) to be rejected")
	}
}

func TestRemoveByTokenIsIdempotent(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "daemon.toml"))

	if err := s.Append(Registration{APIHost: "https://a.example.com", APIToken: "tok-a", Interface: "wg0"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := s.RemoveByToken("tok-a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.RemoveByToken("tok-a"); err != nil {
		t.Fatalf("second remove should be a no-op, got: %v", err)
	}

	regs, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(regs) != 0 {
		t.Fatalf("expected empty list after removal, got %v", regs)
	}
}

func TestUnknownTopLevelKeysSurviveRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.toml")
	if err := os.WriteFile(path, []byte("log_level = \"debug\"\n\n[[servers]]\napi_host = \"https://a.example.com\"\napi_token = \"tok-a\"\ninterface = \"wg0\"\n"), 0o600); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	s := New(path)
	if err := s.Append(Registration{APIHost: "https://b.example.com", APIToken: "tok-b", Interface: "wg1"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !contains(string(data), "log_level") {
		t.Error("expected unrelated top-level key to survive a rewrite")
	}
}

func TestAutoAssignInterfacePicksLowestUnused(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "daemon.toml"))

	if err := s.Append(Registration{APIHost: "https://a.example.com", APIToken: "tok-a", Interface: "wg0"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(Registration{APIHost: "https://b.example.com", APIToken: "tok-b", Interface: "wg2"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	name, err := s.AutoAssignInterface()
	if err != nil {
		t.Fatalf("auto assign: %v", err)
	}
	if name != "wg1" {
		t.Fatalf("expected wg1, got %s", name)
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
