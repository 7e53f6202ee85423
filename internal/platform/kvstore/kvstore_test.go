package kvstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMemory_GetSetRemove(t *testing.T) {
	m := NewMemory()
	if _, ok := m.Get("auth_token"); ok {
		t.Fatal("expected empty store")
	}
	if err := m.Set("auth_token", "abc"); err != nil {
		t.Fatal(err)
	}
	if v, ok := m.Get("auth_token"); !ok || v != "abc" {
		t.Errorf("Get: got %q ok=%v", v, ok)
	}
	if err := m.Remove("auth_token"); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Get("auth_token"); ok {
		t.Error("expected key removed")
	}
	if err := m.Remove("missing"); err != nil {
		t.Errorf("Remove missing: %v", err)
	}
}

func TestFile_persists_across_open(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")

	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile (missing): %v", err)
	}
	if err := f.Set("auth_token", "tok-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := f.Set("theme", "dark"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "auth_token: tok-1") {
		t.Errorf("unexpected file content: %s", data)
	}

	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, ok := reopened.Get("theme"); !ok || v != "dark" {
		t.Errorf("reopened Get: got %q ok=%v", v, ok)
	}

	if err := reopened.Remove("auth_token"); err != nil {
		t.Fatal(err)
	}
	again, _ := OpenFile(path)
	if _, ok := again.Get("auth_token"); ok {
		t.Error("removed key should not survive reopen")
	}
}

func TestOpenFile_rejects_garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("- a\n- b\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFile(path); err == nil {
		t.Error("expected parse error for a YAML list")
	}
}
