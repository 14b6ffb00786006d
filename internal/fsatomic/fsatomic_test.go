package fsatomic

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")

	in := map[string]any{"steps": []string{"a", "b"}}
	if err := SaveJSON(path, in, 0); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}

	var out map[string]any
	exists, err := LoadJSON(path, &out)
	if err != nil || !exists {
		t.Fatalf("LoadJSON: exists=%v err=%v", exists, err)
	}
	if len(out["steps"].([]any)) != 2 {
		t.Errorf("round trip lost data: %v", out)
	}
}

func TestLoadMissing(t *testing.T) {
	var v any
	exists, err := LoadJSON(filepath.Join(t.TempDir(), "nope.json"), &v)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if exists {
		t.Error("missing file reported as existing")
	}
}

func TestStaleTempRemoved(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	if err := os.WriteFile(path+".tmp", []byte("junk"), 0o600); err != nil {
		t.Fatal(err)
	}
	var v any
	if _, err := LoadJSON(path, &v); err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("stale temp file not removed")
	}
}
