package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSnapshotMissingFileReadsEmpty(t *testing.T) {
	snap, err := NewSnapshot(filepath.Join(t.TempDir(), "users.json"))
	if err != nil {
		t.Fatalf("new snapshot: %v", err)
	}

	out := map[string]int{}
	found, err := snap.Load(&out)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if found {
		t.Fatal("expected missing file to report found=false")
	}
	if len(out) != 0 {
		t.Fatalf("expected untouched target, got %v", out)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	snap, err := NewSnapshot(filepath.Join(t.TempDir(), "sessions.json"))
	if err != nil {
		t.Fatalf("new snapshot: %v", err)
	}

	in := map[string]bool{"22995901234": true, "33612345678": false}
	if err := snap.Save(in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out := map[string]bool{}
	found, err := snap.Load(&out)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !found {
		t.Fatal("expected saved snapshot to be found")
	}
	if len(out) != 2 || !out["22995901234"] || out["33612345678"] {
		t.Fatalf("unexpected round trip result: %v", out)
	}
}

func TestSnapshotSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	snap, err := NewSnapshot(filepath.Join(dir, "users.json"))
	if err != nil {
		t.Fatalf("new snapshot: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := snap.Save(map[string]int{"a": i}); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "users.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected only users.json, got %v", names)
	}
}

func TestSnapshotCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "users.json")
	snap, err := NewSnapshot(path)
	if err != nil {
		t.Fatalf("new snapshot: %v", err)
	}
	if err := snap.Save(map[string]string{"k": "v"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !snap.Exists() {
		t.Fatal("expected file to exist after save")
	}
}
