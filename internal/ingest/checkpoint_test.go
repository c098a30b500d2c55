package ingest

import (
	"path/filepath"
	"testing"
)

func TestCheckpointStore_LoadMissingFileReturnsEmpty(t *testing.T) {
	store := NewCheckpointStore(filepath.Join(t.TempDir(), "checkpoint.json"))

	cp, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cp.ProcessedHashes) != 0 || len(cp.FailedFiles) != 0 {
		t.Fatalf("expected empty checkpoint, got %+v", cp)
	}
}

func TestCheckpointStore_SaveThenLoadRoundTrips(t *testing.T) {
	store := NewCheckpointStore(filepath.Join(t.TempDir(), "checkpoint.json"))

	cp := NewCheckpoint()
	cp.MarkProcessed("/lib/a.pdf", "deadbeef")
	cp.MarkFailed("/lib/b.pdf")

	if err := store.Save(cp); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.ProcessedHashes["deadbeef"] {
		t.Fatalf("expected deadbeef to be marked processed")
	}
	if loaded.FailedFiles["/lib/b.pdf"] != 1 {
		t.Fatalf("expected b.pdf to have 1 failed attempt, got %d", loaded.FailedFiles["/lib/b.pdf"])
	}
	if loaded.LastFile != "/lib/a.pdf" {
		t.Fatalf("expected last file a.pdf, got %q", loaded.LastFile)
	}
}

func TestCheckpoint_PendingQuarantinesExhaustedRetries(t *testing.T) {
	cp := NewCheckpoint()
	cp.FailedFiles["/lib/bad.pdf"] = 1

	hashOf := func(path string) (string, error) { return path, nil }
	pending, quarantined := cp.Pending([]string{"/lib/bad.pdf", "/lib/good.pdf"}, hashOf, 1)

	if len(quarantined) != 1 || quarantined[0] != "/lib/bad.pdf" {
		t.Fatalf("expected bad.pdf quarantined, got %v", quarantined)
	}
	if len(pending) != 1 || pending[0] != "/lib/good.pdf" {
		t.Fatalf("expected good.pdf pending, got %v", pending)
	}
}

func TestCheckpoint_PendingSkipsProcessedHashes(t *testing.T) {
	cp := NewCheckpoint()
	cp.ProcessedHashes["hash-a"] = true

	hashOf := func(path string) (string, error) {
		if path == "/lib/a.pdf" {
			return "hash-a", nil
		}
		return "hash-b", nil
	}

	pending, quarantined := cp.Pending([]string{"/lib/a.pdf", "/lib/b.pdf"}, hashOf, 1)
	if len(quarantined) != 0 {
		t.Fatalf("expected no quarantined files, got %v", quarantined)
	}
	if len(pending) != 1 || pending[0] != "/lib/b.pdf" {
		t.Fatalf("expected only b.pdf pending, got %v", pending)
	}
}

func TestCheckpoint_MarkProcessedClearsFailedCount(t *testing.T) {
	cp := NewCheckpoint()
	cp.MarkFailed("/lib/a.pdf")
	cp.MarkProcessed("/lib/a.pdf", "hash-a")

	if _, ok := cp.FailedFiles["/lib/a.pdf"]; ok {
		t.Fatalf("expected failed count cleared after successful processing")
	}
}
