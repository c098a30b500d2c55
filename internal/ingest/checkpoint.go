package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"
)

// Stage names the ingestion stage a checkpoint was last written at, per
// spec.md section 4.3's "checkpoint file records {processedHashes, stage,
// lastFile, failedFiles}".
type Stage string

const (
	StageDiscover Stage = "discover"
	StageLoad     Stage = "load"
	StageChunk    Stage = "chunk"
	StageEmbed    Stage = "embed"
	StageConcepts Stage = "concepts"
	StageCommit   Stage = "commit"
	StageDone     Stage = "done"
)

// Checkpoint is the resumable ingestion state, persisted as JSON next to
// the store's data directory (spec.md section 6's "one checkpoint file for
// ingestion").
type Checkpoint struct {
	ProcessedHashes map[string]bool `json:"processed_hashes"`
	Stage           Stage           `json:"stage"`
	LastFile        string          `json:"last_file"`
	FailedFiles     map[string]int  `json:"failed_files"` // path -> failed attempts
}

// NewCheckpoint returns an empty checkpoint.
func NewCheckpoint() *Checkpoint {
	return &Checkpoint{
		ProcessedHashes: make(map[string]bool),
		FailedFiles:     make(map[string]int),
	}
}

// CheckpointStore loads and persists a Checkpoint at a fixed path, guarded
// by a cross-process file lock grounded on the teacher's embed.FileLock
// (gofrs/flock), since ingestion may be restarted while a prior run's
// process is still exiting.
type CheckpointStore struct {
	path string
	lock *flock.Flock
}

// NewCheckpointStore binds a CheckpointStore to path (spec.md section
// 6's checkpoint file; default location is the ingestion config's
// CheckpointPath).
func NewCheckpointStore(path string) *CheckpointStore {
	return &CheckpointStore{path: path, lock: flock.New(path + ".lock")}
}

// Load reads the checkpoint from disk, returning a fresh empty one if no
// file exists yet.
func (s *CheckpointStore) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return NewCheckpoint(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", s.path, err)
	}

	cp := NewCheckpoint()
	if err := json.Unmarshal(data, cp); err != nil {
		return nil, fmt.Errorf("parse checkpoint %s: %w", s.path, err)
	}
	if cp.ProcessedHashes == nil {
		cp.ProcessedHashes = make(map[string]bool)
	}
	if cp.FailedFiles == nil {
		cp.FailedFiles = make(map[string]int)
	}
	return cp, nil
}

// Save writes cp to disk atomically: write to a temp file in the same
// directory, then rename over the checkpoint path, so a crash mid-write
// never leaves a truncated checkpoint.
func (s *CheckpointStore) Save(cp *Checkpoint) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock checkpoint %s: %w", s.path, err)
	}
	defer func() { _ = s.lock.Unlock() }()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename checkpoint into place: %w", err)
	}
	return nil
}

// Pending filters discovered files down to those not yet processed and not
// quarantined, per spec.md section 4.3's resume rule: "processed hashes are
// skipped; failed files are retried once then quarantined." A file is
// quarantined once its recorded failure count reaches maxFailures. hashOf
// maps a path to the key MarkProcessed recorded it under (computed lazily
// by the caller, since a failed/quarantined path may not even be
// readable).
func (cp *Checkpoint) Pending(files []string, hashOf func(path string) (string, error), maxFailures int) (pending []string, quarantined []string) {
	for _, f := range files {
		if cp.FailedFiles[f] >= maxFailures {
			quarantined = append(quarantined, f)
			continue
		}

		hash, err := hashOf(f)
		if err == nil && cp.ProcessedHashes[hash] {
			continue
		}

		pending = append(pending, f)
	}

	sort.Strings(pending)
	sort.Strings(quarantined)
	return pending, quarantined
}

// MarkProcessed records hash as committed and advances Stage/LastFile.
func (cp *Checkpoint) MarkProcessed(path, hash string) {
	cp.ProcessedHashes[hash] = true
	cp.LastFile = path
	cp.Stage = StageCommit
	delete(cp.FailedFiles, path)
}

// MarkFailed increments path's failure count, per the "retried once then
// quarantined" resume rule.
func (cp *Checkpoint) MarkFailed(path string) {
	cp.FailedFiles[path]++
}
