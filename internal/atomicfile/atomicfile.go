// Package atomicfile implements a two-phase atomic multi-file writer:
// stage every payload to a sibling temp file with fsync, then commit by
// renaming each temp to its target, rolling back already-renamed pairs if
// any rename in the batch fails. In this module only jam's Pack uses it
// (through CommitRenames). jam.Base.WriteMessage appends to the base files
// in place and the upload store step does its own rename; neither goes
// through this package, so neither gets its staging or rollback.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// StorageError is the atomic-write member of the StorageError taxonomy:
// FileNotFound, PermissionDenied, Io, AtomicFailed, DuplicateFilename all
// surface through this type's Kind field.
type StorageError struct {
	Kind string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("atomicfile: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("atomicfile: %s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func atomicFailed(path string, err error) error {
	return &StorageError{Kind: "AtomicFailed", Path: path, Err: err}
}

// pendingWrite is one (target, bytes) entry queued for a multi-file commit.
type pendingWrite struct {
	target string
	data   []byte
	temp   string
}

// MultiWriter stages a batch of file writes and commits them as a unit.
// Given N target paths, it cannot rename N files atomically as a single
// filesystem operation, but pre-staging every payload during Stage reduces
// the window of partial failure to the rename loop in Commit, and any
// rename failure there is rolled back by reversing the renames already
// performed. Readers observing mid-commit state see either the old or new
// content of any single file, never a partially written one.
type MultiWriter struct {
	writes []pendingWrite
}

// NewMultiWriter creates an empty batch.
func NewMultiWriter() *MultiWriter {
	return &MultiWriter{}
}

// Add queues bytes to be written to target once Commit is called.
func (w *MultiWriter) Add(target string, data []byte) {
	w.writes = append(w.writes, pendingWrite{target: target, data: data})
}

// Commit stages every queued write to a sibling temp file (with fsync),
// then renames each temp to its target. If any rename fails, already-
// renamed targets are reversed (renamed back to their temp names) and all
// temp files are removed before the original error is returned.
func (w *MultiWriter) Commit() (err error) {
	staged := make([]pendingWrite, 0, len(w.writes))
	defer func() {
		// Clean up any temp files left over on the stage-phase failure path.
		if err != nil {
			for _, p := range staged {
				_ = os.Remove(p.temp)
			}
		}
	}()

	for _, pw := range w.writes {
		dir := filepath.Dir(pw.target)
		base := filepath.Base(pw.target)
		temp := filepath.Join(dir, fmt.Sprintf(".tmp_%d_%s", os.Getpid(), base))

		f, ferr := os.OpenFile(temp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if ferr != nil {
			return atomicFailed(temp, ferr)
		}
		if _, werr := f.Write(pw.data); werr != nil {
			_ = f.Close()
			return atomicFailed(temp, werr)
		}
		if serr := f.Sync(); serr != nil {
			_ = f.Close()
			return atomicFailed(temp, serr)
		}
		if cerr := f.Close(); cerr != nil {
			return atomicFailed(temp, cerr)
		}

		pw.temp = temp
		staged = append(staged, pw)
	}

	renamed := make([]pendingWrite, 0, len(staged))
	for _, pw := range staged {
		if rerr := os.Rename(pw.temp, pw.target); rerr != nil {
			// Reverse every rename already committed in this batch.
			for _, done := range renamed {
				_ = os.Rename(done.target, done.temp)
			}
			for _, p := range staged {
				_ = os.Remove(p.temp)
			}
			return atomicFailed(pw.target, rerr)
		}
		renamed = append(renamed, pw)
	}

	return nil
}

// CommitRenames performs just the commit phase of the atomic multi-file
// contract for callers that already staged their own temp files (e.g. a
// pack/rewrite operation that streamed large content directly to disk
// rather than building in-memory buffers). Each pair is (tempPath,
// targetPath). On any rename failure, every already-renamed pair in this
// call is reversed (target back to temp) before the temps are removed and
// the error is returned; callers are responsible for removing temps that
// were never reached because they appear after the failing pair.
func CommitRenames(pairs [][2]string) error {
	renamed := make([][2]string, 0, len(pairs))
	for _, pair := range pairs {
		temp, target := pair[0], pair[1]
		if err := os.Rename(temp, target); err != nil {
			for _, done := range renamed {
				_ = os.Rename(done[1], done[0])
			}
			for _, p := range pairs {
				_ = os.Remove(p[0])
			}
			return atomicFailed(target, err)
		}
		renamed = append(renamed, pair)
	}
	return nil
}

// WriteSingle performs a one-file atomic write: stage to a temp sibling,
// fsync, then rename, for a caller where only one file changes.
func WriteSingle(target string, data []byte) error {
	w := NewMultiWriter()
	w.Add(target, data)
	return w.Commit()
}
