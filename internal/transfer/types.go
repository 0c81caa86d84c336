// Package transfer coordinates file uploads and downloads: quota and
// ratio enforcement, deduplication, virus scanning, and the atomic
// store/register step that hands a finished upload off to a file area.
// It does not move bytes itself — that's internal/protocol's job — it
// decides whether a transfer is allowed and persists the result.
package transfer

import (
	"github.com/google/uuid"

	"github.com/stlalpha/impulse-bbs/internal/file"
)

// PendingUpload is a staging record for an in-progress upload: the temp
// file is exclusively owned by this upload until Execute either renames
// it into the target area (success) or the rollback manager removes it
// (failure). No third state is observable.
type PendingUpload struct {
	TempPath     string // path to the received file, owned exclusively by this upload
	AreaID       int
	UploaderID   int
	UploaderName string
	Filename     string // declared target filename, not necessarily TempPath's basename
	Description  string // caller-supplied and stored as is; no archive-embedded description is extracted
	Size         int64
}

// AreaManager is the capability set a transfer pipeline needs from a file
// area store: narrowed from file.FileManager's full method set so that
// transfer code can be tested against an in-memory fake without depending
// on the concrete persistent implementation.
type AreaManager interface {
	GetAreaByID(id int) (*file.FileArea, bool)
	GetFilesForArea(areaID int) []file.FileRecord
	GetFileRecord(fileID uuid.UUID) (*file.FileRecord, bool)
	AddFileRecord(record file.FileRecord) error
	IncrementDownloadCount(fileID uuid.UUID) error
	GetFilePath(fileID uuid.UUID) (string, error)
}

// ScanResult is the outcome of handing a staged file to a virus scanner.
type ScanResult struct {
	Clean bool
	Name  string // threat name, set only when Clean is false
}

// Scanner is the capability a virus-scan step needs. A no-op
// implementation that always returns Clean is appropriate when scanning
// is disabled in config.
type Scanner interface {
	Scan(path string) (ScanResult, error)
}

