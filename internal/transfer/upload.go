package transfer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stlalpha/impulse-bbs/internal/file"
	"github.com/stlalpha/impulse-bbs/internal/user"
)

// UploadPipeline validates, deduplicates, scans, stores, and registers a
// PendingUpload against one file area. It does not receive bytes itself;
// by the time Execute is called the temp file already holds the
// complete, verified payload (internal/protocol's job).
type UploadPipeline struct {
	Areas   AreaManager
	Scanner Scanner
	Config  UploadConfig
}

// Execute runs the full upload pipeline for one pending upload on behalf
// of uploader. On any failure it rolls back everything
// it staged (temp file, stored file) and returns a *PolicyError. On
// success it returns the newly registered file.FileRecord and updates
// uploader's transfer counters in place; the caller is responsible for
// persisting the user record.
func (p *UploadPipeline) Execute(pu PendingUpload, uploader *user.User, now time.Time) (*file.FileRecord, error) {
	rb := NewRollbackManager()
	rb.Add(func() { _ = os.Remove(pu.TempPath) })
	defer rb.Run()

	area, ok := p.Areas.GetAreaByID(pu.AreaID)
	if !ok {
		return nil, policyError(AreaNotFound, fmt.Sprintf("area %d", pu.AreaID))
	}
	if area.ACSUpload == "" {
		return nil, policyError(UploadsDisabled, area.Tag)
	}
	if uploader.AccessLevel < p.Config.RequiredAccessLevel {
		return nil, policyError(InsufficientAccess, fmt.Sprintf("level %d required", p.Config.RequiredAccessLevel))
	}

	if err := p.validateSizeAndExtension(pu); err != nil {
		return nil, err
	}

	ResetDailyIfNeeded(uploader, now)
	if err := p.checkQuota(uploader, pu.Size); err != nil {
		return nil, err
	}

	existing := p.Areas.GetFilesForArea(pu.AreaID)
	for _, rec := range existing {
		if strings.EqualFold(rec.Filename, pu.Filename) {
			return nil, policyError(DuplicateFilename, pu.Filename)
		}
	}

	var digest string
	if p.Config.EnableDuplicateCheck {
		sum, err := hashFile(pu.TempPath)
		if err != nil {
			return nil, &PolicyError{Kind: Io, Detail: "hashing temp file", Err: err}
		}
		digest = sum
		for _, rec := range existing {
			if rec.SHA256 != "" && rec.SHA256 == digest {
				return nil, policyError(DuplicateHash, rec.Filename)
			}
		}
	}

	if p.Config.EnableVirusScan && p.Scanner != nil {
		result, err := p.Scanner.Scan(pu.TempPath)
		if err != nil {
			return nil, &PolicyError{Kind: Io, Detail: "scanning upload", Err: err}
		}
		if !result.Clean {
			return nil, policyError(VirusDetected, result.Name)
		}
	}

	targetDir := filepath.Join(area.Path)
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return nil, &PolicyError{Kind: Io, Detail: "creating area directory", Err: err}
	}
	targetPath := filepath.Join(targetDir, filepath.Base(pu.Filename))
	if _, err := os.Stat(targetPath); err == nil {
		return nil, policyError(InvalidPath, "duplicate name")
	}
	if err := os.Rename(pu.TempPath, targetPath); err != nil {
		return nil, &PolicyError{Kind: Io, Detail: "storing upload", Err: err}
	}
	rb.Add(func() { _ = os.Remove(targetPath) })

	record := file.FileRecord{
		ID:           uuid.New(),
		AreaID:       pu.AreaID,
		Filename:     filepath.Base(pu.Filename),
		Description:  pu.Description,
		Size:         pu.Size,
		UploadedAt:   now,
		UploadedBy:   pu.UploaderName,
		UploadedByID: pu.UploaderID,
		SHA256:       digest,
	}
	if err := p.Areas.AddFileRecord(record); err != nil {
		return nil, &PolicyError{Kind: Io, Detail: "registering file record", Err: err}
	}

	recordUpload(uploader, pu.Size, now)
	rb.Success()
	return &record, nil
}

func (p *UploadPipeline) validateSizeAndExtension(pu PendingUpload) error {
	if p.Config.MaxFileSize > 0 && pu.Size > p.Config.MaxFileSize {
		return policyError(TooLarge, fmt.Sprintf("%d > %d", pu.Size, p.Config.MaxFileSize))
	}
	ext := strings.ToLower(filepath.Ext(pu.Filename))
	for _, blocked := range p.Config.BlockedExtensions {
		if ext == strings.ToLower(blocked) {
			return policyError(DisallowedExtension, ext)
		}
	}
	if len(p.Config.AllowedExtensions) > 0 {
		allowed := false
		for _, a := range p.Config.AllowedExtensions {
			if ext == strings.ToLower(a) {
				allowed = true
				break
			}
		}
		if !allowed {
			return policyError(DisallowedExtension, ext)
		}
	}
	return nil
}

func (p *UploadPipeline) checkQuota(u *user.User, size int64) error {
	if p.Config.MaxFilesPerDay > 0 && u.UploadedFilesToday+1 > p.Config.MaxFilesPerDay {
		return policyError(QuotaExceeded, "daily file limit")
	}
	if p.Config.MaxBytesPerDay > 0 && u.UploadedBytesToday+uint64(size) > p.Config.MaxBytesPerDay {
		return policyError(QuotaExceeded, "daily byte limit")
	}
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
