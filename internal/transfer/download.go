package transfer

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stlalpha/impulse-bbs/internal/file"
	"github.com/stlalpha/impulse-bbs/internal/user"
)

// DownloadPipeline decides whether a user may download a file and, if so,
// resolves the on-disk path the caller hands to a protocol engine.
type DownloadPipeline struct {
	Areas  AreaManager
	Config DownloadConfig
}

// Prepare runs the download pipeline's checks up to but not including the
// byte transfer itself: lookup, offline/access checks,
// ratio, and daily quota. On success it returns the file record and the
// absolute path the caller should stream to the chosen protocol engine;
// the caller is responsible for calling Complete once the transfer
// actually finishes (a cancelled or failed transfer must not call it).
func (p *DownloadPipeline) Prepare(fileID uuid.UUID, downloader *user.User, requiredAccessLevel int, now time.Time) (*file.FileRecord, string, error) {
	rec, ok := p.Areas.GetFileRecord(fileID)
	if !ok {
		return nil, "", policyError(FileNotFound, fileID.String())
	}
	if rec.Offline {
		return nil, "", policyError(FileOffline, rec.Filename)
	}
	if downloader.AccessLevel < requiredAccessLevel {
		return nil, "", policyError(InsufficientAccess, fmt.Sprintf("level %d required", requiredAccessLevel))
	}

	ResetDailyIfNeeded(downloader, now)

	if !CanDownload(downloader.DownloadedBytesTotal, downloader.UploadedBytesTotal, rec.Size, p.Config.MaxRatio) {
		return nil, "", policyError(RatioExceeded, fmt.Sprintf("ratio %.2f", Ratio(downloader.DownloadedBytesTotal, downloader.UploadedBytesTotal)))
	}
	if p.Config.MaxFilesPerDay > 0 && downloader.DownloadedFilesToday+1 > p.Config.MaxFilesPerDay {
		return nil, "", policyError(QuotaExceeded, "daily file limit")
	}
	if p.Config.MaxBytesPerDay > 0 && downloader.DownloadedBytesToday+uint64(rec.Size) > p.Config.MaxBytesPerDay {
		return nil, "", policyError(QuotaExceeded, "daily byte limit")
	}

	path, err := p.Areas.GetFilePath(fileID)
	if err != nil {
		return nil, "", &PolicyError{Kind: Io, Detail: "resolving file path", Err: err}
	}
	return rec, path, nil
}

// Complete records a successfully finished download: the file's
// download_count and the user's DownloadStats both advance. Callers must
// only invoke this after the protocol engine reports success.
func (p *DownloadPipeline) Complete(fileID uuid.UUID, rec *file.FileRecord, downloader *user.User, now time.Time) error {
	if err := p.Areas.IncrementDownloadCount(fileID); err != nil {
		return &PolicyError{Kind: Io, Detail: "updating download count", Err: err}
	}
	recordDownload(downloader, rec.Size, now)
	return nil
}
