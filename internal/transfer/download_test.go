package transfer

import (
	"errors"
	"testing"
	"time"

	"github.com/stlalpha/impulse-bbs/internal/file"
	"github.com/stlalpha/impulse-bbs/internal/user"
)

func TestDownloadSucceedsAndUpdatesStats(t *testing.T) {
	areas := newFakeAreaManager(&file.FileArea{ID: 1, Tag: "UTILS", ACSDownload: "s10"})
	fileID := newTestUUID()
	if err := areas.AddFileRecord(file.FileRecord{ID: fileID, AreaID: 1, Filename: "tool.zip", Size: 2048}); err != nil {
		t.Fatalf("seed AddFileRecord: %v", err)
	}

	pipe := &DownloadPipeline{Areas: areas, Config: DownloadConfig{MaxRatio: 2.0}}
	u := &user.User{AccessLevel: 10, UploadedBytesTotal: 10000}

	rec, path, err := pipe.Prepare(fileID, u, 10, time.Now())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if path == "" {
		t.Error("expected a non-empty path")
	}

	if err := pipe.Complete(fileID, rec, u, time.Now()); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if u.DownloadedBytesTotal != 2048 || u.DownloadedFilesTotal != 1 {
		t.Errorf("stats not updated: %+v", u)
	}

	updated, _ := areas.GetFileRecord(fileID)
	if updated.DownloadCount != 1 {
		t.Errorf("DownloadCount = %d, want 1", updated.DownloadCount)
	}
}

func TestDownloadFileNotFound(t *testing.T) {
	areas := newFakeAreaManager(&file.FileArea{ID: 1})
	pipe := &DownloadPipeline{Areas: areas, Config: DownloadConfig{MaxRatio: 2.0}}
	u := &user.User{AccessLevel: 10}

	_, _, err := pipe.Prepare(newTestUUID(), u, 0, time.Now())
	var pe *PolicyError
	if !errors.As(err, &pe) || pe.Kind != FileNotFound {
		t.Fatalf("expected FileNotFound, got %v", err)
	}
}

func TestDownloadOfflineFileRejected(t *testing.T) {
	areas := newFakeAreaManager(&file.FileArea{ID: 1})
	fileID := newTestUUID()
	if err := areas.AddFileRecord(file.FileRecord{ID: fileID, AreaID: 1, Filename: "gone.zip", Offline: true}); err != nil {
		t.Fatalf("seed AddFileRecord: %v", err)
	}

	pipe := &DownloadPipeline{Areas: areas, Config: DownloadConfig{MaxRatio: 2.0}}
	u := &user.User{AccessLevel: 10}

	_, _, err := pipe.Prepare(fileID, u, 0, time.Now())
	var pe *PolicyError
	if !errors.As(err, &pe) || pe.Kind != FileOffline {
		t.Fatalf("expected FileOffline, got %v", err)
	}
}

func TestDownloadRatioExceededRejected(t *testing.T) {
	areas := newFakeAreaManager(&file.FileArea{ID: 1})
	fileID := newTestUUID()
	if err := areas.AddFileRecord(file.FileRecord{ID: fileID, AreaID: 1, Filename: "big.zip", Size: int64(gracePeriodBytes) + 1000}); err != nil {
		t.Fatalf("seed AddFileRecord: %v", err)
	}

	pipe := &DownloadPipeline{Areas: areas, Config: DownloadConfig{MaxRatio: 1.0}}
	// Zero uploads and this download would exceed the grace allowance, so
	// ratio enforcement engages and the (infinite) ratio is denied.
	u := &user.User{AccessLevel: 10}

	_, _, err := pipe.Prepare(fileID, u, 0, time.Now())
	var pe *PolicyError
	if !errors.As(err, &pe) || pe.Kind != RatioExceeded {
		t.Fatalf("expected RatioExceeded, got %v", err)
	}
}

func TestDownloadDailyQuotaExceededRejected(t *testing.T) {
	areas := newFakeAreaManager(&file.FileArea{ID: 1})
	fileID := newTestUUID()
	if err := areas.AddFileRecord(file.FileRecord{ID: fileID, AreaID: 1, Filename: "small.zip", Size: 500}); err != nil {
		t.Fatalf("seed AddFileRecord: %v", err)
	}

	pipe := &DownloadPipeline{Areas: areas, Config: DownloadConfig{MaxRatio: 100.0, MaxFilesPerDay: 1}}
	u := &user.User{AccessLevel: 10, UploadedBytesTotal: 1_000_000, DownloadedFilesToday: 1, LastTransferDate: time.Now()}

	_, _, err := pipe.Prepare(fileID, u, 0, time.Now())
	var pe *PolicyError
	if !errors.As(err, &pe) || pe.Kind != QuotaExceeded {
		t.Fatalf("expected QuotaExceeded, got %v", err)
	}
}
