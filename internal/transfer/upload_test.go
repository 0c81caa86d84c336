package transfer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stlalpha/impulse-bbs/internal/file"
	"github.com/stlalpha/impulse-bbs/internal/user"
)

func writeTempUpload(t *testing.T, dir string, name string, contents []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, contents, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestUploadSucceeds(t *testing.T) {
	areaDir := t.TempDir()
	stagingDir := t.TempDir()
	areas := newFakeAreaManager(&file.FileArea{ID: 1, Tag: "UTILS", ACSUpload: "s10", Path: areaDir})

	pipe := &UploadPipeline{
		Areas:   areas,
		Scanner: alwaysCleanScanner{},
		Config:  UploadConfig{MaxFileSize: 1024, EnableDuplicateCheck: true, EnableVirusScan: true},
	}

	temp := writeTempUpload(t, stagingDir, "incoming", []byte("hello world"))
	pu := PendingUpload{TempPath: temp, AreaID: 1, UploaderID: 7, UploaderName: "alice", Filename: "hello.txt", Size: 11}
	u := &user.User{ID: 7, Username: "alice", AccessLevel: 10}

	rec, err := pipe.Execute(pu, u, time.Now())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if rec.Filename != "hello.txt" {
		t.Errorf("Filename = %q, want hello.txt", rec.Filename)
	}
	if _, err := os.Stat(temp); !os.IsNotExist(err) {
		t.Error("expected temp file to be gone after successful store")
	}
	if _, err := os.Stat(filepath.Join(areaDir, "hello.txt")); err != nil {
		t.Errorf("expected stored file to exist: %v", err)
	}
	if u.UploadedFilesTotal != 1 || u.UploadedBytesTotal != 11 {
		t.Errorf("stats not updated: %+v", u)
	}
}

// TestUploadDuplicateFilenameRollsBackTempFile covers spec scenario: upload
// of a filename that already exists in the target area fails with
// DuplicateFilename and the temp file is removed.
func TestUploadDuplicateFilenameRollsBackTempFile(t *testing.T) {
	areaDir := t.TempDir()
	stagingDir := t.TempDir()
	areas := newFakeAreaManager(&file.FileArea{ID: 1, Tag: "UTILS", ACSUpload: "s10", Path: areaDir})
	if err := areas.AddFileRecord(file.FileRecord{ID: newTestUUID(), AreaID: 1, Filename: "hello.txt"}); err != nil {
		t.Fatalf("seed AddFileRecord: %v", err)
	}

	pipe := &UploadPipeline{Areas: areas, Config: UploadConfig{MaxFileSize: 1024}}
	temp := writeTempUpload(t, stagingDir, "incoming", []byte("hi"))
	pu := PendingUpload{TempPath: temp, AreaID: 1, Filename: "hello.txt", Size: 2}
	u := &user.User{AccessLevel: 10}

	_, err := pipe.Execute(pu, u, time.Now())
	var pe *PolicyError
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.As(err, &pe) || pe.Kind != DuplicateFilename {
		t.Fatalf("expected DuplicateFilename, got %v", err)
	}
	if _, statErr := os.Stat(temp); !os.IsNotExist(statErr) {
		t.Error("expected temp file to be removed on rollback")
	}
}

// TestUploadRejectedByQuota covers spec scenario 3: a user at
// max_bytes_per_day - 500 fails a 1000-byte upload with QuotaExceeded, no
// record is added, and the temp file is removed.
func TestUploadRejectedByQuota(t *testing.T) {
	areaDir := t.TempDir()
	stagingDir := t.TempDir()
	areas := newFakeAreaManager(&file.FileArea{ID: 1, Tag: "UTILS", ACSUpload: "s10", Path: areaDir})

	pipe := &UploadPipeline{Areas: areas, Config: UploadConfig{MaxFileSize: 10000, MaxBytesPerDay: 1000}}
	temp := writeTempUpload(t, stagingDir, "incoming", make([]byte, 1000))
	pu := PendingUpload{TempPath: temp, AreaID: 1, Filename: "big.bin", Size: 1000}
	u := &user.User{AccessLevel: 10, UploadedBytesToday: 500, LastTransferDate: time.Now()}

	_, err := pipe.Execute(pu, u, time.Now())
	var pe *PolicyError
	if !errors.As(err, &pe) || pe.Kind != QuotaExceeded {
		t.Fatalf("expected QuotaExceeded, got %v", err)
	}
	if len(areas.GetFilesForArea(1)) != 0 {
		t.Error("expected no file record to be added")
	}
	if _, statErr := os.Stat(temp); !os.IsNotExist(statErr) {
		t.Error("expected temp file to be removed")
	}
}

func TestUploadDisallowedExtension(t *testing.T) {
	areaDir := t.TempDir()
	stagingDir := t.TempDir()
	areas := newFakeAreaManager(&file.FileArea{ID: 1, Tag: "UTILS", ACSUpload: "s10", Path: areaDir})

	pipe := &UploadPipeline{Areas: areas, Config: UploadConfig{MaxFileSize: 10000, BlockedExtensions: []string{".exe"}}}
	temp := writeTempUpload(t, stagingDir, "incoming", []byte("MZ"))
	pu := PendingUpload{TempPath: temp, AreaID: 1, Filename: "virus.exe", Size: 2}
	u := &user.User{AccessLevel: 10}

	_, err := pipe.Execute(pu, u, time.Now())
	var pe *PolicyError
	if !errors.As(err, &pe) || pe.Kind != DisallowedExtension {
		t.Fatalf("expected DisallowedExtension, got %v", err)
	}
}

func TestUploadDuplicateHashRejected(t *testing.T) {
	areaDir := t.TempDir()
	stagingDir := t.TempDir()
	areas := newFakeAreaManager(&file.FileArea{ID: 1, Tag: "UTILS", ACSUpload: "s10", Path: areaDir})

	contents := []byte("identical payload")
	existingHash, err := hashBytes(contents)
	if err != nil {
		t.Fatalf("hashBytes: %v", err)
	}
	if err := areas.AddFileRecord(file.FileRecord{ID: newTestUUID(), AreaID: 1, Filename: "first.bin", SHA256: existingHash}); err != nil {
		t.Fatalf("seed AddFileRecord: %v", err)
	}

	pipe := &UploadPipeline{Areas: areas, Config: UploadConfig{MaxFileSize: 10000, EnableDuplicateCheck: true}}
	temp := writeTempUpload(t, stagingDir, "incoming", contents)
	pu := PendingUpload{TempPath: temp, AreaID: 1, Filename: "second.bin", Size: int64(len(contents))}
	u := &user.User{AccessLevel: 10}

	_, err = pipe.Execute(pu, u, time.Now())
	var pe *PolicyError
	if !errors.As(err, &pe) || pe.Kind != DuplicateHash {
		t.Fatalf("expected DuplicateHash, got %v", err)
	}
}

func TestUploadVirusDetectedRejected(t *testing.T) {
	areaDir := t.TempDir()
	stagingDir := t.TempDir()
	areas := newFakeAreaManager(&file.FileArea{ID: 1, Tag: "UTILS", ACSUpload: "s10", Path: areaDir})

	pipe := &UploadPipeline{
		Areas:   areas,
		Scanner: alwaysInfectedScanner{name: "EICAR-Test"},
		Config:  UploadConfig{MaxFileSize: 10000, EnableVirusScan: true},
	}
	temp := writeTempUpload(t, stagingDir, "incoming", []byte("bad"))
	pu := PendingUpload{TempPath: temp, AreaID: 1, Filename: "bad.bin", Size: 3}
	u := &user.User{AccessLevel: 10}

	_, err := pipe.Execute(pu, u, time.Now())
	var pe *PolicyError
	if !errors.As(err, &pe) || pe.Kind != VirusDetected {
		t.Fatalf("expected VirusDetected, got %v", err)
	}
	if _, statErr := os.Stat(temp); !os.IsNotExist(statErr) {
		t.Error("expected temp file to be removed")
	}
}
